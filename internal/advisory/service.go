package advisory

import (
	"context"
	"errors"
	"log/slog"

	"loanflow/internal/advisory/metrics"
	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

// Service coordinates scoring runs against their store. The aggregation
// rules live on the aggregate; the service adds lookups, persistence,
// configured weights, events, and metrics.
type Service struct {
	advisories Store
	scoring    *ScoringConfiguration
	publisher  audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher sets the sink for drained domain events.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithScoringConfiguration overrides the default category weights.
func WithScoringConfiguration(cfg *ScoringConfiguration) Option {
	return func(s *Service) {
		s.scoring = cfg
	}
}

// NewService wires an advisory service over its store.
func NewService(advisories Store, opts ...Option) (*Service, error) {
	if advisories == nil {
		return nil, errors.New("advisory store is required")
	}

	s := &Service{advisories: advisories, scoring: DefaultScoringConfiguration()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start initiates a Pending scoring run and immediately moves it to
// Processing so collaborators can begin adding category scores.
func (s *Service) Start(ctx context.Context, applicationID id.ApplicationID, generatedBy id.UserID) (*CreditAdvisory, error) {
	advisory, err := NewAdvisory(applicationID, generatedBy, s.scoring.Version, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := advisory.StartProcessing(); err != nil {
		return nil, err
	}
	if err := s.advisories.Create(ctx, advisory); err != nil {
		return nil, err
	}

	audit.PublishAll(ctx, s.logger, s.publisher, advisory.Events())
	return advisory, nil
}

// Get returns a scoring run by id.
func (s *Service) Get(ctx context.Context, advisoryID id.AdvisoryID) (*CreditAdvisory, error) {
	return s.advisories.Get(ctx, advisoryID)
}

// Latest returns the newest run for an application.
func (s *Service) Latest(ctx context.Context, applicationID id.ApplicationID) (*CreditAdvisory, error) {
	return s.advisories.LatestByApplication(ctx, applicationID)
}

// History returns all runs for an application, newest first.
func (s *Service) History(ctx context.Context, applicationID id.ApplicationID) ([]*CreditAdvisory, error) {
	return s.advisories.ListByApplication(ctx, applicationID)
}

// ScoreCategory records one category's assessment, weighting it from the
// active scoring configuration. Re-scoring a category replaces the previous
// value; its merged red flags remain.
func (s *Service) ScoreCategory(ctx context.Context, advisoryID id.AdvisoryID, category Category, value float64, rationale string, redFlags, positiveIndicators []string) (*CreditAdvisory, error) {
	score, err := NewRiskScore(category, value, s.scoring.Weight(category), rationale, redFlags, positiveIndicators, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, advisoryID, func(advisory *CreditAdvisory) error {
		return advisory.AddRiskScore(score)
	})
}

// Complete finalizes a run and records its outcome.
func (s *Service) Complete(ctx context.Context, advisoryID id.AdvisoryID, conditions []string) (*CreditAdvisory, error) {
	advisory, err := s.mutate(ctx, advisoryID, func(advisory *CreditAdvisory) error {
		return advisory.Complete(conditions, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncCompletion(string(advisory.OverallRating), string(advisory.Recommendation))
	s.metrics.ObserveOverallScore(advisory.OverallScore)
	return advisory, nil
}

// MarkFailed moves a run to its terminal Failed state.
func (s *Service) MarkFailed(ctx context.Context, advisoryID id.AdvisoryID, reason string) (*CreditAdvisory, error) {
	advisory, err := s.mutate(ctx, advisoryID, func(advisory *CreditAdvisory) error {
		return advisory.MarkFailed(reason, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncFailure()
	return advisory, nil
}

// mutate loads a run, applies one aggregate operation, and persists the
// result. Aggregate failures never reach the store.
func (s *Service) mutate(ctx context.Context, advisoryID id.AdvisoryID, op func(*CreditAdvisory) error) (*CreditAdvisory, error) {
	advisory, err := s.advisories.Get(ctx, advisoryID)
	if err != nil {
		return nil, err
	}

	if err := op(advisory); err != nil {
		s.metrics.IncRejection(string(dErrors.CodeOf(err)))
		return nil, err
	}

	if err := s.advisories.Update(ctx, advisory); err != nil {
		s.metrics.IncRejection(string(dErrors.CodeOf(err)))
		return nil, err
	}

	audit.PublishAll(ctx, s.logger, s.publisher, advisory.Events())
	return advisory, nil
}

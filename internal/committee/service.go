package committee

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"loanflow/internal/committee/metrics"
	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

// Service coordinates committee reviews against their store. All voting
// rules live on the aggregate; the service adds lookups, persistence,
// events, and metrics.
type Service struct {
	reviews   Store
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	defaultDeadlineHours int
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

// WithDefaultDeadlineHours sets the deadline applied when Circulate is
// called with zero hours.
func WithDefaultDeadlineHours(hours int) Option {
	return func(s *Service) {
		s.defaultDeadlineHours = hours
	}
}

// NewService wires a committee service over its store.
func NewService(reviews Store, opts ...Option) (*Service, error) {
	if reviews == nil {
		return nil, errors.New("review store is required")
	}

	s := &Service{reviews: reviews, defaultDeadlineHours: 72}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Circulate opens a review for an application. Zero deadlineHours falls back
// to the configured default.
func (s *Service) Circulate(ctx context.Context, applicationID id.ApplicationID, committeeType CommitteeType, requiredVotes, minimumApprovalVotes, deadlineHours int) (*Review, error) {
	if deadlineHours == 0 {
		deadlineHours = s.defaultDeadlineHours
	}

	review, err := NewReview(applicationID, committeeType, requiredVotes, minimumApprovalVotes, deadlineHours, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	audit.PublishAll(ctx, s.logger, s.publisher, review.Events())
	return review, nil
}

// Get returns a review by id.
func (s *Service) Get(ctx context.Context, reviewID id.ReviewID) (*Review, error) {
	return s.reviews.Get(ctx, reviewID)
}

// GetByApplication returns the review circulated for an application.
func (s *Service) GetByApplication(ctx context.Context, applicationID id.ApplicationID) (*Review, error) {
	return s.reviews.GetByApplication(ctx, applicationID)
}

// AddMember assigns a reviewer to the panel.
func (s *Service) AddMember(ctx context.Context, reviewID id.ReviewID, userID id.UserID, role id.Role, isChairperson bool) (*Review, error) {
	return s.mutate(ctx, reviewID, func(review *Review) error {
		return review.AddMember(userID, role, isChairperson, requestcontext.Now(ctx))
	})
}

// ReplaceMember swaps a non-voted reviewer for a new one.
func (s *Service) ReplaceMember(ctx context.Context, reviewID id.ReviewID, oldUserID, newUserID id.UserID) (*Review, error) {
	return s.mutate(ctx, reviewID, func(review *Review) error {
		return review.ReplaceMember(oldUserID, newUserID, requestcontext.Now(ctx))
	})
}

// CastVote records a member's final vote.
func (s *Service) CastVote(ctx context.Context, reviewID id.ReviewID, userID id.UserID, vote Vote, comment string) (*Review, error) {
	review, err := s.mutate(ctx, reviewID, func(review *Review) error {
		return review.CastVote(userID, vote, comment, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncVote(string(vote))
	return review, nil
}

// RecordDecision finalizes a review once quorum is reached.
func (s *Service) RecordDecision(ctx context.Context, reviewID id.ReviewID, decision Decision, rationale string, terms DecisionTerms, decidedBy id.UserID) (*Review, error) {
	review, err := s.mutate(ctx, reviewID, func(review *Review) error {
		return review.RecordDecision(decision, rationale, terms, decidedBy, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncDecision(string(decision))
	return review, nil
}

// AddComment appends a threaded comment to a review.
func (s *Service) AddComment(ctx context.Context, reviewID id.ReviewID, authorID id.UserID, parentID *uuid.UUID, visibility CommentVisibility, text string) (*Comment, error) {
	var added *Comment
	_, err := s.mutate(ctx, reviewID, func(review *Review) error {
		comment, err := review.AddComment(authorID, parentID, visibility, text, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		added = comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// mutate loads a review, applies one aggregate operation, and persists the
// result. Aggregate failures never reach the store.
func (s *Service) mutate(ctx context.Context, reviewID id.ReviewID, op func(*Review) error) (*Review, error) {
	review, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if err := op(review); err != nil {
		s.metrics.IncFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	if err := s.reviews.Update(ctx, review); err != nil {
		s.metrics.IncFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	audit.PublishAll(ctx, s.logger, s.publisher, review.Events())
	return review, nil
}

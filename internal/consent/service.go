package consent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

// Service persists consent decisions and provides type-aware checks. It
// keeps orchestration out of workers and domain logic thin.
type Service struct {
	store     Store
	publisher audit.Publisher
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("consent store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Grant records a subject's consent. A second grant while one is active
// fails: the store's (subject, type, active) key is the cross-request guard.
func (s *Service) Grant(ctx context.Context, subjectID string, consentType ConsentType, ttl time.Duration, recordedBy string) (Record, error) {
	if subjectID == "" {
		return Record{}, dErrors.New(dErrors.CodeInvalidInput, "subject_id is required")
	}

	now := requestcontext.Now(ctx)
	record := Record{
		SubjectID:   subjectID,
		ConsentType: consentType,
		GrantedAt:   now,
		RecordedBy:  recordedBy,
	}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}
	if err := s.store.Save(ctx, record); err != nil {
		return Record{}, err
	}

	audit.PublishAll(ctx, s.logger, s.publisher, []audit.Event{{
		Action:    audit.EventConsentRecorded,
		Timestamp: now,
		Subject:   subjectID,
		Detail:    string(consentType),
	}})
	return record, nil
}

// Require returns an error when active consent of the given type is missing.
func (s *Service) Require(ctx context.Context, subjectID string, consentType ConsentType) error {
	records, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return err
	}
	return EnsureConsent(records, consentType, requestcontext.Now(ctx))
}

// HasActive reports whether an active consent of the given type exists.
func (s *Service) HasActive(ctx context.Context, subjectID string, consentType ConsentType) (bool, error) {
	err := s.Require(ctx, subjectID, consentType)
	if err == nil {
		return true, nil
	}
	if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		return false, nil
	}
	return false, err
}

// Revoke withdraws a subject's consent for one type.
func (s *Service) Revoke(ctx context.Context, subjectID string, consentType ConsentType) error {
	return s.store.Revoke(ctx, subjectID, consentType, requestcontext.Now(ctx))
}

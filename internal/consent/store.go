package consent

import (
	"context"
	"time"
)

// Store persists consent records. Save must reject a second active record
// for the same (subject, type): the active consent is the natural key other
// workers rely on for idempotency.
type Store interface {
	Save(ctx context.Context, record Record) error
	ListBySubject(ctx context.Context, subjectID string) ([]Record, error)
	Revoke(ctx context.Context, subjectID string, consentType ConsentType, revokedAt time.Time) error
}

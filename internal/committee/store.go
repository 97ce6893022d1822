package committee

import (
	"context"
	"time"

	id "loanflow/pkg/domain"
)

// Store persists committee reviews. Update enforces the optimistic version
// contract: a write against a stale version fails with a conflict and the
// caller reloads and reapplies.
type Store interface {
	Create(ctx context.Context, review *Review) error
	Get(ctx context.Context, reviewID id.ReviewID) (*Review, error)
	GetByApplication(ctx context.Context, applicationID id.ApplicationID) (*Review, error)
	Update(ctx context.Context, review *Review) error

	// ListOverdue returns undecided reviews whose deadline passed before now,
	// up to limit. The expirer drains these.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Review, error)
}

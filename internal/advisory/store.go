package advisory

import (
	"context"

	id "loanflow/pkg/domain"
)

// Store persists scoring runs. Applications keep every run; Update enforces
// the optimistic version contract.
type Store interface {
	Create(ctx context.Context, advisory *CreditAdvisory) error
	Get(ctx context.Context, advisoryID id.AdvisoryID) (*CreditAdvisory, error)
	Update(ctx context.Context, advisory *CreditAdvisory) error

	// LatestByApplication returns the newest run for an application.
	LatestByApplication(ctx context.Context, applicationID id.ApplicationID) (*CreditAdvisory, error)

	// ListByApplication returns all runs for an application, newest first.
	ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]*CreditAdvisory, error)
}

package workflow

import (
	"context"
	"time"

	id "loanflow/pkg/domain"
)

// DefinitionStore looks up published workflow definitions. Definitions are
// immutable; Save publishing a new version deactivates the previous one.
type DefinitionStore interface {
	ActiveByType(ctx context.Context, appType id.ApplicationType) (*Definition, error)
	GetByID(ctx context.Context, defID id.DefinitionID) (*Definition, error)
	Save(ctx context.Context, def *Definition) error
}

// InstanceStore persists workflow instances. Update must reject writes whose
// Version does not match the stored row (CodeConflict) and bump the version on
// success.
type InstanceStore interface {
	Create(ctx context.Context, inst *Instance) error
	Get(ctx context.Context, instanceID id.InstanceID) (*Instance, error)
	GetByApplication(ctx context.Context, applicationID id.ApplicationID) (*Instance, error)
	Update(ctx context.Context, inst *Instance) error

	// ListSLABreached returns open instances whose SLA due time has passed,
	// for the sweeper. Limit bounds one sweep batch.
	ListSLABreached(ctx context.Context, now time.Time, limit int) ([]*Instance, error)
}

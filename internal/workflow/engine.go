package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loanflow/internal/workflow/metrics"
	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

// AvailableAction is one transition the given role may perform from the
// instance's current status, shaped for queue/detail display.
type AvailableAction struct {
	Action          Action
	ToStatus        Status
	DisplayName     string
	RequiresComment bool
}

// Engine coordinates workflow instances against their definitions. All state
// transitions are computed in-memory on the aggregate; the engine adds
// lookups, persistence, events, and metrics.
type Engine struct {
	definitions DefinitionStore
	instances   InstanceStore
	publisher   audit.Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithAuditPublisher sets the sink for drained domain events.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine wires an engine over its stores.
func NewEngine(definitions DefinitionStore, instances InstanceStore, opts ...Option) (*Engine, error) {
	if definitions == nil {
		return nil, errors.New("definition store is required")
	}
	if instances == nil {
		return nil, errors.New("instance store is required")
	}

	e := &Engine{definitions: definitions, instances: instances}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start creates the workflow instance for a newly submitted application,
// using the active definition for its type.
func (e *Engine) Start(ctx context.Context, applicationID id.ApplicationID, appType id.ApplicationType) (*Instance, error) {
	def, err := e.definitions.ActiveByType(ctx, appType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no active workflow definition for application type")
	}

	now := requestcontext.Now(ctx)
	inst, err := StartInstance(def, applicationID, now)
	if err != nil {
		return nil, err
	}
	if err := e.instances.Create(ctx, inst); err != nil {
		return nil, err
	}

	audit.PublishAll(ctx, e.logger, e.publisher, inst.Events())
	return inst, nil
}

// GetAvailableActions returns the transitions from the instance's current
// status that the given role may perform. Completed instances have none.
func (e *Engine) GetAvailableActions(ctx context.Context, instanceID id.InstanceID, role id.Role) ([]AvailableAction, error) {
	inst, def, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.IsCompleted {
		return nil, nil
	}

	var actions []AvailableAction
	for _, t := range def.TransitionsFrom(inst.CurrentStatus) {
		if !role.Matches(t.RequiredRole) {
			continue
		}
		actions = append(actions, AvailableAction{
			Action:          t.Action,
			ToStatus:        t.ToStatus,
			DisplayName:     t.DisplayName,
			RequiresComment: t.RequiresComment,
		})
	}
	return actions, nil
}

// Transition applies one action to an instance and persists the result. On
// version conflict the caller reloads and retries with current state.
func (e *Engine) Transition(ctx context.Context, instanceID id.InstanceID, action Action, toStatus Status, performedBy id.UserID, comment string) (*Instance, error) {
	start := time.Now()

	inst, def, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := inst.Apply(def, action, toStatus, performedBy, comment, now); err != nil {
		e.metrics.IncFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	if err := e.instances.Update(ctx, inst); err != nil {
		e.metrics.IncFailure(string(dErrors.CodeOf(err)))
		return nil, err
	}

	audit.PublishAll(ctx, e.logger, e.publisher, inst.Events())
	e.metrics.IncTransition(string(action), string(toStatus))
	e.metrics.ObserveTransitionLatency(time.Since(start))
	return inst, nil
}

// Assign claims the current stage for a user. Idempotent.
func (e *Engine) Assign(ctx context.Context, instanceID id.InstanceID, userID id.UserID) (*Instance, error) {
	inst, err := e.instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if err := inst.Assign(userID, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := e.instances.Update(ctx, inst); err != nil {
		return nil, err
	}

	audit.PublishAll(ctx, e.logger, e.publisher, inst.Events())
	return inst, nil
}

func (e *Engine) load(ctx context.Context, instanceID id.InstanceID) (*Instance, *Definition, error) {
	inst, err := e.instances.Get(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	def, err := e.definitions.GetByID(ctx, inst.DefinitionID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeNotFound, "definition for instance not found")
	}
	return inst, def, nil
}

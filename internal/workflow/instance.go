package workflow

import (
	"strconv"
	"time"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
)

// TransitionLog is one entry of the append-only history. Entries are never
// edited or removed.
type TransitionLog struct {
	FromStatus  Status
	ToStatus    Status
	Action      Action
	PerformedBy id.UserID
	PerformedAt time.Time
	Comment     string
}

// Instance is the per-application runtime state machine. One instance exists
// per loan application, created at submission and destroyed only with it.
//
// Instances are single-writer aggregates: all mutation happens in-process and
// the store's optimistic version check serializes concurrent writers.
type Instance struct {
	ID               id.InstanceID
	ApplicationID    id.ApplicationID
	DefinitionID     id.DefinitionID
	CurrentStatus    Status
	CurrentStageName string
	AssignedRole     id.Role
	AssignedTo       *id.UserID
	AssignedAt       *time.Time

	EnteredCurrentStageAt time.Time
	SLADueAt              *time.Time
	EscalationLevel       int

	IsCompleted bool
	FinalStatus Status
	CompletedAt *time.Time

	History []TransitionLog

	// Version backs the store's optimistic concurrency check.
	Version int64

	pending []audit.Event
}

// StartInstance creates the runtime instance for an application at its
// definition's initial stage.
func StartInstance(def *Definition, applicationID id.ApplicationID, now time.Time) (*Instance, error) {
	if def == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "workflow definition is required")
	}
	if applicationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "application_id is required")
	}

	initial := def.InitialStage()
	inst := &Instance{
		ID:                    id.NewInstanceID(),
		ApplicationID:         applicationID,
		DefinitionID:          def.ID,
		CurrentStatus:         initial.Status,
		CurrentStageName:      initial.DisplayName,
		AssignedRole:          initial.AssignedRole,
		EnteredCurrentStageAt: now,
		SLADueAt:              slaDue(initial, now),
	}
	inst.record(audit.Event{
		Action:        audit.EventWorkflowStarted,
		Timestamp:     now,
		ApplicationID: applicationID,
		Detail:        string(initial.Status),
	})
	return inst, nil
}

func slaDue(stage Stage, entered time.Time) *time.Time {
	if stage.SLAHours <= 0 {
		return nil
	}
	due := entered.Add(time.Duration(stage.SLAHours) * time.Hour)
	return &due
}

// Apply performs one transition. Validation runs before any mutation, so a
// failed call leaves the instance untouched.
func (i *Instance) Apply(def *Definition, action Action, toStatus Status, performedBy id.UserID, comment string, now time.Time) error {
	if i.IsCompleted {
		return dErrors.New(dErrors.CodeInvalidTransition, "workflow already completed")
	}

	t, ok := def.TransitionFor(i.CurrentStatus, action)
	if !ok || t.ToStatus != toStatus {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"no transition %q from %q to %q", action, i.CurrentStatus, toStatus)
	}

	currentStage, _ := def.StageFor(i.CurrentStatus)
	if (t.RequiresComment || currentStage.RequiresComment) && comment == "" {
		return dErrors.Newf(dErrors.CodeInvalidInput, "action %q requires a comment", action)
	}

	nextStage, ok := def.StageFor(toStatus)
	if !ok {
		// Validate guarantees this; a miss means the instance is paired with
		// the wrong definition version.
		return dErrors.Newf(dErrors.CodeInvalidTransition, "stage %q not in definition", toStatus)
	}

	from := i.CurrentStatus
	i.History = append(i.History, TransitionLog{
		FromStatus:  from,
		ToStatus:    toStatus,
		Action:      action,
		PerformedBy: performedBy,
		PerformedAt: now,
		Comment:     comment,
	})

	stageChanged := from != toStatus

	i.CurrentStatus = toStatus
	i.CurrentStageName = nextStage.DisplayName
	i.AssignedRole = nextStage.AssignedRole
	i.EnteredCurrentStageAt = now
	i.SLADueAt = slaDue(nextStage, now)
	i.EscalationLevel = 0
	if stageChanged {
		// Unassigned until someone claims the new stage.
		i.AssignedTo = nil
		i.AssignedAt = nil
	}

	i.record(audit.Event{
		Action:        audit.EventWorkflowTransitioned,
		Timestamp:     now,
		ApplicationID: i.ApplicationID,
		ActorID:       performedBy,
		Subject:       string(action),
		Detail:        string(from) + " -> " + string(toStatus),
	})

	if nextStage.IsTerminal {
		i.IsCompleted = true
		i.FinalStatus = toStatus
		completed := now
		i.CompletedAt = &completed
		i.record(audit.Event{
			Action:        audit.EventWorkflowCompleted,
			Timestamp:     now,
			ApplicationID: i.ApplicationID,
			ActorID:       performedBy,
			Detail:        string(toStatus),
		})
	}

	return nil
}

// Assign claims the current stage for a user. Idempotent: re-assigning the
// same user refreshes nothing and emits nothing.
func (i *Instance) Assign(userID id.UserID, now time.Time) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if i.IsCompleted {
		return dErrors.New(dErrors.CodeInvalidTransition, "workflow already completed")
	}
	if i.AssignedTo != nil && *i.AssignedTo == userID {
		return nil
	}
	i.AssignedTo = &userID
	i.AssignedAt = &now
	i.record(audit.Event{
		Action:        audit.EventWorkflowAssigned,
		Timestamp:     now,
		ApplicationID: i.ApplicationID,
		ActorID:       userID,
	})
	return nil
}

// IsSLADue reports whether the current stage has breached its SLA. Pure
// predicate; escalation is the sweeper's job.
func (i *Instance) IsSLADue(now time.Time) bool {
	return !i.IsCompleted && i.SLADueAt != nil && !now.Before(*i.SLADueAt)
}

// Escalate raises the escalation level for a breached SLA, up to maxLevel.
// Returns false when nothing changed (no breach, or already at the cap).
func (i *Instance) Escalate(maxLevel int, now time.Time) bool {
	if !i.IsSLADue(now) || i.EscalationLevel >= maxLevel {
		return false
	}
	i.EscalationLevel++
	i.record(audit.Event{
		Action:        audit.EventSLAEscalated,
		Timestamp:     now,
		ApplicationID: i.ApplicationID,
		Subject:       string(i.CurrentStatus),
		Detail:        "escalation level " + strconv.Itoa(i.EscalationLevel),
	})
	return true
}

// Events drains the pending domain events accumulated since the last drain.
// Callers publish them after a successful save.
func (i *Instance) Events() []audit.Event {
	events := i.pending
	i.pending = nil
	return events
}

func (i *Instance) record(event audit.Event) {
	i.pending = append(i.pending, event)
}

// Package workflow implements the loan application state machine: static,
// versioned workflow definitions and the per-application runtime instances
// that consume them.
package workflow

import (
	"sort"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

// Status names a state in a workflow. States are data: each definition
// declares its own set, so new application types never touch engine code.
type Status string

// Action names the operator-visible verb that moves an application between
// two statuses ("approve", "return_for_documents", "escalate").
type Action string

// Stage is a named state with an owning role and an SLA clock.
type Stage struct {
	Status          Status
	DisplayName     string
	AssignedRole    id.Role
	SLAHours        int // 0 means no SLA for this stage
	SortOrder       int
	IsTerminal      bool
	RequiresComment bool
}

// Transition is one edge of the state machine. RequiredRole gates who sees
// and performs the action; Condition is an opaque expression evaluated by the
// caller before invoking the engine (the engine treats it as documentation).
type Transition struct {
	FromStatus      Status
	ToStatus        Status
	Action          Action
	DisplayName     string
	RequiredRole    id.Role
	RequiresComment bool
	Condition       string
}

// Definition is the static configuration of one workflow, per application
// type. Definitions are immutable once published; changes ship as a new
// version that replaces the active one.
type Definition struct {
	ID              id.DefinitionID
	Name            string
	ApplicationType id.ApplicationType
	Version         int
	IsActive        bool
	Stages          []Stage
	Transitions     []Transition
}

// Validate enforces the configuration invariants at load time, so runtime
// transitions never have to re-check them:
//
//   - every transition's endpoints are declared stages
//   - at most one transition per (FromStatus, Action) pair
//   - every non-terminal stage has at least one outgoing transition
//   - terminal stages have none
func (d *Definition) Validate() error {
	if d.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "definition name is required")
	}
	if d.ApplicationType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "application type is required")
	}
	if len(d.Stages) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "definition needs at least one stage")
	}

	stages := make(map[Status]Stage, len(d.Stages))
	for _, stage := range d.Stages {
		if stage.Status == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "stage status is required")
		}
		if _, dup := stages[stage.Status]; dup {
			return dErrors.Newf(dErrors.CodeInvalidInput, "duplicate stage %q", stage.Status)
		}
		if stage.SLAHours < 0 {
			return dErrors.Newf(dErrors.CodeInvalidInput, "stage %q has negative SLA", stage.Status)
		}
		stages[stage.Status] = stage
	}

	type edge struct {
		from   Status
		action Action
	}
	edges := make(map[edge]struct{}, len(d.Transitions))
	outgoing := make(map[Status]int, len(d.Stages))

	for _, t := range d.Transitions {
		from, ok := stages[t.FromStatus]
		if !ok {
			return dErrors.Newf(dErrors.CodeInvalidInput, "transition %q leaves unknown stage %q", t.Action, t.FromStatus)
		}
		if _, ok := stages[t.ToStatus]; !ok {
			return dErrors.Newf(dErrors.CodeInvalidInput, "transition %q targets unknown stage %q", t.Action, t.ToStatus)
		}
		if t.Action == "" {
			return dErrors.Newf(dErrors.CodeInvalidInput, "transition from %q has no action", t.FromStatus)
		}
		if from.IsTerminal {
			return dErrors.Newf(dErrors.CodeInvalidInput, "terminal stage %q must not have outgoing transitions", t.FromStatus)
		}
		key := edge{from: t.FromStatus, action: t.Action}
		if _, dup := edges[key]; dup {
			return dErrors.Newf(dErrors.CodeInvalidInput, "ambiguous transition: %q from %q declared twice", t.Action, t.FromStatus)
		}
		edges[key] = struct{}{}
		outgoing[t.FromStatus]++
	}

	for _, stage := range d.Stages {
		if !stage.IsTerminal && outgoing[stage.Status] == 0 {
			return dErrors.Newf(dErrors.CodeInvalidInput, "non-terminal stage %q has no outgoing transitions", stage.Status)
		}
	}

	return nil
}

// StageFor returns the stage declared for a status.
func (d *Definition) StageFor(status Status) (Stage, bool) {
	for _, stage := range d.Stages {
		if stage.Status == status {
			return stage, true
		}
	}
	return Stage{}, false
}

// InitialStage is the lowest-SortOrder stage; new instances start here.
func (d *Definition) InitialStage() Stage {
	initial := d.Stages[0]
	for _, stage := range d.Stages[1:] {
		if stage.SortOrder < initial.SortOrder {
			initial = stage
		}
	}
	return initial
}

// TransitionFor resolves the unique edge for (from, action). Uniqueness is a
// Validate invariant, so the first match is the only match.
func (d *Definition) TransitionFor(from Status, action Action) (Transition, bool) {
	for _, t := range d.Transitions {
		if t.FromStatus == from && t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// TransitionsFrom lists the outgoing edges of a status, ordered by action
// name for stable display.
func (d *Definition) TransitionsFrom(from Status) []Transition {
	var out []Transition
	for _, t := range d.Transitions {
		if t.FromStatus == from {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

package workflow

import (
	"context"
	"sync"
	"time"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

// InMemoryDefinitionStore keeps definitions in memory. Used by tests and
// single-node dev runs.
type InMemoryDefinitionStore struct {
	mu   sync.RWMutex
	defs map[id.DefinitionID]*Definition
}

func NewInMemoryDefinitionStore() *InMemoryDefinitionStore {
	return &InMemoryDefinitionStore{defs: make(map[id.DefinitionID]*Definition)}
}

// Save validates and publishes a definition. An active definition replaces
// any previously active one for the same application type.
func (s *InMemoryDefinitionStore) Save(_ context.Context, def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if def.IsActive {
		for _, existing := range s.defs {
			if existing.ApplicationType == def.ApplicationType && existing.ID != def.ID {
				existing.IsActive = false
			}
		}
	}
	copied := *def
	s.defs[def.ID] = &copied
	return nil
}

func (s *InMemoryDefinitionStore) ActiveByType(_ context.Context, appType id.ApplicationType) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, def := range s.defs {
		if def.ApplicationType == appType && def.IsActive {
			copied := *def
			return &copied, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "no active definition for %q", appType)
}

func (s *InMemoryDefinitionStore) GetByID(_ context.Context, defID id.DefinitionID) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[defID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "definition not found")
	}
	copied := *def
	return &copied, nil
}

// InMemoryInstanceStore keeps instances in memory with the same optimistic
// version contract the postgres store enforces.
type InMemoryInstanceStore struct {
	mu        sync.RWMutex
	instances map[id.InstanceID]*Instance
	byApp     map[id.ApplicationID]id.InstanceID
}

func NewInMemoryInstanceStore() *InMemoryInstanceStore {
	return &InMemoryInstanceStore{
		instances: make(map[id.InstanceID]*Instance),
		byApp:     make(map[id.ApplicationID]id.InstanceID),
	}
}

func (s *InMemoryInstanceStore) Create(_ context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byApp[inst.ApplicationID]; exists {
		return dErrors.New(dErrors.CodeConflict, "application already has a workflow instance")
	}
	inst.Version = 1
	s.instances[inst.ID] = snapshot(inst)
	s.byApp[inst.ApplicationID] = inst.ID
	return nil
}

func (s *InMemoryInstanceStore) Get(_ context.Context, instanceID id.InstanceID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "workflow instance not found")
	}
	return snapshot(inst), nil
}

func (s *InMemoryInstanceStore) GetByApplication(_ context.Context, applicationID id.ApplicationID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instanceID, ok := s.byApp[applicationID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "workflow instance not found")
	}
	return snapshot(s.instances[instanceID]), nil
}

func (s *InMemoryInstanceStore) Update(_ context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.instances[inst.ID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "workflow instance not found")
	}
	if stored.Version != inst.Version {
		return dErrors.New(dErrors.CodeConflict, "workflow instance was modified concurrently")
	}
	inst.Version++
	s.instances[inst.ID] = snapshot(inst)
	return nil
}

func (s *InMemoryInstanceStore) ListSLABreached(_ context.Context, now time.Time, limit int) ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Instance
	for _, inst := range s.instances {
		if inst.IsSLADue(now) {
			out = append(out, snapshot(inst))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// snapshot deep-copies the persisted fields; pending events never survive a
// store round-trip.
func snapshot(inst *Instance) *Instance {
	copied := *inst
	copied.History = append([]TransitionLog{}, inst.History...)
	if inst.AssignedTo != nil {
		assignee := *inst.AssignedTo
		copied.AssignedTo = &assignee
	}
	if inst.AssignedAt != nil {
		at := *inst.AssignedAt
		copied.AssignedAt = &at
	}
	if inst.SLADueAt != nil {
		due := *inst.SLADueAt
		copied.SLADueAt = &due
	}
	if inst.CompletedAt != nil {
		at := *inst.CompletedAt
		copied.CompletedAt = &at
	}
	copied.pending = nil
	return &copied
}

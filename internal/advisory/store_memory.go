package advisory

import (
	"context"
	"sort"
	"sync"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

// InMemoryStore keeps scoring runs in memory with the same optimistic
// version contract the postgres store enforces.
type InMemoryStore struct {
	mu         sync.RWMutex
	advisories map[id.AdvisoryID]*CreditAdvisory
	byApp      map[id.ApplicationID][]id.AdvisoryID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		advisories: make(map[id.AdvisoryID]*CreditAdvisory),
		byApp:      make(map[id.ApplicationID][]id.AdvisoryID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, advisory *CreditAdvisory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.advisories[advisory.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "advisory already exists")
	}
	advisory.Version = 1
	s.advisories[advisory.ID] = snapshotAdvisory(advisory)
	s.byApp[advisory.ApplicationID] = append(s.byApp[advisory.ApplicationID], advisory.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, advisoryID id.AdvisoryID) (*CreditAdvisory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	advisory, ok := s.advisories[advisoryID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "advisory not found")
	}
	return snapshotAdvisory(advisory), nil
}

func (s *InMemoryStore) Update(_ context.Context, advisory *CreditAdvisory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.advisories[advisory.ID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "advisory not found")
	}
	if stored.Version != advisory.Version {
		return dErrors.New(dErrors.CodeConflict, "advisory was modified concurrently")
	}
	advisory.Version++
	s.advisories[advisory.ID] = snapshotAdvisory(advisory)
	return nil
}

func (s *InMemoryStore) LatestByApplication(ctx context.Context, applicationID id.ApplicationID) (*CreditAdvisory, error) {
	runs, err := s.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return runs[0], nil
}

func (s *InMemoryStore) ListByApplication(_ context.Context, applicationID id.ApplicationID) ([]*CreditAdvisory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byApp[applicationID]
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no advisories for application")
	}

	out := make([]*CreditAdvisory, 0, len(ids))
	for _, advisoryID := range ids {
		out = append(out, snapshotAdvisory(s.advisories[advisoryID]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// snapshotAdvisory deep-copies the persisted fields; pending events never
// survive a store round-trip.
func snapshotAdvisory(advisory *CreditAdvisory) *CreditAdvisory {
	copied := *advisory
	copied.RedFlags = append([]string{}, advisory.RedFlags...)
	copied.Conditions = append([]string{}, advisory.Conditions...)
	copied.restoreScores(advisory.Scores())
	copied.pending = nil
	return &copied
}

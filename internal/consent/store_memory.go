package consent

import (
	"context"
	"sync"
	"time"

	dErrors "loanflow/pkg/domain-errors"
)

// InMemoryStore keeps consent records in memory. Used by tests and
// single-node dev runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Record)}
}

// Save rejects a second active record for the same (subject, type), matching
// the postgres store's partial unique index.
func (s *InMemoryStore) Save(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records[record.SubjectID] {
		if existing.ConsentType == record.ConsentType && existing.RevokedAt == nil && existing.IsActive(record.GrantedAt) {
			return dErrors.New(dErrors.CodeConflict, "active consent already exists for subject and type")
		}
	}
	s.records[record.SubjectID] = append(s.records[record.SubjectID], record)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record{}, s.records[subjectID]...), nil
}

func (s *InMemoryStore) Revoke(_ context.Context, subjectID string, consentType ConsentType, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[subjectID]
	for i := range records {
		if records[i].ConsentType == consentType && records[i].RevokedAt == nil {
			at := revokedAt
			records[i].RevokedAt = &at
			return nil
		}
	}
	return dErrors.New(dErrors.CodeNotFound, "no active consent to revoke")
}

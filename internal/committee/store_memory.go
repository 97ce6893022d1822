package committee

import (
	"context"
	"sync"
	"time"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

// InMemoryStore keeps reviews in memory with the same optimistic version
// contract the postgres store enforces.
type InMemoryStore struct {
	mu      sync.RWMutex
	reviews map[id.ReviewID]*Review
	byApp   map[id.ApplicationID]id.ReviewID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reviews: make(map[id.ReviewID]*Review),
		byApp:   make(map[id.ApplicationID]id.ReviewID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, review *Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byApp[review.ApplicationID]; exists {
		return dErrors.New(dErrors.CodeConflict, "application already has a committee review")
	}
	review.Version = 1
	s.reviews[review.ID] = snapshotReview(review)
	s.byApp[review.ApplicationID] = review.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, reviewID id.ReviewID) (*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	review, ok := s.reviews[reviewID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "committee review not found")
	}
	return snapshotReview(review), nil
}

func (s *InMemoryStore) GetByApplication(_ context.Context, applicationID id.ApplicationID) (*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reviewID, ok := s.byApp[applicationID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "committee review not found")
	}
	return snapshotReview(s.reviews[reviewID]), nil
}

func (s *InMemoryStore) Update(_ context.Context, review *Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reviews[review.ID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "committee review not found")
	}
	if stored.Version != review.Version {
		return dErrors.New(dErrors.CodeConflict, "committee review was modified concurrently")
	}
	review.Version++
	s.reviews[review.ID] = snapshotReview(review)
	return nil
}

func (s *InMemoryStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Review
	for _, review := range s.reviews {
		if !review.IsClosed() && review.IsOverdue(now) {
			out = append(out, snapshotReview(review))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// snapshotReview deep-copies the persisted fields; pending events never
// survive a store round-trip.
func snapshotReview(review *Review) *Review {
	copied := *review
	copied.Members = make([]Member, len(review.Members))
	for i, m := range review.Members {
		copied.Members[i] = m
		if m.VotedAt != nil {
			at := *m.VotedAt
			copied.Members[i].VotedAt = &at
		}
	}
	copied.Comments = append([]Comment{}, review.Comments...)
	copied.Terms.Conditions = append([]string{}, review.Terms.Conditions...)
	if review.DecisionAt != nil {
		at := *review.DecisionAt
		copied.DecisionAt = &at
	}
	copied.pending = nil
	return &copied
}

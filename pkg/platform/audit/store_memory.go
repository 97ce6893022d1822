package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps events in insertion order. Used by tests and as the
// default sink when kafka is not configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *InMemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}

// Reset drops all recorded events.
func (s *InMemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// Emit satisfies Publisher so the memory store can stand in for kafka.
func (s *InMemoryStore) Emit(ctx context.Context, event Event) error {
	return s.Append(ctx, event)
}

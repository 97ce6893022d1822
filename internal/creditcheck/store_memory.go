package creditcheck

import (
	"context"
	"sync"

	"github.com/google/uuid"

	dErrors "loanflow/pkg/domain-errors"
)

// InMemoryRequestStore keeps dispatch requests in memory.
type InMemoryRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*Request
	order    []uuid.UUID
}

func NewInMemoryRequestStore() *InMemoryRequestStore {
	return &InMemoryRequestStore{requests: make(map[uuid.UUID]*Request)}
}

func (s *InMemoryRequestStore) Enqueue(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = RequestPending
	copied := *req
	s.requests[req.ID] = &copied
	s.order = append(s.order, req.ID)
	return nil
}

func (s *InMemoryRequestStore) ListPending(_ context.Context, limit int) ([]*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Request
	for _, reqID := range s.order {
		req := s.requests[reqID]
		if req.Status != RequestPending {
			continue
		}
		copied := *req
		out = append(out, &copied)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryRequestStore) Update(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "credit check request not found")
	}
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

// InMemoryReportStore keeps the latest report per subject.
type InMemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]Report
}

func NewInMemoryReportStore() *InMemoryReportStore {
	return &InMemoryReportStore{reports: make(map[string]Report)}
}

func (s *InMemoryReportStore) Save(_ context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.SubjectID] = report
	return nil
}

func (s *InMemoryReportStore) LatestBySubject(_ context.Context, subjectID string) (Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[subjectID]
	return report, ok, nil
}

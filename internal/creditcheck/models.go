// Package creditcheck dispatches bureau report pulls for applications that
// reached the credit-check stage. The bureau itself is a black-box port;
// this package owns queuing, consent gating, idempotency, and retry.
package creditcheck

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "loanflow/pkg/domain"
)

// RequestStatus is the lifecycle of one dispatch request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestCompleted RequestStatus = "completed"
	// RequestFailed is terminal: attempts were exhausted and an operator has
	// to re-queue by hand.
	RequestFailed RequestStatus = "failed"
)

// Request is one queued bureau pull. At-least-once processing is expected; a
// request may be picked up twice if a worker restarts mid-batch, so the
// dispatcher checks for an existing valid report before calling out.
type Request struct {
	ID            uuid.UUID
	ApplicationID id.ApplicationID
	SubjectID     string
	Status        RequestStatus
	Attempts      int
	LastError     string
	RequestedAt   time.Time
	CompletedAt   *time.Time
}

// Report is the bureau's answer for one subject.
type Report struct {
	SubjectID   string
	ReferenceID string
	BureauScore int
	RetrievedAt time.Time
}

// IsValid reports whether the report is still fresh enough to reuse.
func (r Report) IsValid(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.RetrievedAt) <= maxAge
}

// Bureau is the outbound port to the credit bureau.
type Bureau interface {
	Fetch(ctx context.Context, subjectID string) (Report, error)
}

// RequestStore queues dispatch requests.
type RequestStore interface {
	Enqueue(ctx context.Context, req *Request) error
	ListPending(ctx context.Context, limit int) ([]*Request, error)
	Update(ctx context.Context, req *Request) error
}

// ReportStore persists fetched reports.
type ReportStore interface {
	Save(ctx context.Context, report Report) error
	LatestBySubject(ctx context.Context, subjectID string) (Report, bool, error)
}

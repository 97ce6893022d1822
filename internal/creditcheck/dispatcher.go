package creditcheck

import (
	"context"
	"log/slog"
	"time"

	"loanflow/internal/consent"
	id "loanflow/pkg/domain"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

const dispatchBatchSize = 50

// Dispatcher is the periodic worker that executes queued bureau pulls.
//
// Each request is processed with three guards, in order: an existing valid
// report short-circuits the pull (idempotency under at-least-once delivery),
// missing consent parks the request as failed, and transient bureau errors
// are retried up to maxAttempts before the request goes terminal.
type Dispatcher struct {
	requests  RequestStore
	reports   ReportStore
	bureau    Bureau
	consents  *consent.Service
	publisher audit.Publisher
	logger    *slog.Logger

	interval     time.Duration
	maxAttempts  int
	reportMaxAge time.Duration
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(d *Dispatcher) { d.publisher = publisher }
}

// WithReportMaxAge sets how old a stored report may be before a fresh pull
// is made anyway.
func WithReportMaxAge(age time.Duration) Option {
	return func(d *Dispatcher) { d.reportMaxAge = age }
}

func New(requests RequestStore, reports ReportStore, bureau Bureau, consents *consent.Service, interval time.Duration, maxAttempts int, opts ...Option) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	d := &Dispatcher{
		requests:     requests,
		reports:      reports,
		bureau:       bureau,
		consents:     consents,
		interval:     interval,
		maxAttempts:  maxAttempts,
		reportMaxAge: 90 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue queues a bureau pull for an application's subject.
func (d *Dispatcher) Enqueue(ctx context.Context, applicationID id.ApplicationID, subjectID string) error {
	now := requestcontext.Now(ctx)
	req := &Request{
		ApplicationID: applicationID,
		SubjectID:     subjectID,
		RequestedAt:   now,
	}
	if err := d.requests.Enqueue(ctx, req); err != nil {
		return err
	}

	audit.PublishAll(ctx, d.logger, d.publisher, []audit.Event{{
		Action:        audit.EventCreditCheckRequired,
		Timestamp:     now,
		ApplicationID: applicationID,
		Subject:       subjectID,
	}})
	return nil
}

// Run dispatches on the configured interval until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Dispatch(ctx)
		}
	}
}

// Dispatch processes one batch of pending requests. Per-item failures are
// isolated: one bad request never aborts the batch.
func (d *Dispatcher) Dispatch(ctx context.Context) {
	now := time.Now()
	ctx = requestcontext.WithTime(ctx, now)

	pending, err := d.requests.ListPending(ctx, dispatchBatchSize)
	if err != nil {
		if d.logger != nil {
			d.logger.ErrorContext(ctx, "pending credit check query failed", "error", err)
		}
		return
	}

	for _, req := range pending {
		d.process(ctx, req, now)
	}
}

func (d *Dispatcher) process(ctx context.Context, req *Request, now time.Time) {
	if report, ok, err := d.reports.LatestBySubject(ctx, req.SubjectID); err == nil && ok && report.IsValid(now, d.reportMaxAge) {
		d.complete(ctx, req, now)
		return
	}

	active, err := d.consents.HasActive(ctx, req.SubjectID, consent.TypeCreditBureauCheck)
	if err != nil {
		d.retryOrFail(ctx, req, now, err)
		return
	}
	if !active {
		// Not transient: a pull without consent stays forbidden until staff
		// record one and re-queue.
		req.Status = RequestFailed
		req.LastError = "no active credit bureau consent for subject"
		d.update(ctx, req)
		return
	}

	report, err := d.bureau.Fetch(ctx, req.SubjectID)
	if err != nil {
		d.retryOrFail(ctx, req, now, err)
		return
	}
	if err := d.reports.Save(ctx, report); err != nil {
		d.retryOrFail(ctx, req, now, err)
		return
	}
	d.complete(ctx, req, now)
}

func (d *Dispatcher) complete(ctx context.Context, req *Request, now time.Time) {
	req.Status = RequestCompleted
	completed := now
	req.CompletedAt = &completed
	d.update(ctx, req)
}

func (d *Dispatcher) retryOrFail(ctx context.Context, req *Request, now time.Time, cause error) {
	req.Attempts++
	req.LastError = cause.Error()
	if req.Attempts >= d.maxAttempts {
		req.Status = RequestFailed
		if d.logger != nil {
			d.logger.ErrorContext(ctx, "credit check permanently failed",
				"application_id", req.ApplicationID,
				"attempts", req.Attempts,
				"error", cause,
			)
		}
	} else if d.logger != nil {
		d.logger.WarnContext(ctx, "credit check failed, will retry",
			"application_id", req.ApplicationID,
			"attempt", req.Attempts,
			"error", cause,
		)
	}
	d.update(ctx, req)
}

func (d *Dispatcher) update(ctx context.Context, req *Request) {
	if err := d.requests.Update(ctx, req); err != nil && d.logger != nil {
		d.logger.ErrorContext(ctx, "credit check request update failed",
			"request_id", req.ID, "error", err)
	}
}

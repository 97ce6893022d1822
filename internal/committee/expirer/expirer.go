// Package expirer closes committee reviews whose deadline passed without a
// decision. Expiry is a policy outcome, not an error: the review ends in a
// terminal Expired state and downstream stages see it like any decision.
package expirer

import (
	"context"
	"log/slog"
	"time"

	"loanflow/internal/committee"
	"loanflow/internal/committee/metrics"
	"loanflow/internal/notification"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

const sweepBatchSize = 100

// Expirer is the periodic deadline worker.
type Expirer struct {
	reviews   committee.Store
	queue     *notification.Queue
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	interval time.Duration
}

func New(reviews committee.Store, queue *notification.Queue, interval time.Duration, opts ...Option) *Expirer {
	e := &Expirer{
		reviews:  reviews,
		queue:    queue,
		interval: interval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures the Expirer.
type Option func(*Expirer)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Expirer) { e.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(e *Expirer) { e.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Expirer) { e.metrics = m }
}

// Run sweeps on the configured interval until the context is cancelled.
func (e *Expirer) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep expires one batch of overdue reviews. Per-item failures are
// isolated: one bad review never aborts the batch.
func (e *Expirer) Sweep(ctx context.Context) {
	now := time.Now()
	ctx = requestcontext.WithTime(ctx, now)

	overdue, err := e.reviews.ListOverdue(ctx, now, sweepBatchSize)
	if err != nil {
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "overdue review query failed", "error", err)
		}
		return
	}

	for _, review := range overdue {
		if err := e.expire(ctx, review, now); err != nil {
			// Conflicts mean a vote or decision landed concurrently; the next
			// sweep sees the fresh state.
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				continue
			}
			if e.logger != nil {
				e.logger.WarnContext(ctx, "review expiry failed",
					"review_id", review.ID,
					"application_id", review.ApplicationID,
					"error", err,
				)
			}
		}
	}
}

func (e *Expirer) expire(ctx context.Context, review *committee.Review, now time.Time) error {
	if err := review.Expire(now); err != nil {
		return err
	}
	if err := e.reviews.Update(ctx, review); err != nil {
		return err
	}

	audit.PublishAll(ctx, e.logger, e.publisher, review.Events())
	e.metrics.IncExpiration()

	if e.queue != nil {
		e.queue.Enqueue(notification.Notification{
			Kind:          notification.KindCommitteeExpired,
			ApplicationID: review.ApplicationID,
			Subject:       "Committee review expired",
			Body:          "The committee deadline passed without a recorded decision.",
			CreatedAt:     now,
		})
	}
	return nil
}

package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// queued is one notification with its delivery bookkeeping.
type queued struct {
	notification Notification
	attempts     int
	lastError    string
	failed       bool
}

// Queue buffers notifications and retries delivery with a bounded attempt
// count. Items that exhaust their attempts move to a terminal failed list
// visible to operators; the worker loop itself never dies on a bad item.
type Queue struct {
	notifier    Notifier
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration

	mu      sync.Mutex
	pending []*queued
	dead    []*queued
}

func NewQueue(notifier Notifier, maxAttempts int, backoff time.Duration, logger *slog.Logger) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Queue{
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Enqueue accepts a notification for asynchronous delivery. Never blocks.
func (q *Queue) Enqueue(n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &queued{notification: n})
}

// Run drains the queue until the context is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.backoff)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			q.deliverBatch(ctx)
		}
	}
}

// deliverBatch attempts every pending item once. Failures are re-queued until
// maxAttempts, then parked as dead.
func (q *Queue) deliverBatch(ctx context.Context) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, item := range batch {
		item.attempts++
		err := q.notifier.Send(ctx, item.notification)
		if err == nil {
			continue
		}
		item.lastError = err.Error()

		if item.attempts >= q.maxAttempts {
			item.failed = true
			q.mu.Lock()
			q.dead = append(q.dead, item)
			q.mu.Unlock()
			if q.logger != nil {
				q.logger.ErrorContext(ctx, "notification permanently failed",
					"kind", item.notification.Kind,
					"application_id", item.notification.ApplicationID,
					"attempts", item.attempts,
					"error", err,
				)
			}
			continue
		}

		q.mu.Lock()
		q.pending = append(q.pending, item)
		q.mu.Unlock()
		if q.logger != nil {
			q.logger.WarnContext(ctx, "notification delivery failed, will retry",
				"kind", item.notification.Kind,
				"attempt", item.attempts,
				"error", err,
			)
		}
	}
}

// FailedCount reports notifications that exhausted their retries.
func (q *Queue) FailedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dead)
}

// PendingCount reports notifications still awaiting delivery.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

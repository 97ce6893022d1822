// Package sweeper escalates workflow instances that breached their stage SLA.
//
// The engine itself never escalates; IsSLADue is a pure predicate. This
// worker polls for breached instances on an interval, raises the escalation
// level, and notifies the owning role. Restarting mid-batch reprocesses
// items, which is safe: Escalate is a no-op once the level is at the cap and
// the store's version check drops racing writes.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"loanflow/internal/notification"
	"loanflow/internal/workflow"
	"loanflow/internal/workflow/metrics"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

const sweepBatchSize = 100

// Sweeper is the periodic SLA escalation worker.
type Sweeper struct {
	instances workflow.InstanceStore
	queue     *notification.Queue
	publisher audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	interval time.Duration
	maxLevel int
}

func New(instances workflow.InstanceStore, queue *notification.Queue, interval time.Duration, maxLevel int, opts ...Option) *Sweeper {
	s := &Sweeper{
		instances: instances,
		queue:     queue,
		interval:  interval,
		maxLevel:  maxLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures the Sweeper.
type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Sweeper) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of breached instances. Exported so tests and
// operators can trigger a sweep without the ticker. Per-item failures are
// isolated: one bad instance never aborts the batch.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()
	ctx = requestcontext.WithTime(ctx, now)

	breached, err := s.instances.ListSLABreached(ctx, now, sweepBatchSize)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "sla sweep query failed", "error", err)
		}
		return
	}

	for _, inst := range breached {
		if err := s.escalate(ctx, inst, now); err != nil {
			// Conflicts mean someone transitioned or escalated concurrently;
			// the next sweep sees the fresh state.
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				continue
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "sla escalation failed",
					"instance_id", inst.ID,
					"application_id", inst.ApplicationID,
					"error", err,
				)
			}
		}
	}
}

func (s *Sweeper) escalate(ctx context.Context, inst *workflow.Instance, now time.Time) error {
	if !inst.Escalate(s.maxLevel, now) {
		return nil
	}
	if err := s.instances.Update(ctx, inst); err != nil {
		return err
	}

	audit.PublishAll(ctx, s.logger, s.publisher, inst.Events())
	s.metrics.IncEscalation()

	if s.queue != nil {
		s.queue.Enqueue(notification.Notification{
			Kind:          notification.KindSLAEscalated,
			ApplicationID: inst.ApplicationID,
			Role:          inst.AssignedRole,
			Subject:       "Stage SLA breached",
			Body:          "Application has been in " + string(inst.CurrentStatus) + " past its SLA.",
			CreatedAt:     now,
		})
	}
	return nil
}

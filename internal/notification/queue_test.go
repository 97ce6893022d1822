package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "loanflow/pkg/domain"
)

// flakyNotifier fails the first failures calls, then succeeds.
type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	sent     []Notification
}

func (n *flakyNotifier) Send(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failures > 0 {
		n.failures--
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func TestQueue(t *testing.T) {
	ctx := context.Background()

	msg := Notification{
		Kind:          KindStageChanged,
		ApplicationID: id.NewApplicationID(),
		Role:          id.RoleBranchManager,
		Subject:       "Application moved",
	}

	t.Run("delivers on first attempt", func(t *testing.T) {
		notifier := &flakyNotifier{}
		q := NewQueue(notifier, 3, time.Second, nil)
		q.Enqueue(msg)

		q.deliverBatch(ctx)

		require.Len(t, notifier.sent, 1)
		assert.Zero(t, q.PendingCount())
		assert.Zero(t, q.FailedCount())
	})

	t.Run("retries transient failures", func(t *testing.T) {
		notifier := &flakyNotifier{failures: 2}
		q := NewQueue(notifier, 3, time.Second, nil)
		q.Enqueue(msg)

		q.deliverBatch(ctx)
		q.deliverBatch(ctx)
		assert.Empty(t, notifier.sent)
		assert.Equal(t, 1, q.PendingCount())

		q.deliverBatch(ctx)
		require.Len(t, notifier.sent, 1)
		assert.Zero(t, q.PendingCount())
	})

	t.Run("parks items that exhaust their attempts", func(t *testing.T) {
		notifier := &flakyNotifier{failures: 10}
		q := NewQueue(notifier, 2, time.Second, nil)
		q.Enqueue(msg)

		q.deliverBatch(ctx)
		q.deliverBatch(ctx)

		assert.Zero(t, q.PendingCount())
		assert.Equal(t, 1, q.FailedCount())

		q.deliverBatch(ctx)
		assert.Equal(t, 1, q.FailedCount(), "dead items are not retried")
	})

	t.Run("enqueue stamps a creation time", func(t *testing.T) {
		notifier := &flakyNotifier{}
		q := NewQueue(notifier, 1, time.Second, nil)
		q.Enqueue(msg)
		q.deliverBatch(ctx)
		require.Len(t, notifier.sent, 1)
		assert.False(t, notifier.sent[0].CreatedAt.IsZero())
	})
}

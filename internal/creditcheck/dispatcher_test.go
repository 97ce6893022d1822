package creditcheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanflow/internal/consent"
	id "loanflow/pkg/domain"
	"loanflow/pkg/platform/audit"
)

// stubBureau fails the first failures calls, then returns a fixed report.
type stubBureau struct {
	failures int
	calls    int
}

func (b *stubBureau) Fetch(_ context.Context, subjectID string) (Report, error) {
	b.calls++
	if b.failures > 0 {
		b.failures--
		return Report{}, errors.New("bureau unavailable")
	}
	return Report{
		SubjectID:   subjectID,
		ReferenceID: "ref-1",
		BureauScore: 640,
		RetrievedAt: time.Now(),
	}, nil
}

type fixture struct {
	requests  *InMemoryRequestStore
	reports   *InMemoryReportStore
	bureau    *stubBureau
	consents  *consent.Service
	dispatch  *Dispatcher
	subjectID string
}

func newFixture(t *testing.T, failures, maxAttempts int) *fixture {
	t.Helper()
	f := &fixture{
		requests:  NewInMemoryRequestStore(),
		reports:   NewInMemoryReportStore(),
		bureau:    &stubBureau{failures: failures},
		subjectID: "TAX-1001",
	}
	consents, err := consent.NewService(consent.NewInMemoryStore())
	require.NoError(t, err)
	f.consents = consents
	f.dispatch = New(f.requests, f.reports, f.bureau, consents, time.Minute, maxAttempts,
		WithAuditPublisher(audit.NewInMemoryStore()))
	return f
}

func (f *fixture) grantConsent(t *testing.T) {
	t.Helper()
	_, err := f.consents.Grant(context.Background(), f.subjectID, consent.TypeCreditBureauCheck, 0, "officer-7")
	require.NoError(t, err)
}

func (f *fixture) enqueue(t *testing.T) {
	t.Helper()
	require.NoError(t, f.dispatch.Enqueue(context.Background(), id.NewApplicationID(), f.subjectID))
}

func (f *fixture) onlyRequest(t *testing.T) *Request {
	t.Helper()
	f.requests.mu.Lock()
	defer f.requests.mu.Unlock()
	require.Len(t, f.requests.order, 1)
	return f.requests.requests[f.requests.order[0]]
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("pulls and stores the report when consent is active", func(t *testing.T) {
		f := newFixture(t, 0, 3)
		f.grantConsent(t)
		f.enqueue(t)

		f.dispatch.Dispatch(ctx)

		req := f.onlyRequest(t)
		assert.Equal(t, RequestCompleted, req.Status)
		report, ok, err := f.reports.LatestBySubject(ctx, f.subjectID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 640, report.BureauScore)
	})

	t.Run("missing consent parks the request without calling the bureau", func(t *testing.T) {
		f := newFixture(t, 0, 3)
		f.enqueue(t)

		f.dispatch.Dispatch(ctx)

		req := f.onlyRequest(t)
		assert.Equal(t, RequestFailed, req.Status)
		assert.Contains(t, req.LastError, "consent")
		assert.Zero(t, f.bureau.calls)
	})

	t.Run("a valid report short-circuits the pull", func(t *testing.T) {
		f := newFixture(t, 0, 3)
		f.grantConsent(t)
		require.NoError(t, f.reports.Save(ctx, Report{
			SubjectID:   f.subjectID,
			RetrievedAt: time.Now().Add(-time.Hour),
		}))
		f.enqueue(t)

		f.dispatch.Dispatch(ctx)

		req := f.onlyRequest(t)
		assert.Equal(t, RequestCompleted, req.Status)
		assert.Zero(t, f.bureau.calls, "no bureau call for a fresh report")
	})

	t.Run("a stale report triggers a fresh pull", func(t *testing.T) {
		f := newFixture(t, 0, 3)
		f.grantConsent(t)
		require.NoError(t, f.reports.Save(ctx, Report{
			SubjectID:   f.subjectID,
			RetrievedAt: time.Now().Add(-100 * 24 * time.Hour),
		}))
		f.enqueue(t)

		f.dispatch.Dispatch(ctx)

		assert.Equal(t, 1, f.bureau.calls)
	})

	t.Run("transient failures retry then go terminal", func(t *testing.T) {
		f := newFixture(t, 5, 2)
		f.grantConsent(t)
		f.enqueue(t)

		f.dispatch.Dispatch(ctx)
		req := f.onlyRequest(t)
		assert.Equal(t, RequestPending, req.Status)
		assert.Equal(t, 1, req.Attempts)

		f.dispatch.Dispatch(ctx)
		req = f.onlyRequest(t)
		assert.Equal(t, RequestFailed, req.Status)
		assert.Equal(t, 2, req.Attempts)

		f.dispatch.Dispatch(ctx)
		assert.Equal(t, 2, f.bureau.calls, "terminal requests are never re-dispatched")
	})
}

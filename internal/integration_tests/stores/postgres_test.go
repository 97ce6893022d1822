//go:build integration

// Package stores exercises the postgres stores against a real database: the
// round-trip fidelity and the optimistic version contract that the in-memory
// tests can only promise.
package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanflow/internal/advisory"
	"loanflow/internal/committee"
	"loanflow/internal/consent"
	"loanflow/internal/workflow"
	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/testutil/containers"
)

func TestWorkflowStoresPostgres(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	definitions := workflow.NewPostgresDefinitionStore(pg.Pool.Pool)
	instances := workflow.NewPostgresInstanceStore(pg.Pool.Pool)

	def := workflow.SeedRetailDefinition()
	require.NoError(t, definitions.Save(ctx, def))

	loadedDef, err := definitions.ActiveByType(ctx, id.ApplicationTypeRetail)
	require.NoError(t, err)
	assert.Equal(t, def.ID, loadedDef.ID)
	assert.Len(t, loadedDef.Stages, len(def.Stages))
	assert.Len(t, loadedDef.Transitions, len(def.Transitions))

	now := time.Now().UTC().Truncate(time.Microsecond)
	appID := id.NewApplicationID()
	inst, err := workflow.StartInstance(def, appID, now)
	require.NoError(t, err)
	inst.Events() // drain; publishing is the engine's job

	require.NoError(t, instances.Create(ctx, inst))
	assert.Equal(t, int64(1), inst.Version)

	loaded, err := instances.GetByApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, loaded.ID)
	assert.Equal(t, workflow.StatusSubmitted, loaded.CurrentStatus)
	assert.Equal(t, now, loaded.EnteredCurrentStageAt.UTC())
	require.NotNil(t, loaded.SLADueAt)
	assert.Equal(t, now.Add(24*time.Hour), loaded.SLADueAt.UTC())

	t.Run("update appends history and bumps version", func(t *testing.T) {
		officer := id.NewUserID()
		require.NoError(t, loaded.Apply(def, workflow.ActionStartReview, workflow.StatusBranchReview, officer, "", now.Add(time.Hour)))
		loaded.Events()
		require.NoError(t, instances.Update(ctx, loaded))
		assert.Equal(t, int64(2), loaded.Version)

		reloaded, err := instances.Get(ctx, loaded.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusBranchReview, reloaded.CurrentStatus)
		assert.Equal(t, int64(2), reloaded.Version)
		require.Len(t, reloaded.History, 1)
		assert.Equal(t, workflow.ActionStartReview, reloaded.History[0].Action)
		assert.Equal(t, officer, reloaded.History[0].PerformedBy)
	})

	t.Run("stale write is rejected", func(t *testing.T) {
		stale, err := instances.Get(ctx, loaded.ID)
		require.NoError(t, err)
		stale.Version = 1

		err = instances.Update(ctx, stale)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.True(t, dErrors.Retryable(err))
	})

	t.Run("sla breach listing", func(t *testing.T) {
		breached, err := instances.ListSLABreached(ctx, now.Add(100*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, breached, 1)
		assert.Equal(t, loaded.ID, breached[0].ID)

		none, err := instances.ListSLABreached(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestCommitteeStorePostgres(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	reviews := committee.NewPostgresStore(pg.Pool.Pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	appID := id.NewApplicationID()
	review, err := committee.NewReview(appID, committee.TypeCredit, 3, 2, 72, now)
	require.NoError(t, err)

	members := []id.UserID{id.NewUserID(), id.NewUserID(), id.NewUserID()}
	for i, userID := range members {
		require.NoError(t, review.AddMember(userID, id.RoleCommitteeMember, i == 0, now))
	}
	review.Events()

	require.NoError(t, reviews.Create(ctx, review))

	loaded, err := reviews.GetByApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, review.ID, loaded.ID)
	assert.Equal(t, committee.StatusCirculated, loaded.Status)
	assert.Equal(t, now.Add(72*time.Hour), loaded.DeadlineAt.UTC())
	require.Len(t, loaded.Members, 3)
	assert.True(t, loaded.Members[0].IsChairperson)

	t.Run("one review per application", func(t *testing.T) {
		dup, err := committee.NewReview(appID, committee.TypeCredit, 3, 2, 72, now)
		require.NoError(t, err)
		dup.Events()
		require.Error(t, reviews.Create(ctx, dup))
	})

	t.Run("vote round-trips through jsonb panel", func(t *testing.T) {
		require.NoError(t, loaded.CastVote(members[0], committee.VoteApprove, "fine", now.Add(time.Hour)))
		loaded.Events()
		require.NoError(t, reviews.Update(ctx, loaded))

		reloaded, err := reviews.Get(ctx, loaded.ID)
		require.NoError(t, err)
		assert.Equal(t, committee.StatusVoting, reloaded.Status)
		assert.Equal(t, 1, reloaded.ApprovalVotes())
		assert.Equal(t, 2, reloaded.PendingVotes())
		assert.Equal(t, int64(2), reloaded.Version)
	})

	t.Run("concurrent voters conflict on the version check", func(t *testing.T) {
		a, err := reviews.Get(ctx, loaded.ID)
		require.NoError(t, err)
		b, err := reviews.Get(ctx, loaded.ID)
		require.NoError(t, err)

		require.NoError(t, a.CastVote(members[1], committee.VoteApprove, "", now.Add(2*time.Hour)))
		a.Events()
		require.NoError(t, reviews.Update(ctx, a))

		require.NoError(t, b.CastVote(members[2], committee.VoteReject, "", now.Add(2*time.Hour)))
		b.Events()
		err = reviews.Update(ctx, b)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("overdue listing", func(t *testing.T) {
		overdue, err := reviews.ListOverdue(ctx, now.Add(73*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, loaded.ID, overdue[0].ID)

		none, err := reviews.ListOverdue(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestAdvisoryStorePostgres(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	advisories := advisory.NewPostgresStore(pg.Pool.Pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	appID := id.NewApplicationID()
	analyst := id.NewUserID()

	run, err := advisory.NewAdvisory(appID, analyst, "default-v1", now)
	require.NoError(t, err)
	require.NoError(t, run.StartProcessing())
	run.Events()
	require.NoError(t, advisories.Create(ctx, run))

	financial, err := advisory.NewRiskScore(advisory.CategoryFinancial, 80, 0.5, "solid statements", nil, nil, now)
	require.NoError(t, err)
	repayment, err := advisory.NewRiskScore(advisory.CategoryRepayment, 60, 0.5, "thin margins", []string{"dscr below 1.2"}, nil, now)
	require.NoError(t, err)
	require.NoError(t, run.AddRiskScore(financial))
	require.NoError(t, run.AddRiskScore(repayment))

	completedAt := now.Add(30 * time.Minute)
	require.NoError(t, run.Complete([]string{"quarterly covenant reporting"}, completedAt))
	run.Events()
	require.NoError(t, advisories.Update(ctx, run))

	loaded, err := advisories.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, advisory.StatusCompleted, loaded.Status)
	assert.InDelta(t, 70.0, loaded.OverallScore, 0.001)
	assert.Equal(t, advisory.RatingLow, loaded.OverallRating)
	assert.Equal(t, []string{"dscr below 1.2"}, loaded.RedFlags)
	assert.Equal(t, completedAt, loaded.GeneratedAt.UTC())
	assert.Equal(t, now, loaded.CreatedAt.UTC())

	scores := loaded.Scores()
	require.Len(t, scores, 2)
	assert.Equal(t, advisory.CategoryFinancial, scores[0].Category)
	assert.Equal(t, advisory.CategoryRepayment, scores[1].Category)

	t.Run("latest picks the newest run", func(t *testing.T) {
		rerun, err := advisory.NewAdvisory(appID, analyst, "default-v1", now.Add(time.Hour))
		require.NoError(t, err)
		rerun.Events()
		require.NoError(t, advisories.Create(ctx, rerun))

		latest, err := advisories.LatestByApplication(ctx, appID)
		require.NoError(t, err)
		assert.Equal(t, rerun.ID, latest.ID)

		history, err := advisories.ListByApplication(ctx, appID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, rerun.ID, history[0].ID)
		assert.Equal(t, run.ID, history[1].ID)
	})
}

func TestConsentStorePostgres(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	consents := consent.NewPostgresStore(pg.Pool.Pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	record := consent.Record{
		SubjectID:   "TAX-100200300",
		ConsentType: consent.TypeCreditBureauCheck,
		GrantedAt:   now,
		ExpiresAt:   now.Add(90 * 24 * time.Hour),
		RecordedBy:  "officer-7",
	}
	require.NoError(t, consents.Save(ctx, record))

	t.Run("partial unique index rejects second active grant", func(t *testing.T) {
		err := consents.Save(ctx, record)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("revoke frees the slot for a new grant", func(t *testing.T) {
		require.NoError(t, consents.Revoke(ctx, record.SubjectID, record.ConsentType, now.Add(time.Hour)))
		require.NoError(t, consents.Save(ctx, record))

		all, err := consents.ListBySubject(ctx, record.SubjectID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("revoking without an active grant is NotFound", func(t *testing.T) {
		err := consents.Revoke(ctx, "TAX-UNKNOWN", consent.TypeCreditBureauCheck, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

func twoStageDefinition() *Definition {
	return &Definition{
		ID:              id.NewDefinitionID(),
		Name:            "test",
		ApplicationType: id.ApplicationTypeRetail,
		Version:         1,
		IsActive:        true,
		Stages: []Stage{
			{Status: "open", AssignedRole: id.RoleBranchOfficer, SLAHours: 24, SortOrder: 10},
			{Status: "closed", SortOrder: 20, IsTerminal: true},
		},
		Transitions: []Transition{
			{FromStatus: "open", ToStatus: "closed", Action: "close", RequiredRole: id.RoleBranchOfficer},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Run("accepts a minimal valid definition", func(t *testing.T) {
		require.NoError(t, twoStageDefinition().Validate())
	})

	t.Run("rejects transition from unknown stage", func(t *testing.T) {
		def := twoStageDefinition()
		def.Transitions = append(def.Transitions, Transition{FromStatus: "ghost", ToStatus: "closed", Action: "x"})
		err := def.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects transition to unknown stage", func(t *testing.T) {
		def := twoStageDefinition()
		def.Transitions[0].ToStatus = "ghost"
		require.Error(t, def.Validate())
	})

	t.Run("rejects ambiguous (from, action) pairs", func(t *testing.T) {
		def := twoStageDefinition()
		def.Stages = append(def.Stages, Stage{Status: "parked", SortOrder: 30, IsTerminal: true})
		def.Transitions = append(def.Transitions, Transition{FromStatus: "open", ToStatus: "parked", Action: "close"})
		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous")
	})

	t.Run("rejects non-terminal stage without outgoing transitions", func(t *testing.T) {
		def := twoStageDefinition()
		def.Stages = append(def.Stages, Stage{Status: "stranded", SortOrder: 30})
		err := def.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stranded")
	})

	t.Run("rejects outgoing transitions from terminal stages", func(t *testing.T) {
		def := twoStageDefinition()
		def.Transitions = append(def.Transitions, Transition{FromStatus: "closed", ToStatus: "open", Action: "reopen"})
		require.Error(t, def.Validate())
	})

	t.Run("rejects duplicate stages", func(t *testing.T) {
		def := twoStageDefinition()
		def.Stages = append(def.Stages, Stage{Status: "open", SortOrder: 99, IsTerminal: true})
		require.Error(t, def.Validate())
	})

	t.Run("seeded definitions are valid", func(t *testing.T) {
		require.NoError(t, SeedRetailDefinition().Validate())
		require.NoError(t, SeedCorporateLargeDefinition().Validate())
	})
}

func TestInitialStage(t *testing.T) {
	t.Run("is the lowest sort order regardless of declaration order", func(t *testing.T) {
		def := twoStageDefinition()
		def.Stages[0].SortOrder = 50
		def.Stages = append(def.Stages, Stage{Status: "intake", SortOrder: 5, IsTerminal: true})
		assert.Equal(t, Status("intake"), def.InitialStage().Status)
	})
}

func TestTransitionLookup(t *testing.T) {
	def := SeedRetailDefinition()

	t.Run("resolves the unique edge", func(t *testing.T) {
		tr, ok := def.TransitionFor(StatusBranchReview, ActionReject)
		require.True(t, ok)
		assert.Equal(t, StatusRejected, tr.ToStatus)
	})

	t.Run("misses unknown actions", func(t *testing.T) {
		_, ok := def.TransitionFor(StatusBranchReview, "teleport")
		assert.False(t, ok)
	})

	t.Run("lists outgoing edges in stable order", func(t *testing.T) {
		out := def.TransitionsFrom(StatusBranchReview)
		require.Len(t, out, 2)
		assert.Equal(t, ActionReject, out[0].Action)
		assert.Equal(t, ActionSendToCredit, out[1].Action)
	})
}

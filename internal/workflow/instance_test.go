package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
)

type InstanceSuite struct {
	suite.Suite
	def   *Definition
	appID id.ApplicationID
	user  id.UserID
	now   time.Time
}

func TestInstanceSuite(t *testing.T) {
	suite.Run(t, new(InstanceSuite))
}

func (s *InstanceSuite) SetupTest() {
	s.def = SeedRetailDefinition()
	s.appID = id.NewApplicationID()
	s.user = id.NewUserID()
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func (s *InstanceSuite) start() *Instance {
	inst, err := StartInstance(s.def, s.appID, s.now)
	s.Require().NoError(err)
	inst.Events() // drain the start event; tests assert on later ones
	return inst
}

func (s *InstanceSuite) TestStartInstance() {
	s.Run("starts at the lowest sort order stage with its SLA", func() {
		inst, err := StartInstance(s.def, s.appID, s.now)
		s.Require().NoError(err)
		s.Equal(StatusSubmitted, inst.CurrentStatus)
		s.Equal(id.RoleBranchOfficer, inst.AssignedRole)
		s.Require().NotNil(inst.SLADueAt)
		s.Equal(s.now.Add(24*time.Hour), *inst.SLADueAt)
		s.False(inst.IsCompleted)
		s.Empty(inst.History)
	})

	s.Run("rejects nil definition", func() {
		_, err := StartInstance(nil, s.appID, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects nil application id", func() {
		_, err := StartInstance(s.def, id.ApplicationID{}, s.now)
		s.Require().Error(err)
	})
}

func (s *InstanceSuite) TestApply() {
	s.Run("moves the instance and recomputes the SLA from stage entry", func() {
		inst := s.start()
		later := s.now.Add(3 * time.Hour)

		err := inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", later)
		s.Require().NoError(err)

		s.Equal(StatusBranchReview, inst.CurrentStatus)
		s.Equal(id.RoleBranchManager, inst.AssignedRole)
		s.Equal(later, inst.EnteredCurrentStageAt)
		stage, _ := s.def.StageFor(StatusBranchReview)
		s.Require().NotNil(inst.SLADueAt)
		s.Equal(later.Add(time.Duration(stage.SLAHours)*time.Hour), *inst.SLADueAt)
	})

	s.Run("appends an immutable history entry", func() {
		inst := s.start()
		err := inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "picked up", s.now)
		s.Require().NoError(err)

		s.Require().Len(inst.History, 1)
		entry := inst.History[0]
		s.Equal(StatusSubmitted, entry.FromStatus)
		s.Equal(StatusBranchReview, entry.ToStatus)
		s.Equal(ActionStartReview, entry.Action)
		s.Equal(s.user, entry.PerformedBy)
		s.Equal("picked up", entry.Comment)
	})

	s.Run("rejects actions with no matching transition", func() {
		inst := s.start()
		err := inst.Apply(s.def, ActionDisburse, StatusDisbursed, s.user, "", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		s.Equal(StatusSubmitted, inst.CurrentStatus)
		s.Empty(inst.History)
	})

	s.Run("rejects a matching action with the wrong target status", func() {
		inst := s.start()
		err := inst.Apply(s.def, ActionStartReview, StatusApproved, s.user, "", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("requires a comment when the transition demands one", func() {
		inst := s.start()
		s.Require().NoError(inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now))

		err := inst.Apply(s.def, ActionReject, StatusRejected, s.user, "", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal(StatusBranchReview, inst.CurrentStatus)

		s.Require().NoError(inst.Apply(s.def, ActionReject, StatusRejected, s.user, "insufficient collateral", s.now))
	})

	s.Run("clears assignment and escalation on stage change", func() {
		inst := s.start()
		s.Require().NoError(inst.Assign(s.user, s.now))
		inst.EscalationLevel = 2

		s.Require().NoError(inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now))
		s.Nil(inst.AssignedTo)
		s.Nil(inst.AssignedAt)
		s.Zero(inst.EscalationLevel)
	})

	s.Run("completes the instance at a terminal stage", func() {
		inst := s.start()
		s.Require().NoError(inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now))
		s.Require().NoError(inst.Apply(s.def, ActionReject, StatusRejected, s.user, "kyc failure", s.now))

		s.True(inst.IsCompleted)
		s.Equal(StatusRejected, inst.FinalStatus)
		s.Require().NotNil(inst.CompletedAt)
		s.Nil(inst.SLADueAt)
	})

	s.Run("rejects any transition from a completed instance", func() {
		inst := s.start()
		s.Require().NoError(inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now))
		s.Require().NoError(inst.Apply(s.def, ActionReject, StatusRejected, s.user, "kyc failure", s.now))

		err := inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("emits transition and completion events", func() {
		inst := s.start()
		s.Require().NoError(inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now))
		s.Require().NoError(inst.Apply(s.def, ActionReject, StatusRejected, s.user, "kyc failure", s.now))

		events := inst.Events()
		s.Require().Len(events, 3)
		s.Equal(audit.EventWorkflowTransitioned, events[0].Action)
		s.Equal(audit.EventWorkflowTransitioned, events[1].Action)
		s.Equal(audit.EventWorkflowCompleted, events[2].Action)
		s.Empty(inst.Events(), "drain empties the pending list")
	})
}

func (s *InstanceSuite) TestAssign() {
	s.Run("sets assignee and timestamp", func() {
		inst := s.start()
		s.Require().NoError(inst.Assign(s.user, s.now))
		s.Require().NotNil(inst.AssignedTo)
		s.Equal(s.user, *inst.AssignedTo)
		s.Require().NotNil(inst.AssignedAt)
	})

	s.Run("is idempotent for the same user", func() {
		inst := s.start()
		s.Require().NoError(inst.Assign(s.user, s.now))
		first := *inst.AssignedAt
		inst.Events()

		s.Require().NoError(inst.Assign(s.user, s.now.Add(time.Hour)))
		s.Equal(first, *inst.AssignedAt)
		s.Empty(inst.Events(), "re-assign emits nothing")
	})

	s.Run("rejects assignment on completed instances", func() {
		inst := s.start()
		s.Require().NoError(inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now))
		s.Require().NoError(inst.Apply(s.def, ActionReject, StatusRejected, s.user, "x", s.now))
		s.Error(inst.Assign(s.user, s.now))
	})
}

func (s *InstanceSuite) TestIsSLADue() {
	inst := s.start()
	due := *inst.SLADueAt

	s.False(inst.IsSLADue(due.Add(-time.Minute)))
	s.True(inst.IsSLADue(due), "due exactly at the boundary")
	s.True(inst.IsSLADue(due.Add(time.Minute)))

	s.Run("never due once completed", func() {
		s.Require().NoError(inst.Apply(s.def, ActionStartReview, StatusBranchReview, s.user, "", s.now))
		s.Require().NoError(inst.Apply(s.def, ActionReject, StatusRejected, s.user, "x", s.now))
		s.False(inst.IsSLADue(due.Add(240 * time.Hour)))
	})
}

func (s *InstanceSuite) TestEscalate() {
	inst := s.start()
	breach := inst.SLADueAt.Add(time.Hour)

	s.Run("raises the level on breach up to the cap", func() {
		s.True(inst.Escalate(2, breach))
		s.Equal(1, inst.EscalationLevel)
		s.True(inst.Escalate(2, breach))
		s.Equal(2, inst.EscalationLevel)
		s.False(inst.Escalate(2, breach), "capped")
		s.Equal(2, inst.EscalationLevel)
	})

	s.Run("no-op before the due time", func() {
		fresh := s.start()
		s.False(fresh.Escalate(3, s.now))
		s.Zero(fresh.EscalationLevel)
	})
}

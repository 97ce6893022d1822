package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	"loanflow/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	ctx       context.Context
	engine    *Engine
	defs      *InMemoryDefinitionStore
	instances *InMemoryInstanceStore
	sink      *audit.InMemoryStore
	now       time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.defs = NewInMemoryDefinitionStore()
	s.instances = NewInMemoryInstanceStore()
	s.sink = audit.NewInMemoryStore()
	s.Require().NoError(s.defs.Save(s.ctx, SeedRetailDefinition()))

	engine, err := NewEngine(s.defs, s.instances, WithAuditPublisher(s.sink))
	s.Require().NoError(err)
	s.engine = engine
}

func (s *EngineSuite) TestNewEngine() {
	_, err := NewEngine(nil, s.instances)
	s.Error(err)
	_, err = NewEngine(s.defs, nil)
	s.Error(err)
}

func (s *EngineSuite) TestStart() {
	s.Run("creates an instance on the active definition", func() {
		appID := id.NewApplicationID()
		inst, err := s.engine.Start(s.ctx, appID, id.ApplicationTypeRetail)
		s.Require().NoError(err)
		s.Equal(StatusSubmitted, inst.CurrentStatus)
		s.Equal(appID, inst.ApplicationID)

		stored, err := s.instances.GetByApplication(s.ctx, appID)
		s.Require().NoError(err)
		s.Equal(inst.ID, stored.ID)
		s.Equal(int64(1), stored.Version)
	})

	s.Run("publishes the start event", func() {
		s.sink.Reset()
		_, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeRetail)
		s.Require().NoError(err)

		events := s.sink.Events()
		s.Require().Len(events, 1)
		s.Equal(audit.EventWorkflowStarted, events[0].Action)
	})

	s.Run("fails without an active definition for the type", func() {
		_, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeCorporate)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects a second instance for the same application", func() {
		appID := id.NewApplicationID()
		_, err := s.engine.Start(s.ctx, appID, id.ApplicationTypeRetail)
		s.Require().NoError(err)

		_, err = s.engine.Start(s.ctx, appID, id.ApplicationTypeRetail)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *EngineSuite) TestGetAvailableActions() {
	inst, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeRetail)
	s.Require().NoError(err)

	s.Run("filters by required role", func() {
		actions, err := s.engine.GetAvailableActions(s.ctx, inst.ID, id.RoleBranchOfficer)
		s.Require().NoError(err)
		s.Require().Len(actions, 1)
		s.Equal(ActionStartReview, actions[0].Action)

		actions, err = s.engine.GetAvailableActions(s.ctx, inst.ID, id.RoleCreditAnalyst)
		s.Require().NoError(err)
		s.Empty(actions)
	})

	s.Run("admin sees every transition", func() {
		actions, err := s.engine.GetAvailableActions(s.ctx, inst.ID, id.RoleAdmin)
		s.Require().NoError(err)
		s.Len(actions, len(SeedRetailDefinition().TransitionsFrom(StatusSubmitted)))
	})

	s.Run("completed instances have no actions", func() {
		done, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeRetail)
		s.Require().NoError(err)
		_, err = s.engine.Transition(s.ctx, done.ID, ActionStartReview, StatusBranchReview, id.NewUserID(), "")
		s.Require().NoError(err)
		_, err = s.engine.Transition(s.ctx, done.ID, ActionReject, StatusRejected, id.NewUserID(), "declined")
		s.Require().NoError(err)

		actions, err := s.engine.GetAvailableActions(s.ctx, done.ID, id.RoleAdmin)
		s.Require().NoError(err)
		s.Nil(actions)
	})

	s.Run("unknown instance", func() {
		_, err := s.engine.GetAvailableActions(s.ctx, id.NewInstanceID(), id.RoleAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EngineSuite) TestTransition() {
	s.Run("persists the new state and publishes events", func() {
		s.sink.Reset()
		inst, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeRetail)
		s.Require().NoError(err)

		moved, err := s.engine.Transition(s.ctx, inst.ID, ActionStartReview, StatusBranchReview, id.NewUserID(), "")
		s.Require().NoError(err)
		s.Equal(StatusBranchReview, moved.CurrentStatus)

		stored, err := s.instances.Get(s.ctx, inst.ID)
		s.Require().NoError(err)
		s.Equal(StatusBranchReview, stored.CurrentStatus)
		s.Equal(int64(2), stored.Version)

		events := s.sink.Events()
		s.Require().Len(events, 2)
		s.Equal(audit.EventWorkflowTransitioned, events[1].Action)
	})

	s.Run("invalid action leaves the store untouched", func() {
		inst, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeRetail)
		s.Require().NoError(err)

		_, err = s.engine.Transition(s.ctx, inst.ID, ActionDisburse, StatusDisbursed, id.NewUserID(), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		stored, err := s.instances.Get(s.ctx, inst.ID)
		s.Require().NoError(err)
		s.Equal(StatusSubmitted, stored.CurrentStatus)
		s.Equal(int64(1), stored.Version)
	})

	s.Run("stale instance loses to a concurrent write", func() {
		inst, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeRetail)
		s.Require().NoError(err)

		stale, err := s.instances.Get(s.ctx, inst.ID)
		s.Require().NoError(err)

		_, err = s.engine.Transition(s.ctx, inst.ID, ActionStartReview, StatusBranchReview, id.NewUserID(), "")
		s.Require().NoError(err)

		err = s.instances.Update(s.ctx, stale)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.True(dErrors.Retryable(err))
	})
}

func (s *EngineSuite) TestAssign() {
	inst, err := s.engine.Start(s.ctx, id.NewApplicationID(), id.ApplicationTypeRetail)
	s.Require().NoError(err)
	user := id.NewUserID()

	assigned, err := s.engine.Assign(s.ctx, inst.ID, user)
	s.Require().NoError(err)
	s.Require().NotNil(assigned.AssignedTo)
	s.Equal(user, *assigned.AssignedTo)

	stored, err := s.instances.Get(s.ctx, inst.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.AssignedTo)
	s.Equal(user, *stored.AssignedTo)
}

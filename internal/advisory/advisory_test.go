package advisory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
)

type AdvisorySuite struct {
	suite.Suite
	now time.Time
}

func TestAdvisorySuite(t *testing.T) {
	suite.Run(t, new(AdvisorySuite))
}

func (s *AdvisorySuite) SetupTest() {
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func (s *AdvisorySuite) processing() *CreditAdvisory {
	a, err := NewAdvisory(id.NewApplicationID(), id.NewUserID(), "default-v1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(a.StartProcessing())
	a.Events()
	return a
}

func (s *AdvisorySuite) score(category Category, value, weight float64, redFlags ...string) RiskScore {
	score, err := NewRiskScore(category, value, weight, "", redFlags, nil, s.now)
	s.Require().NoError(err)
	return score
}

func (s *AdvisorySuite) TestLifecycle() {
	s.Run("new runs are pending", func() {
		a, err := NewAdvisory(id.NewApplicationID(), id.NewUserID(), "default-v1", s.now)
		s.Require().NoError(err)
		s.Equal(StatusPending, a.Status)
		s.Equal(s.now, a.CreatedAt)
	})

	s.Run("start processing only from pending", func() {
		a, err := NewAdvisory(id.NewApplicationID(), id.NewUserID(), "default-v1", s.now)
		s.Require().NoError(err)
		s.Require().NoError(a.StartProcessing())

		err = a.StartProcessing()
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("model version is required", func() {
		_, err := NewAdvisory(id.NewApplicationID(), id.NewUserID(), "", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *AdvisorySuite) TestAddRiskScore() {
	s.Run("rejects scores outside processing", func() {
		a, err := NewAdvisory(id.NewApplicationID(), id.NewUserID(), "default-v1", s.now)
		s.Require().NoError(err)

		err = a.AddRiskScore(s.score(CategoryFinancial, 70, 0.5))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("re-scoring a category keeps exactly one entry", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 40, 0.5)))
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 75, 0.5)))

		s.Len(a.Scores(), 1)
		current, ok := a.Score(CategoryFinancial)
		s.Require().True(ok)
		s.Equal(75.0, current.Score)
	})

	s.Run("red flags union across adds and survive replacement", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 40, 0.5, "late payments", "tax lien")))
		s.Require().NoError(a.AddRiskScore(s.score(CategoryCollateral, 60, 0.3, "tax lien", "uninsured asset")))
		s.Equal([]string{"late payments", "tax lien", "uninsured asset"}, a.RedFlags)

		// Replacing the financial score retracts nothing.
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 85, 0.5)))
		s.Equal([]string{"late payments", "tax lien", "uninsured asset"}, a.RedFlags)
	})

	s.Run("scores keep first-added category order", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryIndustry, 60, 0.1)))
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 70, 0.3)))
		s.Require().NoError(a.AddRiskScore(s.score(CategoryIndustry, 65, 0.1)))

		scores := a.Scores()
		s.Require().Len(scores, 2)
		s.Equal(CategoryIndustry, scores[0].Category)
		s.Equal(CategoryFinancial, scores[1].Category)
	})
}

func (s *AdvisorySuite) TestComplete() {
	s.Run("weighted mean rounded to two decimals", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 80, 0.5)))
		s.Require().NoError(a.AddRiskScore(s.score(CategoryCollateral, 60, 0.5)))

		completed := s.now.Add(time.Hour)
		s.Require().NoError(a.Complete(nil, completed))

		s.Equal(70.0, a.OverallScore)
		s.Equal(RatingLow, a.OverallRating)
		s.Equal(StatusCompleted, a.Status)
		s.Equal(completed, a.GeneratedAt, "generation time is completion time")
		s.Equal(s.now, a.CreatedAt, "initiation time is preserved")
	})

	s.Run("uneven weights", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 90, 0.3)))
		s.Require().NoError(a.AddRiskScore(s.score(CategoryCollateral, 50, 0.1)))

		s.Require().NoError(a.Complete(nil, s.now))
		// (90*0.3 + 50*0.1) / 0.4 = 80
		s.Equal(80.0, a.OverallScore)
		s.Equal(RatingVeryLow, a.OverallRating)
	})

	s.Run("zero total weight yields zero score", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 90, 0)))

		s.Require().NoError(a.Complete(nil, s.now))
		s.Equal(0.0, a.OverallScore)
		s.Equal(RatingVeryHigh, a.OverallRating)
	})

	s.Run("requires at least one score", func() {
		a := s.processing()
		err := a.Complete(nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal(StatusProcessing, a.Status)
	})

	s.Run("derives the recommendation", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 55, 1)))
		s.Require().NoError(a.Complete([]string{"quarterly reviews", "quarterly reviews"}, s.now))

		s.Equal(RecommendApproveWithConditions, a.Recommendation)
		s.Equal([]string{"quarterly reviews"}, a.Conditions)
	})

	s.Run("cannot complete twice", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 70, 1)))
		s.Require().NoError(a.Complete(nil, s.now))
		s.True(dErrors.HasCode(a.Complete(nil, s.now), dErrors.CodeInvalidTransition))
	})
}

func (s *AdvisorySuite) TestHasCriticalRedFlags() {
	s.Run("three or more flags are critical", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 70, 0.5, "a", "b")))
		s.False(a.HasCriticalRedFlags())
		s.Require().NoError(a.AddRiskScore(s.score(CategoryCollateral, 70, 0.3, "c")))
		s.True(a.HasCriticalRedFlags())
	})

	s.Run("any very high category is critical", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 20, 0.5)))
		s.True(a.HasCriticalRedFlags())
	})
}

func (s *AdvisorySuite) TestMarkFailed() {
	s.Run("fails from any state with a reason", func() {
		a := s.processing()
		s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 70, 1)))
		s.Require().NoError(a.Complete(nil, s.now))

		s.Require().NoError(a.MarkFailed("model rollback", s.now))
		s.Equal(StatusFailed, a.Status)
		s.Equal("model rollback", a.FailureReason)
	})

	s.Run("requires a reason", func() {
		a := s.processing()
		s.True(dErrors.HasCode(a.MarkFailed("", s.now), dErrors.CodeInvalidInput))
	})

	s.Run("idempotent once failed", func() {
		a := s.processing()
		s.Require().NoError(a.MarkFailed("bureau timeout", s.now))
		a.Events()
		s.Require().NoError(a.MarkFailed("other", s.now))
		s.Equal("bureau timeout", a.FailureReason)
		s.Empty(a.Events())
	})
}

func (s *AdvisorySuite) TestEvents() {
	a := s.processing()
	s.Require().NoError(a.AddRiskScore(s.score(CategoryFinancial, 70, 1)))
	s.Require().NoError(a.Complete(nil, s.now))

	events := a.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.EventAdvisoryCompleted, events[0].Action)
	s.Empty(a.Events(), "drain empties the pending list")
}

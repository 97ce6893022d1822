package advisory

import (
	"math"
	"time"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
	platformstrings "loanflow/pkg/platform/strings"
)

// AdvisoryStatus is the scoring run lifecycle state.
type AdvisoryStatus string

const (
	StatusPending    AdvisoryStatus = "pending"
	StatusProcessing AdvisoryStatus = "processing"
	StatusCompleted  AdvisoryStatus = "completed"
	StatusFailed     AdvisoryStatus = "failed"
)

// CreditAdvisory is one scoring run for a loan application. Applications
// keep every run as history; the newest completed one is the current
// advisory.
//
// Scores are keyed by category: adding a score for an existing category
// replaces it. Red flags merged from replaced scores are never retracted;
// the advisory-level list is an append-only trail.
type CreditAdvisory struct {
	ID            id.AdvisoryID
	ApplicationID id.ApplicationID
	Status        AdvisoryStatus
	GeneratedBy   id.UserID
	ModelVersion  string

	scores     map[Category]RiskScore
	categories []Category

	RedFlags []string

	OverallScore   float64
	OverallRating  Rating
	Recommendation Recommendation
	Conditions     []string

	// CreatedAt is when the run was initiated. GeneratedAt is overwritten at
	// Complete: generation time means completion time, not initiation time.
	CreatedAt     time.Time
	GeneratedAt   time.Time
	FailureReason string

	// Version backs the store's optimistic concurrency check.
	Version int64

	pending []audit.Event
}

// NewAdvisory initiates a scoring run in Pending.
func NewAdvisory(applicationID id.ApplicationID, generatedBy id.UserID, modelVersion string, now time.Time) (*CreditAdvisory, error) {
	if applicationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "application_id is required")
	}
	if modelVersion == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "model_version is required")
	}

	a := &CreditAdvisory{
		ID:            id.NewAdvisoryID(),
		ApplicationID: applicationID,
		Status:        StatusPending,
		GeneratedBy:   generatedBy,
		ModelVersion:  modelVersion,
		scores:        make(map[Category]RiskScore),
		CreatedAt:     now,
		GeneratedAt:   now,
	}
	a.record(audit.Event{
		Action:        audit.EventAdvisoryStarted,
		Timestamp:     now,
		ApplicationID: applicationID,
		ActorID:       generatedBy,
		Detail:        modelVersion,
	})
	return a, nil
}

// StartProcessing moves the run from Pending to Processing. Any other
// starting state fails.
func (a *CreditAdvisory) StartProcessing() error {
	if a.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot start processing from %s", a.Status)
	}
	a.Status = StatusProcessing
	return nil
}

// AddRiskScore records a category score while Processing. A score for an
// already scored category replaces the previous one; red flags from every
// score ever added stay merged into the advisory list.
func (a *CreditAdvisory) AddRiskScore(score RiskScore) error {
	if a.Status != StatusProcessing {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot add scores while %s", a.Status)
	}

	if _, exists := a.scores[score.Category]; !exists {
		a.categories = append(a.categories, score.Category)
	}
	a.scores[score.Category] = score
	a.RedFlags = platformstrings.MergeDeduped(a.RedFlags, score.RedFlags)
	return nil
}

// Scores returns the category scores in first-added order.
func (a *CreditAdvisory) Scores() []RiskScore {
	out := make([]RiskScore, 0, len(a.categories))
	for _, c := range a.categories {
		out = append(out, a.scores[c])
	}
	return out
}

// Score returns the current score for a category.
func (a *CreditAdvisory) Score(category Category) (RiskScore, bool) {
	s, ok := a.scores[category]
	return s, ok
}

// HasCriticalRedFlags gates downstream approval: three or more distinct red
// flags, or any category rated very high risk.
func (a *CreditAdvisory) HasCriticalRedFlags() bool {
	if len(a.RedFlags) >= 3 {
		return true
	}
	for _, s := range a.scores {
		if s.Rating == RatingVeryHigh {
			return true
		}
	}
	return false
}

// Complete finalizes the run: the overall score is the weighted mean of all
// category scores rounded to two decimals, and GeneratedAt is refreshed to
// the completion time.
func (a *CreditAdvisory) Complete(conditions []string, now time.Time) error {
	if a.Status != StatusProcessing {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot complete from %s", a.Status)
	}
	if len(a.scores) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one risk score is required")
	}

	var weightedSum, weightSum float64
	for _, s := range a.scores {
		weightedSum += s.WeightedScore()
		weightSum += s.Weight
	}
	if weightSum > 0 {
		a.OverallScore = math.Round(weightedSum/weightSum*100) / 100
	} else {
		a.OverallScore = 0
	}

	a.OverallRating = RatingFromScore(a.OverallScore)
	a.Recommendation = recommendationFor(a.OverallRating, a.HasCriticalRedFlags())
	a.Conditions = platformstrings.DedupeAndTrim(conditions)
	a.Status = StatusCompleted
	a.GeneratedAt = now

	a.record(audit.Event{
		Action:        audit.EventAdvisoryCompleted,
		Timestamp:     now,
		ApplicationID: a.ApplicationID,
		ActorID:       a.GeneratedBy,
		Detail:        string(a.OverallRating) + " / " + string(a.Recommendation),
	})
	return nil
}

// MarkFailed moves the run to Failed from any state, recording the reason.
// Irreversible.
func (a *CreditAdvisory) MarkFailed(reason string, now time.Time) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "failure reason is required")
	}
	if a.Status == StatusFailed {
		return nil
	}

	a.Status = StatusFailed
	a.FailureReason = reason
	a.record(audit.Event{
		Action:        audit.EventAdvisoryFailed,
		Timestamp:     now,
		ApplicationID: a.ApplicationID,
		Detail:        reason,
	})
	return nil
}

// restoreScores rebuilds the keyed score state from a persisted ordered
// slice. Stores call it when rehydrating.
func (a *CreditAdvisory) restoreScores(scores []RiskScore) {
	a.scores = make(map[Category]RiskScore, len(scores))
	a.categories = make([]Category, 0, len(scores))
	for _, s := range scores {
		if _, exists := a.scores[s.Category]; !exists {
			a.categories = append(a.categories, s.Category)
		}
		a.scores[s.Category] = s
	}
}

// Events drains the pending domain events accumulated since the last drain.
// Callers publish them after a successful save.
func (a *CreditAdvisory) Events() []audit.Event {
	events := a.pending
	a.pending = nil
	return events
}

func (a *CreditAdvisory) record(event audit.Event) {
	a.pending = append(a.pending, event)
}

// Package advisory aggregates per-category risk scores into an overall
// rating and recommendation for a loan application. Scoring runs have an
// explicit lifecycle: Pending, Processing, Completed or Failed.
package advisory

import (
	"time"

	dErrors "loanflow/pkg/domain-errors"
)

// Category names one scored risk dimension.
type Category string

const (
	CategoryFinancial  Category = "financial"
	CategoryCollateral Category = "collateral"
	CategoryManagement Category = "management"
	CategoryIndustry   Category = "industry"
	CategoryRepayment  Category = "repayment_capacity"
	CategoryCompliance Category = "compliance"
)

// Rating buckets a score. Higher scores mean lower risk.
type Rating string

const (
	RatingVeryLow  Rating = "very_low"
	RatingLow      Rating = "low"
	RatingMedium   Rating = "medium"
	RatingHigh     Rating = "high"
	RatingVeryHigh Rating = "very_high"
)

// RatingFromScore derives the risk bucket from a 0-100 score.
func RatingFromScore(score float64) Rating {
	switch {
	case score >= 80:
		return RatingVeryLow
	case score >= 65:
		return RatingLow
	case score >= 50:
		return RatingMedium
	case score >= 35:
		return RatingHigh
	default:
		return RatingVeryHigh
	}
}

// RiskScore is one category's assessment within a scoring run. Value object:
// built once via NewRiskScore, replaced whole on recompute.
type RiskScore struct {
	Category           Category
	Score              float64
	Weight             float64
	Rating             Rating
	Rationale          string
	RedFlags           []string
	PositiveIndicators []string
	ScoredAt           time.Time
}

// NewRiskScore builds a category score. Score is clamped to [0,100] and
// weight to [0,1]; the rating is derived from the clamped score.
func NewRiskScore(category Category, score, weight float64, rationale string, redFlags, positiveIndicators []string, now time.Time) (RiskScore, error) {
	if category == "" {
		return RiskScore{}, dErrors.New(dErrors.CodeInvalidInput, "category is required")
	}

	score = clamp(score, 0, 100)
	weight = clamp(weight, 0, 1)

	return RiskScore{
		Category:           category,
		Score:              score,
		Weight:             weight,
		Rating:             RatingFromScore(score),
		Rationale:          rationale,
		RedFlags:           redFlags,
		PositiveIndicators: positiveIndicators,
		ScoredAt:           now,
	}, nil
}

// WeightedScore is the score's contribution to the overall mean.
func (r RiskScore) WeightedScore() float64 {
	return r.Score * r.Weight
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Recommendation is the advisory's suggested handling for the application.
type Recommendation string

const (
	RecommendApprove               Recommendation = "approve"
	RecommendApproveWithConditions Recommendation = "approve_with_conditions"
	RecommendReferToCommittee      Recommendation = "refer_to_committee"
	RecommendDecline               Recommendation = "decline"
)

// recommendationFor maps the overall rating to a recommendation. Critical
// red flags tighten the outcome by one notch.
func recommendationFor(overall Rating, critical bool) Recommendation {
	var rec Recommendation
	switch overall {
	case RatingVeryLow, RatingLow:
		rec = RecommendApprove
	case RatingMedium:
		rec = RecommendApproveWithConditions
	case RatingHigh:
		rec = RecommendReferToCommittee
	default:
		rec = RecommendDecline
	}

	if !critical {
		return rec
	}
	switch rec {
	case RecommendApprove:
		return RecommendApproveWithConditions
	case RecommendApproveWithConditions:
		return RecommendReferToCommittee
	default:
		return RecommendDecline
	}
}

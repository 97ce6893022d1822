package advisory

import (
	"time"

	dErrors "loanflow/pkg/domain-errors"
)

// ScoringConfiguration is a versioned snapshot of category weights. Weights
// are data, not logic: the aggregation math is fixed and a run records which
// configuration version produced it via ModelVersion.
type ScoringConfiguration struct {
	Version       string
	Weights       map[Category]float64
	EffectiveFrom time.Time
}

// NewScoringConfiguration validates a weight snapshot. Every weight must be
// in [0,1]; categories outside the snapshot default to zero weight.
func NewScoringConfiguration(version string, weights map[Category]float64, effectiveFrom time.Time) (*ScoringConfiguration, error) {
	if version == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "configuration version is required")
	}
	if len(weights) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one category weight is required")
	}
	for category, w := range weights {
		if category == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "category is required")
		}
		if w < 0 || w > 1 {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "weight for %q must be in [0,1]", category)
		}
	}

	copied := make(map[Category]float64, len(weights))
	for c, w := range weights {
		copied[c] = w
	}
	return &ScoringConfiguration{
		Version:       version,
		Weights:       copied,
		EffectiveFrom: effectiveFrom,
	}, nil
}

// Weight returns the configured weight for a category, zero when absent.
func (c *ScoringConfiguration) Weight(category Category) float64 {
	return c.Weights[category]
}

// DefaultScoringConfiguration is the baseline weight set applied when no
// tenant-specific configuration is loaded.
func DefaultScoringConfiguration() *ScoringConfiguration {
	cfg, _ := NewScoringConfiguration("default-v1", map[Category]float64{
		CategoryFinancial:  0.30,
		CategoryRepayment:  0.25,
		CategoryCollateral: 0.20,
		CategoryManagement: 0.10,
		CategoryIndustry:   0.10,
		CategoryCompliance: 0.05,
	}, time.Time{})
	return cfg
}

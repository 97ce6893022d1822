// Package consent records a loan subject's permission for external data
// pulls. The credit-check dispatcher treats an active consent as its
// idempotency guard: no bureau request is issued, and none is repeated,
// without one.
package consent

import (
	"time"

	dErrors "loanflow/pkg/domain-errors"
)

// ConsentType labels what the subject agreed to. Type binding allows
// selective revocation without affecting other flows.
type ConsentType string

const (
	TypeCreditBureauCheck ConsentType = "credit_bureau_check"
	TypeDataSharing       ConsentType = "data_sharing"
	TypeCollateralSearch  ConsentType = "collateral_registry_search"
)

// Record captures a subject's decision for a specific consent type. Subjects
// are identified by their registry number (tax or national id), not a user
// account: guarantors consent too and may have no login.
type Record struct {
	SubjectID   string
	ConsentType ConsentType
	GrantedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	// RecordedBy is the staff member who captured the signed consent.
	RecordedBy string
}

// IsActive reports whether the consent currently covers its type.
func (r Record) IsActive(now time.Time) bool {
	if r.RevokedAt != nil && !r.RevokedAt.After(now) {
		return false
	}
	return r.ExpiresAt.IsZero() || now.Before(r.ExpiresAt)
}

// EnsureConsent enforces that an active consent of the given type exists.
func EnsureConsent(records []Record, consentType ConsentType, now time.Time) error {
	for _, r := range records {
		if r.ConsentType == consentType && r.IsActive(now) {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "no active %s consent for subject", consentType)
}

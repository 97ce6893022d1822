package domain

// Role names the staff role a workflow stage or transition is addressed to.
// Definitions are data, so roles are open-ended strings; the constants below
// cover the seeded retail/corporate workflows.
type Role string

const (
	RoleBranchOfficer   Role = "branch_officer"
	RoleBranchManager   Role = "branch_manager"
	RoleCreditAnalyst   Role = "credit_analyst"
	RoleRiskOfficer     Role = "risk_officer"
	RoleCommitteeMember Role = "committee_member"
	RoleDisbursement    Role = "disbursement_officer"

	// RoleAdmin matches any transition's required role. The superset rule
	// lives here rather than in the engine so queue displays and the engine
	// agree on visibility.
	RoleAdmin Role = "admin"
)

// Matches reports whether a user holding this role satisfies a required role.
func (r Role) Matches(required Role) bool {
	return r == RoleAdmin || r == required
}

// ApplicationType selects which workflow definition governs an application.
type ApplicationType string

const (
	ApplicationTypeRetail         ApplicationType = "retail"
	ApplicationTypeCorporate      ApplicationType = "corporate"
	ApplicationTypeCorporateLarge ApplicationType = "corporate_large"
)

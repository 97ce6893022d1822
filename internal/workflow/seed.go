package workflow

import (
	id "loanflow/pkg/domain"
)

// Seeded status and action names for the stock workflows. Definitions are
// data; these constants exist so the seeds and their tests agree on spelling.
const (
	StatusSubmitted         Status = "submitted"
	StatusBranchReview      Status = "branch_review"
	StatusCreditCheck       Status = "credit_check"
	StatusFinancialAnalysis Status = "financial_analysis"
	StatusCommitteeReview   Status = "committee_review"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusDisbursed         Status = "disbursed"
)

const (
	ActionStartReview    Action = "start_review"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionSendToAnalysis Action = "send_to_analysis"
	ActionSendToCredit   Action = "send_to_credit"
	ActionCirculate      Action = "circulate_to_committee"
	ActionDisburse       Action = "disburse"
)

// SeedRetailDefinition is the stock retail workflow: branch review, credit
// check, analysis, then approve/reject and disbursement. No committee stage.
func SeedRetailDefinition() *Definition {
	return &Definition{
		ID:              id.NewDefinitionID(),
		Name:            "Retail Loan Origination",
		ApplicationType: id.ApplicationTypeRetail,
		Version:         1,
		IsActive:        true,
		Stages: []Stage{
			{Status: StatusSubmitted, DisplayName: "Submitted", AssignedRole: id.RoleBranchOfficer, SLAHours: 24, SortOrder: 10},
			{Status: StatusBranchReview, DisplayName: "Branch Review", AssignedRole: id.RoleBranchManager, SLAHours: 48, SortOrder: 20},
			{Status: StatusCreditCheck, DisplayName: "Credit Check", AssignedRole: id.RoleCreditAnalyst, SLAHours: 24, SortOrder: 30},
			{Status: StatusFinancialAnalysis, DisplayName: "Financial Analysis", AssignedRole: id.RoleCreditAnalyst, SLAHours: 72, SortOrder: 40},
			{Status: StatusApproved, DisplayName: "Approved", AssignedRole: id.RoleDisbursement, SLAHours: 48, SortOrder: 50},
			{Status: StatusRejected, DisplayName: "Rejected", SortOrder: 60, IsTerminal: true},
			{Status: StatusDisbursed, DisplayName: "Disbursed", SortOrder: 70, IsTerminal: true},
		},
		Transitions: []Transition{
			{FromStatus: StatusSubmitted, ToStatus: StatusBranchReview, Action: ActionStartReview, DisplayName: "Start Review", RequiredRole: id.RoleBranchOfficer},
			{FromStatus: StatusBranchReview, ToStatus: StatusCreditCheck, Action: ActionSendToCredit, DisplayName: "Send to Credit Check", RequiredRole: id.RoleBranchManager},
			{FromStatus: StatusBranchReview, ToStatus: StatusRejected, Action: ActionReject, DisplayName: "Reject", RequiredRole: id.RoleBranchManager, RequiresComment: true},
			{FromStatus: StatusCreditCheck, ToStatus: StatusFinancialAnalysis, Action: ActionSendToAnalysis, DisplayName: "Send to Analysis", RequiredRole: id.RoleCreditAnalyst},
			{FromStatus: StatusCreditCheck, ToStatus: StatusRejected, Action: ActionReject, DisplayName: "Reject", RequiredRole: id.RoleCreditAnalyst, RequiresComment: true},
			{FromStatus: StatusFinancialAnalysis, ToStatus: StatusApproved, Action: ActionApprove, DisplayName: "Approve", RequiredRole: id.RoleRiskOfficer},
			{FromStatus: StatusFinancialAnalysis, ToStatus: StatusRejected, Action: ActionReject, DisplayName: "Reject", RequiredRole: id.RoleRiskOfficer, RequiresComment: true},
			{FromStatus: StatusApproved, ToStatus: StatusDisbursed, Action: ActionDisburse, DisplayName: "Disburse", RequiredRole: id.RoleDisbursement},
		},
	}
}

// SeedCorporateLargeDefinition adds the committee stage required for large
// corporate exposures.
func SeedCorporateLargeDefinition() *Definition {
	return &Definition{
		ID:              id.NewDefinitionID(),
		Name:            "Corporate Large Loan Origination",
		ApplicationType: id.ApplicationTypeCorporateLarge,
		Version:         1,
		IsActive:        true,
		Stages: []Stage{
			{Status: StatusSubmitted, DisplayName: "Submitted", AssignedRole: id.RoleBranchOfficer, SLAHours: 24, SortOrder: 10},
			{Status: StatusCreditCheck, DisplayName: "Credit Check", AssignedRole: id.RoleCreditAnalyst, SLAHours: 48, SortOrder: 20},
			{Status: StatusFinancialAnalysis, DisplayName: "Financial Analysis", AssignedRole: id.RoleCreditAnalyst, SLAHours: 96, SortOrder: 30},
			{Status: StatusCommitteeReview, DisplayName: "Committee Review", AssignedRole: id.RoleCommitteeMember, SLAHours: 120, SortOrder: 40, RequiresComment: true},
			{Status: StatusApproved, DisplayName: "Approved", AssignedRole: id.RoleDisbursement, SLAHours: 48, SortOrder: 50},
			{Status: StatusRejected, DisplayName: "Rejected", SortOrder: 60, IsTerminal: true},
			{Status: StatusDisbursed, DisplayName: "Disbursed", SortOrder: 70, IsTerminal: true},
		},
		Transitions: []Transition{
			{FromStatus: StatusSubmitted, ToStatus: StatusCreditCheck, Action: ActionStartReview, DisplayName: "Start Review", RequiredRole: id.RoleBranchOfficer},
			{FromStatus: StatusCreditCheck, ToStatus: StatusFinancialAnalysis, Action: ActionSendToAnalysis, DisplayName: "Send to Analysis", RequiredRole: id.RoleCreditAnalyst},
			{FromStatus: StatusCreditCheck, ToStatus: StatusRejected, Action: ActionReject, DisplayName: "Reject", RequiredRole: id.RoleCreditAnalyst, RequiresComment: true},
			{FromStatus: StatusFinancialAnalysis, ToStatus: StatusCommitteeReview, Action: ActionCirculate, DisplayName: "Circulate to Committee", RequiredRole: id.RoleRiskOfficer},
			{FromStatus: StatusFinancialAnalysis, ToStatus: StatusRejected, Action: ActionReject, DisplayName: "Reject", RequiredRole: id.RoleRiskOfficer, RequiresComment: true},
			{FromStatus: StatusCommitteeReview, ToStatus: StatusApproved, Action: ActionApprove, DisplayName: "Approve", RequiredRole: id.RoleCommitteeMember, RequiresComment: true},
			{FromStatus: StatusCommitteeReview, ToStatus: StatusRejected, Action: ActionReject, DisplayName: "Reject", RequiredRole: id.RoleCommitteeMember, RequiresComment: true},
			{FromStatus: StatusApproved, ToStatus: StatusDisbursed, Action: ActionDisburse, DisplayName: "Disburse", RequiredRole: id.RoleDisbursement},
		},
	}
}

// Package audit defines the domain event model shared by all aggregates.
//
// Aggregates accumulate events while they mutate; services drain them after a
// successful save and hand them to a Publisher. Delivery is at-least-once:
// consumers must treat replays as no-ops.
package audit

import (
	"time"

	id "loanflow/pkg/domain"
)

// EventCategory classifies events by their primary purpose, which drives
// retention and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance
	// (decisions, consent). Long retention, tamper-evident storage.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. Can be sampled, shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Transport
// agnostic so stores and sinks can fan out.
type Event struct {
	Action        EventAction
	Timestamp     time.Time
	ApplicationID id.ApplicationID
	// ActorID is who performed the action; nil UUID for background workers.
	ActorID id.UserID
	// Subject names the affected entity when it is not the application
	// itself (a committee member, a risk category).
	Subject string
	// Detail carries the outcome or reason in human-readable form.
	Detail    string
	RequestID string
}

// EventAction enumerates the domain actions worth auditing.
type EventAction string

const (
	// Workflow events
	EventWorkflowStarted      EventAction = "workflow_started"
	EventWorkflowTransitioned EventAction = "workflow_transitioned"
	EventWorkflowAssigned     EventAction = "workflow_assigned"
	EventWorkflowCompleted    EventAction = "workflow_completed"
	EventSLAEscalated         EventAction = "sla_escalated"

	// Committee events
	EventCommitteeCirculated       EventAction = "committee_circulated"
	EventCommitteeMemberAdded      EventAction = "committee_member_added"
	EventCommitteeMemberReplaced   EventAction = "committee_member_replaced"
	EventCommitteeVoteCast         EventAction = "committee_vote_cast"
	EventCommitteeDecisionRecorded EventAction = "committee_decision_recorded"
	EventCommitteeExpired          EventAction = "committee_expired"

	// Advisory events
	EventAdvisoryStarted   EventAction = "advisory_started"
	EventAdvisoryCompleted EventAction = "advisory_completed"
	EventAdvisoryFailed    EventAction = "advisory_failed"

	// Credit check events
	EventConsentRecorded     EventAction = "consent_recorded"
	EventCreditCheckRequired EventAction = "credit_check_required"
)

// eventCategories maps each action to its category. Compliance events are the
// ones examiners ask for; everything else is operations.
var eventCategories = map[EventAction]EventCategory{
	EventWorkflowCompleted:         CategoryCompliance,
	EventCommitteeVoteCast:         CategoryCompliance,
	EventCommitteeDecisionRecorded: CategoryCompliance,
	EventAdvisoryCompleted:         CategoryCompliance,
	EventConsentRecorded:           CategoryCompliance,
}

// Category returns the EventCategory for this action. Unknown actions default
// to CategoryOperations.
func (a EventAction) Category() EventCategory {
	if cat, ok := eventCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

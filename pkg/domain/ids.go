// Package domain holds identifiers and enumerations shared across modules.
//
// IDs are distinct UUID-backed types so the compiler rejects cross-type
// assignment (an ApplicationID can never be passed where a ReviewID is
// expected). Parse functions enforce the trust-boundary invariant: IDs must be
// valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "loanflow/pkg/domain-errors"
)

type (
	// ApplicationID identifies a loan application.
	ApplicationID uuid.UUID
	// UserID identifies a staff user (officer, analyst, committee member).
	UserID uuid.UUID
	// DefinitionID identifies a published workflow definition version.
	DefinitionID uuid.UUID
	// InstanceID identifies the workflow instance owned by an application.
	InstanceID uuid.UUID
	// ReviewID identifies a committee review.
	ReviewID uuid.UUID
	// AdvisoryID identifies one credit advisory scoring run.
	AdvisoryID uuid.UUID
)

func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewUserID() UserID               { return UserID(uuid.New()) }
func NewDefinitionID() DefinitionID   { return DefinitionID(uuid.New()) }
func NewInstanceID() InstanceID       { return InstanceID(uuid.New()) }
func NewReviewID() ReviewID           { return ReviewID(uuid.New()) }
func NewAdvisoryID() AdvisoryID       { return AdvisoryID(uuid.New()) }

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id DefinitionID) String() string  { return uuid.UUID(id).String() }
func (id InstanceID) String() string    { return uuid.UUID(id).String() }
func (id ReviewID) String() string      { return uuid.UUID(id).String() }
func (id AdvisoryID) String() string    { return uuid.UUID(id).String() }

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DefinitionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id InstanceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ReviewID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AdvisoryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseApplicationID parses and validates an application ID.
func ParseApplicationID(raw string) (ApplicationID, error) {
	u, err := parseUUID(raw, "application_id")
	return ApplicationID(u), err
}

// ParseUserID parses and validates a user ID.
func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw, "user_id")
	return UserID(u), err
}

// ParseDefinitionID parses and validates a workflow definition ID.
func ParseDefinitionID(raw string) (DefinitionID, error) {
	u, err := parseUUID(raw, "definition_id")
	return DefinitionID(u), err
}

// ParseInstanceID parses and validates a workflow instance ID.
func ParseInstanceID(raw string) (InstanceID, error) {
	u, err := parseUUID(raw, "instance_id")
	return InstanceID(u), err
}

// ParseReviewID parses and validates a committee review ID.
func ParseReviewID(raw string) (ReviewID, error) {
	u, err := parseUUID(raw, "review_id")
	return ReviewID(u), err
}

// ParseAdvisoryID parses and validates a credit advisory ID.
func ParseAdvisoryID(raw string) (AdvisoryID, error) {
	u, err := parseUUID(raw, "advisory_id")
	return AdvisoryID(u), err
}

func parseUUID(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", field)
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", field)
	}
	return u, nil
}

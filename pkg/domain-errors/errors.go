// Package domainerrors provides coded errors for domain operations.
//
// Every domain operation fails with a coded error rather than a panic or a bare
// string. Callers branch on the code (HasCode / CodeOf) instead of matching
// message text, and transports map codes to their own status vocabulary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure for callers.
type Code string

const (
	// CodeNotFound marks a missing instance, definition, member, or record.
	// Non-retryable; surfaced to the caller as-is.
	CodeNotFound Code = "not_found"

	// CodeInvalidInput marks a validation failure (missing required comment,
	// out-of-range weight, empty subject). Fix the input and resubmit.
	CodeInvalidInput Code = "invalid_input"

	// CodeInvalidTransition marks a state-machine violation: no matching
	// workflow transition, voting on a closed review, completing without
	// scores, deciding without quorum. Reflects a stale UI or a policy
	// violation, never a bug in the engine.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeAlreadyVoted marks a second vote from the same committee member.
	// Votes are final.
	CodeAlreadyVoted Code = "already_voted"

	// CodeConflict marks an optimistic-concurrency version mismatch.
	// Retryable: reload the aggregate and reapply.
	CodeConflict Code = "conflict"

	// CodeTimeout marks a cancelled or deadline-exceeded operation.
	CodeTimeout Code = "timeout"

	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal"
)

// Error carries a code alongside a human-readable reason.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with a human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a code and message. The cause stays
// reachable through errors.Unwrap.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the error carries no code.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// Retryable reports whether the failure is worth retrying with fresh state.
// Only concurrency conflicts qualify; everything else needs a changed input or
// a changed world.
func Retryable(err error) bool {
	return HasCode(err, CodeConflict)
}

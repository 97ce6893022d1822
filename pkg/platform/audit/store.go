package audit

import "context"

// Store persists audit events. Implementations must be safe for concurrent
// use; Append ordering within one aggregate is the caller's responsibility.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher emits events to an external sink. Emit may be called with the
// same event more than once after a worker restart; sinks get at-least-once
// delivery.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

package audit

import (
	"context"
	"log/slog"

	"loanflow/pkg/requestcontext"
)

// PublishAll emits drained aggregate events after a successful save. It logs
// each event and forwards it to the publisher when one is wired. Emission
// failures are logged, not returned: the state change is already durable and
// sources re-emit on replay.
func PublishAll(ctx context.Context, logger *slog.Logger, publisher Publisher, events []Event) {
	for _, event := range events {
		if event.RequestID == "" {
			event.RequestID = requestcontext.RequestID(ctx)
		}

		if logger != nil {
			logger.InfoContext(ctx, string(event.Action),
				"event", event.Action,
				"application_id", event.ApplicationID,
				"subject", event.Subject,
				"detail", event.Detail,
				"log_type", "audit",
			)
		}

		if publisher == nil {
			continue
		}
		if err := publisher.Emit(ctx, event); err != nil && logger != nil {
			logger.WarnContext(ctx, "failed to emit audit event",
				"event", event.Action, "error", err)
		}
	}
}

// Package notification delivers stage-change and decision notifications to
// assigned staff. Delivery transports live behind the Notifier port; the
// domain only decides when a notification is owed.
package notification

import (
	"context"
	"log/slog"
	"time"

	id "loanflow/pkg/domain"
)

// Kind classifies a notification for routing and templating downstream.
type Kind string

const (
	KindStageChanged     Kind = "stage_changed"
	KindSLAEscalated     Kind = "sla_escalated"
	KindDecisionRecorded Kind = "decision_recorded"
	KindCommitteeExpired Kind = "committee_expired"
)

// Notification is one message owed to a role or user about an application.
type Notification struct {
	Kind          Kind
	ApplicationID id.ApplicationID
	Role          id.Role
	UserID        id.UserID // optional; nil UUID targets the whole role
	Subject       string
	Body          string
	CreatedAt     time.Time
}

// Notifier delivers a notification. Implementations may fail transiently;
// callers retry through the Queue, not inline.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. Stands in for mail
// or push transports in dev and tests.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Notification) error {
	if n.logger != nil {
		n.logger.InfoContext(ctx, "notification",
			"kind", msg.Kind,
			"application_id", msg.ApplicationID,
			"role", msg.Role,
			"subject", msg.Subject,
		)
	}
	return nil
}

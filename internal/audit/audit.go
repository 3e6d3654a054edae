package audit

import (
	"context"
	"log/slog"
)

// Event represents an audit entry for notifications and approval
// lifecycle transitions.
type Event struct {
	// Type describes the event kind.
	Type string
	// RequestID links the event to an approval request, if any.
	RequestID string
	// Status is the request status after the event.
	Status string
	// Actor identifies who caused the event (agent or operator).
	Actor string
	// Reason provides additional context.
	Reason string
}

// Event types recorded by the relay.
const (
	TypeApprovalCreated     = "approval_created"
	TypeApprovalResolved    = "approval_resolved"
	TypeInstructionCaptured = "instruction_captured"
	TypeEventIgnored        = "event_ignored"
	TypeNotification        = "notification"
)

// Actors.
const (
	ActorAgent    = "agent"
	ActorOperator = "operator"
)

// Logger records audit events.
type Logger interface {
	// Record stores an audit event.
	Record(ctx context.Context, event Event)
}

// StdLogger writes audit events to slog.
type StdLogger struct {
	logger *slog.Logger
}

// New returns a StdLogger.
func New(logger *slog.Logger) *StdLogger {
	return &StdLogger{logger: logger}
}

// Record logs an audit event.
func (l *StdLogger) Record(_ context.Context, event Event) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("audit",
		"type", event.Type,
		"request_id", event.RequestID,
		"status", event.Status,
		"actor", event.Actor,
		"reason", event.Reason,
	)
}

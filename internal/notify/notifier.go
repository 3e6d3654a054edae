// Package notify formats and sends one-shot progress and status
// messages. It keeps no state.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentops/telegram-mcp-server/internal/audit"
	"github.com/agentops/telegram-mcp-server/internal/channel"
)

var statusEmojis = map[string]string{
	"started":     "🚀",
	"in_progress": "⏳",
	"completed":   "✅",
	"error":       "❌",
}

var priorityEmojis = map[string]string{
	"low":    "💬",
	"normal": "📝",
	"high":   "⚠️",
	"urgent": "🚨",
}

const defaultEmoji = "📝"

// Notifier sends formatted notifications over a channel.
type Notifier struct {
	messenger channel.Messenger
	audit     audit.Logger
}

// New returns a Notifier over the given messenger.
func New(messenger channel.Messenger, auditLog audit.Logger) *Notifier {
	return &Notifier{messenger: messenger, audit: auditLog}
}

// Progress sends a progress notification with a status emoji.
func (n *Notifier) Progress(ctx context.Context, message, status string) error {
	emoji, ok := statusEmojis[status]
	if !ok {
		emoji = defaultEmoji
	}
	text := fmt.Sprintf("%s %s\n%s", emoji, strings.ToUpper(status), message)
	if err := n.messenger.Send(ctx, text); err != nil {
		return err
	}
	n.record(ctx, fmt.Sprintf("progress %s", status))
	return nil
}

// Generic sends a general notification with a priority emoji.
func (n *Notifier) Generic(ctx context.Context, message, priority string) error {
	emoji, ok := priorityEmojis[priority]
	if !ok {
		emoji = defaultEmoji
	}
	if err := n.messenger.Send(ctx, fmt.Sprintf("%s %s", emoji, message)); err != nil {
		return err
	}
	n.record(ctx, fmt.Sprintf("notification %s", priority))
	return nil
}

func (n *Notifier) record(ctx context.Context, reason string) {
	if n.audit == nil {
		return
	}
	n.audit.Record(ctx, audit.Event{
		Type:   audit.TypeNotification,
		Actor:  audit.ActorAgent,
		Reason: reason,
	})
}

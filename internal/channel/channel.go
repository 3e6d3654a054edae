// Package channel defines the chat-channel abstractions the approval
// relay is built against. The core never touches a chat SDK directly:
// it only needs to send a message (optionally with interactive
// controls) and to consume inbound operator events.
package channel

import "context"

// Control is a labeled interactive action attached to a message. Token
// is opaque to the channel and routed back verbatim when pressed.
type Control struct {
	Label string
	Token string
}

// EventKind discriminates inbound events.
type EventKind int

const (
	// EventText is a free-text operator message.
	EventText EventKind = iota
	// EventCallback is a button press carrying a callback token.
	EventCallback
)

// Event is one inbound operator event.
type Event struct {
	// Kind discriminates the payload.
	Kind EventKind
	// ChatID identifies the chat the event came from.
	ChatID int64
	// SenderID identifies the sender.
	SenderID int64
	// Text is the message body for EventText.
	Text string
	// Token is the callback token for EventCallback.
	Token string
}

// Messenger is the outbound/inbound surface of a single chat channel.
// Sends are best-effort: a returned error means the message was not
// delivered, nothing more.
type Messenger interface {
	// Send delivers text to the configured chat, with optional
	// interactive controls.
	Send(ctx context.Context, text string, controls ...Control) error
	// Events exposes the inbound event stream. Closed when the
	// listener stops.
	Events() <-chan Event
}

package approval

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/agentops/telegram-mcp-server/internal/audit"
	"github.com/agentops/telegram-mcp-server/internal/channel"
	"github.com/agentops/telegram-mcp-server/internal/notify"
	"github.com/agentops/telegram-mcp-server/internal/protocol"
	"github.com/agentops/telegram-mcp-server/internal/storage"
)

// Canned instructions for the one-step denial variants.
const (
	pauseInstruction = "Pause this task and wait for further instructions from the operator."
	infoInstruction  = "Do not proceed yet. Provide more information about this action and request approval again."
)

// Router consumes inbound operator events and applies all state
// transitions. It is the single writer for existing records: run
// exactly one Router per channel.
type Router struct {
	store     storage.Store
	messenger channel.Messenger
	notifier  *notify.Notifier
	audit     audit.Logger
	logger    *slog.Logger
	chatID    int64

	// awaitingID is the one request allowed to be awaiting a custom
	// instruction. Only the router goroutine touches it.
	awaitingID string
}

// NewRouter builds a Router bound to the operator chat.
func NewRouter(store storage.Store, messenger channel.Messenger, notifier *notify.Notifier, chatID int64, auditLog audit.Logger, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:     store,
		messenger: messenger,
		notifier:  notifier,
		audit:     auditLog,
		logger:    logger,
		chatID:    chatID,
	}
}

// Run consumes events until ctx is cancelled or the event stream
// closes. Any awaiting-instruction request left over from a previous
// process is picked up first.
func (r *Router) Run(ctx context.Context) {
	r.recoverAwaiting(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-r.messenger.Events():
			if !ok {
				return
			}
			r.Handle(ctx, event)
		}
	}
}

func (r *Router) recoverAwaiting(ctx context.Context) {
	recs, err := r.store.ListByStatus(ctx, protocol.StatusAwaitingInstruction)
	if err != nil {
		r.logger.Error("recover awaiting requests failed", "error", err)
		return
	}
	if len(recs) == 0 {
		return
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	r.awaitingID = recs[0].ID
	r.logger.Info("recovered awaiting-instruction request", "request_id", r.awaitingID)
}

// Handle applies one inbound event. It is not safe for concurrent use;
// Run is the normal entry point.
func (r *Router) Handle(ctx context.Context, event channel.Event) {
	if event.ChatID != r.chatID {
		r.ignore(ctx, "", "event from foreign chat")
		return
	}
	switch event.Kind {
	case channel.EventCallback:
		r.handleCallback(ctx, event)
	case channel.EventText:
		r.handleText(ctx, event)
	}
}

func (r *Router) handleCallback(ctx context.Context, event channel.Event) {
	cb, err := protocol.DecodeToken(event.Token)
	if err != nil {
		r.ignore(ctx, "", "unparseable callback token")
		return
	}

	rec, err := r.store.Get(ctx, cb.RequestID)
	if errors.Is(err, storage.ErrNotFound) {
		r.ignore(ctx, cb.RequestID, "callback for unknown request")
		return
	}
	if err != nil {
		r.logger.Error("store read failed", "request_id", cb.RequestID, "error", err)
		return
	}
	if rec.Status.Terminal() {
		r.ignore(ctx, rec.ID, "callback on resolved request")
		return
	}

	// An awaiting record resolves only through the operator's free-text
	// instruction; a second press on it means nothing new.
	if rec.Status == protocol.StatusAwaitingInstruction && cb.Action != protocol.ActionDenyAlt {
		r.ignore(ctx, rec.ID, "callback on awaiting request")
		return
	}

	switch cb.Action {
	case protocol.ActionApprove:
		r.resolve(ctx, rec, protocol.StatusApproved, protocol.ResponseApproved, "", "✅ Approved: "+rec.Action)
	case protocol.ActionDeny:
		r.resolve(ctx, rec, protocol.StatusDenied, protocol.ResponseDenied, "", "❌ Denied: "+rec.Action)
	case protocol.ActionDenyPause:
		r.resolve(ctx, rec, protocol.StatusDeniedCustom, protocol.ResponseDeniedCustom, pauseInstruction, "⏸️ Denied and paused: "+rec.Action)
	case protocol.ActionDenyInfo:
		r.resolve(ctx, rec, protocol.StatusDeniedCustom, protocol.ResponseDeniedCustom, infoInstruction, "❓ Denied, more info requested: "+rec.Action)
	case protocol.ActionDenyAlt:
		r.beginInstruction(ctx, rec)
	}
}

// beginInstruction moves a pending record into the awaiting state. Only
// one request may await an instruction at a time; the next free-text
// message would otherwise be ambiguous.
func (r *Router) beginInstruction(ctx context.Context, rec protocol.ApprovalRecord) {
	if rec.Status == protocol.StatusAwaitingInstruction {
		return
	}
	if r.awaitingID != "" && r.awaitingID != rec.ID {
		r.confirm(ctx, "⚠️ Another request is still waiting for your instruction. Reply to it first, then press the button again.")
		r.ignore(ctx, rec.ID, "another request already awaiting instruction")
		return
	}

	rec.Status = protocol.StatusAwaitingInstruction
	if err := r.store.Put(ctx, rec); err != nil {
		r.logger.Error("store write failed", "request_id", rec.ID, "error", err)
		return
	}
	r.awaitingID = rec.ID
	r.confirm(ctx, "💡 Denied: "+rec.Action+"\nReply with the approach you'd like instead.")
	r.recordTransition(ctx, rec, "operator requested alternative")
}

func (r *Router) handleText(ctx context.Context, event channel.Event) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	if r.awaitingID != "" && r.captureInstruction(ctx, event.Text) {
		return
	}

	// Text fallback: "<approve|deny> <request_id>".
	fields := strings.Fields(text)
	if len(fields) < 2 {
		r.ignore(ctx, "", "unmatched free text")
		return
	}
	verb, id := strings.ToLower(fields[0]), fields[1]

	rec, err := r.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		r.ignore(ctx, id, "text command for unknown request")
		return
	}
	if err != nil {
		r.logger.Error("store read failed", "request_id", id, "error", err)
		return
	}
	if rec.Status != protocol.StatusPending {
		r.ignore(ctx, rec.ID, "text command on non-pending request")
		return
	}

	switch verb {
	case "approve", "approved", "yes", "ok":
		r.resolve(ctx, rec, protocol.StatusApproved, protocol.ResponseApproved, "", "✅ Approved: "+rec.Action)
	case "deny", "denied", "no":
		r.resolve(ctx, rec, protocol.StatusDenied, protocol.ResponseDenied, "", "❌ Denied: "+rec.Action)
	default:
		r.ignore(ctx, rec.ID, "unknown text command")
	}
}

// captureInstruction consumes the message as the awaiting request's
// instruction. Returns false if the awaiting id went stale, in which
// case the message falls through to command parsing.
func (r *Router) captureInstruction(ctx context.Context, text string) bool {
	rec, err := r.store.Get(ctx, r.awaitingID)
	if err != nil || rec.Status != protocol.StatusAwaitingInstruction {
		r.awaitingID = ""
		return false
	}

	rec.Status = protocol.StatusDeniedCustom
	rec.Response = protocol.ResponseDeniedCustom
	rec.Instruction = text
	if err := r.store.Put(ctx, rec); err != nil {
		r.logger.Error("store write failed", "request_id", rec.ID, "error", err)
		return true
	}
	r.awaitingID = ""

	r.confirm(ctx, "📝 Got it. The agent will be told what to do instead of: "+rec.Action)
	if r.audit != nil {
		r.audit.Record(ctx, audit.Event{
			Type:      audit.TypeInstructionCaptured,
			RequestID: rec.ID,
			Status:    string(rec.Status),
			Actor:     audit.ActorOperator,
		})
	}
	r.logger.Info("custom instruction captured", "request_id", rec.ID)
	return true
}

func (r *Router) resolve(ctx context.Context, rec protocol.ApprovalRecord, status protocol.Status, response protocol.Response, instruction, confirmation string) {
	rec.Status = status
	rec.Response = response
	rec.Instruction = instruction
	if err := r.store.Put(ctx, rec); err != nil {
		r.logger.Error("store write failed", "request_id", rec.ID, "error", err)
		return
	}
	if rec.ID == r.awaitingID {
		r.awaitingID = ""
	}
	r.confirm(ctx, confirmation)
	r.recordTransition(ctx, rec, "")
	r.logger.Info("approval resolved", "request_id", rec.ID, "status", rec.Status)
}

// confirm echoes a transition back to the operator, best effort.
func (r *Router) confirm(ctx context.Context, message string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Generic(ctx, message, "high"); err != nil {
		r.logger.Warn("confirmation send failed", "error", err)
	}
}

func (r *Router) recordTransition(ctx context.Context, rec protocol.ApprovalRecord, reason string) {
	if r.audit == nil {
		return
	}
	r.audit.Record(ctx, audit.Event{
		Type:      audit.TypeApprovalResolved,
		RequestID: rec.ID,
		Status:    string(rec.Status),
		Actor:     audit.ActorOperator,
		Reason:    reason,
	})
}

func (r *Router) ignore(ctx context.Context, requestID, reason string) {
	r.logger.Debug("inbound event ignored", "request_id", requestID, "reason", reason)
	if r.audit == nil {
		return
	}
	r.audit.Record(ctx, audit.Event{
		Type:      audit.TypeEventIgnored,
		RequestID: requestID,
		Actor:     audit.ActorOperator,
		Reason:    reason,
	})
}

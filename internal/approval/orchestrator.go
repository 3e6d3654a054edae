// Package approval implements the approval request lifecycle: creation,
// out-of-band resolution by the operator, and blocking or polling
// observation by the agent.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentops/telegram-mcp-server/internal/audit"
	"github.com/agentops/telegram-mcp-server/internal/channel"
	"github.com/agentops/telegram-mcp-server/internal/protocol"
	"github.com/agentops/telegram-mcp-server/internal/storage"
)

// Options tune the orchestrator.
type Options struct {
	// Audit records lifecycle events.
	Audit audit.Logger
	// Logger is used for structured logging.
	Logger *slog.Logger
	// PollInterval is the re-check interval for blocking waits.
	PollInterval time.Duration
	// InstructionGrace bounds how long a wait follows a request in the
	// awaiting-instruction state beyond the caller's own deadline.
	InstructionGrace time.Duration
}

// Orchestrator creates approval requests and lets callers observe their
// resolution. It never mutates a request after creation; that is the
// router's job.
type Orchestrator struct {
	store            storage.Store
	messenger        channel.Messenger
	audit            audit.Logger
	logger           *slog.Logger
	pollInterval     time.Duration
	instructionGrace time.Duration
	newID            func() string
	now              func() time.Time
}

// NewOrchestrator builds an Orchestrator over the given store and
// channel.
func NewOrchestrator(store storage.Store, messenger channel.Messenger, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.InstructionGrace <= 0 {
		opts.InstructionGrace = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		store:            store,
		messenger:        messenger,
		audit:            opts.Audit,
		logger:           opts.Logger,
		pollInterval:     opts.PollInterval,
		instructionGrace: opts.InstructionGrace,
		newID:            uuid.NewString,
		now:              time.Now,
	}
}

// Create inserts a pending record and sends the approval prompt. On a
// send failure the record is kept: it stays pending and resolvable, and
// the returned id is valid alongside the error.
func (o *Orchestrator) Create(ctx context.Context, action, details string) (string, error) {
	rec := protocol.ApprovalRecord{
		ID:        o.newID(),
		Action:    action,
		Details:   details,
		Status:    protocol.StatusPending,
		CreatedAt: o.now().UTC(),
	}
	if err := o.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("store approval request: %w", err)
	}

	text, controls := prompt(rec)
	if err := o.messenger.Send(ctx, text, controls...); err != nil {
		o.logger.Error("approval prompt send failed", "request_id", rec.ID, "error", err)
		return rec.ID, fmt.Errorf("send approval prompt: %w", err)
	}

	if o.audit != nil {
		o.audit.Record(ctx, audit.Event{
			Type:      audit.TypeApprovalCreated,
			RequestID: rec.ID,
			Status:    string(rec.Status),
			Actor:     audit.ActorAgent,
			Reason:    action,
		})
	}
	o.logger.Info("approval request created", "request_id", rec.ID, "action", action)
	return rec.ID, nil
}

// Status returns the current snapshot for id. Unknown ids come back as
// a record with StatusNotFound rather than an error.
func (o *Orchestrator) Status(ctx context.Context, id string) (protocol.ApprovalRecord, error) {
	rec, err := o.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return protocol.ApprovalRecord{ID: id, Status: protocol.StatusNotFound}, nil
	}
	if err != nil {
		return protocol.ApprovalRecord{}, err
	}
	return rec, nil
}

// Wait blocks until the request reaches a terminal status or the
// deadline lapses, returning OutcomeStillPending in the latter case.
// The record is never removed on timeout.
//
// Time spent in the awaiting-instruction state does not count against
// the caller's deadline, but is capped by the instruction grace period.
// Waits wake immediately on store writes and otherwise re-check on the
// poll interval.
func (o *Orchestrator) Wait(ctx context.Context, id string, timeout time.Duration) (protocol.Outcome, protocol.ApprovalRecord, error) {
	deadline := o.now().Add(timeout)
	var graceDeadline time.Time

	for {
		rec, err := o.Status(ctx, id)
		if err != nil {
			return protocol.OutcomeStillPending, rec, err
		}

		switch rec.Status {
		case protocol.StatusApproved:
			return protocol.OutcomeApproved, rec, nil
		case protocol.StatusDenied:
			return protocol.OutcomeDenied, rec, nil
		case protocol.StatusDeniedCustom:
			return protocol.OutcomeDeniedCustom, rec, nil
		case protocol.StatusNotFound:
			return protocol.OutcomeStillPending, rec, nil
		}

		limit := deadline
		if rec.Status == protocol.StatusAwaitingInstruction {
			if graceDeadline.IsZero() {
				graceDeadline = o.now().Add(o.instructionGrace)
			}
			limit = graceDeadline
		}
		now := o.now()
		if !now.Before(limit) {
			return protocol.OutcomeStillPending, rec, nil
		}

		sleep := o.pollInterval
		if remaining := limit.Sub(now); remaining < sleep {
			sleep = remaining
		}
		watch := o.store.Watch(id)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return protocol.OutcomeStillPending, rec, ctx.Err()
		case <-watch:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// prompt renders the approval message and its interactive controls.
func prompt(rec protocol.ApprovalRecord) (string, []channel.Control) {
	text := fmt.Sprintf("🤔 APPROVAL REQUIRED (ID: %s)\n\nAction: %s\n", rec.ID, rec.Action)
	if rec.Details != "" {
		text += fmt.Sprintf("Details: %s\n", rec.Details)
	}
	text += fmt.Sprintf("\nUse the buttons below, or reply 'approve %s' or 'deny %s'.", rec.ID, rec.ID)

	controls := []channel.Control{
		{Label: "✅ Approve", Token: protocol.EncodeToken(protocol.ActionApprove, rec.ID)},
		{Label: "❌ Deny", Token: protocol.EncodeToken(protocol.ActionDeny, rec.ID)},
		{Label: "💡 Deny & Suggest Alternative", Token: protocol.EncodeToken(protocol.ActionDenyAlt, rec.ID)},
		{Label: "⏸️ Deny & Pause", Token: protocol.EncodeToken(protocol.ActionDenyPause, rec.ID)},
		{Label: "❓ Deny & Need More Info", Token: protocol.EncodeToken(protocol.ActionDenyInfo, rec.ID)},
	}
	return text, controls
}

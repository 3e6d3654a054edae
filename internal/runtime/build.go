// Package runtime assembles the MCP server and its tool surface.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentops/telegram-mcp-server/internal/approval"
	"github.com/agentops/telegram-mcp-server/internal/audit"
	"github.com/agentops/telegram-mcp-server/internal/idempotency"
	"github.com/agentops/telegram-mcp-server/internal/notify"
	"github.com/agentops/telegram-mcp-server/internal/protocol"
)

const (
	serverName    = "telegram-messenger"
	serverVersion = "1.0.0"
)

// Builder constructs the MCP server over the approval core.
type Builder struct {
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records tool calls.
	Audit audit.Logger
	// Orchestrator drives the approval lifecycle.
	Orchestrator *approval.Orchestrator
	// Notifier sends one-shot notifications.
	Notifier *notify.Notifier
	// Cache replays approval tickets for repeated correlation ids.
	// Optional.
	Cache *idempotency.Cache
	// DefaultTimeout applies when a tool call omits a timeout.
	DefaultTimeout time.Duration
}

type progressInput struct {
	Message string `json:"message" jsonschema:"progress message to send to the operator"`
	Status  string `json:"status" jsonschema:"status of the current task: started, in_progress, completed or error"`
}

type notificationInput struct {
	Message  string `json:"message" jsonschema:"message to send to the operator"`
	Priority string `json:"priority,omitempty" jsonschema:"priority level: low, normal, high or urgent (default normal)"`
}

type requestApprovalInput struct {
	Action          string `json:"action" jsonschema:"description of the action requiring approval"`
	Details         string `json:"details,omitempty" jsonschema:"additional details about the action"`
	WaitForResponse *bool  `json:"wait_for_response,omitempty" jsonschema:"whether to block until the operator responds (default true)"`
	TimeoutSeconds  int    `json:"timeout,omitempty" jsonschema:"seconds to wait for a response (default 300)"`
	CorrelationID   string `json:"correlation_id,omitempty" jsonschema:"optional id; retried calls with the same id reuse the original request"`
}

type statusInput struct {
	RequestID string `json:"request_id" jsonschema:"approval request id"`
}

type waitInput struct {
	RequestID      string `json:"request_id" jsonschema:"approval request id"`
	TimeoutSeconds int    `json:"timeout,omitempty" jsonschema:"seconds to wait for a decision (default 300)"`
}

// Build creates the MCP server with the relay's five tools.
func (b Builder) Build() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "notify_progress",
		Description: "Send a progress notification to the operator via Telegram",
	}, b.handleProgress)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_notification",
		Description: "Send a general notification to the operator",
	}, b.handleNotification)

	mcp.AddTool(server, &mcp.Tool{
		Name: "request_approval",
		Description: "Request operator approval before proceeding with an action. " +
			"The operator can approve, deny, or deny with a specific instruction " +
			"(an alternative approach, a pause request, or a request for more information).",
	}, b.handleRequestApproval)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_approval_status",
		Description: "Check the current status of an approval request without waiting",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, b.handleStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wait_for_decision",
		Description: "Block until an approval request is decided or the timeout lapses",
	}, b.handleWait)

	return server
}

func (b Builder) handleProgress(ctx context.Context, _ *mcp.CallToolRequest, input progressInput) (*mcp.CallToolResult, protocol.NotifyResult, error) {
	b.logCall(ctx, "notify_progress", "")
	if err := b.Notifier.Progress(ctx, input.Message, input.Status); err != nil {
		return nil, protocol.NotifyResult{}, err
	}
	return nil, protocol.NotifyResult{
		Status: "sent",
		Detail: fmt.Sprintf("Progress notification sent: %s - %s", input.Status, input.Message),
	}, nil
}

func (b Builder) handleNotification(ctx context.Context, _ *mcp.CallToolRequest, input notificationInput) (*mcp.CallToolResult, protocol.NotifyResult, error) {
	b.logCall(ctx, "send_notification", "")
	priority := input.Priority
	if priority == "" {
		priority = "normal"
	}
	if err := b.Notifier.Generic(ctx, input.Message, priority); err != nil {
		return nil, protocol.NotifyResult{}, err
	}
	return nil, protocol.NotifyResult{
		Status: "sent",
		Detail: fmt.Sprintf("Notification sent: %s", input.Message),
	}, nil
}

func (b Builder) handleRequestApproval(ctx context.Context, _ *mcp.CallToolRequest, input requestApprovalInput) (*mcp.CallToolResult, protocol.ApprovalResult, error) {
	b.logCall(ctx, "request_approval", input.CorrelationID)

	var requestID string
	if cached, ok := b.Cache.Get(input.CorrelationID); ok {
		requestID = cached.RequestID
		if b.Logger != nil {
			b.Logger.Info("approval ticket replayed", "correlation_id", input.CorrelationID, "request_id", requestID)
		}
	} else {
		id, err := b.Orchestrator.Create(ctx, input.Action, input.Details)
		if err != nil {
			return nil, protocol.ApprovalResult{}, err
		}
		requestID = id
		b.Cache.Set(input.CorrelationID, protocol.ApprovalResult{
			RequestID: requestID,
			Status:    protocol.StatusPending,
		})
	}

	if input.WaitForResponse != nil && !*input.WaitForResponse {
		rec, err := b.Orchestrator.Status(ctx, requestID)
		if err != nil {
			return nil, protocol.ApprovalResult{}, err
		}
		result := resultFromRecord(rec, "")
		result.Message = fmt.Sprintf("Approval request sent (ID: %s)", requestID)
		return nil, result, nil
	}

	return b.await(ctx, requestID, input.TimeoutSeconds)
}

func (b Builder) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, input statusInput) (*mcp.CallToolResult, protocol.ApprovalResult, error) {
	b.logCall(ctx, "get_approval_status", input.RequestID)
	rec, err := b.Orchestrator.Status(ctx, input.RequestID)
	if err != nil {
		return nil, protocol.ApprovalResult{}, err
	}
	return nil, resultFromRecord(rec, ""), nil
}

func (b Builder) handleWait(ctx context.Context, _ *mcp.CallToolRequest, input waitInput) (*mcp.CallToolResult, protocol.ApprovalResult, error) {
	b.logCall(ctx, "wait_for_decision", input.RequestID)
	return b.await(ctx, input.RequestID, input.TimeoutSeconds)
}

func (b Builder) await(ctx context.Context, requestID string, timeoutSeconds int) (*mcp.CallToolResult, protocol.ApprovalResult, error) {
	rec, err := b.Orchestrator.Status(ctx, requestID)
	if err != nil {
		return nil, protocol.ApprovalResult{}, err
	}
	if rec.Status == protocol.StatusNotFound {
		return nil, resultFromRecord(rec, ""), nil
	}

	timeout := b.DefaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	outcome, rec, err := b.Orchestrator.Wait(ctx, requestID, timeout)
	if err != nil {
		return nil, protocol.ApprovalResult{}, err
	}
	return nil, resultFromRecord(rec, outcome), nil
}

// resultFromRecord flattens a record (plus an optional wait outcome)
// into the wire result. Business outcomes are values, never errors.
func resultFromRecord(rec protocol.ApprovalRecord, outcome protocol.Outcome) protocol.ApprovalResult {
	result := protocol.ApprovalResult{
		RequestID:   rec.ID,
		Status:      rec.Status,
		Response:    rec.Response,
		Instruction: rec.Instruction,
		Outcome:     outcome,
	}
	switch {
	case rec.Status == protocol.StatusNotFound:
		result.Message = fmt.Sprintf("No approval request found with ID %s", rec.ID)
	case outcome == protocol.OutcomeApproved:
		result.Message = fmt.Sprintf("✅ User approved: %s", rec.Action)
	case outcome == protocol.OutcomeDenied:
		result.Message = fmt.Sprintf("❌ User denied: %s", rec.Action)
	case outcome == protocol.OutcomeDeniedCustom:
		result.Message = fmt.Sprintf("📝 User denied with instruction: %s", rec.Instruction)
	case outcome == protocol.OutcomeStillPending:
		result.Message = fmt.Sprintf("⏰ No decision yet for: %s (ID: %s)", rec.Action, rec.ID)
	}
	return result
}

func (b Builder) logCall(ctx context.Context, tool, id string) {
	if b.Logger != nil {
		b.Logger.Info("tool call", "tool", tool, "id", id)
	}
	if b.Audit != nil {
		b.Audit.Record(ctx, audit.Event{Type: "tool_call", RequestID: id, Actor: audit.ActorAgent, Reason: tool})
	}
}

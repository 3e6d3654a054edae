package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/telegram-mcp-server/internal/approval"
	"github.com/agentops/telegram-mcp-server/internal/channel"
	"github.com/agentops/telegram-mcp-server/internal/idempotency"
	"github.com/agentops/telegram-mcp-server/internal/notify"
	"github.com/agentops/telegram-mcp-server/internal/protocol"
	"github.com/agentops/telegram-mcp-server/internal/storage"
)

const operatorChat int64 = 7

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMessenger) Send(_ context.Context, text string, _ ...channel.Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeMessenger) Events() <-chan channel.Event { return nil }

func (f *fakeMessenger) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type harness struct {
	builder   Builder
	router    *approval.Router
	messenger *fakeMessenger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := storage.NewMemory()
	messenger := &fakeMessenger{}
	notifier := notify.New(messenger, nil)
	orch := approval.NewOrchestrator(store, messenger, approval.Options{
		PollInterval: 5 * time.Millisecond,
	})
	return &harness{
		builder: Builder{
			Orchestrator:   orch,
			Notifier:       notifier,
			Cache:          idempotency.NewCache(time.Minute, 10),
			DefaultTimeout: 100 * time.Millisecond,
		},
		router:    approval.NewRouter(store, messenger, notifier, operatorChat, nil, nil),
		messenger: messenger,
	}
}

func (h *harness) approve(ctx context.Context, id string) {
	go h.router.Handle(ctx, channel.Event{
		Kind:   channel.EventCallback,
		ChatID: operatorChat,
		Token:  protocol.EncodeToken(protocol.ActionApprove, id),
	})
}

func TestBuildRegistersServer(t *testing.T) {
	h := newHarness(t)
	server := h.builder.Build()
	require.NotNil(t, server)
}

func TestRequestApprovalNoWait(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	noWait := false
	_, result, err := h.builder.handleRequestApproval(ctx, nil, requestApprovalInput{
		Action:          "delete backups",
		Details:         "older than 6 months",
		WaitForResponse: &noWait,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, protocol.StatusPending, result.Status)
	assert.Contains(t, result.Message, result.RequestID)
}

func TestRequestApprovalCorrelationReplay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	noWait := false
	_, first, err := h.builder.handleRequestApproval(ctx, nil, requestApprovalInput{
		Action:          "scale down",
		WaitForResponse: &noWait,
		CorrelationID:   "corr-1",
	})
	require.NoError(t, err)
	promptsAfterFirst := h.messenger.sentCount()

	_, second, err := h.builder.handleRequestApproval(ctx, nil, requestApprovalInput{
		Action:          "scale down",
		WaitForResponse: &noWait,
		CorrelationID:   "corr-1",
	})
	require.NoError(t, err)

	assert.Equal(t, first.RequestID, second.RequestID)
	// The retry must not prompt the operator again.
	assert.Equal(t, promptsAfterFirst, h.messenger.sentCount())
}

func TestRequestApprovalWaitTimesOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, result, err := h.builder.handleRequestApproval(ctx, nil, requestApprovalInput{
		Action:         "slow thing",
		TimeoutSeconds: 0, // falls back to the 100ms default
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeStillPending, result.Outcome)
	assert.Equal(t, protocol.StatusPending, result.Status)
	assert.Contains(t, result.Message, "No decision yet")
}

func TestWaitForDecisionApproved(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id, err := h.builder.Orchestrator.Create(ctx, "ship it", "")
	require.NoError(t, err)
	h.approve(ctx, id)

	_, result, err := h.builder.handleWait(ctx, nil, waitInput{RequestID: id, TimeoutSeconds: 2})
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeApproved, result.Outcome)
	assert.Equal(t, protocol.StatusApproved, result.Status)
	assert.Contains(t, result.Message, "approved")
}

func TestGetApprovalStatusUnknownID(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, result, err := h.builder.handleStatus(ctx, nil, statusInput{RequestID: "nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusNotFound, result.Status)
	assert.Contains(t, result.Message, "nonexistent")
}

func TestNotifyTools(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, progress, err := h.builder.handleProgress(ctx, nil, progressInput{Message: "halfway", Status: "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, "sent", progress.Status)

	_, note, err := h.builder.handleNotification(ctx, nil, notificationInput{Message: "done"})
	require.NoError(t, err)
	assert.Equal(t, "sent", note.Status)
	assert.Equal(t, 2, h.messenger.sentCount())
}

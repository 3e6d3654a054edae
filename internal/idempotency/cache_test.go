package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/telegram-mcp-server/internal/protocol"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(time.Minute, 10)

	_, ok := c.Get("corr-1")
	assert.False(t, ok)

	c.Set("corr-1", protocol.ApprovalResult{RequestID: "r1", Status: protocol.StatusPending})
	got, ok := c.Get("corr-1")
	require.True(t, ok)
	assert.Equal(t, "r1", got.RequestID)

	_, ok = c.Get("")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute, 10)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("corr-1", protocol.ApprovalResult{RequestID: "r1"})

	base = base.Add(2 * time.Minute)
	_, ok := c.Get("corr-1")
	assert.False(t, ok)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(time.Minute, 2)

	c.Set("a", protocol.ApprovalResult{RequestID: "ra"})
	c.Set("b", protocol.ApprovalResult{RequestID: "rb"})
	_, ok := c.Get("a") // refresh a
	require.True(t, ok)
	c.Set("c", protocol.ApprovalResult{RequestID: "rc"})

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

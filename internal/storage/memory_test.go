package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/telegram-mcp-server/internal/protocol"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	_, err := mem.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := protocol.ApprovalRecord{ID: "r1", Action: "deploy", Status: protocol.StatusPending, CreatedAt: time.Now()}
	require.NoError(t, mem.Put(ctx, rec))

	got, err := mem.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Overwrite is the transition mechanism.
	rec.Status = protocol.StatusApproved
	rec.Response = protocol.ResponseApproved
	require.NoError(t, mem.Put(ctx, rec))
	got, err = mem.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusApproved, got.Status)
}

func TestMemoryWatchWakesOnPut(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Put(ctx, protocol.ApprovalRecord{ID: "r1", Status: protocol.StatusPending}))

	watch := mem.Watch("r1")
	select {
	case <-watch:
		t.Fatal("watch fired before any write")
	default:
	}

	require.NoError(t, mem.Put(ctx, protocol.ApprovalRecord{ID: "r1", Status: protocol.StatusApproved}))
	select {
	case <-watch:
	case <-time.After(time.Second):
		t.Fatal("watch did not fire on write")
	}
}

func TestMemoryWatchIsPerID(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	watch := mem.Watch("r1")
	require.NoError(t, mem.Put(ctx, protocol.ApprovalRecord{ID: "r2", Status: protocol.StatusApproved}))
	select {
	case <-watch:
		t.Fatal("watch for r1 fired on a write to r2")
	default:
	}
}

func TestMemoryConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("req-%d", i)
			_ = mem.Put(ctx, protocol.ApprovalRecord{ID: id, Action: id, Status: protocol.StatusPending})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("req-%d", i)
		rec, err := mem.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.Action)
		assert.Equal(t, protocol.StatusPending, rec.Status)
	}

	// Resolving one must not affect the others.
	require.NoError(t, mem.Put(ctx, protocol.ApprovalRecord{ID: "req-0", Status: protocol.StatusDenied}))
	rec, err := mem.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusPending, rec.Status)
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops/telegram-mcp-server/internal/protocol"
)

func TestSQLiteSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "approvals.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	rec := protocol.ApprovalRecord{
		ID:          "r1",
		Action:      "rotate keys",
		Details:     "prod cluster",
		Status:      protocol.StatusDeniedCustom,
		Response:    protocol.ResponseDeniedCustom,
		Instruction: "rotate staging first, then prod after 24h 🔑",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Save(ctx, rec))

	got, err := db.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec.Instruction, got.Instruction)
	assert.Equal(t, rec.Status, got.Status)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, err = db.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "approvals.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	rec := protocol.ApprovalRecord{
		ID:          "r1",
		Action:      "wipe cache",
		Status:      protocol.StatusDeniedCustom,
		Response:    protocol.ResponseDeniedCustom,
		Instruction: "do X instead",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Save(ctx, rec))
	require.NoError(t, db.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "do X instead", got.Instruction)
	assert.Equal(t, protocol.StatusDeniedCustom, got.Status)
}

func TestSQLiteListByStatus(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "approvals.db"))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	require.NoError(t, db.Save(ctx, protocol.ApprovalRecord{ID: "a", Action: "x", Status: protocol.StatusAwaitingInstruction, CreatedAt: now}))
	require.NoError(t, db.Save(ctx, protocol.ApprovalRecord{ID: "b", Action: "y", Status: protocol.StatusDeniedCustom, Instruction: "n", CreatedAt: now.Add(time.Second)}))

	awaiting, err := db.ListByStatus(ctx, protocol.StatusAwaitingInstruction)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, "a", awaiting[0].ID)
}

func TestLayeredWriteThrough(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "approvals.db")
	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	store := NewLayered(NewMemory(), db)

	// Pending records stay memory-only.
	pending := protocol.ApprovalRecord{ID: "p", Action: "x", Status: protocol.StatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Put(ctx, pending))
	_, err = db.Load(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)

	// Awaiting records hit disk and survive a "restart" (fresh memory).
	awaiting := protocol.ApprovalRecord{ID: "a", Action: "y", Status: protocol.StatusAwaitingInstruction, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Put(ctx, awaiting))

	restarted := NewLayered(NewMemory(), db)
	got, err := restarted.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusAwaitingInstruction, got.Status)

	// Promotion: the record is now served from memory.
	mgot, err := restarted.mem.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, got, mgot)
}

func TestLayeredListPrefersMemory(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "approvals.db"))
	require.NoError(t, err)
	defer db.Close()

	store := NewLayered(NewMemory(), db)
	rec := protocol.ApprovalRecord{ID: "a", Action: "x", Status: protocol.StatusAwaitingInstruction, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Put(ctx, rec))

	// Resolve in memory and on disk.
	rec.Status = protocol.StatusDeniedCustom
	rec.Response = protocol.ResponseDeniedCustom
	rec.Instruction = "done"
	require.NoError(t, store.Put(ctx, rec))

	awaiting, err := store.ListByStatus(ctx, protocol.StatusAwaitingInstruction)
	require.NoError(t, err)
	// The stale awaiting row on disk must not resurface.
	for _, r := range awaiting {
		assert.NotEqual(t, "a", r.ID)
	}
}

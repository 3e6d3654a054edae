// Package storage holds approval request records. The in-memory tier is
// the single source of truth; an optional sqlite tier keeps the
// custom-instruction workflow alive across process restarts.
package storage

import (
	"context"
	"errors"

	"github.com/agentops/telegram-mcp-server/internal/protocol"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("approval request not found")

// Store is the request store contract. Put overwrites in place; that is
// how status transitions land. Get returns a snapshot and never blocks.
type Store interface {
	Put(ctx context.Context, rec protocol.ApprovalRecord) error
	Get(ctx context.Context, id string) (protocol.ApprovalRecord, error)
	// ListByStatus returns all records currently in the given status.
	ListByStatus(ctx context.Context, status protocol.Status) ([]protocol.ApprovalRecord, error)
	// Watch returns a channel closed on the next write to id. Callers
	// re-check Get after every wake; a watch never replaces a read.
	Watch(id string) <-chan struct{}
}

// persistable reports whether a record must survive a restart. Only the
// custom-instruction workflow outlives its waiter.
func persistable(status protocol.Status) bool {
	return status == protocol.StatusAwaitingInstruction || status == protocol.StatusDeniedCustom
}

// Layered is a write-through store: every write lands in memory, and
// records in persistable statuses are mirrored to the durable tier.
// Memory is authoritative once populated; the durable tier is only
// consulted on a miss.
type Layered struct {
	mem     *Memory
	durable *SQLite
}

// NewLayered combines the memory tier with a durable tier.
func NewLayered(mem *Memory, durable *SQLite) *Layered {
	return &Layered{mem: mem, durable: durable}
}

// Put writes to memory, then mirrors persistable records to disk.
func (l *Layered) Put(ctx context.Context, rec protocol.ApprovalRecord) error {
	if err := l.mem.Put(ctx, rec); err != nil {
		return err
	}
	if l.durable != nil && persistable(rec.Status) {
		return l.durable.Save(ctx, rec)
	}
	return nil
}

// Get reads memory first and falls back to the durable tier, promoting
// any hit into memory.
func (l *Layered) Get(ctx context.Context, id string) (protocol.ApprovalRecord, error) {
	rec, err := l.mem.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) || l.durable == nil {
		return protocol.ApprovalRecord{}, err
	}
	rec, err = l.durable.Load(ctx, id)
	if err != nil {
		return protocol.ApprovalRecord{}, err
	}
	if err := l.mem.Put(ctx, rec); err != nil {
		return protocol.ApprovalRecord{}, err
	}
	return rec, nil
}

// ListByStatus merges both tiers, memory winning on duplicate ids.
func (l *Layered) ListByStatus(ctx context.Context, status protocol.Status) ([]protocol.ApprovalRecord, error) {
	recs, err := l.mem.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if l.durable == nil {
		return recs, nil
	}
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		seen[rec.ID] = struct{}{}
	}
	durableRecs, err := l.durable.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	for _, rec := range durableRecs {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		// The memory tier may hold a newer status for this id.
		if current, err := l.mem.Get(ctx, rec.ID); err == nil && current.Status != status {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Watch delegates to the memory tier.
func (l *Layered) Watch(id string) <-chan struct{} {
	return l.mem.Watch(id)
}

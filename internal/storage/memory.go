package storage

import (
	"context"
	"sync"

	"github.com/agentops/telegram-mcp-server/internal/protocol"
)

// Memory is the mutex-guarded in-memory tier. Readers always see a
// whole record snapshot, never a partial write.
type Memory struct {
	mu      sync.RWMutex
	records map[string]protocol.ApprovalRecord
	watches map[string]chan struct{}
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]protocol.ApprovalRecord),
		watches: make(map[string]chan struct{}),
	}
}

// Put inserts or overwrites a record and wakes any watchers of its id.
func (m *Memory) Put(_ context.Context, rec protocol.ApprovalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	if ch, ok := m.watches[rec.ID]; ok {
		close(ch)
		delete(m.watches, rec.ID)
	}
	return nil
}

// Get returns the current snapshot for id.
func (m *Memory) Get(_ context.Context, id string) (protocol.ApprovalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return protocol.ApprovalRecord{}, ErrNotFound
	}
	return rec, nil
}

// ListByStatus returns all records currently in the given status.
func (m *Memory) ListByStatus(_ context.Context, status protocol.Status) ([]protocol.ApprovalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var recs []protocol.ApprovalRecord
	for _, rec := range m.records {
		if rec.Status == status {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// Watch returns a channel closed on the next Put for id. All watchers
// of the same id share one channel.
func (m *Memory) Watch(id string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.watches[id]
	if !ok {
		ch = make(chan struct{})
		m.watches[id] = ch
	}
	return ch
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/agentops/telegram-mcp-server/internal/protocol"
)

// SQLite is the durable tier: one row per request id, indexed by status
// so open custom-instruction requests are found quickly after restart.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the approvals database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open approvals db: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS approvals (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			response TEXT NOT NULL DEFAULT '',
			instruction TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create approvals table: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status)"); err != nil {
		return fmt.Errorf("create status index: %w", err)
	}
	return nil
}

// Save inserts or replaces the row for rec.ID.
func (s *SQLite) Save(ctx context.Context, rec protocol.ApprovalRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO approvals (id, action, details, status, response, instruction, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Action, rec.Details, string(rec.Status), string(rec.Response), rec.Instruction,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save approval %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns the persisted record for id, or ErrNotFound.
func (s *SQLite) Load(ctx context.Context, id string) (protocol.ApprovalRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, action, details, status, response, instruction, created_at
		FROM approvals WHERE id = ?
	`, id)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.ApprovalRecord{}, ErrNotFound
	}
	if err != nil {
		return protocol.ApprovalRecord{}, fmt.Errorf("load approval %s: %w", id, err)
	}
	return rec, nil
}

// ListByStatus returns all persisted records in the given status.
func (s *SQLite) ListByStatus(ctx context.Context, status protocol.Status) ([]protocol.ApprovalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, details, status, response, instruction, created_at
		FROM approvals WHERE status = ? ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list approvals by status %s: %w", status, err)
	}
	defer rows.Close()

	var recs []protocol.ApprovalRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan approval row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanRecord(scan func(dest ...any) error) (protocol.ApprovalRecord, error) {
	var rec protocol.ApprovalRecord
	var status, response, createdAt string
	if err := scan(&rec.ID, &rec.Action, &rec.Details, &status, &response, &rec.Instruction, &createdAt); err != nil {
		return protocol.ApprovalRecord{}, err
	}
	rec.Status = protocol.Status(status)
	rec.Response = protocol.Response(response)
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return protocol.ApprovalRecord{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = parsed
	return rec, nil
}

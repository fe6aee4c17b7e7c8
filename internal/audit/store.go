package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMs = 5000

// schemaStatements are executed in order to create the store schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ts         TEXT NOT NULL,
		type       TEXT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		agent_id   TEXT NOT NULL DEFAULT '',
		operation  TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		metadata   TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id, ts)`,
}

// Store persists audit events in SQLite (pure Go driver, WAL mode,
// single connection since SQLite serialises writes anyway).
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the audit database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set busy_timeout: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("audit: apply schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert persists one event.
func (s *Store) Insert(ctx context.Context, event Event) error {
	metaJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("audit: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (ts, type, request_id, agent_id, operation, detail, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		string(event.Type), event.RequestID, event.AgentID,
		event.Operation, event.Detail, string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, type, request_id, agent_id, operation, detail, metadata
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			event    Event
			ts, meta string
		)
		if err := rows.Scan(&ts, &event.Type, &event.RequestID,
			&event.AgentID, &event.Operation, &event.Detail, &meta); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		if event.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("audit: parse timestamp %q: %w", ts, err)
		}
		if err := json.Unmarshal([]byte(meta), &event.Metadata); err != nil {
			return nil, fmt.Errorf("audit: parse metadata: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Prune deletes events older than the cutoff and reports how many were
// removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE ts < ?`,
		olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("audit: prune events: %w", err)
	}
	return res.RowsAffected()
}

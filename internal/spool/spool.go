// Package spool is the durable buffer between event capture and upload.
// Events land in a local SQLite database and leave it only after the
// collector accepted them, so process restarts lose nothing.
package spool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	payload         BLOB    NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	enqueued_at     INTEGER NOT NULL,
	next_attempt_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_next_attempt ON events(next_attempt_at);
`

// Item is one spooled event awaiting upload.
type Item struct {
	ID       int64
	Payload  []byte
	Attempts int
}

// Spool is a bounded FIFO of serialized events. A single uploader
// consumes it; producers only ever append.
type Spool struct {
	db        *sql.DB
	maxEvents int
}

// Open creates or opens a spool at path. maxEvents bounds the queue;
// when full, the oldest events are dropped to admit new ones.
func Open(path string, maxEvents int) (*Spool, error) {
	if maxEvents <= 0 {
		return nil, fmt.Errorf("spool: max events must be positive, got %d", maxEvents)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("spool: mkdir %s: %w", dir, err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("spool: open %s: %w", path, err)
	}
	// SQLite serializes writers anyway; one connection avoids
	// SQLITE_BUSY churn between producer and consumer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("spool: migrate: %w", err)
	}
	return &Spool{db: db, maxEvents: maxEvents}, nil
}

// Put appends a payload. It returns how many old events were dropped to
// stay under the cap.
func (s *Spool) Put(ctx context.Context, payload []byte) (dropped int64, err error) {
	now := time.Now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("spool: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (payload, enqueued_at, next_attempt_at) VALUES (?, ?, ?)`,
		payload, now, now,
	); err != nil {
		return 0, fmt.Errorf("spool: insert: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY id DESC LIMIT ?)`,
		s.maxEvents,
	)
	if err != nil {
		return 0, fmt.Errorf("spool: trim: %w", err)
	}
	dropped, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("spool: commit: %w", err)
	}
	return dropped, nil
}

// Next returns up to limit events that are due for upload, oldest
// first. Events failed with a future retry time stay invisible until
// that time passes.
func (s *Spool) Next(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, attempts FROM events WHERE next_attempt_at <= ? ORDER BY id ASC LIMIT ?`,
		time.Now().UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("spool: select: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Payload, &it.Attempts); err != nil {
			return nil, fmt.Errorf("spool: scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Ack removes delivered (or permanently abandoned) events.
func (s *Spool) Ack(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM events WHERE id IN (%s)`, placeholders(len(ids)))
	if _, err := s.db.ExecContext(ctx, query, idArgs(ids)...); err != nil {
		return fmt.Errorf("spool: ack: %w", err)
	}
	return nil
}

// Fail records a delivery failure and schedules the retry.
func (s *Spool) Fail(ctx context.Context, ids []int64, nextAttempt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`UPDATE events SET attempts = attempts + 1, next_attempt_at = ? WHERE id IN (%s)`,
		placeholders(len(ids)),
	)
	args := append([]any{nextAttempt.UnixMilli()}, idArgs(ids)...)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("spool: fail: %w", err)
	}
	return nil
}

// Len reports how many events are spooled, due or not.
func (s *Spool) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("spool: count: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Spool) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"llmgate/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS call_records (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	status TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_records_created_at ON call_records(created_at);
`

// SQLiteStore persists call records in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required for sqlite store")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// RecordCall appends one call record.
func (s *SQLiteStore) RecordCall(ctx context.Context, rec models.CallRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_records
			(id, model, status, error_kind, attempts, prompt_tokens, completion_tokens, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Model, rec.Status, rec.ErrorKind, rec.Attempts,
		rec.PromptTokens, rec.CompletionTokens, int64(rec.Duration), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call record: %w", err)
	}
	return nil
}

// RecentCalls returns the newest records, newest first.
func (s *SQLiteStore) RecentCalls(ctx context.Context, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, status, error_kind, attempts, prompt_tokens, completion_tokens, duration_ns, created_at
		FROM call_records ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query call records: %w", err)
	}
	defer rows.Close()

	var out []models.CallRecord
	for rows.Next() {
		var rec models.CallRecord
		var durationNS int64
		if err := rows.Scan(&rec.ID, &rec.Model, &rec.Status, &rec.ErrorKind, &rec.Attempts,
			&rec.PromptTokens, &rec.CompletionTokens, &durationNS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call record: %w", err)
		}
		rec.Duration = time.Duration(durationNS)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Totals aggregates all retained records.
func (s *SQLiteStore) Totals(ctx context.Context) (models.CallTotals, error) {
	var t models.CallTotals
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0)
		FROM call_records`, models.CallStatusError,
	).Scan(&t.Calls, &t.Errors, &t.PromptTokens, &t.CompletionTokens)
	if err != nil {
		return models.CallTotals{}, fmt.Errorf("failed to aggregate call records: %w", err)
	}
	return t, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

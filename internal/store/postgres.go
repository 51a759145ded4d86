package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"llmgate/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS call_records (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	status TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	duration_ns BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_records_created_at ON call_records(created_at);
`

// PostgresStore persists call records in PostgreSQL via a pgx connection
// pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required for postgres store")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// RecordCall appends one call record.
func (p *PostgresStore) RecordCall(ctx context.Context, rec models.CallRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO call_records
			(id, model, status, error_kind, attempts, prompt_tokens, completion_tokens, duration_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Model, rec.Status, rec.ErrorKind, rec.Attempts,
		rec.PromptTokens, rec.CompletionTokens, int64(rec.Duration), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call record: %w", err)
	}
	return nil
}

// RecentCalls returns the newest records, newest first.
func (p *PostgresStore) RecentCalls(ctx context.Context, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, model, status, error_kind, attempts, prompt_tokens, completion_tokens, duration_ns, created_at
		FROM call_records ORDER BY created_at DESC, id LIMIT $1`, limit)
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
func (p *PostgresStore) Totals(ctx context.Context) (models.CallTotals, error) {
	var t models.CallTotals
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0)
		FROM call_records`, models.CallStatusError,
	).Scan(&t.Calls, &t.Errors, &t.PromptTokens, &t.CompletionTokens)
	if err != nil {
		return models.CallTotals{}, fmt.Errorf("failed to aggregate call records: %w", err)
	}
	return t, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

package store

import (
	"context"
	"fmt"

	"llmgate/internal/models"
)

// New instantiates an audit store from configuration.
// Supported types:
//   - memory: bounded in-memory ring (development, tests)
//   - sqlite: single-file database (single-instance deployments)
//   - postgres: shared database (multi-instance deployments)
func New(ctx context.Context, cfg models.AuditConfig) (Store, error) {
	switch cfg.Type {
	case models.StoreTypeMemory:
		return NewMemoryStore(cfg.MaxRecords), nil
	case models.StoreTypeSQLite:
		return NewSQLiteStore(cfg.Path)
	case models.StoreTypePostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported audit store type: %s", cfg.Type)
	}
}

// Package store persists the call audit log: outcomes of completed guarded
// provider calls. Limiter and quota state are deliberately never stored; they
// are in-process only and reset on restart.
package store

import (
	"context"

	"llmgate/internal/models"
)

// Store is the audit log contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// RecordCall appends one completed call outcome.
	RecordCall(ctx context.Context, rec models.CallRecord) error

	// RecentCalls returns the newest records, up to limit, newest first.
	RecentCalls(ctx context.Context, limit int) ([]models.CallRecord, error)

	// Totals aggregates all retained records.
	Totals(ctx context.Context) (models.CallTotals, error)

	// Close releases the backing resources.
	Close() error
}

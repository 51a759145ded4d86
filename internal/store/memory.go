package store

import (
	"context"
	"sync"

	"llmgate/internal/models"
)

// MemoryStore keeps the newest maxRecords call records in memory. Intended
// for development and tests; records are lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []models.CallRecord
	maxRecords int
}

// NewMemoryStore creates an in-memory audit store retaining at most
// maxRecords records.
func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &MemoryStore{
		maxRecords: maxRecords,
	}
}

// RecordCall appends a record, evicting the oldest when full.
func (m *MemoryStore) RecordCall(ctx context.Context, rec models.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > m.maxRecords {
		m.records = m.records[len(m.records)-m.maxRecords:]
	}
	return nil
}

// RecentCalls returns the newest records, newest first.
func (m *MemoryStore) RecentCalls(ctx context.Context, limit int) ([]models.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]models.CallRecord, 0, limit)
	for i := len(m.records) - 1; i >= len(m.records)-limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Totals aggregates the retained records.
func (m *MemoryStore) Totals(ctx context.Context) (models.CallTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t models.CallTotals
	for _, rec := range m.records {
		t.Calls++
		if rec.Status == models.CallStatusError {
			t.Errors++
		}
		t.PromptTokens += int64(rec.PromptTokens)
		t.CompletionTokens += int64(rec.CompletionTokens)
	}
	return t, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

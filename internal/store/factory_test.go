package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmgate/internal/models"
)

func TestNew_MemoryStore(t *testing.T) {
	s, err := New(context.Background(), models.AuditConfig{
		Type:       models.StoreTypeMemory,
		MaxRecords: 100,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &MemoryStore{}, s)
}

func TestNew_SQLiteStore(t *testing.T) {
	s, err := New(context.Background(), models.AuditConfig{
		Type: models.StoreTypeSQLite,
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &SQLiteStore{}, s)
}

func TestNew_PostgresStore_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), models.AuditConfig{
		Type: models.StoreTypePostgres,
		DSN:  "://not-a-dsn",
	})
	assert.Error(t, err)
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(context.Background(), models.AuditConfig{Type: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audit store type")
}

package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validKey = "AIzaSy-test-key-0123456789"

func TestKeyManager_RegisterAndGet(t *testing.T) {
	m := NewKeyManager()

	require.NoError(t, m.Register("primary", validKey, "google"))

	got, err := m.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, validKey, got)
	assert.True(t, m.IsValid("primary"))
}

func TestKeyManager_RejectsShortKeys(t *testing.T) {
	m := NewKeyManager()

	err := m.Register("primary", "short", "google")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key format")
}

func TestKeyManager_GetUnknownKey(t *testing.T) {
	m := NewKeyManager()

	_, err := m.Get("missing")
	assert.Error(t, err)
	assert.False(t, m.IsValid("missing"))
}

func TestKeyManager_Rotate(t *testing.T) {
	m := NewKeyManager()
	require.NoError(t, m.Register("primary", validKey, "google"))

	newKey := "AIzaSy-rotated-9876543210"
	require.NoError(t, m.Rotate("primary", newKey))

	got, err := m.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, newKey, got)
}

func TestKeyManager_Rotate_UnknownOrInvalid(t *testing.T) {
	m := NewKeyManager()

	assert.Error(t, m.Rotate("missing", validKey))

	require.NoError(t, m.Register("primary", validKey, "google"))
	assert.Error(t, m.Rotate("primary", "too-short"))
}

func TestKeyManager_Revoke(t *testing.T) {
	m := NewKeyManager()
	require.NoError(t, m.Register("primary", validKey, "google"))

	assert.True(t, m.Revoke("primary"))
	assert.False(t, m.IsValid("primary"))

	_, err := m.Get("primary")
	assert.ErrorContains(t, err, "revoked")

	// Rotation reinstates a revoked key
	require.NoError(t, m.Rotate("primary", "AIzaSy-fresh-0123456789"))
	assert.True(t, m.IsValid("primary"))

	assert.False(t, m.Revoke("missing"))
}

func TestKeyManager_NeedsRotation(t *testing.T) {
	m := NewKeyManager()
	require.NoError(t, m.Register("primary", validKey, "google"))

	// Never rotated: nothing to age out
	assert.False(t, m.NeedsRotation())

	require.NoError(t, m.Rotate("primary", "AIzaSy-rotated-9876543210"))
	assert.False(t, m.NeedsRotation())

	// Push the clock past the rotation interval
	base := time.Now()
	m.now = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	assert.True(t, m.NeedsRotation())
}

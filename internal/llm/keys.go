package llm

import (
	"fmt"
	"sync"
	"time"
)

// minKeyLength is the shortest credential accepted as a plausible API key.
const minKeyLength = 20

// rotationInterval is how long a key may serve before rotation is recommended.
const rotationInterval = 30 * 24 * time.Hour

// keyEntry tracks one registered credential and its lifecycle.
type keyEntry struct {
	value     string
	provider  string
	createdAt time.Time
	lastUsed  time.Time
	rotatedAt time.Time
	revoked   bool
}

// KeyManager holds provider credentials with validation, rotation, and
// revocation. It is owned by the service that uses it, never shared as a
// process-wide global. Safe for concurrent use.
type KeyManager struct {
	mu           sync.Mutex
	keys         map[string]*keyEntry
	lastRotation time.Time

	now func() time.Time // test hook
}

// NewKeyManager creates an empty key manager.
func NewKeyManager() *KeyManager {
	return &KeyManager{
		keys: make(map[string]*keyEntry),
		now:  time.Now,
	}
}

// Register stores a credential under id. Keys shorter than the minimum
// plausible length are rejected.
func (m *KeyManager) Register(id, value, provider string) error {
	if !validKeyFormat(value) {
		return fmt.Errorf("invalid API key format for provider %s", provider)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[id] = &keyEntry{
		value:     value,
		provider:  provider,
		createdAt: m.now(),
	}
	return nil
}

// Get returns the credential registered under id and marks it used.
func (m *KeyManager) Get(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[id]
	if !ok {
		return "", fmt.Errorf("API key %q not found", id)
	}
	if e.revoked {
		return "", fmt.Errorf("API key %q is revoked", id)
	}
	e.lastUsed = m.now()
	return e.value, nil
}

// Rotate replaces the credential under id with a new value.
func (m *KeyManager) Rotate(id, newValue string) error {
	if !validKeyFormat(newValue) {
		return fmt.Errorf("invalid replacement API key format")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[id]
	if !ok {
		return fmt.Errorf("API key %q not found", id)
	}
	e.value = newValue
	e.revoked = false
	e.rotatedAt = m.now()
	m.lastRotation = e.rotatedAt
	return nil
}

// Revoke marks the credential under id unusable. Returns false when the id is
// unknown.
func (m *KeyManager) Revoke(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[id]
	if !ok {
		return false
	}
	e.revoked = true
	return true
}

// IsValid reports whether a usable credential is registered under id.
func (m *KeyManager) IsValid(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[id]
	return ok && !e.revoked
}

// NeedsRotation reports whether the rotation interval has elapsed since the
// last rotation. A manager that has never rotated reports false.
func (m *KeyManager) NeedsRotation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastRotation.IsZero() {
		return false
	}
	return m.now().Sub(m.lastRotation) >= rotationInterval
}

func validKeyFormat(key string) bool {
	return len(key) >= minKeyLength
}

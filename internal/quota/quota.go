// Package quota enforces multi-window usage quotas over provider calls. A
// Manager tracks request and token consumption across minute, hour, and day
// windows; a call is admitted only when every window has headroom, and no
// window is mutated unless all of them do.
package quota

import (
	"fmt"
	"sync"
	"time"

	"llmgate/internal/models"
)

// Window scopes reported by a quota rejection.
const (
	ScopeMinute       = "minute"
	ScopeHour         = "hour"
	ScopeDay          = "day"
	ScopeMinuteTokens = "minute_tokens"
	ScopeDayTokens    = "day_tokens"
)

// Error reports a quota rejection. Scope names the first violated window.
type Error struct {
	Scope string
}

func (e *Error) Error() string {
	return fmt.Sprintf("quota exceeded for window %s", e.Scope)
}

// window accumulates usage for one granularity until its duration elapses.
type window struct {
	requests int
	tokens   int
	start    time.Time
}

// Manager tracks usage against the configured per-window limits. All methods
// are safe for concurrent use; check and increment happen under one lock so a
// rejected call observes no partial effect.
type Manager struct {
	cfg models.QuotaConfig

	mu            sync.Mutex
	minute        window
	hour          window
	day           window
	totalRequests int64
	totalTokens   int64

	now func() time.Time // test hook
}

// NewManager creates a quota manager with all windows starting now.
func NewManager(cfg models.QuotaConfig) *Manager {
	m := &Manager{
		cfg: cfg,
		now: time.Now,
	}
	start := m.now()
	m.minute.start = start
	m.hour.start = start
	m.day.start = start
	return m
}

// CheckAndIncrement admits a call costing cost requests and tokens tokens.
// Windows whose duration has elapsed are reset first. Checks run in a fixed
// order: minute requests, hour requests, day requests, minute tokens, day
// tokens. The first violation returns an *Error naming its window and leaves
// every counter untouched; on success all windows and running totals are
// incremented together.
func (m *Manager) CheckAndIncrement(tokens, cost int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetElapsed(m.now())

	switch {
	case m.minute.requests+cost > m.cfg.RequestsPerMinute:
		return &Error{Scope: ScopeMinute}
	case m.hour.requests+cost > m.cfg.RequestsPerHour:
		return &Error{Scope: ScopeHour}
	case m.day.requests+cost > m.cfg.RequestsPerDay:
		return &Error{Scope: ScopeDay}
	case m.minute.tokens+tokens > m.cfg.TokensPerMinute:
		return &Error{Scope: ScopeMinuteTokens}
	case m.day.tokens+tokens > m.cfg.TokensPerDay:
		return &Error{Scope: ScopeDayTokens}
	}

	m.minute.requests += cost
	m.hour.requests += cost
	m.day.requests += cost
	m.minute.tokens += tokens
	m.day.tokens += tokens
	m.totalRequests += int64(cost)
	m.totalTokens += int64(tokens)

	return nil
}

// resetElapsed zeroes any window whose duration has passed. Callers must hold
// the lock.
func (m *Manager) resetElapsed(now time.Time) {
	if now.Sub(m.minute.start) >= time.Minute {
		m.minute = window{start: now}
	}
	if now.Sub(m.hour.start) >= time.Hour {
		m.hour = window{start: now}
	}
	if now.Sub(m.day.start) >= 24*time.Hour {
		m.day = window{start: now}
	}
}

// UsageStats reports current consumption per window plus running totals.
// Elapsed windows are reset before reporting, so stale usage never shows.
func (m *Manager) UsageStats() models.UsageResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetElapsed(m.now())

	return models.UsageResponse{
		TotalRequests: m.totalRequests,
		TotalTokens:   m.totalTokens,
		Minute: models.WindowUsage{
			Requests:   m.minute.requests,
			Limit:      m.cfg.RequestsPerMinute,
			Remaining:  m.cfg.RequestsPerMinute - m.minute.requests,
			Tokens:     m.minute.tokens,
			TokenLimit: m.cfg.TokensPerMinute,
		},
		Hour: models.WindowUsage{
			Requests:  m.hour.requests,
			Limit:     m.cfg.RequestsPerHour,
			Remaining: m.cfg.RequestsPerHour - m.hour.requests,
		},
		Day: models.WindowUsage{
			Requests:   m.day.requests,
			Limit:      m.cfg.RequestsPerDay,
			Remaining:  m.cfg.RequestsPerDay - m.day.requests,
			Tokens:     m.day.tokens,
			TokenLimit: m.cfg.TokensPerDay,
		},
		Timestamp: m.now(),
	}
}

// Reset zeroes every window and the running totals.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.minute = window{start: now}
	m.hour = window{start: now}
	m.day = window{start: now}
	m.totalRequests = 0
	m.totalTokens = 0
}

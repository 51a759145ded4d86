// Package retry runs operations under an exponential-backoff retry loop.
// Only an explicit allow-list of error kinds is retried: provider rate
// limiting, provider unavailability, timeouts, and connection failures.
// Everything else propagates unwrapped on the first occurrence.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"llmgate/internal/models"
)

// Error kinds recorded in the attempt history.
const (
	KindRateLimit   = "rate_limit"
	KindUnavailable = "service_unavailable"
	KindTimeout     = "timeout"
	KindConnection  = "connection"
	KindFatal       = "fatal"
)

// Retryable is implemented by error types that know whether automatic retry
// is worthwhile.
type Retryable interface {
	Retryable() bool
}

// Kinder is implemented by error types that classify themselves for the
// attempt history.
type Kinder interface {
	RetryKind() string
}

// Attempt records one failed try of a guarded operation.
type Attempt struct {
	Attempt   int
	Timestamp time.Time
	Kind      string
	Message   string
}

// Handler runs operations with exponential backoff and keeps an observable
// history of failed attempts. Safe for concurrent use; only the history is
// shared between callers, backoff sleeps are per call.
type Handler struct {
	policy models.RetryConfig

	mu      sync.Mutex
	history []Attempt

	sleep func(ctx context.Context, d time.Duration) error // test hook
	randF func() float64                                    // test hook
}

// NewHandler creates a retry handler with the given policy.
func NewHandler(policy models.RetryConfig) *Handler {
	return &Handler{
		policy: policy,
		sleep:  sleepCtx,
		randF:  rand.Float64,
	}
}

// WaitTime returns the backoff delay before retrying after the given
// zero-based attempt: initialDelay * backoffFactor^attempt, capped at
// maxWait. With jitter enabled the capped value is scaled by a uniform
// multiplier in [0.5, 1.5).
func (h *Handler) WaitTime(attempt int) time.Duration {
	wait := float64(h.policy.InitialDelay) * math.Pow(h.policy.BackoffFactor, float64(attempt))
	wait = math.Min(wait, float64(h.policy.MaxWait))
	if h.policy.Jitter {
		wait *= 0.5 + h.randF()
	}
	return time.Duration(wait)
}

// ShouldRetry reports whether another attempt is allowed after the given
// zero-based attempt failed with err.
func (h *Handler) ShouldRetry(err error, attempt int) bool {
	return attempt < h.policy.MaxRetries && IsRetryable(err)
}

// IsRetryable reports whether err belongs to the retryable allow-list.
func IsRetryable(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// kindOf classifies err for the attempt history.
func kindOf(err error) string {
	var k Kinder
	if errors.As(err, &k) {
		return k.RetryKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	return KindFatal
}

// Do runs fn until it succeeds, a non-retryable error occurs, or the policy's
// attempts are exhausted. Every failed try is appended to the handler's
// history. The final error is returned exactly as fn produced it; backoff
// sleeps end early with ctx.Err() when the context is cancelled.
func Do[T any](ctx context.Context, h *Handler, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= h.policy.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		h.record(attempt, err)

		if !h.ShouldRetry(err, attempt) {
			return zero, err
		}
		if err := h.sleep(ctx, h.WaitTime(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// record appends a failed attempt to the history.
func (h *Handler) record(attempt int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, Attempt{
		Attempt:   attempt,
		Timestamp: time.Now(),
		Kind:      kindOf(err),
		Message:   err.Error(),
	})
}

// History returns a copy of the recorded attempts.
func (h *Handler) History() []Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Attempt, len(h.history))
	copy(out, h.history)
	return out
}

// ClearHistory drops all recorded attempts.
func (h *Handler) ClearHistory() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
}

// sleepCtx sleeps for d or until ctx ends, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// rateWindow is the trailing window used for current-rate reporting.
const rateWindow = time.Minute

// Error reports a denied acquisition. RetryAfter estimates how long until
// enough tokens have refilled for the rejected request.
type Error struct {
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %.2fs", e.RetryAfter.Seconds())
}

// Bucket is a token bucket guarding outbound provider calls. Capacity refills
// continuously at the configured per-minute rate; each call consumes whole
// tokens from a fractional balance. All methods are safe for concurrent use
// and the lock is never held across a sleep.
type Bucket struct {
	ratePerSec float64
	capacity   float64
	limit      int

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	grants     []time.Time

	now func() time.Time // test hook
}

// NewBucket creates a bucket that refills at requestsPerMinute and holds at
// most burst tokens. A zero burst defaults to requestsPerMinute. The bucket
// starts full.
func NewBucket(requestsPerMinute, burst int) (*Bucket, error) {
	if requestsPerMinute <= 0 {
		return nil, fmt.Errorf("requests per minute must be positive, got %d", requestsPerMinute)
	}
	if burst < 0 {
		return nil, fmt.Errorf("burst size must not be negative, got %d", burst)
	}
	if burst == 0 {
		burst = requestsPerMinute
	}
	b := &Bucket{
		ratePerSec: float64(requestsPerMinute) / 60.0,
		capacity:   float64(burst),
		limit:      requestsPerMinute,
		tokens:     float64(burst),
		now:        time.Now,
	}
	b.lastRefill = b.now()
	return b, nil
}

// TryAcquire takes n tokens without blocking. On insufficient capacity it
// returns an *Error whose RetryAfter estimates when n tokens will be
// available, and the bucket is left unchanged.
func (b *Bucket) TryAcquire(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.refill(now)

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		b.recordGrant(now)
		return nil
	}
	return &Error{RetryAfter: b.waitFor(n)}
}

// Acquire takes n tokens, waiting for refill when the bucket is short. The
// wait time is computed under the lock, the lock is released for the sleep,
// and acquisition is re-attempted, so a sleeping caller never starves the
// others. Returns ctx.Err() if the context ends while waiting.
func (b *Bucket) Acquire(ctx context.Context, n int) error {
	for {
		b.mu.Lock()
		now := b.now()
		b.refill(now)
		if b.tokens >= float64(n) {
			b.tokens -= float64(n)
			b.recordGrant(now)
			b.mu.Unlock()
			return nil
		}
		wait := b.waitFor(n)
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill adds tokens accrued since the last refill, capped at capacity.
// Callers must hold the lock.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.ratePerSec)
	}
	b.lastRefill = now
}

// waitFor estimates how long until n tokens are available. Callers must hold
// the lock.
func (b *Bucket) waitFor(n int) time.Duration {
	deficit := float64(n) - b.tokens
	return time.Duration(deficit / b.ratePerSec * float64(time.Second))
}

// recordGrant appends a grant timestamp, pruning entries that have left the
// trailing rate window. Callers must hold the lock.
func (b *Bucket) recordGrant(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(b.grants) && b.grants[i].Before(cutoff) {
		i++
	}
	b.grants = append(b.grants[i:], now)
}

// CurrentRate returns the number of grants within the trailing minute.
func (b *Bucket) CurrentRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-rateWindow)
	count := 0
	for _, t := range b.grants {
		if !t.Before(cutoff) {
			count++
		}
	}
	return float64(count)
}

// Tokens returns the balance currently available, after refill.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(b.now())
	return b.tokens
}

// Limit returns the configured requests-per-minute rate.
func (b *Bucket) Limit() int {
	return b.limit
}

// Reset restores a full bucket and clears the grant history.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = b.capacity
	b.lastRefill = b.now()
	b.grants = nil
}

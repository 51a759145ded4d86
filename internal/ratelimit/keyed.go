package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// client holds a per-key limiter and its last access time for eviction.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter rate-limits inbound requests per client, backed by
// golang.org/x/time/rate. Each unique key (normally a client IP) gets its own
// token bucket. A background goroutine periodically evicts clients that have
// not been seen within 2x the cleanup interval.
type KeyedLimiter struct {
	rate            rate.Limit
	burst           int
	limit           int // requests per minute, for Info.Limit
	cleanupInterval time.Duration

	mu      sync.Mutex
	clients map[string]*client
	done    chan struct{}
	closed  bool
}

// NewKeyedLimiter creates a per-client limiter with the given
// requests-per-minute rate, burst size, and cleanup interval. It starts a
// background goroutine for eviction.
func NewKeyedLimiter(requestsPerMinute int, burst int, cleanupInterval time.Duration) *KeyedLimiter {
	k := &KeyedLimiter{
		rate:            rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:           burst,
		limit:           requestsPerMinute,
		cleanupInterval: cleanupInterval,
		clients:         make(map[string]*client),
		done:            make(chan struct{}),
	}
	go k.cleanup()
	return k
}

// Allow checks whether a request from the given key should be allowed.
func (k *KeyedLimiter) Allow(key string) (bool, Info) {
	k.mu.Lock()
	c, exists := k.clients[key]
	if !exists {
		c = &client{
			limiter: rate.NewLimiter(k.rate, k.burst),
		}
		k.clients[key] = c
	}
	c.lastSeen = time.Now()
	k.mu.Unlock()

	allowed := c.limiter.Allow()

	now := time.Now()
	tokens := c.limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))

	// Calculate reset time: how long until the bucket is full again
	tokensNeeded := float64(k.burst) - tokens
	var resetAt time.Time
	if tokensNeeded > 0 {
		resetDuration := time.Duration(tokensNeeded / float64(k.rate) * float64(time.Second))
		resetAt = now.Add(resetDuration)
	} else {
		resetAt = now
	}

	info := Info{
		Limit:     k.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !allowed {
		// Calculate retry-after: time until the next token is available
		reservation := c.limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		info.RetryAfter = delay
	}

	return allowed, info
}

// Close stops the background cleanup goroutine.
func (k *KeyedLimiter) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.closed {
		k.closed = true
		close(k.done)
	}
}

// cleanup periodically evicts clients that have not been seen within
// 2x the cleanup interval.
func (k *KeyedLimiter) cleanup() {
	ticker := time.NewTicker(k.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.done:
			return
		case <-ticker.C:
			k.evictStale()
		}
	}
}

// evictStale removes clients older than 2x the cleanup interval.
func (k *KeyedLimiter) evictStale() {
	cutoff := time.Now().Add(-2 * k.cleanupInterval)
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, c := range k.clients {
		if c.lastSeen.Before(cutoff) {
			delete(k.clients, key)
		}
	}
}

// Package ratelimit guards both directions of the service's traffic. Bucket
// is the outbound token bucket that admission-controls calls to the upstream
// LLM provider. Limiter and its middleware protect the service's own HTTP API
// with per-client token buckets and standard rate limit response headers.
package ratelimit

import "time"

// Limiter is the inbound rate limiting contract. Implementations must be safe
// for concurrent use.
type Limiter interface {
	// Allow checks whether a request identified by key should be allowed.
	// Returns whether the request is allowed and rate information for
	// populating response headers.
	Allow(key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Approximate tokens remaining
	ResetAt    time.Time     // When the bucket will be full again
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

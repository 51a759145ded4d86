// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable error codes for programmatic handling
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// GenerateResponse is the result of a guarded generation call.
type GenerateResponse struct {
	Text             string        `json:"text"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Attempts         int           `json:"attempts"`
	Duration         time.Duration `json:"duration"`
}

// BatchGenerateResponse holds per-prompt results for a batch call. Items keep
// positional correspondence with the request prompts; failed items carry an
// error instead of text.
type BatchGenerateResponse struct {
	Results []BatchResult `json:"results"`
}

type BatchResult struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// WindowUsage reports consumption against one quota window.
type WindowUsage struct {
	Requests   int `json:"requests"`
	Limit      int `json:"limit"`
	Remaining  int `json:"remaining"`
	Tokens     int `json:"tokens,omitempty"`
	TokenLimit int `json:"token_limit,omitempty"`
}

// UsageResponse backs the operator-facing usage endpoint.
type UsageResponse struct {
	TotalRequests int64       `json:"total_requests"`
	TotalTokens   int64       `json:"total_tokens"`
	Minute        WindowUsage `json:"current_minute"`
	Hour          WindowUsage `json:"current_hour"`
	Day           WindowUsage `json:"current_day"`
	Audit         *CallTotals `json:"audit,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// RateLimitInfoResponse reports the state of the outbound token bucket.
type RateLimitInfoResponse struct {
	Enabled     bool `json:"enabled"`
	CurrentRate int  `json:"current_rate"`
	Limit       int  `json:"limit"`
}

// RetryAttemptInfo mirrors retry.Attempt for the inspection endpoint.
type RetryAttemptInfo struct {
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

type RetryHistoryResponse struct {
	Attempts []RetryAttemptInfo `json:"attempts"`
	Count    int                `json:"count"`
}

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error      string            `json:"error"`                 // Error type (always "error")
	Message    string            `json:"message"`               // Human-readable error description
	Code       string            `json:"code,omitempty"`        // Machine-readable error code
	Details    map[string]string `json:"details,omitempty"`     // Field-specific error details
	RetryAfter float64           `json:"retry_after,omitempty"` // Seconds to wait, for rate-limit rejections
	QuotaScope string            `json:"quota_scope,omitempty"` // Violated window, for quota rejections
	Timestamp  time.Time         `json:"timestamp"`             // Error occurrence time
	RequestID  string            `json:"request_id,omitempty"`  // Unique request identifier
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
)

// Standard error codes. Upper-case with underscores, mapped to HTTP status
// codes by the API layer.
const (
	ErrorCodeBadRequest         = "BAD_REQUEST"          // 400: Invalid request format
	ErrorCodeValidation         = "VALIDATION_ERROR"     // 422: Input validation failed
	ErrorCodeUnauthorized       = "UNAUTHORIZED"         // 401: Authentication required
	ErrorCodeForbidden          = "FORBIDDEN"            // 403: Permission denied
	ErrorCodeNotFound           = "NOT_FOUND"            // 404: Resource doesn't exist
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED"  // 429: Outbound bucket exhausted
	ErrorCodeQuotaExceeded      = "QUOTA_EXCEEDED"       // 429: A quota window is exhausted
	ErrorCodeUpstreamError      = "UPSTREAM_ERROR"       // 502: Provider returned a failure
	ErrorCodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"     // 504: Provider call timed out
	ErrorCodeInternalError      = "INTERNAL_ERROR"       // 500: Server-side error
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"  // 503: Service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}

package llm

import (
	"fmt"
	"net/http"

	"llmgate/internal/retry"
)

// APIError is a non-2xx response from the upstream provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status code is worth retrying: provider rate
// limiting and transient server-side failures. Client errors such as bad
// requests or invalid credentials are not.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryKind classifies the error for the retry attempt history.
func (e *APIError) RetryKind() string {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return retry.KindRateLimit
	case e.Retryable():
		return retry.KindUnavailable
	}
	return retry.KindFatal
}

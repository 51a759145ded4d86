package models

import "time"

// Call outcome constants for CallRecord.Status.
const (
	CallStatusOK    = "ok"
	CallStatusError = "error"
)

// CallRecord captures the outcome of one guarded provider call for the audit
// log. Records are written after the call completes; in-flight state never
// touches the store.
type CallRecord struct {
	ID               string        `json:"id"`
	Model            string        `json:"model"`
	Status           string        `json:"status"`
	ErrorKind        string        `json:"error_kind,omitempty"`
	Attempts         int           `json:"attempts"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Duration         time.Duration `json:"duration"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CallTotals aggregates audit records for the usage endpoint.
type CallTotals struct {
	Calls            int64 `json:"calls"`
	Errors           int64 `json:"errors"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

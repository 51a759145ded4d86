package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"llmgate/internal/llm"
	"llmgate/internal/models"
	"llmgate/internal/quota"
	"llmgate/internal/ratelimit"
	"llmgate/internal/version"
)

// Generator is the generation surface the handlers call. It is satisfied by
// *llm.Service directly and by the instrumented wrapper around it.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*models.GenerateResponse, error)
	BatchGenerate(ctx context.Context, prompts []string, systemPrompt string) *models.BatchGenerateResponse
}

// Handlers contains HTTP handlers for the gateway API
type Handlers struct {
	generator Generator
	service   *llm.Service
	config    *models.Config
}

// NewHandlers creates a new handlers instance. generator is used for the
// generation endpoints so tracing wrappers apply; service backs the
// operational and admin endpoints.
func NewHandlers(generator Generator, service *llm.Service, config *models.Config) *Handlers {
	return &Handlers{
		generator: generator,
		service:   service,
		config:    config,
	}
}

// Generate handles single generation requests
// POST /api/v1/generate
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, r, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	response, err := h.generator.Generate(r.Context(), llm.GenerateRequest{
		Model:        req.Model,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// BatchGenerate handles batch generation requests. Individual prompt
// failures are reported per item; the call itself succeeds.
// POST /api/v1/generate/batch
func (h *Handlers) BatchGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.BatchGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, r, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	response := h.generator.BatchGenerate(r.Context(), req.Prompts, req.SystemPrompt)
	h.writeJSONResponse(w, http.StatusOK, response)
}

// Usage reports consumption against every quota window plus audit totals.
// GET /api/v1/usage
func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) {
	stats := h.service.UsageStats(r.Context())
	h.writeJSONResponse(w, http.StatusOK, stats)
}

// RateLimitInfo reports the state of the outbound token bucket.
// GET /api/v1/ratelimit
func (h *Handlers) RateLimitInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.service.RateLimitInfo())
}

// RetryHistory returns the recorded retry attempts since the last clear.
// GET /api/v1/retries
func (h *Handlers) RetryHistory(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.service.RetryHistory())
}

// ClearRetryHistory discards the recorded retry attempts.
// DELETE /api/v1/retries
func (h *Handlers) ClearRetryHistory(w http.ResponseWriter, r *http.Request) {
	h.service.ClearRetryHistory()
	w.WriteHeader(http.StatusNoContent)
}

// RecentCalls returns the most recent audited call outcomes, newest first.
// GET /api/v1/calls?limit=N
func (h *Handlers) RecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.service.RecentCalls(r.Context(), limit)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to read audit log")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"calls": records,
		"count": len(records),
	})
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version

	if h.config.Provider.APIKey != "" {
		response.AddComponent("provider", models.StatusHealthy, "Provider key configured")
	} else {
		response.Status = models.StatusDegraded
		response.AddComponent("provider", models.StatusDegraded, "No provider API key configured")
	}

	if _, err := h.service.RecentCalls(r.Context(), 1); err != nil {
		response.Status = models.StatusDegraded
		response.AddComponent("audit", models.StatusDegraded, fmt.Sprintf("Audit store error: %v", err))
	} else {
		response.AddComponent("audit", models.StatusHealthy, "Audit store is operational")
	}

	response.AddComponent("api", models.StatusHealthy, "API is operational")
	response.AddMetric("model", h.service.CurrentModel())
	response.AddMetric("key_rotation_due", h.service.KeyRotationDue())
	response.AddMetric("rate_limit_enabled", h.config.Flow.RateLimit.Enabled)
	response.AddMetric("quota_enabled", h.config.Flow.Quota.Enabled)

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more to send.
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	errorResp.RequestID = RequestIDFromContext(r.Context())
	h.writeJSONResponse(w, statusCode, errorResp)
}

// writeServiceError maps a generation failure to an HTTP response. Flow
// rejections carry their hint fields so clients can back off correctly.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := llm.ErrorCode(err)
	errorResp := models.NewErrorResponse(err.Error(), code)
	errorResp.RequestID = RequestIDFromContext(r.Context())

	var rlErr *ratelimit.Error
	if errors.As(err, &rlErr) {
		errorResp.RetryAfter = rlErr.RetryAfter.Seconds()
		w.Header().Set("Retry-After", strconv.Itoa(int(rlErr.RetryAfter.Seconds())+1))
	}
	var qErr *quota.Error
	if errors.As(err, &qErr) {
		errorResp.QuotaScope = qErr.Scope
	}

	h.writeJSONResponse(w, statusForCode(code), errorResp)
}

// statusForCode maps machine-readable error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case models.ErrorCodeBadRequest:
		return http.StatusBadRequest
	case models.ErrorCodeValidation:
		return http.StatusUnprocessableEntity
	case models.ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrorCodeForbidden:
		return http.StatusForbidden
	case models.ErrorCodeNotFound:
		return http.StatusNotFound
	case models.ErrorCodeRateLimited, models.ErrorCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case models.ErrorCodeUpstreamError:
		return http.StatusBadGateway
	case models.ErrorCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case models.ErrorCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

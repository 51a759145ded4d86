package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmgate/internal/models"
	"llmgate/internal/quota"
	"llmgate/internal/ratelimit"
	"llmgate/internal/retry"
	"llmgate/internal/store"
)

// primaryKeyID is the key manager slot holding the active provider credential.
const primaryKeyID = "primary"

// Service guards every provider call with the flow-control stack, in order:
// token-bucket admission, quota check-and-increment, then the retry loop
// around the transport call. Bucket and quota rejections are pre-flight: they
// propagate to the caller as-is and never consume a retry attempt.
type Service struct {
	provider models.ProviderConfig
	flow     models.FlowConfig
	client   *Client
	bucket   *ratelimit.Bucket
	quota    *quota.Manager
	retrier  *retry.Handler
	keys     *KeyManager
	audit    store.Store
	logger   *slog.Logger

	mu    sync.RWMutex
	model string
}

// NewService wires the flow-control components around a provider client.
// audit may be nil when call auditing is disabled.
func NewService(cfg *models.Config, audit store.Store, logger *slog.Logger) (*Service, error) {
	s := &Service{
		provider: cfg.Provider,
		flow:     cfg.Flow,
		quota:    quota.NewManager(cfg.Flow.Quota),
		retrier:  retry.NewHandler(cfg.Flow.Retry),
		keys:     NewKeyManager(),
		audit:    audit,
		logger:   logger,
		model:    cfg.Provider.Model,
	}

	if cfg.Flow.RateLimit.Enabled {
		bucket, err := ratelimit.NewBucket(cfg.Flow.RateLimit.RequestsPerMinute, cfg.Flow.RateLimit.EffectiveBurst())
		if err != nil {
			return nil, fmt.Errorf("configure rate limiter: %w", err)
		}
		s.bucket = bucket
	}

	s.client = NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
	s.client.Timeout = cfg.Provider.Timeout

	if cfg.Provider.APIKey != "" {
		if err := s.keys.Register(primaryKeyID, cfg.Provider.APIKey, "google"); err != nil {
			logger.Warn("Provider API key failed format validation", "error", err)
		}
	}

	return s, nil
}

// Generate runs one guarded generation call.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*models.GenerateResponse, error) {
	start := time.Now()

	if req.Model == "" {
		req.Model = s.CurrentModel()
	}
	if req.Temperature == nil {
		t := s.provider.Temperature
		req.Temperature = &t
	}
	if req.MaxTokens == nil {
		mt := s.provider.MaxTokens
		req.MaxTokens = &mt
	}

	estimated := estimateTokens(req.Prompt, req.SystemPrompt)

	if s.bucket != nil {
		var err error
		if s.flow.RateLimit.WaitForCapacity {
			err = s.bucket.Acquire(ctx, 1)
		} else {
			err = s.bucket.TryAcquire(1)
		}
		if err != nil {
			s.logger.Warn("Generation rejected by rate limiter", "model", req.Model, "error", err)
			s.recordCall(ctx, req.Model, start, 0, nil, err)
			return nil, err
		}
	}

	if s.flow.Quota.Enabled {
		if err := s.quota.CheckAndIncrement(estimated, 1); err != nil {
			s.logger.Warn("Generation rejected by quota", "model", req.Model, "error", err)
			s.recordCall(ctx, req.Model, start, 0, nil, err)
			return nil, err
		}
	}

	attempts := 0
	result, err := retry.Do(ctx, s.retrier, func(ctx context.Context) (*GenerateResult, error) {
		attempts++
		return s.client.Generate(ctx, &req)
	})
	if err != nil {
		s.logger.Error("Generation failed", "model", req.Model, "attempts", attempts, "error", err)
		s.recordCall(ctx, req.Model, start, attempts, nil, err)
		return nil, err
	}

	resp := &models.GenerateResponse{
		Text:             result.Text,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		Attempts:         attempts,
		Duration:         time.Since(start),
	}
	s.recordCall(ctx, req.Model, start, attempts, result, nil)
	return resp, nil
}

// BatchGenerate runs Generate for each prompt in order. A failing item does
// not fail the batch; its slot carries the error instead of text.
func (s *Service) BatchGenerate(ctx context.Context, prompts []string, systemPrompt string) *models.BatchGenerateResponse {
	resp := &models.BatchGenerateResponse{
		Results: make([]models.BatchResult, 0, len(prompts)),
	}
	for i, prompt := range prompts {
		s.logger.Debug("Processing batch item", "index", i+1, "total", len(prompts))
		out, err := s.Generate(ctx, GenerateRequest{Prompt: prompt, SystemPrompt: systemPrompt})
		if err != nil {
			s.logger.Error("Batch item failed", "index", i+1, "error", err)
			resp.Results = append(resp.Results, models.BatchResult{
				Error: err.Error(),
				Code:  ErrorCode(err),
			})
			continue
		}
		resp.Results = append(resp.Results, models.BatchResult{Text: out.Text})
	}
	return resp
}

// UsageStats reports quota consumption, running totals, and audit totals when
// a store is attached.
func (s *Service) UsageStats(ctx context.Context) models.UsageResponse {
	stats := s.quota.UsageStats()
	if s.audit != nil {
		totals, err := s.audit.Totals(ctx)
		if err != nil {
			s.logger.Warn("Failed to read audit totals", "error", err)
		} else {
			stats.Audit = &totals
		}
	}
	return stats
}

// RateLimitInfo reports the outbound bucket's state.
func (s *Service) RateLimitInfo() models.RateLimitInfoResponse {
	if s.bucket == nil {
		return models.RateLimitInfoResponse{
			Enabled: false,
			Limit:   s.flow.RateLimit.RequestsPerMinute,
		}
	}
	return models.RateLimitInfoResponse{
		Enabled:     true,
		CurrentRate: int(s.bucket.CurrentRate()),
		Limit:       s.bucket.Limit(),
	}
}

// RetryHistory returns the recorded failed attempts across all calls.
func (s *Service) RetryHistory() models.RetryHistoryResponse {
	history := s.retrier.History()
	resp := models.RetryHistoryResponse{
		Attempts: make([]models.RetryAttemptInfo, 0, len(history)),
		Count:    len(history),
	}
	for _, a := range history {
		resp.Attempts = append(resp.Attempts, models.RetryAttemptInfo{
			Attempt:   a.Attempt,
			Timestamp: a.Timestamp,
			Kind:      a.Kind,
			Message:   a.Message,
		})
	}
	return resp
}

// ClearRetryHistory drops the recorded attempts.
func (s *Service) ClearRetryHistory() {
	s.retrier.ClearHistory()
}

// ResetFlow restores a full bucket and zeroed quota windows. Intended for
// manual recovery, not routine operation.
func (s *Service) ResetFlow() {
	if s.bucket != nil {
		s.bucket.Reset()
	}
	s.quota.Reset()
	s.logger.Info("Flow-control state reset")
}

// CurrentModel returns the active model name.
func (s *Service) CurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SwitchModel changes the active model. The name must be one of the
// configured default, flash, or pro models.
func (s *Service) SwitchModel(model string) error {
	if !s.validModel(model) {
		return fmt.Errorf("unknown model %q", model)
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	s.logger.Info("Switched model", "model", model)
	return nil
}

// UseFlash switches to the configured flash model.
func (s *Service) UseFlash() error {
	return s.SwitchModel(s.provider.FlashModel)
}

// UsePro switches to the configured pro model.
func (s *Service) UsePro() error {
	return s.SwitchModel(s.provider.ProModel)
}

func (s *Service) validModel(model string) bool {
	switch model {
	case s.provider.Model, s.provider.FlashModel, s.provider.ProModel:
		return model != ""
	}
	return false
}

// RotateKey replaces the provider credential for all subsequent calls.
func (s *Service) RotateKey(newKey string) error {
	if err := s.keys.Rotate(primaryKeyID, newKey); err != nil {
		return err
	}
	s.client.SetAPIKey(newKey)
	s.logger.Info("Provider API key rotated")
	return nil
}

// KeyRotationDue reports whether the provider key is past its rotation
// interval.
func (s *Service) KeyRotationDue() bool {
	return s.keys.NeedsRotation()
}

// RecentCalls returns the newest audited call records, up to limit.
func (s *Service) RecentCalls(ctx context.Context, limit int) ([]models.CallRecord, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.RecentCalls(ctx, limit)
}

// recordCall writes the call outcome to the audit store, when attached.
func (s *Service) recordCall(ctx context.Context, model string, start time.Time, attempts int, result *GenerateResult, callErr error) {
	if s.audit == nil {
		return
	}
	rec := models.CallRecord{
		ID:        uuid.NewString(),
		Model:     model,
		Status:    models.CallStatusOK,
		Attempts:  attempts,
		Duration:  time.Since(start),
		CreatedAt: start,
	}
	if callErr != nil {
		rec.Status = models.CallStatusError
		rec.ErrorKind = errorKind(callErr)
	} else if result != nil {
		rec.PromptTokens = result.PromptTokens
		rec.CompletionTokens = result.CompletionTokens
	}
	if err := s.audit.RecordCall(ctx, rec); err != nil {
		s.logger.Warn("Failed to write audit record", "error", err)
	}
}

// errorKind labels a failed call for the audit log.
func errorKind(err error) string {
	var rlErr *ratelimit.Error
	var qErr *quota.Error
	var apiErr *APIError
	switch {
	case errors.As(err, &rlErr):
		return "rate_limited"
	case errors.As(err, &qErr):
		return "quota_" + qErr.Scope
	case errors.As(err, &apiErr):
		return apiErr.RetryKind()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return retry.KindTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			return retry.KindConnection
		}
		return "error"
	}
}

// ErrorCode maps a generation error to the machine-readable API error codes.
func ErrorCode(err error) string {
	var rlErr *ratelimit.Error
	var qErr *quota.Error
	var apiErr *APIError
	switch {
	case errors.As(err, &rlErr):
		return models.ErrorCodeRateLimited
	case errors.As(err, &qErr):
		return models.ErrorCodeQuotaExceeded
	case errors.As(err, &apiErr):
		return models.ErrorCodeUpstreamError
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrorCodeUpstreamTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return models.ErrorCodeUpstreamTimeout
		}
		return models.ErrorCodeUpstreamError
	}
	return models.ErrorCodeInternalError
}

// estimateTokens approximates prompt token usage for quota pre-flight with a
// four-characters-per-token heuristic. Actual usage from the provider is
// recorded in the audit log, not charged back to the quota.
func estimateTokens(prompt, systemPrompt string) int {
	n := (len(prompt) + len(systemPrompt)) / 4
	if n < 1 {
		n = 1
	}
	return n
}

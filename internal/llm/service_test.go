package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmgate/internal/models"
	"llmgate/internal/quota"
	"llmgate/internal/ratelimit"
	"llmgate/internal/store"
)

// fakeProvider is an httptest server scripted with per-call status codes; 200
// entries answer with a canned generation response.
func fakeProvider(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		status := http.StatusOK
		if n < len(statuses) {
			status = statuses[n]
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error": "scripted failure"}`))
			return
		}
		json.NewEncoder(w).Encode(generateOKResponse("generated text"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func serviceConfig(baseURL string) *models.Config {
	cfg := models.NewDefaultConfig()
	cfg.Provider.BaseURL = baseURL
	cfg.Provider.APIKey = testAPIKey
	cfg.Flow.Retry.InitialDelay = time.Millisecond
	cfg.Flow.Retry.MaxWait = 10 * time.Millisecond
	cfg.Flow.Retry.Jitter = false
	return cfg
}

func newTestService(t *testing.T, cfg *models.Config, audit store.Store) *Service {
	t.Helper()
	svc, err := NewService(cfg, audit, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return svc
}

func TestService_Generate_Success(t *testing.T) {
	srv, calls := fakeProvider(t)
	audit := store.NewMemoryStore(10)
	svc := newTestService(t, serviceConfig(srv.URL), audit)

	resp, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "generated text", resp.Text)
	assert.Equal(t, "gemini-1.5-flash", resp.Model)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 34, resp.CompletionTokens)
	assert.Equal(t, int32(1), calls.Load())

	// Quota charged once, bucket grant visible in the current rate
	stats := svc.UsageStats(context.Background())
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, 1, stats.Minute.Requests)
	assert.Equal(t, 1, svc.RateLimitInfo().CurrentRate)

	// Audit record written
	recent, err := svc.RecentCalls(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.CallStatusOK, recent[0].Status)
	assert.Equal(t, 1, recent[0].Attempts)
}

func TestService_Generate_RateLimitRejection(t *testing.T) {
	srv, calls := fakeProvider(t)
	cfg := serviceConfig(srv.URL)
	cfg.Flow.RateLimit.RequestsPerMinute = 1
	cfg.Flow.RateLimit.BurstSize = 1
	svc := newTestService(t, cfg, nil)

	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "one"})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "two"})
	require.Error(t, err)

	var rlErr *ratelimit.Error
	require.ErrorAs(t, err, &rlErr, "rejection must surface as the bucket's error")
	assert.Greater(t, rlErr.RetryAfter, time.Duration(0))

	// Pre-flight rejection: the provider was never called and no retry ran
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, svc.RetryHistory().Count)
}

func TestService_Generate_QuotaRejection(t *testing.T) {
	srv, calls := fakeProvider(t)
	cfg := serviceConfig(srv.URL)
	cfg.Flow.Quota.RequestsPerMinute = 1
	svc := newTestService(t, cfg, nil)

	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "one"})
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "two"})
	require.Error(t, err)

	var qErr *quota.Error
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, quota.ScopeMinute, qErr.Scope)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, svc.RetryHistory().Count)

	// The rejected call must not have charged the quota
	assert.Equal(t, int64(1), svc.UsageStats(context.Background()).TotalRequests)
}

func TestService_Generate_RetriesTransientFailures(t *testing.T) {
	srv, calls := fakeProvider(t, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	svc := newTestService(t, serviceConfig(srv.URL), nil)

	resp, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "generated text", resp.Text)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), calls.Load())

	history := svc.RetryHistory()
	require.Equal(t, 2, history.Count)
	assert.Equal(t, "service_unavailable", history.Attempts[0].Kind)
}

func TestService_Generate_FatalErrorNotRetried(t *testing.T) {
	srv, calls := fakeProvider(t, http.StatusUnauthorized)
	audit := store.NewMemoryStore(10)
	svc := newTestService(t, serviceConfig(srv.URL), audit)

	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr, "provider error must propagate unwrapped")
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())

	recent, err := svc.RecentCalls(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.CallStatusError, recent[0].Status)
	assert.Equal(t, "fatal", recent[0].ErrorKind)
}

func TestService_Generate_RetriesExhausted(t *testing.T) {
	cfg := serviceConfig("")
	statuses := make([]int, cfg.Flow.Retry.MaxRetries+1)
	for i := range statuses {
		statuses[i] = http.StatusBadGateway
	}
	srv, calls := fakeProvider(t, statuses...)
	cfg.Provider.BaseURL = srv.URL
	svc := newTestService(t, cfg, nil)

	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, int32(cfg.Flow.Retry.MaxRetries+1), calls.Load())
}

func TestService_BatchGenerate_PartialFailure(t *testing.T) {
	srv, _ := fakeProvider(t, http.StatusOK, http.StatusUnauthorized)
	svc := newTestService(t, serviceConfig(srv.URL), nil)

	resp := svc.BatchGenerate(context.Background(), []string{"first", "second"}, "")
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "generated text", resp.Results[0].Text)
	assert.Empty(t, resp.Results[0].Error)

	assert.Empty(t, resp.Results[1].Text)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.Equal(t, models.ErrorCodeUpstreamError, resp.Results[1].Code)
}

func TestService_ModelSwitching(t *testing.T) {
	srv, _ := fakeProvider(t)
	svc := newTestService(t, serviceConfig(srv.URL), nil)

	assert.Equal(t, "gemini-1.5-flash", svc.CurrentModel())

	require.NoError(t, svc.UsePro())
	assert.Equal(t, "gemini-pro", svc.CurrentModel())

	require.NoError(t, svc.UseFlash())
	assert.Equal(t, "gemini-1.5-flash", svc.CurrentModel())

	err := svc.SwitchModel("gpt-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")
	assert.Equal(t, "gemini-1.5-flash", svc.CurrentModel())
}

func TestService_RotateKey(t *testing.T) {
	srv, _ := fakeProvider(t)
	svc := newTestService(t, serviceConfig(srv.URL), nil)

	require.NoError(t, svc.RotateKey("rotated-key-9876543210"))
	assert.Equal(t, "rotated-key-9876543210", svc.client.currentKey())

	assert.Error(t, svc.RotateKey("short"))
}

func TestService_ClearRetryHistory(t *testing.T) {
	srv, _ := fakeProvider(t, http.StatusServiceUnavailable)
	svc := newTestService(t, serviceConfig(srv.URL), nil)

	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)
	require.Equal(t, 1, svc.RetryHistory().Count)

	svc.ClearRetryHistory()
	assert.Equal(t, 0, svc.RetryHistory().Count)
}

func TestService_ResetFlow(t *testing.T) {
	srv, _ := fakeProvider(t)
	cfg := serviceConfig(srv.URL)
	cfg.Flow.RateLimit.RequestsPerMinute = 1
	cfg.Flow.RateLimit.BurstSize = 1
	cfg.Flow.Quota.RequestsPerMinute = 1
	svc := newTestService(t, cfg, nil)

	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "one"})
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "two"})
	require.Error(t, err)

	svc.ResetFlow()

	_, err = svc.Generate(context.Background(), GenerateRequest{Prompt: "three"})
	assert.NoError(t, err)
}

func TestService_UsageStats_IncludesAuditTotals(t *testing.T) {
	srv, _ := fakeProvider(t)
	audit := store.NewMemoryStore(10)
	svc := newTestService(t, serviceConfig(srv.URL), audit)

	_, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	require.NoError(t, err)

	stats := svc.UsageStats(context.Background())
	require.NotNil(t, stats.Audit)
	assert.Equal(t, int64(1), stats.Audit.Calls)
	assert.Equal(t, int64(0), stats.Audit.Errors)
	assert.Equal(t, int64(12), stats.Audit.PromptTokens)
}

func TestService_RateLimitInfo_Disabled(t *testing.T) {
	srv, _ := fakeProvider(t)
	cfg := serviceConfig(srv.URL)
	cfg.Flow.RateLimit.Enabled = false
	svc := newTestService(t, cfg, nil)

	info := svc.RateLimitInfo()
	assert.False(t, info.Enabled)
	assert.Equal(t, 0, info.CurrentRate)
}

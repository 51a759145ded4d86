package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmgate/internal/models"
)

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func TestAdmin_RequiresToken(t *testing.T) {
	srv := fakeProvider(t)
	router, _ := newTestRouter(t, testConfig(srv.URL))

	// No token
	rec := doJSON(t, router, "GET", "/api/v1/admin/model", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, models.ErrorCodeUnauthorized, decodeError(t, rec).Code)

	// Wrong token
	rec = doJSON(t, router, "GET", "/api/v1/admin/model", nil,
		map[string]string{"Authorization": "Bearer wrong-token"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct token
	rec = doJSON(t, router, "GET", "/api/v1/admin/model", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_DisabledWithoutConfiguredToken(t *testing.T) {
	srv := fakeProvider(t)
	cfg := testConfig(srv.URL)
	cfg.Security.AdminToken = ""
	router, _ := newTestRouter(t, cfg)

	rec := doJSON(t, router, "GET", "/api/v1/admin/model", nil,
		map[string]string{"Authorization": "Bearer anything"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, models.ErrorCodeForbidden, decodeError(t, rec).Code)
}

func TestAdmin_SwitchModel(t *testing.T) {
	srv := fakeProvider(t)
	cfg := testConfig(srv.URL)
	router, svc := newTestRouter(t, cfg)

	rec := doJSON(t, router, "POST", "/api/v1/admin/model",
		models.SwitchModelRequest{Model: cfg.Provider.ProModel}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, cfg.Provider.ProModel, body["model"])
	assert.Equal(t, cfg.Provider.ProModel, svc.CurrentModel())
}

func TestAdmin_SwitchModel_UnknownModel(t *testing.T) {
	srv := fakeProvider(t)
	router, _ := newTestRouter(t, testConfig(srv.URL))

	rec := doJSON(t, router, "POST", "/api/v1/admin/model",
		models.SwitchModelRequest{Model: "gpt-4"}, adminHeaders())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, models.ErrorCodeValidation, decodeError(t, rec).Code)
}

func TestAdmin_RotateKey(t *testing.T) {
	srv := fakeProvider(t)
	router, _ := newTestRouter(t, testConfig(srv.URL))

	rec := doJSON(t, router, "POST", "/api/v1/admin/keys/rotate",
		models.RotateKeyRequest{APIKey: "replacement-key-0123456789"}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	// Calls still succeed with the new key.
	rec = doJSON(t, router, "POST", "/api/v1/generate", models.GenerateRequest{Prompt: "hello"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_RotateKey_RejectsShortKey(t *testing.T) {
	srv := fakeProvider(t)
	router, _ := newTestRouter(t, testConfig(srv.URL))

	rec := doJSON(t, router, "POST", "/api/v1/admin/keys/rotate",
		models.RotateKeyRequest{APIKey: "short"}, adminHeaders())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdmin_ResetFlow(t *testing.T) {
	srv := fakeProvider(t)
	cfg := testConfig(srv.URL)
	cfg.Flow.Quota.RequestsPerMinute = 1
	router, _ := newTestRouter(t, cfg)

	rec := doJSON(t, router, "POST", "/api/v1/generate", models.GenerateRequest{Prompt: "one"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, "POST", "/api/v1/generate", models.GenerateRequest{Prompt: "two"}, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/admin/flow/reset", nil, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/generate", models.GenerateRequest{Prompt: "three"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"llmgate/internal/models"
)

// Admin endpoints mutate service state at runtime and are guarded by
// adminAuthMiddleware. Every operation is logged with the client address
// for audit purposes.

// RotateKey replaces the provider API key without a restart.
// POST /api/v1/admin/keys/rotate
func (h *Handlers) RotateKey(w http.ResponseWriter, r *http.Request) {
	var req models.RotateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, r, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if err := h.service.RotateKey(req.APIKey); err != nil {
		slog.Warn("Provider key rotation rejected", "remote_addr", r.RemoteAddr, "error", err)
		h.writeErrorResponse(w, r, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	slog.Info("Provider key rotated", "remote_addr", r.RemoteAddr)
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "rotated"})
}

// GetModel reports the active model.
// GET /api/v1/admin/model
func (h *Handlers) GetModel(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"model": h.service.CurrentModel()})
}

// SwitchModel changes the active model for subsequent calls. Only models
// named in the provider configuration are accepted.
// POST /api/v1/admin/model
func (h *Handlers) SwitchModel(w http.ResponseWriter, r *http.Request) {
	var req models.SwitchModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, r, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if err := h.service.SwitchModel(req.Model); err != nil {
		h.writeErrorResponse(w, r, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	slog.Info("Model switched", "model", req.Model, "remote_addr", r.RemoteAddr)
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"model": h.service.CurrentModel()})
}

// ResetFlow restores the rate limiter and quota windows to their initial
// state. Intended for operators after changing limits or clearing an
// incident, not for routine traffic.
// POST /api/v1/admin/flow/reset
func (h *Handlers) ResetFlow(w http.ResponseWriter, r *http.Request) {
	h.service.ResetFlow()
	slog.Info("Flow control state reset", "remote_addr", r.RemoteAddr)
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "reset"})
}

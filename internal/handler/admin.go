package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/echoendpoint/echoendpoint/internal/respond"
	"github.com/echoendpoint/echoendpoint/internal/store"
)

const adminKeyHeader = "x-api-key"

// requireAdmin gates the response-config API. With no key configured
// the API is disabled outright; a missing or wrong key is unauthorized.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.adminKey == "" {
		writeError(w, http.StatusForbidden, "Admin API disabled")
		return false
	}
	if r.Header.Get(adminKeyHeader) != h.adminKey {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

func (h *Handler) GetResponseConfig(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	token := chi.URLParam(r, "token")
	cfg, err := h.Store.GetResponseConfig(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Config not found")
		return
	}
	if err != nil {
		h.logger.Error("get response config", "error", err)
		writeError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}

	var body json.RawMessage
	if err := json.Unmarshal([]byte(cfg.BodyJSON), &body); err != nil {
		writeError(w, http.StatusInternalServerError, "Invalid stored config")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":        token,
		"status_code":  cfg.StatusCode,
		"body":         body,
		"content_type": cfg.ContentType,
		"updated_at":   cfg.UpdatedAt,
	})
}

func (h *Handler) SetResponseConfig(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var payload struct {
		StatusCode *int            `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if payload.StatusCode == nil || !respond.ValidStatus(*payload.StatusCode) {
		writeError(w, http.StatusBadRequest, "Invalid status_code")
		return
	}
	if len(payload.Body) == 0 || string(payload.Body) == "null" {
		writeError(w, http.StatusBadRequest, "Missing body")
		return
	}

	updatedAt := time.Now().UTC()
	cfg := &store.ResponseConfig{
		Token:       chi.URLParam(r, "token"),
		StatusCode:  *payload.StatusCode,
		BodyJSON:    string(payload.Body),
		ContentType: "application/json",
		UpdatedAt:   updatedAt,
	}
	if err := h.Store.UpsertResponseConfig(r.Context(), cfg); err != nil {
		h.logger.Error("upsert response config", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store config")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated_at": updatedAt})
}

func (h *Handler) DeleteResponseConfig(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	token := chi.URLParam(r, "token")
	if err := h.Store.DeleteResponseConfig(r.Context(), token); err != nil {
		h.logger.Error("delete response config", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete config")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

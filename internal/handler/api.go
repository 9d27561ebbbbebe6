package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/echoendpoint/echoendpoint/internal/store"
)

const defaultListLimit = 200

func (h *Handler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.Store.CreateEndpoint(r.Context())
	if err != nil {
		h.logger.Error("create endpoint", "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to create endpoint")
		return
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      endpoint.Token,
		"url":        fmt.Sprintf("%s://%s/wh/%s", scheme, r.Host, endpoint.Token),
		"created_at": endpoint.CreatedAt,
	})
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.lookupEndpoint(w, r)
	if !ok {
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	items, err := h.Store.ListRequests(r.Context(), endpoint.ID, limit, offset)
	if err != nil {
		h.logger.Error("list requests", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list requests")
		return
	}
	if items == nil {
		items = []*store.RequestSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) RequestDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	req, err := h.Store.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	if err != nil {
		h.logger.Error("get request", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch request")
		return
	}

	writeJSON(w, http.StatusOK, requestDetail(req))
}

func (h *Handler) ClearRequests(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.lookupEndpoint(w, r)
	if !ok {
		return
	}

	if err := h.Store.DeleteRequests(r.Context(), endpoint.ID); err != nil {
		h.logger.Error("clear requests", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear requests")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ExportRequests(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := h.lookupEndpoint(w, r)
	if !ok {
		return
	}

	reqs, err := h.Store.ExportRequests(r.Context(), endpoint.ID)
	if err != nil {
		h.logger.Error("export requests", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to export requests")
		return
	}

	items := make([]map[string]any, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, requestDetail(req))
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "requests-"+endpoint.Token+".json"))
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoint": map[string]any{
			"token":        endpoint.Token,
			"created_at":   endpoint.CreatedAt,
			"last_seen_at": endpoint.LastSeenAt,
		},
		"requests": items,
	})
}

// requestDetail is the full JSON projection of a capture, with the raw
// body carried as base64 rather than an embedded blob.
func requestDetail(req *store.Request) map[string]any {
	return map[string]any{
		"id":               req.ID,
		"endpoint_id":      req.EndpointID,
		"received_at":      req.ReceivedAt.Format(time.RFC3339Nano),
		"method":           req.Method,
		"path":             req.Path,
		"query":            req.Query,
		"headers_json":     req.HeadersJSON,
		"body_blob_base64": base64.StdEncoding.EncodeToString(req.Body),
		"body_text":        req.BodyText,
		"content_type":     req.ContentType,
		"remote_ip":        req.RemoteIP,
		"user_agent":       req.UserAgent,
		"truncated":        req.Truncated,
		"body_size":        req.BodySize,
	}
}

// lookupEndpoint resolves the token route param, writing the error
// response itself when the endpoint cannot be produced.
func (h *Handler) lookupEndpoint(w http.ResponseWriter, r *http.Request) (*store.Endpoint, bool) {
	token := chi.URLParam(r, "token")
	endpoint, err := h.Store.GetEndpointByToken(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("endpoint lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Lookup failed")
		return nil, false
	}
	return endpoint, true
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/echoendpoint/echoendpoint/internal/ingest"
)

// CaptureWebhook is the ingestion boundary: any method on /wh/{token}
// or below. It always answers — 404 for an unknown token, 429 when a
// rate limit rejects, otherwise the endpoint's configured response.
// The body stream is handed to the pipeline unread; rejected calls
// never buffer a payload.
func (h *Handler) CaptureWebhook(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing token")
		return
	}

	result, err := h.Pipeline.Ingest(r.Context(), ingest.IncomingRequest{
		Token:    token,
		Method:   r.Method,
		Path:     r.URL.Path,
		Query:    r.URL.RawQuery,
		Headers:  r.Header,
		Body:     r.Body,
		RemoteIP: clientIP(r),
	})
	if err != nil {
		h.logger.Error("ingest failed", "token", token, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to capture request")
		return
	}

	switch result.Outcome {
	case ingest.NotFound:
		writeError(w, http.StatusNotFound, "Unknown endpoint")
	case ingest.RateLimited:
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
	default:
		if r.Method == http.MethodHead {
			w.WriteHeader(result.StatusCode)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(result.StatusCode)
		w.Write(result.Body)
	}
}

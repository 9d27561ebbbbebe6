package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/echoendpoint/echoendpoint/internal/store"
)

// defaultHeartbeatInterval is how often an idle event stream emits a
// comment line so intermediaries keep the connection open.
const defaultHeartbeatInterval = 15 * time.Second

// Events streams capture notifications for one endpoint as server-sent
// events. The stream never ends on its own; it runs until the client or
// server closes the transport, and always unregisters its mailbox on
// the way out.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := h.Store.GetEndpointByToken(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Endpoint not found")
			return
		}
		h.logger.Error("endpoint lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// Register before the first flush: once the client holds response
	// headers its mailbox is guaranteed to be live.
	sub := h.Broadcaster.Subscribe(token)
	defer h.Broadcaster.Unsubscribe(token, sub)
	flusher.Flush()

	ticker := time.NewTicker(h.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case n := <-sub.C:
			data, err := json.Marshal(n)
			if err != nil {
				h.logger.Error("marshal notification", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: request_received\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

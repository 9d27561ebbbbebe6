package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/echoendpoint/echoendpoint/internal/store"
)

// WebSocket is the websocket variant of the live stream: each capture
// notification is sent as one JSON message, with pings on the same idle
// interval as the event stream.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
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

	// Register before the handshake completes so a connected client's
	// mailbox is guaranteed to be live.
	sub := h.Broadcaster.Subscribe(token)
	defer h.Broadcaster.Unsubscribe(token, sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close frames are processed; writes happen
	// only from this goroutine's select loop. A dead peer surfaces as a
	// read error and ends the session through done.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case n := <-sub.C:
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echoendpoint/echoendpoint/internal/ingest"
	"github.com/echoendpoint/echoendpoint/internal/notify"
	"github.com/echoendpoint/echoendpoint/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	Store       store.Store
	Pipeline    *ingest.Pipeline
	Broadcaster *notify.Broadcaster

	// HeartbeatInterval is how often an idle live stream emits a
	// keep-alive. Tests shorten it to observe heartbeats quickly.
	HeartbeatInterval time.Duration

	adminKey string
	logger   *slog.Logger
}

func NewHandler(s store.Store, p *ingest.Pipeline, b *notify.Broadcaster, adminKey string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:             s,
		Pipeline:          p,
		Broadcaster:       b,
		HeartbeatInterval: defaultHeartbeatInterval,
		adminKey:          adminKey,
		logger:            logger.With("component", "handler"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientIP strips the port from the peer address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

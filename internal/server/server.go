// Package server owns the HTTP server lifecycle and route wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/echoendpoint/echoendpoint/internal/config"
	"github.com/echoendpoint/echoendpoint/internal/handler"
)

type Server struct {
	cfg    *config.Config
	server *http.Server
	logger *slog.Logger
}

func New(cfg *config.Config, h *handler.Handler) *Server {
	s := &Server{
		cfg:    cfg,
		logger: slog.With("component", "server"),
	}

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     routes(h),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func routes(h *handler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Request logging skips the capture and streaming routes: capture
	// traffic is recorded anyway and streams are long-lived.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/wh/") ||
				strings.HasPrefix(req.URL.Path, "/events/") ||
				strings.HasPrefix(req.URL.Path, "/ws/") {
				next.ServeHTTP(w, req)
			} else {
				middleware.Logger(next).ServeHTTP(w, req)
			}
		})
	})

	// Webhook receiver
	r.HandleFunc("/wh/{token}", h.CaptureWebhook)
	r.HandleFunc("/wh/{token}/*", h.CaptureWebhook)

	// Live updates
	r.Get("/events/{token}", h.Events)
	r.Get("/ws/{token}", h.WebSocket)

	// Capture API
	r.Post("/api/endpoints", h.CreateEndpoint)
	r.Get("/api/endpoints/{token}/requests", h.ListRequests)
	r.Post("/api/endpoints/{token}/clear", h.ClearRequests)
	r.Get("/api/endpoints/{token}/export", h.ExportRequests)
	r.Get("/api/requests/{requestID}", h.RequestDetail)

	// Response config admin
	r.Get("/admin/webhook-response/{token}", h.GetResponseConfig)
	r.Put("/admin/webhook-response/{token}", h.SetResponseConfig)
	r.Delete("/admin/webhook-response/{token}", h.DeleteResponseConfig)

	return r
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

func (s *Server) Shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

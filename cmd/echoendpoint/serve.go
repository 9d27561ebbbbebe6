package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/echoendpoint/echoendpoint/internal/config"
	"github.com/echoendpoint/echoendpoint/internal/handler"
	"github.com/echoendpoint/echoendpoint/internal/ingest"
	"github.com/echoendpoint/echoendpoint/internal/notify"
	"github.com/echoendpoint/echoendpoint/internal/ratelimit"
	"github.com/echoendpoint/echoendpoint/internal/respond"
	"github.com/echoendpoint/echoendpoint/internal/server"
	"github.com/echoendpoint/echoendpoint/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "Bind host")
	serveCmd.Flags().IntP("port", "p", 0, "Bind port")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	broadcaster := notify.NewBroadcaster()
	ipLimiter := ratelimit.New(cfg.Limits.IPPerWindow, cfg.Limits.Window)
	tokenLimiter := ratelimit.New(cfg.Limits.TokenPerWindow, cfg.Limits.Window)
	resolver := respond.NewResolver(s)

	pipeline := ingest.NewPipeline(s, s, ipLimiter, tokenLimiter, broadcaster, resolver, logger)
	h := handler.NewHandler(s, pipeline, broadcaster, cfg.Admin.APIKey, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, h).Start(ctx)
}

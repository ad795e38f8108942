// Package main provides the HTTP server for research radar.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/raphaelgruber/research-radar/internal/api"
	"github.com/raphaelgruber/research-radar/internal/config"
	"github.com/raphaelgruber/research-radar/internal/service"
)

func main() {
	addr := flag.String("addr", "", "listen address (default RADAR_HTTP_ADDR)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger, cleanup := config.SetupLogger(cfg)
	defer func() { _ = cleanup() }()

	if *addr == "" {
		*addr = cfg.HTTPAddr
	}
	logger.Info("starting radar-server",
		"addr", *addr,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
		"history", cfg.HistoryEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	radar, err := service.Build(buildCtx, cfg)
	cancel()
	if err != nil {
		logger.Error("failed to build radar", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := radar.Close(context.Background()); err != nil {
			logger.Error("failed to close radar", "error", err)
		}
	}()

	if err := api.Serve(ctx, radar, cfg, *addr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

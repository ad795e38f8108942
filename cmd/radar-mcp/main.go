// Package main provides the entry point for the research radar MCP server.
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
	"github.com/raphaelgruber/research-radar/internal/config"
	"github.com/raphaelgruber/research-radar/internal/server"
	"github.com/raphaelgruber/research-radar/internal/service"
	"github.com/raphaelgruber/research-radar/internal/tools"
)

const version = "0.1.0"

func main() {
	sse := flag.Bool("sse", false, "serve MCP over HTTP+SSE on RADAR_MCP_ADDR instead of stdio")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg)
	defer func() { _ = cleanup() }()

	logger.Info("radar-mcp starting",
		"version", version,
		"llm_provider", cfg.LLMProvider,
		"embed_model", cfg.EmbedModel,
		"sse", *sse,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	buildCtx, buildCancel := context.WithTimeout(ctx, 30*time.Second)
	radar, err := service.Build(buildCtx, cfg)
	buildCancel()
	if err != nil {
		logger.Error("failed to build radar", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing radar")
		_ = radar.Close(context.Background())
	}()

	srv := server.New(version, logger)
	srv.Setup(0)

	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{
		Radar:  radar,
		Logger: logger,
	})

	logger.Info("server ready, awaiting connections")

	if *sse {
		err = srv.RunSSE(ctx, cfg.MCPAddr)
	} else {
		err = srv.Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

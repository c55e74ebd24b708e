package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apresai/summit/internal/config"
	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/mcpserver"
	"github.com/apresai/summit/internal/observability"
)

const version = "1.0.0"

func main() {
	logger := observability.InitLogger("info")

	logger.Info("Summit MCP Server starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Bootstrap(ctx, logger)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.InitLogger(cfg.LogLevel)

	tp, err := observability.InitTracer(ctx, "summit-mcp", version, cfg.Environment)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	rt, err := kiosk.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to build kiosk", "error", err)
		os.Exit(1)
	}
	go rt.Service.RunSweeper(ctx, time.Minute)

	srv := mcpserver.New(rt.Service, mcpserver.Config{Port: cfg.MCPPort, Version: version, Token: cfg.MCPToken}, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

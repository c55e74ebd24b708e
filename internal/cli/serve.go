package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/apresai/summit/internal/httpapi"
	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/mcpserver"
	"github.com/apresai/summit/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk HTTP API (and MCP server) until interrupted",
	RunE:  runServe,
}

var (
	flagHTTPAddr string
	flagMCPPort  int
	flagNoMCP    bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagHTTPAddr, "addr", "", "HTTP listen address (overrides SUMMIT_HTTP_ADDR)")
	serveCmd.Flags().IntVar(&flagMCPPort, "mcp-port", 0, "MCP server port (overrides SUMMIT_MCP_PORT)")
	serveCmd.Flags().BoolVar(&flagNoMCP, "no-mcp", false, "Do not start the MCP server")
}

const sweepInterval = time.Minute

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if flagHTTPAddr != "" {
		cfg.HTTPAddr = flagHTTPAddr
	}
	if flagMCPPort != 0 {
		cfg.MCPPort = flagMCPPort
	}

	tp, err := observability.InitTracer(ctx, "summit", Version, cfg.Environment)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	rt, err := kiosk.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	opts := httpapi.Options{
		AskRate:  cfg.AskRate,
		Provider: rt.Provider,
		Version:  Version,
		Logger:   logger,
	}
	if rt.Leaderboard != nil {
		opts.Leaderboard = rt.Leaderboard
	}
	api := httpapi.New(rt.Service, opts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Run(gctx, cfg.HTTPAddr) })
	if !flagNoMCP {
		mcp := mcpserver.New(rt.Service, mcpserver.Config{Port: cfg.MCPPort, Version: Version, Token: cfg.MCPToken}, logger)
		g.Go(func() error { return mcp.Run(gctx) })
	}
	g.Go(func() error {
		rt.Service.RunSweeper(gctx, sweepInterval)
		return nil
	})
	return g.Wait()
}

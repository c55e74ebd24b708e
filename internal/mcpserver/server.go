package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/summit/internal/kiosk"
)

// Config holds server configuration.
type Config struct {
	Port    int
	Version string
	// Token, when set, must be presented as a bearer token.
	Token string
}

// Server exposes kiosk sessions as MCP tools.
type Server struct {
	cfg      Config
	mcp      *server.MCPServer
	handlers *Handlers
	handler  http.Handler
	log      *slog.Logger
}

// New creates and configures the MCP server.
func New(svc *kiosk.Service, cfg Config, logger *slog.Logger) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	handlers := NewHandlers(svc, logger)

	mcpServer := server.NewMCPServer(
		"summit",
		cfg.Version,
		server.WithToolCapabilities(true),
	)
	tools := ToolDefs()
	mcpServer.AddTool(tools[0], handlers.HandleListLeaders)
	mcpServer.AddTool(tools[1], handlers.HandleStartSession)
	mcpServer.AddTool(tools[2], handlers.HandleSelectLeader)
	mcpServer.AddTool(tools[3], handlers.HandleAskLeader)
	mcpServer.AddTool(tools[4], handlers.HandleGetProgress)
	mcpServer.AddTool(tools[5], handlers.HandleEndSession)

	httpServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithStateLess(true), // kiosk session ids travel as tool arguments
	)
	mux := http.NewServeMux()
	mux.Handle("/mcp", newTokenGate(cfg.Token).wrap(httpServer))

	return &Server{
		cfg:      cfg,
		mcp:      mcpServer,
		handlers: handlers,
		handler:  mux,
		log:      logger,
	}
}

// Handler serves the streamable HTTP endpoint at /mcp.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("Starting MCP server", "addr", addr, "auth", s.cfg.Token != "")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mcp server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 8*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

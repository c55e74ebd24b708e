// Package httpapi exposes the kiosk as JSON over HTTP for the browser front
// end.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/apresai/summit/internal/archive"
	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/observability"
)

// Leaderboard lists top visits; *archive.Store satisfies it.
type Leaderboard interface {
	Leaderboard(ctx context.Context, limit int) ([]archive.VisitItem, error)
}

// Options tune the server.
type Options struct {
	// AskRate is the number of asks per minute each session may make.
	// Zero disables limiting.
	AskRate float64
	// Leaderboard is nil when no archive is configured.
	Leaderboard Leaderboard
	// Provider is reported on the health endpoint.
	Provider string
	Version  string
	Logger   *slog.Logger
}

// Server serves the kiosk API.
type Server struct {
	svc     *kiosk.Service
	opts    Options
	limits  *limiters
	log     *slog.Logger
	handler http.Handler
}

func New(svc *kiosk.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		limits: newLimiters(opts.AskRate),
		log:    opts.Logger,
	}
	s.handler = otelhttp.NewHandler(s.logRequests(s.routes()), "summit-http")
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/leaders", s.handleLeaders)
	mux.HandleFunc("GET /api/questions", s.handleQuestions)
	mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("POST /api/sessions", s.handleStart)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSnapshot)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleEnd)
	mux.HandleFunc("POST /api/sessions/{id}/leader", s.handleSelect)
	mux.HandleFunc("POST /api/sessions/{id}/back", s.handleBack)
	mux.HandleFunc("POST /api/sessions/{id}/ask", s.handleAsk)
	mux.HandleFunc("GET /api/sessions/{id}/progress", s.handleProgress)
	mux.HandleFunc("POST /api/avatar", s.handleAvatar)
	return mux
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneLimiters(ctx, limiterPruneInterval)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("HTTP API listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

const limiterPruneInterval = time.Minute

// pruneLimiters drops rate buckets of sessions the sweeper has evicted.
func (s *Server) pruneLimiters(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dropStaleLimiters()
		}
	}
}

func (s *Server) dropStaleLimiters() int {
	n := s.limits.prune(func(sid string) bool {
		_, err := s.svc.Snapshot(sid)
		return err == nil
	})
	if n > 0 {
		s.log.Debug("Dropped rate limiters for ended sessions", "count", n)
	}
	return n
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.InfoContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

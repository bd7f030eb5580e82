// Package server exposes the replay engine over HTTP and WebSocket:
// run history, value series, audit trails, live progress, and a trigger
// endpoint for starting new replays.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quantfall/revival/internal/domain"
	"github.com/quantfall/revival/internal/server/handler"
	"github.com/quantfall/revival/internal/server/middleware"
	"github.com/quantfall/revival/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimitPerMin int    // if zero or no limiter is wired, rate limiting is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Runs       *handler.RunHandler
	Replay     *handler.ReplayHandler
	Strategies *handler.StrategyHandler
	Archive    *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API for the replay engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. The limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Run endpoints.
	mux.HandleFunc("GET /api/runs", handlers.Runs.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", handlers.Runs.GetRun)
	mux.HandleFunc("GET /api/runs/{id}/values", handlers.Runs.GetValues)
	mux.HandleFunc("GET /api/runs/{id}/events", handlers.Runs.GetEvents)
	mux.HandleFunc("GET /api/runs/{id}/progress", handlers.Runs.GetProgress)

	// Replay trigger endpoint.
	if handlers.Replay != nil {
		mux.HandleFunc("POST /api/runs", handlers.Replay.TriggerRun)
	}

	// Archived artifact endpoints.
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/runs/{id}/archive/values", handlers.Archive.GetValues)
		mux.HandleFunc("GET /api/runs/{id}/archive/events", handlers.Archive.GetEvents)
		mux.HandleFunc("DELETE /api/runs/{id}/archive", handlers.Archive.DeleteArchive)
	}

	// Strategy catalog endpoint.
	mux.HandleFunc("GET /api/strategies", handlers.Strategies.ListStrategies)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

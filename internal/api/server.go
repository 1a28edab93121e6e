// Package api exposes the diagnostics HTTP surface (health, channel state,
// recent logs) over chi + huma: a chi.Mux wrapped by humachi.New, with
// operations registered through huma.Register rather than raw handlers.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/onairstack/stagecast/internal/config"
)

// Server is the diagnostics HTTP server: a chi router carrying huma-typed
// operations for health, channel state, and recent logs.
type Server struct {
	cfg        config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer constructs a Server. version is surfaced in the OpenAPI spec.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(requestIDMiddleware)
	router.Use(chimiddleware.Recoverer)
	router.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("stagecast API", version)
	humaConfig.Info.Description = "Playout core diagnostics API"

	return &Server{
		cfg:    cfg,
		router: router,
		api:    humachi.New(router, humaConfig),
		logger: logger.With(slog.String("component", "api")),
	}
}

// API returns the huma.API instance for registering operations.
func (s *Server) API() huma.API { return s.api }

// Router returns the underlying chi router, for mounting non-huma handlers
// such as the HLS consumer's playlist/segment endpoints.
func (s *Server) Router() *chi.Mux { return s.router }

// Start begins serving. It blocks until the server stops or errors.
func (s *Server) Start() error {
	addr := s.cfg.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("starting diagnostics API", slog.String("address", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting diagnostics API: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting up to cfg.ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// corsMiddleware allows the configured origins, sourced from
// ServerConfig.CORSOrigins rather than a fixed allow-all policy.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

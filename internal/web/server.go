// Package web provides the HTTP API of the inspection service: upload a
// delimited file, get back its detected configuration, counts and a window
// of rows, and optionally load it into Postgres.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/fileprocessor/internal/config"
	"github.com/JonMunkholm/fileprocessor/internal/core"
	"github.com/JonMunkholm/fileprocessor/internal/pgload"
	"github.com/JonMunkholm/fileprocessor/internal/web/middleware"
)

// Server is the HTTP server for the inspection service.
type Server struct {
	cfg     *config.Config
	limiter *core.Limiter
	db      pgload.DB
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. db may be nil, which disables loading.
func NewServer(cfg *config.Config, db pgload.DB) *Server {
	s := &Server{
		cfg:     cfg,
		limiter: core.NewLimiter(cfg.Inspect.MaxConcurrent, cfg.Inspect.MaxWaitTime),
		db:      db,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/inspect", s.handleInspect)
		r.Post("/load/{table}", s.handleLoad)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr, "load_enabled", s.db != nil)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight inspections,
// whose scratch files are removed as they finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status      string             `json:"status"`
	Inspections core.LimiterStatus `json:"inspections"`
	Database    string             `json:"database"`
}

// pinger is implemented by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Inspections: s.limiter.Status(),
		Database:    "disabled",
	}
	if s.db != nil {
		resp.Database = "enabled"
		if p, ok := s.db.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Database = "unreachable"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v as JSON with the given status. Encoding errors are
// only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

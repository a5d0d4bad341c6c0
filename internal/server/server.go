// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects storage, services, handlers,
// middleware and routes. It is the composition root, so every dependency is
// built in one place (New/setupRoutes) rather than scattered across packages.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB ─┬→ config.Settings (search switches)
//	                           ├→ permission.RosterPolicy
//	                           └→ service.UserSearchService → handler.SearchHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/roster-search/internal/auth"
	"github.com/sakif/roster-search/internal/config"
	"github.com/sakif/roster-search/internal/handler"
	"github.com/sakif/roster-search/internal/metrics"
	"github.com/sakif/roster-search/internal/middleware"
	"github.com/sakif/roster-search/internal/permission"
	sqliteRepo "github.com/sakif/roster-search/internal/repository/sqlite"
	"github.com/sakif/roster-search/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection; Start closes it on shutdown so the
// WAL is flushed and the file lock released.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
	settings *config.Settings
}

// New opens the database and wires the whole dependency chain.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` to keep it apart from the
// modernc.org/sqlite driver package.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	settings := config.NewSettings(cfg, db, logger)
	if err := settings.Load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		settings: settings,
	}
	s.setupRoutes(tokens)

	logger.Info("search settings",
		slog.Bool("full_complexity", settings.Flags().FullComplexity),
		slog.Bool("gist", settings.Flags().Substring),
		slog.Int("account_admins", len(cfg.AccountAdminIDs)),
	)
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// DB exposes the database, mainly for seeding in tests.
func (s *Server) DB() *sqliteRepo.DB { return s.db }

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET /healthz                                    → liveness + DB ping
// GET /metrics                                    → Prometheus exposition
// GET /api/v1/courses/{courseID}/search_users     → roster search   (auth)
// GET /api/v1/settings/{name}                     → read a switch   (auth, admin)
// PUT /api/v1/settings/{name}                     → change a switch (auth, admin)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", handler.HandleHealth(s.db, s.logger))
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	// Notice: handlers never touch the database directly, and the service
	// never touches HTTP.
	policy := permission.NewRosterPolicy(s.config.AccountAdminIDs)
	searchService := service.NewUserSearchService(
		s.db, policy, s.db, s.settings,
		metrics.NewSearchMetrics(s.registry),
		s.logger,
	)
	searchHandler := handler.NewSearchHandler(searchService, s.logger)
	settingsHandler := handler.NewSettingsHandler(s.settings, policy, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/courses/{courseID}/search_users", searchHandler.HandleSearchUsers)
		r.Get("/settings/{name}", settingsHandler.HandleGet)
		r.Put("/settings/{name}", settingsHandler.HandlePut)
	})
}

// Close releases the database. Start calls it on shutdown; tests call it directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

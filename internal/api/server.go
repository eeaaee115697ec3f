// Package api provides the HTTP server for the node read API.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/narvanalabs/lnsync/internal/api/handlers"
	"github.com/narvanalabs/lnsync/internal/api/health"
	"github.com/narvanalabs/lnsync/internal/api/middleware"
	"github.com/narvanalabs/lnsync/internal/auth"
	"github.com/narvanalabs/lnsync/internal/store"
	"github.com/narvanalabs/lnsync/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Syncer is the part of the synchronizer the HTTP surface depends on.
type Syncer interface {
	handlers.SyncTrigger
	health.SyncReporter
}

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	sync          Syncer
	auth          *auth.Service
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server. authSvc may be nil, in which case the
// admin routes are not mounted.
func NewServer(cfg *config.Config, st store.Store, sync Syncer, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:  st,
		sync:   sync,
		auth:   authSvc,
		config: cfg,
		logger: logger,
	}

	s.healthChecker = health.NewChecker(st, sync, Version)
	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.API.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.healthChecker.Handler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	docsHandler := handlers.NewDocsHandler(s.logger)
	r.Get("/api/docs/openapi.yaml", docsHandler.ServeOpenAPISpec)

	nodeHandler := handlers.NewNodeHandler(s.store, s.logger)
	r.Group(func(r chi.Router) {
		if s.config.API.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.config.API.RateLimit, time.Minute))
		}
		r.Get("/nodes", nodeHandler.List)
		r.Get("/nodes/{publicKey}", nodeHandler.Get)
	})

	if s.auth != nil && s.sync != nil {
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
		syncHandler := handlers.NewSyncHandler(s.sync, s.logger)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.RequireScope(auth.ScopeSyncTrigger))
			r.Post("/sync", syncHandler.Trigger)
		})
	} else {
		s.logger.Info("admin routes disabled, ADMIN_JWT_SECRET not set")
	}

	s.router = r
}

// Serve listens on the configured address until the server is shut down.
// A graceful shutdown returns nil.
func (s *Server) Serve() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr, "version", Version)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// HTTPServer returns the underlying http.Server for shutdown coordination.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}

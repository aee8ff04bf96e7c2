package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/photo-map/internal/config"
	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/kozaktomas/photo-map/internal/web/handlers"
	"github.com/kozaktomas/photo-map/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Deps are the components the HTTP surface drives.
type Deps struct {
	// BaseCtx outlives single requests; background ingestion and lookups run under it.
	BaseCtx  context.Context
	Store    *photo.Store
	Ingester handlers.Ingester
	Locator  handlers.LocationTrigger
	Previews handlers.PreviewSource
	Markers  handlers.MarkerSource
	Stream   *handlers.MapStream
	// Oracle is the name of the active geocoding oracle.
	Oracle   string
	Gatherer prometheus.Gatherer
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	if deps.BaseCtx == nil {
		deps.BaseCtx = context.Background()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		router: r,
		logger: logger.With().Str("component", "web").Logger(),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

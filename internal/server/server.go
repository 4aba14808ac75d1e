// Package server exposes the estimation pipeline over HTTP/JSON.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rshade/archcost/internal/config"
	"github.com/rshade/archcost/internal/estimate"
	"github.com/rshade/archcost/internal/generate"
	"github.com/rshade/archcost/internal/normalize"
	"github.com/rshade/archcost/internal/pricing"
	"github.com/rshade/archcost/internal/resource"
)

// ErrNoAPIKey is returned by New when no shared secret is configured.
var ErrNoAPIKey = errors.New("server: api key is required")

// APIKeyHeader carries the shared secret on authenticated routes.
const APIKeyHeader = "X-API-Key"

// maxBodyBytes bounds request bodies; IaC sources are the largest payloads.
const maxBodyBytes = 4 << 20

// Normalizer turns request input into billable items.
type Normalizer interface {
	Normalize(ctx context.Context, in normalize.Input) []resource.Item
}

// Estimator prices normalized items.
type Estimator interface {
	Price(ctx context.Context, items []resource.Item) estimate.Estimate
}

// Architect produces a diagram and IaC source for an application.
type Architect interface {
	Architecture(ctx context.Context, appName, prompt string) (generate.Artifacts, error)
}

// Deps are the collaborators behind the routes. Architect may be nil, in which
// case generation routes answer 500 and /estimate skips generation.
type Deps struct {
	Normalizer Normalizer
	Estimator  Estimator
	Catalog    pricing.Catalog
	Architect  Architect
}

// Server routes requests to the pipeline.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New creates a Server. It refuses an empty API key.
func New(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) (*Server, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "server").Logger(),
		mux:    http.NewServeMux(),
	}
	if s.cfg.CORS.AllowsAnyOrigin() {
		s.logger.Warn().Msg("CORS wildcard origin (*) is insecure; use specific origins in production")
	}
	s.logger.Debug().
		Strs("allowed_origins", s.cfg.CORS.AllowedOrigins).
		Int("max_age", s.cfg.CORS.MaxAge).
		Msg("CORS configuration applied")
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.Handle("POST /estimate", s.authed(s.handleEstimate))
	s.mux.Handle("GET /catalog", s.authed(s.handleCatalog))
	s.mux.Handle("POST /mcp/azure/diagram-tf", s.authed(s.handleAzureArchitecture))
	s.mux.Handle("GET /mcp/{provider}/diagram-tf", s.authed(s.handleMockArchitecture))
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.observe(s.cors(s.mux))
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully within the configured timeout. A listen failure is returned
// immediately.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("Shutdown failed")
			shutdownDone <- err
			return
		}
		shutdownDone <- nil
	}()

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Starting estimation server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownDone
}

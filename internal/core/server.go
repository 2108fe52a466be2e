// Package core is the HTTP chassis shared by every growcycle endpoint: the
// router, the middleware chain, response envelopes and the health check.
// Domain handlers live in internal/api/handlers and attach themselves
// through RouteRegistrars.
package core

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"growcycle/internal/config"
)

// MetricsCollector records request latency for the metrics middleware.
type MetricsCollector interface {
	RecordRequest(method, endpoint string, status int, duration time.Duration)
}

// RouteRegistrar mounts a group of routes on the router.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies of the HTTP layer.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe
	// RouteRegistrars are applied by MountRoutes after the global middleware.
	RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer builds a Server with an empty router. Callers attach probes and
// registrars, then call MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("core: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the root handler with response compression applied.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.router)
}

// Router exposes the underlying mux, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

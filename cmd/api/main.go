// Package main is the entry point for the growcycle API server.
//
// It loads the configuration, assembles the component graph, mounts the job
// trigger and lifecycle endpoints on the core chassis, and serves HTTP until
// SIGINT or SIGTERM, then drains in-flight requests.
package main

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

	"growcycle/internal/api/handlers"
	"growcycle/internal/app"
	"growcycle/internal/config"
	"growcycle/internal/core"
	"growcycle/internal/lifecycle"
	"growcycle/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stdout)
	logger.Info("growcycle API starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	comps, err := app.Build(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}
	defer comps.Close()

	deps := serverDeps{
		Runner:       comps.Runner,
		Cultivations: comps.Cultivations,
		Resolver:     comps.Resolver,
		Catalog:      comps.Resolver,
		Scorer:       comps.Scorer,
		Database:     comps.Pool,
	}
	// Assigned only when set so a nil pointer never becomes a non-nil interface.
	if comps.Metrics != nil {
		deps.Metrics = comps.Metrics
	}

	srv, err := newServer(cfg, deps, logger)
	if err != nil {
		return err
	}
	return runHTTPServer(srv, cfg, logger)
}

// serverDeps are the collaborators the HTTP surface needs. Database and
// Metrics are optional.
type serverDeps struct {
	Runner       handlers.JobRunner
	Cultivations handlers.CultivationReader
	Resolver     handlers.ProfileResolver
	Catalog      handlers.GeneticsCatalog
	Scorer       *lifecycle.Scorer
	Database     core.Pinger
	Metrics      core.MetricsCollector
}

// newServer builds the server and mounts every route.
func newServer(cfg *config.Config, deps serverDeps, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = deps.Metrics
	if deps.Database != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.PingProbe{ProbeName: "database", Target: deps.Database})
	}

	clock := types.RealClock{}
	jobs := handlers.NewJobsHandler(deps.Runner, clock, srv.Validator, logger)
	cultivations := handlers.NewCultivationHandler(
		deps.Cultivations,
		deps.Resolver,
		deps.Scorer,
		clock,
		srv.Validator,
		logger,
	)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		func(r chi.Router) { jobs.RegisterRoutes(r, srv.RequireTriggerSecret) },
		cultivations.RegisterRoutes,
		handlers.NewGeneticsHandler(deps.Catalog).RegisterRoutes,
	)
	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

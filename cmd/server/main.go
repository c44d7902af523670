// Package main is the entrypoint for the Incident Radar API server.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiranshivaraju/incidentradar/internal/api"
	"github.com/kiranshivaraju/incidentradar/internal/api/handler"
	mw "github.com/kiranshivaraju/incidentradar/internal/api/middleware"
	"github.com/kiranshivaraju/incidentradar/internal/api/response"
	"github.com/kiranshivaraju/incidentradar/internal/app"
	"github.com/kiranshivaraju/incidentradar/internal/cache"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Store, cache, retrieval corpora and the pipeline service
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.AuthDisabled {
		slog.Warn("API key authentication is disabled")
	}

	// 3. Build router with dependencies
	router := api.NewRouter(newDependencies(a))

	// 4. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // batches run every stage for every incident
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newDependencies(a *app.App) api.Dependencies {
	auth := mw.NewAuth(a.Store)
	if a.Config.Server.AuthDisabled {
		auth = mw.NewDisabledAuth()
	}
	svc := a.Service

	return api.Dependencies{
		Auth:      auth,
		RateLimit: mw.NewRateLimit(a.Cache, a.Config.Server.RateLimitPerMin),

		HealthHandler:  healthHandler(a.Store, a.Cache, a.Index),
		MetricsHandler: promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}),

		ProcessHandler:  handler.NewProcessHandler(svc),
		BriefingHandler: handler.NewBriefingHandler(svc),
		BatchHandler:    handler.NewBatchHandler(svc),
		ListRecords:     handler.NewListRecordsHandler(svc),
		GetRecord:       handler.NewGetRecordHandler(svc),
		SamplesHandler:  handler.NewSamplesHandler(svc),
		DemoHandler:     handler.NewDemoHandler(svc),

		StartBuildHandler:  handler.NewStartBuildHandler(svc),
		GetBuildHandler:    handler.NewGetBuildHandler(svc),
		LatestBuildHandler: handler.NewLatestBuildHandler(svc),
		BuildStatusHandler: handler.NewBuildStatusHandler(svc),

		CreateKeyHandler: handler.NewCreateKeyHandler(a.Store),
		ListKeysHandler:  handler.NewListKeysHandler(a.Store),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(a.Store),
	}
}

// backendReporter names the active retrieval backend.
type backendReporter interface {
	Backend() string
}

// healthHandler checks database and cache connectivity and reports which
// retrieval backend is serving.
func healthHandler(s store.Store, c cache.Cache, idx backendReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":    "ok",
			"services":  checks,
			"retrieval": idx.Backend(),
		})
	}
}

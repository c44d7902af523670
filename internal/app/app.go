// Package app assembles the triage service from configuration. The HTTP
// server and radarctl both start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/internal/cache"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/internal/embed"
	"github.com/kiranshivaraju/incidentradar/internal/pipeline"
	"github.com/kiranshivaraju/incidentradar/internal/retrieval"
	"github.com/kiranshivaraju/incidentradar/internal/store"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config   *config.Config
	Store    store.Store
	Cache    cache.Cache
	Index    *retrieval.Manager
	Registry *prometheus.Registry
	Metrics  *pipeline.Metrics
	Service  *pipeline.Service

	closers []func() error
}

// New connects the backing services and loads the retrieval corpora. Postgres
// and Redis are used when their URLs are set; otherwise in-memory stand-ins.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Store, err = a.openStore(ctx); err != nil {
		return nil, err
	}
	if a.Cache, err = a.openCache(ctx); err != nil {
		return nil, err
	}

	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	a.Index = retrieval.NewManager(retrieval.ManagerConfig{
		SamplesDir:   cfg.Corpus.SamplesDir,
		PlaybooksDir: cfg.Corpus.PlaybooksDir,
		Store:        retrieval.NewIndexStore(cfg.Corpus.IndexPath),
		Embedder:     embedder,
		Cache:        a.Cache,
	})
	if err := a.Index.Load(ctx); err != nil {
		return nil, fmt.Errorf("load retrieval corpora: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = pipeline.NewMetrics(a.Registry)

	orch := pipeline.NewOrchestrator(ai.NewConfigRegistry(cfg.AI), a.Index,
		pipeline.StagesFromConfig(cfg.AI), a.Metrics)
	a.Service = pipeline.NewService(pipeline.ServiceConfig{
		Orchestrator: orch,
		Index:        a.Index,
		Store:        a.Store,
		Cache:        a.Cache,
		Metrics:      a.Metrics,
		Concurrency:  cfg.Server.BatchConcurrency,
	})

	slog.Info("app ready",
		"ai_provider", cfg.AI.Provider,
		"strict", cfg.AI.Strict,
		"embedding_provider", cfg.Embedding.Provider,
		"retrieval_backend", a.Index.Backend(),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	if a.Config.Database.URL == "" {
		slog.Info("DATABASE_URL not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	pool, err := store.Connect(ctx, a.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	slog.Info("database connected")

	if err := store.RunMigrations(a.Config.Database.URL, a.Config.Database.MigrationsDir); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")
	return store.NewPostgresStore(pool), nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	if a.Config.Redis.URL == "" {
		slog.Info("REDIS_URL not set, using in-process cache")
		return cache.NewMemoryCache(), nil
	}

	c, err := cache.NewRedisCache(a.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	a.closers = append(a.closers, c.Close)
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return c, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

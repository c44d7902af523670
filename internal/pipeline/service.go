package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/incidentradar/internal/analysis"
	"github.com/kiranshivaraju/incidentradar/internal/cache"
	"github.com/kiranshivaraju/incidentradar/internal/retrieval"
	"github.com/kiranshivaraju/incidentradar/internal/store"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const (
	DefaultDemoSize    = 5
	defaultConcurrency = 4
	recordCacheTTL     = time.Hour
	buildStatusTTL     = 24 * time.Hour
)

// Indexer is the index lifecycle the service drives. *retrieval.Manager
// satisfies it.
type Indexer interface {
	Build(ctx context.Context) (models.IndexCounts, error)
	Incidents() []models.Incident
	EmbeddingModel() string
}

// BatchFailure reports one incident of a batch that produced no record.
type BatchFailure struct {
	Index   int    `json:"index"`
	EventID string `json:"event_id"`
	Error   string `json:"error"`
}

// BatchResult holds the records of a batch in submission order, the
// incidents that failed, and the batch summary.
type BatchResult struct {
	Records  []*models.Record     `json:"records"`
	Failures []BatchFailure       `json:"failures"`
	Analysis models.BatchAnalysis `json:"analysis"`
}

// Service is the transport-free boundary used by the HTTP API and radarctl.
type Service struct {
	orch        *Orchestrator
	index       Indexer
	store       store.Store
	cache       cache.Cache
	metrics     *Metrics
	concurrency int
}

type ServiceConfig struct {
	Orchestrator *Orchestrator
	Index        Indexer
	Store        store.Store
	Cache        cache.Cache
	Metrics      *Metrics
	Concurrency  int
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Service{
		orch:        cfg.Orchestrator,
		index:       cfg.Index,
		store:       cfg.Store,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
	}
}

// Process triages inc and persists the final record.
func (s *Service) Process(ctx context.Context, inc models.Incident) (*models.Record, error) {
	rec, err := s.orch.Process(ctx, inc)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist record %s: %w", rec.ID, err)
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

// ProcessBatch triages incidents concurrently. A failing incident is
// reported in Failures and never affects the others.
func (s *Service) ProcessBatch(ctx context.Context, incidents []models.Incident) (*BatchResult, error) {
	if len(incidents) == 0 {
		return nil, ErrEmptyBatch
	}
	s.metrics.observeBatch(len(incidents))
	start := time.Now()

	records := make([]*models.Record, len(incidents))
	errs := make([]error, len(incidents))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, inc := range incidents {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			records[i], errs[i] = s.Process(ctx, inc)
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{Records: []*models.Record{}, Failures: []BatchFailure{}}
	done := make([]models.Record, 0, len(incidents))
	for i, err := range errs {
		if err != nil {
			slog.Warn("batch incident failed", "index", i, "event_id", incidents[i].EventID, "error", err)
			res.Failures = append(res.Failures, BatchFailure{Index: i, EventID: incidents[i].EventID, Error: err.Error()})
			continue
		}
		res.Records = append(res.Records, records[i])
		done = append(done, *records[i])
	}
	res.Analysis = analysis.Summarize(done, len(res.Failures))

	slog.Info("batch processed", "incidents", len(incidents), "records", len(res.Records),
		"failed", len(res.Failures), "duration", time.Since(start))
	return res, nil
}

// Samples returns the loaded sample incidents.
func (s *Service) Samples() ([]models.Incident, error) {
	samples := s.index.Incidents()
	if len(samples) == 0 {
		return nil, retrieval.ErrNoSamples
	}
	return append([]models.Incident(nil), samples...), nil
}

// RunDemo processes the first n samples as a batch. n <= 0 means
// DefaultDemoSize.
func (s *Service) RunDemo(ctx context.Context, n int) (*BatchResult, error) {
	samples, err := s.Samples()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultDemoSize
	}
	return s.ProcessBatch(ctx, samples[:min(n, len(samples))])
}

// GetRecord serves a record from the cache, falling back to the store.
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	if data, ok, err := s.cache.Get(ctx, cache.RecordKey(id)); err != nil {
		slog.Warn("record cache read failed", "record_id", id, "error", err)
	} else if ok {
		var rec models.Record
		if err := json.Unmarshal(data, &rec); err == nil {
			return &rec, nil
		}
	}

	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

func (s *Service) ListRecords(ctx context.Context, filter store.RecordFilter) ([]*models.Record, int, error) {
	return s.store.ListRecords(ctx, filter)
}

func (s *Service) cacheRecord(ctx context.Context, rec *models.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.RecordKey(rec.ID), data, recordCacheTTL); err != nil {
		slog.Warn("record cache write failed", "record_id", rec.ID, "error", err)
	}
}

// --- Index builds ---

// BuildIndex runs a tracked index build to completion and returns the final
// build row. The build error, if any, is returned alongside it.
func (s *Service) BuildIndex(ctx context.Context) (*models.IndexBuild, error) {
	build, err := s.newBuild(ctx)
	if err != nil {
		return nil, err
	}
	runErr := s.runBuild(ctx, build.ID)
	final, err := s.store.GetIndexBuild(ctx, build.ID)
	if err != nil {
		return nil, err
	}
	return final, runErr
}

// StartIndexBuild records a pending build and runs it in the background.
// The returned build can be polled with GetIndexBuild or BuildStatus.
func (s *Service) StartIndexBuild(ctx context.Context) (*models.IndexBuild, error) {
	build, err := s.newBuild(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		// runBuild logs every failure and records build failures on the
		// build row; nobody waits on the error here.
		_ = s.runBuild(context.WithoutCancel(ctx), build.ID)
	}()
	return build, nil
}

func (s *Service) newBuild(ctx context.Context) (*models.IndexBuild, error) {
	model := s.index.EmbeddingModel()
	if model == "" {
		return nil, retrieval.ErrNoEmbedder
	}
	now := time.Now().UTC()
	build := &models.IndexBuild{
		ID:             uuid.New(),
		Status:         models.BuildStatusPending,
		EmbeddingModel: model,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateIndexBuild(ctx, build); err != nil {
		return nil, fmt.Errorf("create index build: %w", err)
	}
	s.mirrorBuildStatus(ctx, build.ID, build.Status)
	return build, nil
}

func (s *Service) runBuild(ctx context.Context, id uuid.UUID) error {
	if err := s.setBuildStatus(ctx, id, models.BuildStatusRunning); err != nil {
		slog.Error("index build not started", "build_id", id, "error", err)
		return err
	}

	counts, buildErr := s.index.Build(ctx)
	if buildErr != nil {
		slog.Error("index build failed", "build_id", id, "error", buildErr)
		if err := s.setBuildStatus(ctx, id, models.BuildStatusFailed,
			store.WithErrorMessage(buildErr.Error())); err != nil {
			slog.Error("index build failure not recorded", "build_id", id, "error", err)
			return errors.Join(buildErr, err)
		}
		return buildErr
	}
	if err := s.setBuildStatus(ctx, id, models.BuildStatusCompleted, store.WithCounts(counts)); err != nil {
		slog.Error("index build result not recorded", "build_id", id, "error", err)
		return err
	}
	return nil
}

func (s *Service) setBuildStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.BuildUpdateOption) error {
	if err := s.store.UpdateIndexBuildStatus(ctx, id, status, opts...); err != nil {
		return fmt.Errorf("update index build %s: %w", id, err)
	}
	s.mirrorBuildStatus(ctx, id, status)
	if status == models.BuildStatusCompleted || status == models.BuildStatusFailed {
		s.metrics.observeBuild(status)
	}
	return nil
}

func (s *Service) mirrorBuildStatus(ctx context.Context, id uuid.UUID, status string) {
	if err := s.cache.SetBuildStatus(ctx, id, status, buildStatusTTL); err != nil {
		slog.Warn("build status cache write failed", "build_id", id, "error", err)
	}
}

func (s *Service) GetIndexBuild(ctx context.Context, id uuid.UUID) (*models.IndexBuild, error) {
	return s.store.GetIndexBuild(ctx, id)
}

func (s *Service) LatestIndexBuild(ctx context.Context) (*models.IndexBuild, error) {
	return s.store.LatestIndexBuild(ctx)
}

// BuildStatus answers from the cache mirror when possible.
func (s *Service) BuildStatus(ctx context.Context, id uuid.UUID) (string, error) {
	if status, ok, err := s.cache.GetBuildStatus(ctx, id); err == nil && ok {
		return status, nil
	}
	build, err := s.store.GetIndexBuild(ctx, id)
	if err != nil {
		return "", err
	}
	return build.Status, nil
}

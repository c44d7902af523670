// Package pipeline runs an incident through extraction, scoring, routing,
// retrieval, briefing and guardrail verification, and owns the mapping from
// stage to generative client.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/internal/briefing"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/internal/guardrail"
	"github.com/kiranshivaraju/incidentradar/internal/retrieval"
	"github.com/kiranshivaraju/incidentradar/internal/routing"
	"github.com/kiranshivaraju/incidentradar/internal/scoring"
	"github.com/kiranshivaraju/incidentradar/internal/signals"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const tracerName = "github.com/kiranshivaraju/incidentradar/internal/pipeline"

const (
	similarIncidents  = 6
	playbooksPerTeam  = 3
	legalComplianceAt = 60
)

// Corpus is what the orchestrator needs from retrieval: search plus the
// global policy text. *retrieval.Manager satisfies it.
type Corpus interface {
	retrieval.Retriever
	GlobalPolicy() string
}

// Stages configures the generative stages.
type Stages struct {
	Strict     bool
	Retries    int
	Timeout    time.Duration
	Signals    models.StageConfig
	Briefing   models.StageConfig
	Guardrails models.StageConfig
}

// StagesFromConfig resolves per-stage settings, filling an empty model with
// the provider default.
func StagesFromConfig(cfg config.AIConfig) Stages {
	def := cfg.DefaultModel()
	conv := func(s config.StageConfig) models.StageConfig {
		model := s.Model
		if model == "" {
			model = def
		}
		return models.StageConfig{Model: model, Temperature: s.Temperature, MaxTokens: s.MaxTokens}
	}
	return Stages{
		Strict:     cfg.Strict,
		Retries:    cfg.MaxRetries,
		Timeout:    cfg.InferenceTimeout,
		Signals:    conv(cfg.Signals),
		Briefing:   conv(cfg.Briefing),
		Guardrails: conv(cfg.Guardrails),
	}
}

// Orchestrator processes one incident at a time. It holds no per-incident
// state and is safe for concurrent use.
type Orchestrator struct {
	registry *ai.Registry
	corpus   Corpus
	stages   Stages
	metrics  *Metrics
	now      func() time.Time
}

// NewOrchestrator wires the pipeline. A nil registry disables every
// generative stage; metrics may be nil.
func NewOrchestrator(registry *ai.Registry, corpus Corpus, stages Stages, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		corpus:   corpus,
		stages:   stages,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process runs the full pipeline for inc and returns a ready or blocked
// record. Errors are returned for invalid input, retrieval failures and, in
// strict mode, any stage that could not use its model.
func (o *Orchestrator) Process(ctx context.Context, inc models.Incident) (*models.Record, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("event_id", inc.EventID),
	))
	defer span.End()

	start := time.Now()
	rec, err := o.process(ctx, inc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "process incident")
		o.metrics.observeRecord("failed", time.Since(start))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("record_id", rec.ID.String()),
		attribute.String("status", string(rec.Status)),
		attribute.String("primary_team", string(rec.Routing.PrimaryTeam)),
		attribute.String("priority", string(rec.Routing.Priority)),
	)
	o.metrics.observeRecord(string(rec.Status), time.Since(start))
	slog.Info("incident processed", "event_id", inc.EventID, "record_id", rec.ID,
		"status", rec.Status, "team", rec.Routing.PrimaryTeam, "priority", rec.Routing.Priority,
		"duration", time.Since(start))
	return rec, nil
}

func (o *Orchestrator) process(ctx context.Context, inc models.Incident) (*models.Record, error) {
	if err := inc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIncident, err)
	}

	similar, err := o.searchIncidents(ctx, inc.Text)
	if err != nil {
		return nil, err
	}

	sigRes, err := runStage(ctx, o, signals.Stage, o.stages.Signals,
		func(ctx context.Context, client models.ChatClient, opts ai.Options) (ai.Result[models.SignalExtraction], error) {
			return signals.Extract(ctx, client, opts, inc, similar, o.corpus.GlobalPolicy())
		})
	if err != nil {
		return nil, err
	}
	sig := sigRes.Value

	scores := scoring.Score(sig, inc.Metadata)
	route := routing.Route(sig, scores)

	playbooks, err := o.searchPlaybooks(ctx, inc.Text, relevantTeams(sig, scores, route))
	if err != nil {
		return nil, err
	}

	briefRes, err := runStage(ctx, o, briefing.Stage, o.stages.Briefing,
		func(ctx context.Context, client models.ChatClient, opts ai.Options) (ai.Result[models.BriefingOutput], error) {
			return briefing.Generate(ctx, client, opts, briefing.Input{
				Routing: route, Scores: scores, Signals: sig,
				Playbooks: playbooks, Similar: similar,
			})
		})
	if err != nil {
		return nil, err
	}

	// Provisional record for the verifier. It is never persisted or returned.
	rec := &models.Record{
		ID:         uuid.New(),
		Incident:   inc,
		Signals:    sig,
		RiskScores: scores,
		Routing:    route,
		Briefing:   briefRes.Value,
		Guardrails: models.GuardrailResult{Passed: true, Issues: []string{}},
		Status:     models.RecordStatusPending,
		Provenance: []models.StageProvenance{sigRes.Provenance, briefRes.Provenance},
		CreatedAt:  o.now(),
	}

	guardRes, err := runStage(ctx, o, guardrail.Stage, o.stages.Guardrails,
		func(ctx context.Context, client models.ChatClient, opts ai.Options) (ai.Result[models.GuardrailResult], error) {
			return guardrail.Verify(ctx, client, opts, rec)
		})
	if err != nil {
		return nil, err
	}

	rec.Guardrails = guardRes.Value
	rec.Provenance = append(rec.Provenance, guardRes.Provenance)
	rec.Status = models.RecordStatusReady
	if !rec.Guardrails.Passed {
		rec.Status = models.RecordStatusBlocked
		slog.Warn("record blocked by guardrails", "event_id", inc.EventID,
			"record_id", rec.ID, "issues", rec.Guardrails.Issues)
	}
	return rec, nil
}

// runStage resolves the stage's client and runs fn inside a span.
func runStage[T any](
	ctx context.Context,
	o *Orchestrator,
	stage string,
	cfg models.StageConfig,
	fn func(context.Context, models.ChatClient, ai.Options) (ai.Result[T], error),
) (ai.Result[T], error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline."+stage, trace.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("model", cfg.Model),
	))
	defer span.End()

	client, err := o.registry.Client(cfg)
	if err != nil {
		// A client that cannot be built is treated like an unreachable one.
		slog.Warn("ai client unavailable", "stage", stage, "error", err)
		client = nil
	}

	res, err := fn(ctx, client, ai.Options{
		Stage:   stage,
		Strict:  o.stages.Strict,
		Retries: o.stages.Retries,
		Timeout: o.stages.Timeout,
		Hooks:   o.metrics.Hooks(),
	})
	span.SetAttributes(
		attribute.String("source", res.Provenance.Source),
		attribute.Int("attempts", res.Provenance.Attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage+" failed")
		return res, err
	}
	slog.Debug("stage complete", "stage", stage, "source", res.Provenance.Source,
		"attempts", res.Provenance.Attempts)
	return res, nil
}

func (o *Orchestrator) searchIncidents(ctx context.Context, query string) ([]models.Snippet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.retrieve_incidents", trace.WithAttributes(
		attribute.String("backend", o.corpus.Backend()),
	))
	defer span.End()

	similar, err := o.corpus.SearchIncidents(ctx, query, similarIncidents)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search incidents")
		return nil, fmt.Errorf("search similar incidents: %w", err)
	}
	span.SetAttributes(attribute.Int("results", len(similar)))
	return similar, nil
}

func (o *Orchestrator) searchPlaybooks(ctx context.Context, query string, teams []models.Team) ([]models.Snippet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.retrieve_playbooks", trace.WithAttributes(
		attribute.String("backend", o.corpus.Backend()),
		attribute.Int("teams", len(teams)),
	))
	defer span.End()

	var out []models.Snippet
	for _, team := range teams {
		found, err := o.corpus.SearchPlaybooks(ctx, query, team, playbooksPerTeam)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search playbooks")
			return nil, fmt.Errorf("search %s playbooks: %w", team, err)
		}
		out = append(out, found...)
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

// relevantTeams is the primary team, plus Finance for billing topics and
// Legal when compliance risk is high, without duplicates.
func relevantTeams(sig models.SignalExtraction, scores models.RiskScores, route models.RoutingDecision) []models.Team {
	teams := []models.Team{route.PrimaryTeam}
	if sig.Topic == models.TopicBilling && route.PrimaryTeam != models.TeamFinance {
		teams = append(teams, models.TeamFinance)
	}
	if scores.Compliance >= legalComplianceAt && route.PrimaryTeam != models.TeamLegal {
		teams = append(teams, models.TeamLegal)
	}
	return teams
}

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kiranshivaraju/incidentradar/internal/cache"
	"github.com/kiranshivaraju/incidentradar/internal/embed"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// Manager owns the active Retriever and the corpora it serves. Readers see
// one consistent state at a time; Build swaps in a new vector retriever only
// after the index has been persisted.
type Manager struct {
	samplesDir   string
	playbooksDir string
	store        *IndexStore
	embedder     embed.Embedder
	cache        cache.Cache

	builds singleflight.Group
	state  atomic.Pointer[managerState]
}

type managerState struct {
	retriever Retriever
	incidents []models.Incident
	policy    string
	builtAt   time.Time
}

type ManagerConfig struct {
	SamplesDir   string
	PlaybooksDir string
	Store        *IndexStore
	Embedder     embed.Embedder
	Cache        cache.Cache
}

// NewManager returns a Manager serving an empty keyword retriever until Load
// or Build is called.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		samplesDir:   cfg.SamplesDir,
		playbooksDir: cfg.PlaybooksDir,
		store:        cfg.Store,
		embedder:     cfg.Embedder,
		cache:        cfg.Cache,
	}
	m.state.Store(&managerState{retriever: NewKeyword(nil, nil)})
	return m
}

// Load reads the corpora from disk and selects a backend. A persisted index
// is used only when it was built with the configured embedder at the same
// vector length; otherwise retrieval falls back to keyword overlap.
func (m *Manager) Load(ctx context.Context) error {
	incidents, playbooks, err := m.readCorpora()
	if err != nil {
		return err
	}

	st := &managerState{incidents: incidents, policy: playbooks.GlobalPolicy}
	st.retriever = NewKeyword(incidentSnippets(incidents), playbooks.Chunks)

	switch snap, err := m.loadSnapshot(ctx); {
	case errors.Is(err, ErrIndexNotFound):
		slog.Info("no persisted index, using keyword retrieval", "path", m.indexPath())
	case err != nil:
		slog.Warn("persisted index unreadable, using keyword retrieval", "path", m.indexPath(), "error", err)
	case m.embedder == nil:
		slog.Info("embeddings disabled, using keyword retrieval", "path", m.indexPath())
	case snap.Model != m.embedder.Model():
		slog.Warn("persisted index built with a different embedder, using keyword retrieval",
			"index_model", snap.Model, "embedder_model", m.embedder.Model())
	case m.embedder.Dimensions() > 0 && snap.Dimensions != m.embedder.Dimensions():
		slog.Warn("persisted index has different embedding dimensions, using keyword retrieval",
			"index_dimensions", snap.Dimensions, "embedder_dimensions", m.embedder.Dimensions())
	default:
		st.retriever = NewVector(snap, m.embedder, m.cache)
		st.builtAt = snap.BuiltAt
	}

	m.state.Store(st)
	slog.Info("retrieval ready", "backend", st.retriever.Backend(),
		"incidents", len(incidents), "playbook_chunks", len(playbooks.Chunks))
	return nil
}

func (m *Manager) loadSnapshot(ctx context.Context) (*Snapshot, error) {
	if m.store == nil {
		return nil, ErrIndexNotFound
	}
	return m.store.Load(ctx)
}

// Build embeds both corpora, persists the index and activates it. Concurrent
// callers share the result of the build already in flight.
func (m *Manager) Build(ctx context.Context) (models.IndexCounts, error) {
	ch := m.builds.DoChan("build", func() (any, error) {
		// Detached so one caller's cancellation does not fail the shared build.
		return m.build(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return models.IndexCounts{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.IndexCounts{}, res.Err
		}
		return res.Val.(models.IndexCounts), nil
	}
}

func (m *Manager) build(ctx context.Context) (models.IndexCounts, error) {
	if m.embedder == nil {
		return models.IndexCounts{}, ErrNoEmbedder
	}
	if m.store == nil {
		return models.IndexCounts{}, fmt.Errorf("build index: no index store configured")
	}

	incidents, playbooks, err := m.readCorpora()
	if err != nil {
		return models.IndexCounts{}, err
	}
	if len(incidents) == 0 {
		return models.IndexCounts{}, ErrNoSamples
	}

	start := time.Now()
	texts := make([]string, len(incidents))
	for i, inc := range incidents {
		texts[i] = IncidentEmbedText(inc)
	}
	incVecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return models.IndexCounts{}, fmt.Errorf("embed incidents: %w", err)
	}

	chunkTexts := make([]string, len(playbooks.Chunks))
	for i, c := range playbooks.Chunks {
		chunkTexts[i] = c.Text
	}
	var pbVecs [][]float32
	if len(chunkTexts) > 0 {
		if pbVecs, err = m.embedder.Embed(ctx, chunkTexts); err != nil {
			return models.IndexCounts{}, fmt.Errorf("embed playbooks: %w", err)
		}
	}

	dims, err := uniformDimensions(m.embedder.Dimensions(), incVecs, pbVecs)
	if err != nil {
		return models.IndexCounts{}, err
	}
	snap := &Snapshot{
		Model:      m.embedder.Model(),
		Dimensions: dims,
		BuiltAt:    time.Now().UTC(),
		Incidents:  Corpus{Entries: incidentSnippets(incidents), Vectors: incVecs},
		Playbooks:  Corpus{Entries: playbooks.Chunks, Vectors: pbVecs},
	}
	if err := m.store.Save(ctx, snap); err != nil {
		return models.IndexCounts{}, fmt.Errorf("persist index: %w", err)
	}

	m.state.Store(&managerState{
		retriever: NewVector(snap, m.embedder, m.cache),
		incidents: incidents,
		policy:    playbooks.GlobalPolicy,
		builtAt:   snap.BuiltAt,
	})

	counts := models.IndexCounts{Events: len(incidents), Playbooks: len(playbooks.Chunks)}
	slog.Info("index built", "model", snap.Model, "events", counts.Events,
		"playbooks", counts.Playbooks, "duration", time.Since(start))
	return counts, nil
}

// uniformDimensions returns the common vector length, which must equal want
// when want is known.
func uniformDimensions(want int, groups ...[][]float32) (int, error) {
	dims := want
	for _, vecs := range groups {
		for _, v := range vecs {
			if dims == 0 {
				dims = len(v)
			}
			if len(v) != dims || dims == 0 {
				return 0, fmt.Errorf("%w: got a %d-dimensional vector, want %d", ErrDimensionMismatch, len(v), dims)
			}
		}
	}
	return dims, nil
}

func (m *Manager) readCorpora() ([]models.Incident, Playbooks, error) {
	var (
		incidents []models.Incident
		playbooks Playbooks
		err       error
	)
	if dirExists(m.samplesDir) {
		if incidents, err = LoadIncidents(m.samplesDir); err != nil {
			return nil, playbooks, err
		}
	}
	if dirExists(m.playbooksDir) {
		if playbooks, err = LoadPlaybooks(m.playbooksDir); err != nil {
			return nil, playbooks, err
		}
	}
	return incidents, playbooks, nil
}

func (m *Manager) indexPath() string {
	if m.store == nil {
		return ""
	}
	return m.store.Path()
}

// Incidents returns the sample incidents loaded with the active state.
func (m *Manager) Incidents() []models.Incident { return m.state.Load().incidents }

// GlobalPolicy returns the global policy document, or "" when absent.
func (m *Manager) GlobalPolicy() string { return m.state.Load().policy }

// BuiltAt is the build time of the active vector index, zero for keyword.
func (m *Manager) BuiltAt() time.Time { return m.state.Load().builtAt }

func (m *Manager) Backend() string { return m.state.Load().retriever.Backend() }

// EmbeddingModel names the configured embedder, or "" when embeddings are
// disabled and Build would fail with ErrNoEmbedder.
func (m *Manager) EmbeddingModel() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.Model()
}

func (m *Manager) SearchIncidents(ctx context.Context, query string, k int) ([]models.Snippet, error) {
	return m.state.Load().retriever.SearchIncidents(ctx, query, k)
}

func (m *Manager) SearchPlaybooks(ctx context.Context, query string, team models.Team, k int) ([]models.Snippet, error) {
	return m.state.Load().retriever.SearchPlaybooks(ctx, query, team, k)
}

func incidentSnippets(incidents []models.Incident) []models.Snippet {
	out := make([]models.Snippet, len(incidents))
	for i, inc := range incidents {
		out[i] = IncidentSnippet(inc)
	}
	return out
}

var _ Retriever = (*Manager)(nil)

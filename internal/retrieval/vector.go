package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kiranshivaraju/incidentradar/internal/cache"
	"github.com/kiranshivaraju/incidentradar/internal/embed"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const queryEmbeddingTTL = time.Hour

// Corpus is one flat inner-product index: Vectors[i] embeds Entries[i].
type Corpus struct {
	Entries []models.Snippet
	Vectors [][]float32
}

func (c Corpus) Len() int { return len(c.Entries) }

// Snapshot is a complete built index over both corpora.
type Snapshot struct {
	Model      string
	Dimensions int
	BuiltAt    time.Time
	Incidents  Corpus
	Playbooks  Corpus
}

// Vector answers queries by exact inner-product search over a Snapshot. It
// always returns min(k, corpus size) results when no team filter applies.
// If the query cannot be embedded, it answers from the keyword fallback.
type Vector struct {
	snap     *Snapshot
	embedder embed.Embedder
	cache    cache.Cache
	fallback *Keyword
}

// NewVector returns a vector retriever. cache may be nil.
func NewVector(snap *Snapshot, embedder embed.Embedder, c cache.Cache) *Vector {
	return &Vector{
		snap:     snap,
		embedder: embedder,
		cache:    c,
		fallback: NewKeyword(snap.Incidents.Entries, snap.Playbooks.Entries),
	}
}

func (v *Vector) Backend() string { return BackendVector }

func (v *Vector) SearchIncidents(ctx context.Context, query string, k int) ([]models.Snippet, error) {
	q, err := v.queryVector(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, using keyword ranking", "corpus", "incidents", "error", err)
		return v.fallback.SearchIncidents(ctx, query, k)
	}
	return topK(v.snap.Incidents, q, k), nil
}

// SearchPlaybooks queries a 2k candidate pool and filters it by team. When
// the filter empties the pool, the whole corpus is searched and filtered.
func (v *Vector) SearchPlaybooks(ctx context.Context, query string, team models.Team, k int) ([]models.Snippet, error) {
	q, err := v.queryVector(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, using keyword ranking", "corpus", "playbooks", "error", err)
		return v.fallback.SearchPlaybooks(ctx, query, team, k)
	}
	if team == "" {
		return topK(v.snap.Playbooks, q, k), nil
	}

	hits := filterTeam(topK(v.snap.Playbooks, q, 2*k), team)
	if len(hits) == 0 {
		hits = filterTeam(topK(v.snap.Playbooks, q, v.snap.Playbooks.Len()), team)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// queryVector embeds query, or returns ErrDimensionMismatch when the result
// cannot be ranked against the snapshot.
func (v *Vector) queryVector(ctx context.Context, query string) ([]float32, error) {
	dims := v.snap.Dimensions
	key := ""
	if v.cache != nil {
		sum := sha256.Sum256([]byte(query))
		key = cache.QueryEmbeddingKey(v.embedder.Model(), dims, hex.EncodeToString(sum[:]))
		if raw, ok, err := v.cache.Get(ctx, key); err == nil && ok {
			if vec, err := decodeVector(raw); err == nil && len(vec) == dims {
				return vec, nil
			}
		}
	}

	vecs, err := v.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	if len(vecs[0]) != dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vecs[0]), dims)
	}
	if key != "" {
		_ = v.cache.Set(ctx, key, encodeVector(vecs[0]), queryEmbeddingTTL)
	}
	return vecs[0], nil
}

func topK(c Corpus, q []float32, k int) []models.Snippet {
	if k <= 0 || c.Len() == 0 {
		return nil
	}
	type scored struct {
		idx   int
		score float64
	}
	all := make([]scored, c.Len())
	for i, vec := range c.Vectors {
		all[i] = scored{idx: i, score: embed.Dot(q, vec)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > k {
		all = all[:k]
	}

	out := make([]models.Snippet, len(all))
	for i, s := range all {
		out[i] = c.Entries[s.idx]
		out[i].Score = s.score
	}
	return out
}

func filterTeam(in []models.Snippet, team models.Team) []models.Snippet {
	out := in[:0]
	for _, s := range in {
		if s.Team == team {
			out = append(out, s)
		}
	}
	return out
}

var _ Retriever = (*Vector)(nil)

// Package embed turns text into unit-norm dense vectors for the retrieval index.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/kiranshivaraju/incidentradar/internal/config"
)

// Embedder maps texts to L2-normalised vectors of a fixed dimension. The same
// embedder must be used to build an index and to query it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding function; it is persisted with the index.
	Model() string
	// Dimensions is the vector length, or 0 when only the server knows it.
	Dimensions() int
}

// New returns the embedder selected by cfg, or nil when embeddings are disabled.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingNone, "":
		return nil, nil
	case config.EmbeddingOpenAI:
		return NewOpenAI(cfg), nil
	case config.EmbeddingHash:
		return NewHash(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Dot is the inner product of two equal-length vectors. It panics on a length
// mismatch; callers compare dimensions before ranking.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("embed: dot of %d- and %d-dimensional vectors", len(a), len(b)))
	}
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

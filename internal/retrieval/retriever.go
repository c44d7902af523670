package retrieval

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

var (
	ErrIndexNotFound = errors.New("retrieval index not found")
	ErrNoSamples     = errors.New("no sample incidents found")
	ErrNoEmbedder    = errors.New("no embedding provider configured")
	// ErrDimensionMismatch means a query vector cannot be compared with the
	// stored vectors.
	ErrDimensionMismatch = errors.New("embedding dimensions do not match the index")
)

const (
	BackendVector  = "vector"
	BackendKeyword = "keyword"
)

// Retriever is the single retrieval contract the pipeline depends on.
type Retriever interface {
	// SearchIncidents returns up to k historical incidents similar to query.
	SearchIncidents(ctx context.Context, query string, k int) ([]models.Snippet, error)
	// SearchPlaybooks returns up to k playbook chunks, restricted to team
	// unless team is empty.
	SearchPlaybooks(ctx context.Context, query string, team models.Team, k int) ([]models.Snippet, error)
	// Backend names the active implementation.
	Backend() string
}

package ai

import (
	"errors"
	"sync"

	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// Factory builds a client for one stage configuration.
type Factory func(models.StageConfig) (models.ChatClient, error)

// Registry hands out chat clients keyed by (model, temperature, max tokens).
// Clients are built lazily and shared by every stage that asks for the same
// triple. Safe for concurrent use.
type Registry struct {
	factory Factory

	mu      sync.Mutex
	clients map[models.StageConfig]models.ChatClient
}

// NewRegistry returns a registry backed by factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, clients: make(map[models.StageConfig]models.ChatClient)}
}

// NewConfigRegistry returns a registry that builds clients for cfg's provider.
func NewConfigRegistry(cfg config.AIConfig) *Registry {
	return NewRegistry(func(stage models.StageConfig) (models.ChatClient, error) {
		return NewChatClient(cfg, stage)
	})
}

// Client returns the client for stage. A (nil, nil) return means generation
// is disabled and callers should use their fallback.
func (r *Registry) Client(stage models.StageConfig) (models.ChatClient, error) {
	if r == nil || r.factory == nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[stage]; ok {
		return c, nil
	}
	c, err := r.factory(stage)
	if errors.Is(err, ErrNoClient) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.clients[stage] = c
	return c, nil
}

// Len reports how many distinct clients have been built.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

package ai

import (
	"fmt"

	"github.com/kiranshivaraju/incidentradar/internal/ai/anthropic"
	"github.com/kiranshivaraju/incidentradar/internal/ai/ollama"
	"github.com/kiranshivaraju/incidentradar/internal/ai/openai"
	"github.com/kiranshivaraju/incidentradar/internal/ai/vllm"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// NewChatClient constructs a chat client for one stage configuration.
// Returns ErrNoClient when the provider is "none".
func NewChatClient(cfg config.AIConfig, stage models.StageConfig) (models.ChatClient, error) {
	if stage.Model == "" {
		stage.Model = cfg.DefaultModel()
	}
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, ErrNoClient
	case config.ProviderOllama:
		return ollama.NewClient(cfg.Ollama, stage), nil
	case config.ProviderVLLM:
		return vllm.NewClient(cfg.VLLM, stage), nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAI, stage), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(cfg.Anthropic, stage), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of none, ollama, vllm, openai, anthropic", cfg.Provider)
	}
}

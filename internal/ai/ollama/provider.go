package ollama

import (
	"github.com/kiranshivaraju/incidentradar/internal/ai/openai"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// NewClient returns a chat client for a local Ollama server through its
// OpenAI-compatible endpoint.
func NewClient(cfg config.OllamaConfig, stage models.StageConfig) models.ChatClient {
	return openai.NewCompatibleClient("ollama", cfg.BaseURL, "", stage)
}

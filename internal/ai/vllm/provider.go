package vllm

import (
	"github.com/kiranshivaraju/incidentradar/internal/ai/openai"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// NewClient returns a chat client for a vLLM OpenAI-compatible server.
func NewClient(cfg config.VLLMConfig, stage models.StageConfig) models.ChatClient {
	return openai.NewCompatibleClient("vllm", cfg.BaseURL, cfg.APIKey, stage)
}

package config_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownKeys = []string{
	"RADAR_PORT", "RADAR_ENV", "RADAR_BATCH_CONCURRENCY", "RADAR_RATE_LIMIT_PER_MIN", "RADAR_AUTH_DISABLED",
	"DATABASE_URL", "REDIS_URL", "RADAR_SAMPLES_DIR", "RADAR_PLAYBOOKS_DIR", "RADAR_INDEX_PATH",
	"EMBEDDING_PROVIDER", "EMBEDDING_BASE_URL", "EMBEDDING_API_KEY", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
	"AI_PROVIDER", "AI_INFERENCE_TIMEOUT_SECS", "AI_MAX_RETRIES", "STRICT_MODE",
	"SIGNALS_MODEL", "SIGNALS_TEMPERATURE", "SIGNALS_MAX_TOKENS",
	"BRIEFING_MODEL", "BRIEFING_TEMPERATURE", "BRIEFING_MAX_TOKENS",
	"GUARDRAILS_MODEL", "GUARDRAILS_TEMPERATURE", "GUARDRAILS_MAX_TOKENS",
	"OPENAI_API_KEY", "ANTHROPIC_API_KEY",
}

// setEnv clears every key Load reads, then applies env for the duration of the test.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range knownKeys {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 4, cfg.Server.BatchConcurrency)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "data/indexes/radar.db", cfg.Corpus.IndexPath)
	assert.Equal(t, config.EmbeddingNone, cfg.Embedding.Provider)
	assert.Equal(t, config.ProviderNone, cfg.AI.Provider)
	assert.Equal(t, 30*time.Second, cfg.AI.InferenceTimeout)
	assert.Equal(t, 1, cfg.AI.MaxRetries)
	assert.False(t, cfg.AI.Strict)
	assert.False(t, cfg.Server.AuthDisabled)
}

func TestLoad_AuthDisabled(t *testing.T) {
	setEnv(t, map[string]string{"RADAR_AUTH_DISABLED": "true"})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Server.AuthDisabled)
}

func TestLoad_StageDefaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StageConfig{Temperature: 0.2, MaxTokens: 800}, cfg.AI.Signals)
	assert.Equal(t, config.StageConfig{Temperature: 0.2, MaxTokens: 800}, cfg.AI.Briefing)
	assert.Equal(t, config.StageConfig{Temperature: 0.1, MaxTokens: 400}, cfg.AI.Guardrails)
}

func TestLoad_StageOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"AI_PROVIDER":            "vllm",
		"GUARDRAILS_MODEL":       "Qwen/Qwen2.5-1.5B-Instruct",
		"GUARDRAILS_TEMPERATURE": "0.05",
		"GUARDRAILS_MAX_TOKENS":  "256",
	})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "Qwen/Qwen2.5-1.5B-Instruct", cfg.AI.Guardrails.Model)
	assert.InDelta(t, 0.05, cfg.AI.Guardrails.Temperature, 1e-9)
	assert.Equal(t, 256, cfg.AI.Guardrails.MaxTokens)
}

func TestLoad_CustomPort(t *testing.T) {
	setEnv(t, map[string]string{"RADAR_PORT": "9090"})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_InvalidDatabaseURL(t *testing.T) {
	setEnv(t, map[string]string{"DATABASE_URL": "mysql://localhost"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidAIProvider(t *testing.T) {
	setEnv(t, map[string]string{"AI_PROVIDER": "invalid-provider"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_PROVIDER")
}

func TestLoad_AllValidAIProviders(t *testing.T) {
	providers := []string{"none", "ollama", "vllm", "openai", "anthropic"}

	for _, provider := range providers {
		t.Run(provider, func(t *testing.T) {
			env := map[string]string{"AI_PROVIDER": provider}
			switch provider {
			case "openai":
				env["OPENAI_API_KEY"] = "sk-test-key"
			case "anthropic":
				env["ANTHROPIC_API_KEY"] = "sk-ant-test-key"
			}
			setEnv(t, env)

			cfg, err := config.Load()
			require.NoError(t, err)
			assert.Equal(t, provider, cfg.AI.Provider)
		})
	}
}

func TestLoad_HostedProviderMissingAPIKey(t *testing.T) {
	tests := []struct {
		provider string
		wantKey  string
	}{
		{"openai", "OPENAI_API_KEY"},
		{"anthropic", "ANTHROPIC_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			setEnv(t, map[string]string{"AI_PROVIDER": tt.provider})

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestLoad_StrictModeRequiresProvider(t *testing.T) {
	setEnv(t, map[string]string{"STRICT_MODE": "true"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRICT_MODE")
}

func TestLoad_StrictModeWithProvider(t *testing.T) {
	setEnv(t, map[string]string{"STRICT_MODE": "1", "AI_PROVIDER": "ollama"})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.AI.Strict)
}

func TestLoad_RetryBounds(t *testing.T) {
	setEnv(t, map[string]string{"AI_MAX_RETRIES": "9"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_MAX_RETRIES")
}

func TestLoad_TemperatureBounds(t *testing.T) {
	setEnv(t, map[string]string{"BRIEFING_TEMPERATURE": "3.5"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BRIEFING_TEMPERATURE")
}

func TestLoad_InvalidEmbeddingProvider(t *testing.T) {
	setEnv(t, map[string]string{"EMBEDDING_PROVIDER": "word2vec"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_PROVIDER")
}

func TestLoad_OpenAIEmbeddingNeedsEndpoint(t *testing.T) {
	setEnv(t, map[string]string{"EMBEDDING_PROVIDER": "openai"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_API_KEY")
}

func TestLoad_CustomInferenceTimeout(t *testing.T) {
	setEnv(t, map[string]string{"AI_INFERENCE_TIMEOUT_SECS": "120"})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.AI.InferenceTimeout)
}

func TestAIConfig_DefaultModel(t *testing.T) {
	setEnv(t, map[string]string{"AI_PROVIDER": "vllm", "VLLM_MODEL": "mistral-7b"})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "mistral-7b", cfg.AI.DefaultModel())

	cfg.AI.Provider = config.ProviderNone
	assert.Empty(t, cfg.AI.DefaultModel())
}

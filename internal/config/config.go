package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Incident Radar server and CLI.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Corpus    CorpusConfig
	Embedding EmbeddingConfig
	AI        AIConfig
}

type ServerConfig struct {
	Port             int
	Env              string
	BatchConcurrency int
	RateLimitPerMin  int
	// AuthDisabled serves every route without an API key. Meant for local
	// runs against the in-memory store, which starts with no keys.
	AuthDisabled bool
}

// DatabaseConfig is optional; an empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// RedisConfig is optional; an empty URL selects the in-process cache.
type RedisConfig struct {
	URL string
}

type CorpusConfig struct {
	SamplesDir   string
	PlaybooksDir string
	IndexPath    string
}

type EmbeddingConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	MaxRetries       int
	Strict           bool
	Signals          StageConfig
	Briefing         StageConfig
	Guardrails       StageConfig
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

// StageConfig is the (model, temperature, token budget) triple of one
// generative stage. An empty Model means the provider default.
type StageConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

const (
	ProviderNone      = "none"
	ProviderOllama    = "ollama"
	ProviderVLLM      = "vllm"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	EmbeddingNone   = "none"
	EmbeddingOpenAI = "openai"
	EmbeddingHash   = "hash"
)

var validProviders = map[string]bool{
	ProviderNone:      true,
	ProviderOllama:    true,
	ProviderVLLM:      true,
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
}

var validEmbeddings = map[string]bool{
	EmbeddingNone:   true,
	EmbeddingOpenAI: true,
	EmbeddingHash:   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:             envInt("RADAR_PORT", 8080),
			Env:              envString("RADAR_ENV", "development"),
			BatchConcurrency: envInt("RADAR_BATCH_CONCURRENCY", 4),
			RateLimitPerMin:  envInt("RADAR_RATE_LIMIT_PER_MIN", 60),
			AuthDisabled:     envBool("RADAR_AUTH_DISABLED", false),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Corpus: CorpusConfig{
			SamplesDir:   envString("RADAR_SAMPLES_DIR", "data/samples"),
			PlaybooksDir: envString("RADAR_PLAYBOOKS_DIR", "data/playbooks"),
			IndexPath:    envString("RADAR_INDEX_PATH", "data/indexes/radar.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:   envString("EMBEDDING_PROVIDER", EmbeddingNone),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      envString("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 384),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", ProviderNone),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 30*time.Second),
			MaxRetries:       envInt("AI_MAX_RETRIES", 1),
			Strict:           envBool("STRICT_MODE", false),
			Signals:          envStage("SIGNALS", 0.2, 800),
			Briefing:         envStage("BRIEFING", 0.2, 800),
			Guardrails:       envStage("GUARDRAILS", 0.1, 400),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "qwen2.5:32b-instruct"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				APIKey:  os.Getenv("VLLM_API_KEY"),
				Model:   envString("VLLM_MODEL", "Qwen/Qwen2.5-32B-Instruct"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("RADAR_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.BatchConcurrency < 1 {
		return fmt.Errorf("RADAR_BATCH_CONCURRENCY must be at least 1, got %d", c.Server.BatchConcurrency)
	}

	if c.Database.URL != "" && !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://")
	}

	if c.Corpus.IndexPath == "" {
		return fmt.Errorf("RADAR_INDEX_PATH is required")
	}

	if !validEmbeddings[c.Embedding.Provider] {
		return fmt.Errorf("EMBEDDING_PROVIDER must be one of none, openai, hash; got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == EmbeddingOpenAI && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("EMBEDDING_API_KEY or EMBEDDING_BASE_URL is required when EMBEDDING_PROVIDER is openai")
	}
	if c.Embedding.Provider == EmbeddingHash && c.Embedding.Dimensions < 8 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be at least 8, got %d", c.Embedding.Dimensions)
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of none, ollama, vllm, openai, anthropic; got %q", c.AI.Provider)
	}
	if c.AI.Provider == ProviderOpenAI && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == ProviderAnthropic && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Strict && c.AI.Provider == ProviderNone {
		return fmt.Errorf("STRICT_MODE requires AI_PROVIDER to be set")
	}
	if c.AI.MaxRetries < 0 || c.AI.MaxRetries > 5 {
		return fmt.Errorf("AI_MAX_RETRIES must be between 0 and 5, got %d", c.AI.MaxRetries)
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive")
	}

	for name, st := range map[string]StageConfig{
		"SIGNALS":    c.AI.Signals,
		"BRIEFING":   c.AI.Briefing,
		"GUARDRAILS": c.AI.Guardrails,
	} {
		if st.Temperature < 0 || st.Temperature > 2 {
			return fmt.Errorf("%s_TEMPERATURE must be between 0 and 2, got %g", name, st.Temperature)
		}
		if st.MaxTokens <= 0 {
			return fmt.Errorf("%s_MAX_TOKENS must be positive, got %d", name, st.MaxTokens)
		}
	}

	return nil
}

// DefaultModel returns the model of the configured provider.
func (c AIConfig) DefaultModel() string {
	switch c.Provider {
	case ProviderOllama:
		return c.Ollama.Model
	case ProviderVLLM:
		return c.VLLM.Model
	case ProviderOpenAI:
		return c.OpenAI.Model
	case ProviderAnthropic:
		return c.Anthropic.Model
	default:
		return ""
	}
}

func envStage(prefix string, temperature float64, maxTokens int) StageConfig {
	return StageConfig{
		Model:       os.Getenv(prefix + "_MODEL"),
		Temperature: envFloat(prefix+"_TEMPERATURE", temperature),
		MaxTokens:   envInt(prefix+"_MAX_TOKENS", maxTokens),
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// Package openai implements models.ChatClient over the OpenAI chat completions
// API. The same client serves any OpenAI-compatible endpoint (vLLM, Ollama).
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyCompletion is returned when the endpoint answers without any choices.
var ErrEmptyCompletion = errors.New("completion has no choices")

// Client implements models.ChatClient for one (model, temperature, budget) triple.
type Client struct {
	name   string
	client openai.Client
	stage  models.StageConfig
}

// NewClient returns a client for the hosted OpenAI API.
func NewClient(cfg config.OpenAIConfig, stage models.StageConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{name: "openai", client: openai.NewClient(opts...), stage: stage}
}

// NewCompatibleClient returns a client for an OpenAI-compatible server at baseURL.
func NewCompatibleClient(name, baseURL, apiKey string, stage models.StageConfig) *Client {
	if apiKey == "" {
		apiKey = "unused"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(CompatibleBaseURL(baseURL)),
	}
	return &Client{name: name, client: openai.NewClient(opts...), stage: stage}
}

// CompatibleBaseURL appends the /v1 API root when it is missing.
func CompatibleBaseURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u + "/"
}

func (c *Client) Name() string  { return c.name }
func (c *Client) Model() string { return c.stage.Model }

// Chat sends messages as a single non-streaming completion request.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.stage.Model),
		Messages:    toParams(messages),
		Temperature: openai.Float(c.stage.Temperature),
	}
	if c.stage.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.stage.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func toParams(messages []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

var _ models.ChatClient = (*Client)(nil)

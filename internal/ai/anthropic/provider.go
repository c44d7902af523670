package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const defaultMaxTokens = 1024

// Client implements models.ChatClient using the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	stage  models.StageConfig
}

func NewClient(cfg config.AnthropicConfig, stage models.StageConfig) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		stage:  stage,
	}
}

func (c *Client) Name() string  { return "anthropic" }
func (c *Client) Model() string { return c.stage.Model }

// Chat maps system messages onto the system prompt and everything else onto
// alternating user/assistant turns.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	maxTokens := c.stage.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.stage.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(c.stage.Temperature),
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)
		case models.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

var _ models.ChatClient = (*Client)(nil)

// Package models contains shared data models used across the Incident Radar codebase.
package models

import "context"

// ChatClient is the only contract the pipeline requires of a generative backend.
// Stages receive it by injection and never name a provider directly.
type ChatClient interface {
	// Chat sends an ordered list of messages and returns the raw completion text.
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
	// Model returns the model identifier the client was built for.
	Model() string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one {role, content} turn of a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StageConfig selects the model, sampling temperature, and output budget of one
// generative stage.
type StageConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

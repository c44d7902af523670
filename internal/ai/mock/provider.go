package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// Response is one scripted reply.
type Response struct {
	Text string
	Err  error
}

// Client satisfies models.ChatClient for testing. ChatFunc wins when set;
// otherwise Script is replayed in order and the last entry repeats.
type Client struct {
	Name_    string
	Model_   string
	ChatFunc func(ctx context.Context, messages []models.ChatMessage) (string, error)
	Script   []Response

	mu    sync.Mutex
	calls [][]models.ChatMessage
}

func (m *Client) Name() string  { return m.Name_ }
func (m *Client) Model() string { return m.Model_ }

func (m *Client) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}
	if len(m.Script) == 0 {
		return "", nil
	}
	if n >= len(m.Script) {
		n = len(m.Script) - 1
	}
	return m.Script[n].Text, m.Script[n].Err
}

// Calls returns how many times Chat has been invoked.
func (m *Client) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastMessages returns the messages of the most recent call.
func (m *Client) LastMessages() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// NewScriptedClient replays texts in order.
func NewScriptedClient(texts ...string) *Client {
	script := make([]Response, len(texts))
	for i, t := range texts {
		script[i] = Response{Text: t}
	}
	return &Client{Name_: "mock", Model_: "mock-v1", Script: script}
}

// NewFailingClient returns a Client that always returns the given error.
func NewFailingClient(err error) *Client {
	return &Client{Name_: "mock-failing", Model_: "mock-v1", Script: []Response{{Err: err}}}
}

// NewTimeoutClient returns a Client that blocks until context is cancelled.
func NewTimeoutClient() *Client {
	return &Client{
		Name_:  "mock-timeout",
		Model_: "mock-v1",
		ChatFunc: func(ctx context.Context, _ []models.ChatMessage) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

var _ models.ChatClient = (*Client)(nil)

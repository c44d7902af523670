package retrieval_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/incidentradar/internal/embed"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

var sampleIncidents = []models.Incident{
	{EventID: "evt-1", Source: "twitter", Timestamp: "2025-01-01T10:00:00Z", Text: "App crashes every time I open the transfer screen"},
	{EventID: "evt-2", Source: "email", Timestamp: "2025-01-01T11:00:00Z", Text: "I was charged twice for my monthly subscription fee"},
	{EventID: "evt-3", Source: "chat", Timestamp: "2025-01-01T12:00:00Z", Text: "My lawyer will be in touch about the unauthorized withdrawal"},
	{EventID: "evt-4", Source: "chat", Timestamp: "2025-01-01T13:00:00Z", Text: "How do I update the phone number on my profile"},
}

const (
	customerServicePlaybook = "Acknowledge the customer and apologise for the delay. Offer a callback when the wait exceeds one day."
	developmentPlaybook     = "Collect device model and app version for every crash report. Escalate outages to the on-call engineer."
	globalPolicy            = "Never promise compensation amounts in writing."
)

// writeCorpus lays out a samples dir and a playbooks dir under t.TempDir.
func writeCorpus(t *testing.T) (samplesDir, playbooksDir string) {
	t.Helper()
	root := t.TempDir()
	samplesDir = filepath.Join(root, "samples")
	playbooksDir = filepath.Join(root, "playbooks")
	require.NoError(t, os.MkdirAll(samplesDir, 0o755))
	require.NoError(t, os.MkdirAll(playbooksDir, 0o755))

	var lines []string
	for _, inc := range sampleIncidents {
		b, err := json.Marshal(inc)
		require.NoError(t, err)
		lines = append(lines, string(b))
	}
	require.NoError(t, os.WriteFile(filepath.Join(samplesDir, "events.jsonl"), []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	for name, body := range map[string]string{
		"CustomerService.md": customerServicePlaybook,
		"DevelopmentIT.md":   developmentPlaybook,
		"GlobalPolicy.md":    globalPolicy,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(playbooksDir, name), []byte(body), 0o644))
	}
	return samplesDir, playbooksDir
}

// countingEmbedder wraps an embedder and counts Embed calls. When gate is
// non-nil each call blocks until it is closed.
type countingEmbedder struct {
	inner embed.Embedder
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: embed.NewHash(128)}
}

func (c *countingEmbedder) Model() string { return c.inner.Model() }

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Embed(ctx, texts)
}

// renamedEmbedder reports a fixed model name, the way a hosted model keeps its
// name when the requested vector length changes. dims is what it admits to.
type renamedEmbedder struct {
	embed.Embedder
	model string
	dims  int
}

func (r renamedEmbedder) Model() string   { return r.model }
func (r renamedEmbedder) Dimensions() int { return r.dims }

var errEmbedDown = errors.New("embedding service down")

const (
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

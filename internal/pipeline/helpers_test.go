package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/internal/cache"
	"github.com/kiranshivaraju/incidentradar/internal/embed"
	"github.com/kiranshivaraju/incidentradar/internal/pipeline"
	"github.com/kiranshivaraju/incidentradar/internal/retrieval"
	"github.com/kiranshivaraju/incidentradar/internal/store"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

var samples = []models.Incident{
	{EventID: "evt-1", Source: "twitter", Timestamp: "2025-01-01T10:00:00Z", Text: "App crashes every time I open the transfer screen"},
	{EventID: "evt-2", Source: "email", Timestamp: "2025-01-01T11:00:00Z", Text: "I was charged twice for my monthly subscription fee"},
	{EventID: "evt-3", Source: "chat", Timestamp: "2025-01-01T12:00:00Z", Text: "Unauthorized charge on my statement, my lawyer is watching this"},
	{EventID: "evt-4", Source: "chat", Timestamp: "2025-01-01T13:00:00Z", Text: "How do I update the address on my profile"},
}

var playbooks = map[string]string{
	"Legal.md":           "When a customer says a lawyer will contact us, route the case to counsel and preserve all correspondence.",
	"Finance.md":         "Verify every unauthorized charge on the customer account against the ledger before replying.",
	"CustomerService.md": "Acknowledge the customer and apologise for the delay.",
	"DevelopmentIT.md":   "Collect device model and app version for every crash report.",
	"GlobalPolicy.md":    "Never commit to compensation amounts in writing.",
}

// chargeAndLawyer is the canonical high-compliance incident.
var chargeAndLawyer = models.Incident{
	EventID:   "evt-100",
	Source:    "email",
	Timestamp: "2025-02-01T09:00:00Z",
	Text:      "There is an unauthorized charge on my card. My lawyer will contact you.",
}

func writeCorpus(t *testing.T, withSamples bool) (samplesDir, playbooksDir string) {
	t.Helper()
	root := t.TempDir()
	samplesDir = filepath.Join(root, "samples")
	playbooksDir = filepath.Join(root, "playbooks")
	require.NoError(t, os.MkdirAll(samplesDir, 0o755))
	require.NoError(t, os.MkdirAll(playbooksDir, 0o755))

	if withSamples {
		var lines []string
		for _, inc := range samples {
			b, err := json.Marshal(inc)
			require.NoError(t, err)
			lines = append(lines, string(b))
		}
		require.NoError(t, os.WriteFile(filepath.Join(samplesDir, "events.jsonl"),
			[]byte(strings.Join(lines, "\n")+"\n"), 0o644))
	}
	for name, body := range playbooks {
		require.NoError(t, os.WriteFile(filepath.Join(playbooksDir, name), []byte(body), 0o644))
	}
	return samplesDir, playbooksDir
}

type fixture struct {
	manager *retrieval.Manager
	store   *store.MemoryStore
	cache   *cache.MemoryCache
	reg     *prometheus.Registry
	metrics *pipeline.Metrics
	service *pipeline.Service
}

type fixtureOpts struct {
	registry    *ai.Registry
	stages      pipeline.Stages
	embedder    embed.Embedder
	noSamples   bool
	concurrency int
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	samplesDir, playbooksDir := writeCorpus(t, !o.noSamples)

	mgr := retrieval.NewManager(retrieval.ManagerConfig{
		SamplesDir:   samplesDir,
		PlaybooksDir: playbooksDir,
		Store:        retrieval.NewIndexStore(filepath.Join(t.TempDir(), "radar.db")),
		Embedder:     o.embedder,
		Cache:        cache.NewMemoryCache(),
	})
	require.NoError(t, mgr.Load(context.Background()))

	f := &fixture{
		manager: mgr,
		store:   store.NewMemoryStore(),
		cache:   cache.NewMemoryCache(),
		reg:     prometheus.NewRegistry(),
	}
	f.metrics = pipeline.NewMetrics(f.reg)
	f.service = pipeline.NewService(pipeline.ServiceConfig{
		Orchestrator: pipeline.NewOrchestrator(o.registry, mgr, o.stages, f.metrics),
		Index:        mgr,
		Store:        f.store,
		Cache:        f.cache,
		Metrics:      f.metrics,
		Concurrency:  o.concurrency,
	})
	return f
}

// stageRegistry serves one client per stage model name; stages without an
// entry are disabled.
func stageRegistry(clients map[string]models.ChatClient) *ai.Registry {
	return ai.NewRegistry(func(cfg models.StageConfig) (models.ChatClient, error) {
		if c, ok := clients[cfg.Model]; ok {
			return c, nil
		}
		return nil, ai.ErrNoClient
	})
}

var namedStages = pipeline.Stages{
	Timeout:    time.Second,
	Signals:    models.StageConfig{Model: "signals-model", Temperature: 0.2, MaxTokens: 800},
	Briefing:   models.StageConfig{Model: "briefing-model", Temperature: 0.2, MaxTokens: 800},
	Guardrails: models.StageConfig{Model: "guardrails-model", Temperature: 0.1, MaxTokens: 400},
}

// metricValue returns the value of the counter name with the given labels,
// or 0 when it has not been observed.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if labelsMatch(m, labels) {
				if c := m.GetCounter(); c != nil {
					return c.GetValue()
				}
				if h := m.GetHistogram(); h != nil {
					return float64(h.GetSampleCount())
				}
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

const (
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/incidentradar/internal/api"
	"github.com/kiranshivaraju/incidentradar/internal/apikey"
	"github.com/kiranshivaraju/incidentradar/internal/app"
	"github.com/kiranshivaraju/incidentradar/internal/cache"
	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/kiranshivaraju/incidentradar/internal/store"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// ─── mock store / cache ─────────────────────────────────────────────────────

type testStore struct {
	store.Store
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }

type testCache struct {
	cache.Cache
	pingErr error
}

func (c *testCache) Ping(_ context.Context) error { return c.pingErr }

type fixedBackend string

func (b fixedBackend) Backend() string { return string(b) }

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testStore{}, &testCache{}, fixedBackend("keyword"))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "keyword", data["retrieval"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	tests := []struct {
		name  string
		store *testStore
		cache *testCache
	}{
		{"database", &testStore{pingErr: errors.New("connection refused")}, &testCache{}},
		{"cache", &testStore{}, &testCache{pingErr: errors.New("redis down")}},
		{"both", &testStore{pingErr: errors.New("db down")}, &testCache{pingErr: errors.New("redis down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := healthHandler(tt.store, tt.cache, fixedBackend("vector"))

			req := httptest.NewRequest("GET", "/api/v1/health", nil)
			w := httptest.NewRecorder()
			h(w, req)

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "DEGRADED", body["error"].(map[string]any)["code"])
		})
	}
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnInvalidConfig(t *testing.T) {
	t.Setenv("AI_PROVIDER", "carrier-pigeon")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnNonPostgresDatabaseURL(t *testing.T) {
	t.Setenv("AI_PROVIDER", "none")
	t.Setenv("DATABASE_URL", "not-a-valid-url")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestRun_FailsOnUnreachableDatabase(t *testing.T) {
	t.Setenv("AI_PROVIDER", "none")
	t.Setenv("DATABASE_URL", "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}

// ─── end-to-end over the in-memory stack ────────────────────────────────────

func newTestServer(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()
	root := t.TempDir()
	samples := filepath.Join(root, "samples")
	playbooks := filepath.Join(root, "playbooks")
	require.NoError(t, os.MkdirAll(samples, 0o755))
	require.NoError(t, os.MkdirAll(playbooks, 0o755))

	var lines []byte
	for _, inc := range []models.Incident{
		{EventID: "s-1", Source: "twitter", Timestamp: "2025-01-01T10:00:00Z", Text: "App crashes every time I open the transfer screen"},
		{EventID: "s-2", Source: "email", Timestamp: "2025-01-01T11:00:00Z", Text: "I was charged twice for my monthly subscription fee"},
	} {
		b, err := json.Marshal(inc)
		require.NoError(t, err)
		lines = append(append(lines, b...), '\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(samples, "events.jsonl"), lines, 0o644))
	for name, body := range map[string]string{
		"Legal.md":   "When a customer says a lawyer will contact us, route the case to counsel and preserve all correspondence.",
		"Finance.md": "Verify every unauthorized charge on the customer account against the ledger before replying.",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(playbooks, name), []byte(body), 0o644))
	}

	cfg := &config.Config{
		Server: config.ServerConfig{BatchConcurrency: 2, RateLimitPerMin: 1000},
		Corpus: config.CorpusConfig{
			SamplesDir:   samples,
			PlaybooksDir: playbooks,
			IndexPath:    filepath.Join(root, "indexes", "radar.db"),
		},
		Embedding: config.EmbeddingConfig{Provider: config.EmbeddingHash, Dimensions: 128},
		AI:        config.AIConfig{Provider: config.ProviderNone},
	}
	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	srv := httptest.NewServer(api.NewRouter(newDependencies(a)))
	t.Cleanup(srv.Close)
	return srv, a
}

type client struct {
	t   *testing.T
	srv *httptest.Server
	key string
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, r)
	require.NoError(c.t, err)
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, out
}

func data[T any](t *testing.T, body []byte) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env.Data
}

func adminClient(t *testing.T, srv *httptest.Server, a *app.App) *client {
	t.Helper()
	raw, key, err := apikey.Generate("e2e", []string{models.ScopeAdmin})
	require.NoError(t, err)
	require.NoError(t, a.Store.CreateAPIKey(context.Background(), key))
	return &client{t: t, srv: srv, key: raw}
}

func TestServer_ProcessAndLookup(t *testing.T) {
	srv, a := newTestServer(t)
	c := adminClient(t, srv, a)

	code, body := (&client{t: t, srv: srv}).do("POST", "/api/v1/incidents", nil)
	require.Equal(t, http.StatusUnauthorized, code, string(body))

	code, body = c.do("POST", "/api/v1/incidents", models.Incident{
		EventID: "evt-100", Source: "email", Timestamp: "2025-02-01T09:00:00Z",
		Text: "There is an unauthorized charge on my card. My lawyer will contact you.",
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	rec := data[models.Record](t, body)
	assert.Equal(t, models.TeamLegal, rec.Routing.PrimaryTeam)
	assert.Equal(t, models.RecordStatusReady, rec.Status)
	assert.True(t, rec.FellBack())

	code, body = c.do("GET", "/api/v1/incidents/"+rec.ID.String(), nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, rec.ID, data[models.Record](t, body).ID)

	code, body = c.do("GET", "/api/v1/incidents?team=Legal", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Len(t, data[[]models.Record](t, body), 1)

	code, body = c.do("GET", "/api/v1/incidents?status=blocked", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Empty(t, data[[]models.Record](t, body))

	code, _ = c.do("POST", "/api/v1/incidents", models.Incident{EventID: "evt-101"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_SamplesDemoAndBatch(t *testing.T) {
	srv, a := newTestServer(t)
	c := adminClient(t, srv, a)

	code, body := c.do("GET", "/api/v1/samples", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Len(t, data[[]models.Incident](t, body), 2)

	code, body = c.do("POST", "/api/v1/demo/run?n=1", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	demo := data[map[string]any](t, body)
	assert.Len(t, demo["records"], 1)

	code, body = c.do("POST", "/api/v1/incidents/batch", map[string]any{"incidents": []models.Incident{
		{EventID: "b-1", Source: "chat", Text: "The app crashes on login"},
		{EventID: "b-2", Source: "chat"},
	}})
	require.Equal(t, http.StatusOK, code, string(body))
	batch := data[map[string]any](t, body)
	assert.Len(t, batch["records"], 1)
	assert.Len(t, batch["failures"], 1)
}

func TestServer_IndexBuild(t *testing.T) {
	srv, a := newTestServer(t)
	c := adminClient(t, srv, a)

	code, body := c.do("POST", "/api/v1/indexes/build", nil)
	require.Equal(t, http.StatusAccepted, code, string(body))
	build := data[models.IndexBuild](t, body)

	assert.Eventually(t, func() bool {
		code, body := c.do("GET", "/api/v1/indexes/builds/"+build.ID.String()+"/status", nil)
		return code == http.StatusOK && data[map[string]string](t, body)["status"] == models.BuildStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	code, body = c.do("GET", "/api/v1/indexes/builds/latest", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	latest := data[models.IndexBuild](t, body)
	assert.Equal(t, build.ID, latest.ID)
	assert.Equal(t, 2, latest.Events)
	assert.Equal(t, 2, latest.Playbooks)

	code, body = c.do("GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "vector", data[map[string]any](t, body)["retrieval"])
}

func TestServer_Metrics(t *testing.T) {
	srv, a := newTestServer(t)
	c := adminClient(t, srv, a)

	code, _ := c.do("POST", "/api/v1/incidents", models.Incident{EventID: "m-1", Source: "chat", Text: "refund please"})
	require.Equal(t, http.StatusCreated, code)

	code, body := (&client{t: t, srv: srv}).do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "radar_records_total")
	assert.Contains(t, string(body), "radar_stage_fallbacks_total")
}

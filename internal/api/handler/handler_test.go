package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/internal/pipeline"
	"github.com/kiranshivaraju/incidentradar/internal/retrieval"
	"github.com/kiranshivaraju/incidentradar/internal/store"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// --- mock service ---

type mockService struct {
	process     func(models.Incident) (*models.Record, error)
	batch       func([]models.Incident) (*pipeline.BatchResult, error)
	samples     func() ([]models.Incident, error)
	demo        func(n int) (*pipeline.BatchResult, error)
	getRecord   func(uuid.UUID) (*models.Record, error)
	listRecords func(store.RecordFilter) ([]*models.Record, int, error)
	startBuild  func() (*models.IndexBuild, error)
	getBuild    func(uuid.UUID) (*models.IndexBuild, error)
	buildStatus func(uuid.UUID) (string, error)
}

func (m *mockService) Process(_ context.Context, inc models.Incident) (*models.Record, error) {
	return m.process(inc)
}
func (m *mockService) ProcessBatch(_ context.Context, incs []models.Incident) (*pipeline.BatchResult, error) {
	return m.batch(incs)
}
func (m *mockService) Samples() ([]models.Incident, error) { return m.samples() }
func (m *mockService) RunDemo(_ context.Context, n int) (*pipeline.BatchResult, error) {
	return m.demo(n)
}
func (m *mockService) GetRecord(_ context.Context, id uuid.UUID) (*models.Record, error) {
	return m.getRecord(id)
}
func (m *mockService) ListRecords(_ context.Context, f store.RecordFilter) ([]*models.Record, int, error) {
	return m.listRecords(f)
}
func (m *mockService) StartIndexBuild(_ context.Context) (*models.IndexBuild, error) {
	return m.startBuild()
}
func (m *mockService) GetIndexBuild(_ context.Context, id uuid.UUID) (*models.IndexBuild, error) {
	return m.getBuild(id)
}
func (m *mockService) LatestIndexBuild(_ context.Context) (*models.IndexBuild, error) {
	return m.getBuild(uuid.Nil)
}
func (m *mockService) BuildStatus(_ context.Context, id uuid.UUID) (string, error) {
	return m.buildStatus(id)
}

var (
	_ Processor    = (*mockService)(nil)
	_ RecordReader = (*mockService)(nil)
	_ SampleRunner = (*mockService)(nil)
	_ IndexBuilder = (*mockService)(nil)
)

// --- mock key store ---

type mockKeyStore struct {
	keys    []*models.APIKey
	revoked []uuid.UUID
	err     error
}

func (m *mockKeyStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	return nil
}
func (m *mockKeyStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error) { return m.keys, m.err }
func (m *mockKeyStore) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.revoked = append(m.revoked, id)
	return nil
}

// --- helpers ---

func jsonReq(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var b []byte
	switch v := body.(type) {
	case string:
		b = []byte(v)
	default:
		var err error
		b, err = json.Marshal(body)
		require.NoError(t, err)
	}
	r := httptest.NewRequest(method, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withParam sets a chi URL parameter as the router would.
func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func parseData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	env := struct {
		Data any `json:"data"`
	}{Data: v}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

func sampleRecord(inc models.Incident) *models.Record {
	return &models.Record{
		ID:       uuid.New(),
		Incident: inc,
		Routing:  models.RoutingDecision{PrimaryTeam: models.TeamLegal, Watchers: []models.Team{models.TeamManagement}, Priority: models.PriorityP0},
		Briefing: models.BriefingOutput{
			Briefing:  models.Briefing{SituationBackground: "Customer disputes a charge."},
			Citations: models.Citations{PlaybookReferences: []string{"Legal_0"}, EvidenceSources: []string{"email"}},
		},
		Guardrails: models.GuardrailResult{Passed: true, Issues: []string{}},
		Status:     models.RecordStatusReady,
	}
}

var validIncident = models.Incident{EventID: "evt-1", Source: "email", Text: "unauthorized charge"}

// ========================================
// Process / briefing / batch
// ========================================

func TestProcess_Created(t *testing.T) {
	svc := &mockService{process: func(inc models.Incident) (*models.Record, error) {
		return sampleRecord(inc), nil
	}}

	rec := serve(NewProcessHandler(svc), jsonReq(t, "POST", "/api/v1/incidents", validIncident))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got models.Record
	parseData(t, rec, &got)
	assert.Equal(t, "evt-1", got.Incident.EventID)
	assert.Equal(t, models.RecordStatusReady, got.Status)
}

func TestProcess_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"invalid incident", fmt.Errorf("%w: %w", pipeline.ErrInvalidIncident, models.ErrMissingText), http.StatusBadRequest, "INVALID_INCIDENT"},
		{"strict fallback", fmt.Errorf("briefing: %w: timeout", ai.ErrStrictFallback), http.StatusBadGateway, "STRICT_FALLBACK"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{process: func(models.Incident) (*models.Record, error) { return nil, tt.err }}

			rec := serve(NewProcessHandler(svc), jsonReq(t, "POST", "/api/v1/incidents", validIncident))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.want, parseErr(t, rec))
		})
	}
}

func TestProcess_InvalidJSON(t *testing.T) {
	svc := &mockService{process: func(models.Incident) (*models.Record, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	rec := serve(NewProcessHandler(svc), jsonReq(t, "POST", "/api/v1/incidents", "{not json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", parseErr(t, rec))
}

func TestBriefing_ReturnsBriefingOnly(t *testing.T) {
	want := sampleRecord(validIncident)
	svc := &mockService{process: func(models.Incident) (*models.Record, error) { return want, nil }}

	rec := serve(NewBriefingHandler(svc), jsonReq(t, "POST", "/api/v1/incidents/briefing", validIncident))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	parseData(t, rec, &got)
	assert.Equal(t, want.ID.String(), got["record_id"])
	assert.Equal(t, "ready", got["status"])
	assert.Contains(t, got, "briefing")
	assert.Contains(t, got, "citations")
	assert.NotContains(t, got, "signals")
	assert.NotContains(t, got, "risk_scores")
}

func TestBatch(t *testing.T) {
	var got []models.Incident
	svc := &mockService{batch: func(incs []models.Incident) (*pipeline.BatchResult, error) {
		got = incs
		return &pipeline.BatchResult{Analysis: models.BatchAnalysis{TotalIncidents: len(incs)}}, nil
	}}

	body := map[string]any{"incidents": []models.Incident{validIncident, validIncident}}
	rec := serve(NewBatchHandler(svc), jsonReq(t, "POST", "/api/v1/incidents/batch", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, got, 2)
}

func TestBatch_Rejects(t *testing.T) {
	svc := &mockService{batch: func(incs []models.Incident) (*pipeline.BatchResult, error) {
		if len(incs) == 0 {
			return nil, pipeline.ErrEmptyBatch
		}
		t.Fatal("oversized batch reached the service")
		return nil, nil
	}}

	rec := serve(NewBatchHandler(svc), jsonReq(t, "POST", "/", map[string]any{"incidents": []models.Incident{}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", parseErr(t, rec))

	big := make([]models.Incident, MaxBatchSize+1)
	rec = serve(NewBatchHandler(svc), jsonReq(t, "POST", "/", map[string]any{"incidents": big}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BATCH_TOO_LARGE", parseErr(t, rec))
}

// ========================================
// Records
// ========================================

func TestGetRecord(t *testing.T) {
	want := sampleRecord(validIncident)
	svc := &mockService{getRecord: func(id uuid.UUID) (*models.Record, error) {
		if id == want.ID {
			return want, nil
		}
		return nil, store.ErrNotFound
	}}

	rec := serve(NewGetRecordHandler(svc), withParam(httptest.NewRequest("GET", "/", nil), "recordID", want.ID.String()))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(NewGetRecordHandler(svc), withParam(httptest.NewRequest("GET", "/", nil), "recordID", uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RESOURCE_NOT_FOUND", parseErr(t, rec))

	rec = serve(NewGetRecordHandler(svc), withParam(httptest.NewRequest("GET", "/", nil), "recordID", "not-a-uuid"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecords_FiltersAndMeta(t *testing.T) {
	var got store.RecordFilter
	svc := &mockService{listRecords: func(f store.RecordFilter) ([]*models.Record, int, error) {
		got = f
		return []*models.Record{sampleRecord(validIncident)}, 45, nil
	}}

	req := httptest.NewRequest("GET", "/api/v1/incidents?status=blocked&team=Legal&priority=P0&page=2&limit=20", nil)
	rec := serve(NewListRecordsHandler(svc), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.RecordFilter{
		Status: models.RecordStatusBlocked, Team: models.TeamLegal, Priority: models.PriorityP0, Page: 2, Limit: 20,
	}, got)

	var env struct {
		Data []any `json:"data"`
		Meta struct {
			Page    int  `json:"page"`
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Len(t, env.Data, 1)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, 45, env.Meta.Total)
	assert.True(t, env.Meta.HasNext)
}

func TestListRecords_Defaults(t *testing.T) {
	var got store.RecordFilter
	svc := &mockService{listRecords: func(f store.RecordFilter) ([]*models.Record, int, error) {
		got = f
		return nil, 0, nil
	}}

	rec := serve(NewListRecordsHandler(svc), httptest.NewRequest("GET", "/api/v1/incidents?limit=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, 100, got.Limit)
	assert.JSONEq(t, `{"data":[],"meta":{"page":1,"limit":100,"total":0,"has_next":false}}`, rec.Body.String())
}

func TestListRecords_InvalidFilters(t *testing.T) {
	svc := &mockService{listRecords: func(store.RecordFilter) ([]*models.Record, int, error) {
		t.Fatal("service must not be called")
		return nil, 0, nil
	}}

	for _, q := range []string{"status=done", "team=Sales", "priority=P9", "page=-1", "limit=abc"} {
		rec := serve(NewListRecordsHandler(svc), httptest.NewRequest("GET", "/api/v1/incidents?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

// ========================================
// Samples / demo
// ========================================

func TestSamples_NotFound(t *testing.T) {
	svc := &mockService{samples: func() ([]models.Incident, error) { return nil, retrieval.ErrNoSamples }}

	rec := serve(NewSamplesHandler(svc), httptest.NewRequest("GET", "/api/v1/samples", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_SAMPLES", parseErr(t, rec))
}

func TestDemo_SampleCount(t *testing.T) {
	var gotN int
	svc := &mockService{demo: func(n int) (*pipeline.BatchResult, error) {
		gotN = n
		return &pipeline.BatchResult{}, nil
	}}

	rec := serve(NewDemoHandler(svc), httptest.NewRequest("POST", "/api/v1/demo/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.DefaultDemoSize, gotN)

	rec = serve(NewDemoHandler(svc), httptest.NewRequest("POST", "/api/v1/demo/run?n=2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, gotN)

	rec = serve(NewDemoHandler(svc), httptest.NewRequest("POST", "/api/v1/demo/run?n=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ========================================
// Index builds
// ========================================

func TestStartBuild_Accepted(t *testing.T) {
	build := &models.IndexBuild{ID: uuid.New(), Status: models.BuildStatusPending, EmbeddingModel: "hash-384"}
	svc := &mockService{startBuild: func() (*models.IndexBuild, error) { return build, nil }}

	rec := serve(NewStartBuildHandler(svc), httptest.NewRequest("POST", "/api/v1/indexes/build", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/v1/indexes/builds/"+build.ID.String(), rec.Header().Get("Location"))
	var got models.IndexBuild
	parseData(t, rec, &got)
	assert.Equal(t, build.ID, got.ID)
	assert.Equal(t, "pending", got.Status)
}

func TestStartBuild_EmbeddingsDisabled(t *testing.T) {
	svc := &mockService{startBuild: func() (*models.IndexBuild, error) { return nil, retrieval.ErrNoEmbedder }}

	rec := serve(NewStartBuildHandler(svc), httptest.NewRequest("POST", "/api/v1/indexes/build", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMBEDDINGS_DISABLED", parseErr(t, rec))
}

func TestBuildStatus(t *testing.T) {
	id := uuid.New()
	svc := &mockService{buildStatus: func(got uuid.UUID) (string, error) {
		if got != id {
			return "", store.ErrNotFound
		}
		return models.BuildStatusRunning, nil
	}}

	rec := serve(NewBuildStatusHandler(svc), withParam(httptest.NewRequest("GET", "/", nil), "buildID", id.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	parseData(t, rec, &got)
	assert.Equal(t, map[string]string{"id": id.String(), "status": "running"}, got)

	rec = serve(NewBuildStatusHandler(svc), withParam(httptest.NewRequest("GET", "/", nil), "buildID", uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestBuild_NoneYet(t *testing.T) {
	svc := &mockService{getBuild: func(uuid.UUID) (*models.IndexBuild, error) { return nil, store.ErrNotFound }}

	rec := serve(NewLatestBuildHandler(svc), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ========================================
// Admin keys
// ========================================

func TestCreateKey(t *testing.T) {
	ks := &mockKeyStore{}

	rec := serve(NewCreateKeyHandler(ks), jsonReq(t, "POST", "/api/v1/admin/keys",
		map[string]any{"name": "ops", "scopes": []string{"process"}}))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got map[string]any
	parseData(t, rec, &got)
	require.Len(t, ks.keys, 1)
	assert.Equal(t, "ops", got["name"])
	assert.Equal(t, ks.keys[0].KeyPrefix, got["key_prefix"])
	assert.Contains(t, got["key"], ks.keys[0].KeyPrefix)
	assert.NotContains(t, got, "key_hash")
}

func TestCreateKey_Invalid(t *testing.T) {
	ks := &mockKeyStore{}

	rec := serve(NewCreateKeyHandler(ks), jsonReq(t, "POST", "/", map[string]any{"name": ""}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(NewCreateKeyHandler(ks), jsonReq(t, "POST", "/", map[string]any{"name": "x", "scopes": []string{"root"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ks.keys)
}

func TestListKeys_Empty(t *testing.T) {
	rec := serve(NewListKeysHandler(&mockKeyStore{}), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestRevokeKey(t *testing.T) {
	ks := &mockKeyStore{}
	id := uuid.New()

	rec := serve(NewRevokeKeyHandler(ks), withParam(httptest.NewRequest("DELETE", "/", nil), "keyID", id.String()))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, ks.revoked)

	ks.err = store.ErrNotFound
	rec = serve(NewRevokeKeyHandler(ks), withParam(httptest.NewRequest("DELETE", "/", nil), "keyID", id.String()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/incidentradar/internal/api/response"
	"github.com/kiranshivaraju/incidentradar/internal/pipeline"
	"github.com/kiranshivaraju/incidentradar/internal/store"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// MaxBatchSize bounds one batch request.
const MaxBatchSize = 100

// Processor runs incidents through the triage pipeline.
type Processor interface {
	Process(ctx context.Context, inc models.Incident) (*models.Record, error)
	ProcessBatch(ctx context.Context, incidents []models.Incident) (*pipeline.BatchResult, error)
}

// RecordReader serves persisted records.
type RecordReader interface {
	GetRecord(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListRecords(ctx context.Context, filter store.RecordFilter) ([]*models.Record, int, error)
}

// NewProcessHandler returns an http.HandlerFunc for POST /api/v1/incidents.
func NewProcessHandler(svc Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var inc models.Incident
		if !decodeBody(w, r, &inc) {
			return
		}
		rec, err := svc.Process(r.Context(), inc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, rec)
	}
}

type briefingResponse struct {
	RecordID   uuid.UUID              `json:"record_id"`
	Status     models.RecordStatus    `json:"status"`
	Routing    models.RoutingDecision `json:"routing"`
	Briefing   models.Briefing        `json:"briefing"`
	Citations  models.Citations       `json:"citations"`
	Guardrails models.GuardrailResult `json:"guardrails"`
}

// NewBriefingHandler returns an http.HandlerFunc for
// POST /api/v1/incidents/briefing. It runs the full pipeline, so the record
// is persisted, but answers with the responder briefing only.
func NewBriefingHandler(svc Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var inc models.Incident
		if !decodeBody(w, r, &inc) {
			return
		}
		rec, err := svc.Process(r.Context(), inc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, briefingResponse{
			RecordID:   rec.ID,
			Status:     rec.Status,
			Routing:    rec.Routing,
			Briefing:   rec.Briefing.Briefing,
			Citations:  rec.Briefing.Citations,
			Guardrails: rec.Guardrails,
		})
	}
}

// NewBatchHandler returns an http.HandlerFunc for POST /api/v1/incidents/batch.
func NewBatchHandler(svc Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Incidents []models.Incident `json:"incidents"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Incidents) > MaxBatchSize {
			response.Error(w, http.StatusBadRequest, "BATCH_TOO_LARGE",
				"A batch may hold at most 100 incidents", map[string]int{"max": MaxBatchSize})
			return
		}
		res, err := svc.ProcessBatch(r.Context(), req.Incidents)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, res)
	}
}

// NewGetRecordHandler returns an http.HandlerFunc for GET /api/v1/incidents/{recordID}.
func NewGetRecordHandler(svc RecordReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "recordID")
		if !ok {
			return
		}
		rec, err := svc.GetRecord(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, rec)
	}
}

// NewListRecordsHandler returns an http.HandlerFunc for GET /api/v1/incidents.
// Supported filters: status, team, priority; paginated with page and limit.
func NewListRecordsHandler(svc RecordReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.RecordFilter{
			Status:   models.RecordStatus(q.Get("status")),
			Team:     models.Team(q.Get("team")),
			Priority: models.Priority(q.Get("priority")),
		}
		details := map[string]string{}
		if filter.Status != "" && !filter.Status.Valid() {
			details["status"] = "must be one of pending, ready, blocked"
		}
		if filter.Team != "" && !filter.Team.Valid() {
			details["team"] = "unknown team"
		}
		if filter.Priority != "" && !filter.Priority.Valid() {
			details["priority"] = "must be one of P0, P1, P2, P3"
		}
		if len(details) > 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid filter", details)
			return
		}

		var ok bool
		if filter.Page, ok = queryInt(w, r, "page", 1); !ok {
			return
		}
		if filter.Limit, ok = queryInt(w, r, "limit", 20); !ok {
			return
		}
		filter.Page = max(filter.Page, 1)
		filter.Limit = min(max(filter.Limit, 1), 100)

		records, total, err := svc.ListRecords(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if records == nil {
			records = []*models.Record{}
		}
		response.Collection(w, records, response.Page(filter.Page, filter.Limit, total))
	}
}

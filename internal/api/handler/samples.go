package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/incidentradar/internal/api/response"
	"github.com/kiranshivaraju/incidentradar/internal/pipeline"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

type SampleRunner interface {
	Samples() ([]models.Incident, error)
	RunDemo(ctx context.Context, n int) (*pipeline.BatchResult, error)
}

// NewSamplesHandler returns an http.HandlerFunc for GET /api/v1/samples.
func NewSamplesHandler(svc SampleRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		samples, err := svc.Samples()
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, samples)
	}
}

// NewDemoHandler returns an http.HandlerFunc for POST /api/v1/demo/run.
// The optional n query parameter caps how many samples are processed.
func NewDemoHandler(svc SampleRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := queryInt(w, r, "n", pipeline.DefaultDemoSize)
		if !ok {
			return
		}
		if n > MaxBatchSize {
			n = MaxBatchSize
		}
		res, err := svc.RunDemo(r.Context(), n)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, res)
	}
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/internal/api/response"
	"github.com/kiranshivaraju/incidentradar/internal/apikey"
	"github.com/kiranshivaraju/incidentradar/internal/pipeline"
	"github.com/kiranshivaraju/incidentradar/internal/retrieval"
	"github.com/kiranshivaraju/incidentradar/internal/store"
)

// writeError maps service errors onto the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidIncident):
		response.Error(w, http.StatusBadRequest, "INVALID_INCIDENT", err.Error(), nil)
	case errors.Is(err, pipeline.ErrEmptyBatch):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "incidents must not be empty", nil)
	case errors.Is(err, apikey.ErrMissingName), errors.Is(err, apikey.ErrInvalidScope):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, retrieval.ErrNoSamples):
		response.Error(w, http.StatusNotFound, "NO_SAMPLES", "No sample incidents are loaded", nil)
	case errors.Is(err, retrieval.ErrIndexNotFound):
		response.Error(w, http.StatusNotFound, "INDEX_NOT_FOUND", "No retrieval index has been built", nil)
	case errors.Is(err, retrieval.ErrNoEmbedder):
		response.Error(w, http.StatusConflict, "EMBEDDINGS_DISABLED",
			"No embedding provider is configured", nil)
	case errors.Is(err, ai.ErrStrictFallback):
		response.Error(w, http.StatusBadGateway, "STRICT_FALLBACK", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusGatewayTimeout, "TIMEOUT", "The request took too long", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/incidentradar/internal/api/response"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// IndexBuilder starts and reports on retrieval index builds.
type IndexBuilder interface {
	StartIndexBuild(ctx context.Context) (*models.IndexBuild, error)
	GetIndexBuild(ctx context.Context, id uuid.UUID) (*models.IndexBuild, error)
	LatestIndexBuild(ctx context.Context) (*models.IndexBuild, error)
	BuildStatus(ctx context.Context, id uuid.UUID) (string, error)
}

// NewStartBuildHandler returns an http.HandlerFunc for POST /api/v1/indexes/build.
// The build runs in the background; clients poll the returned id.
func NewStartBuildHandler(svc IndexBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		build, err := svc.StartIndexBuild(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/v1/indexes/builds/"+build.ID.String())
		response.Accepted(w, build)
	}
}

// NewGetBuildHandler returns an http.HandlerFunc for GET /api/v1/indexes/builds/{buildID}.
func NewGetBuildHandler(svc IndexBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "buildID")
		if !ok {
			return
		}
		build, err := svc.GetIndexBuild(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, build)
	}
}

// NewLatestBuildHandler returns an http.HandlerFunc for GET /api/v1/indexes/builds/latest.
func NewLatestBuildHandler(svc IndexBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		build, err := svc.LatestIndexBuild(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, build)
	}
}

// NewBuildStatusHandler returns an http.HandlerFunc for
// GET /api/v1/indexes/builds/{buildID}/status. It is the cheap poll.
func NewBuildStatusHandler(svc IndexBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "buildID")
		if !ok {
			return
		}
		status, err := svc.BuildStatus(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, map[string]string{"id": id.String(), "status": status})
	}
}

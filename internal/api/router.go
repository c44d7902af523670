package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	mw "github.com/kiranshivaraju/incidentradar/internal/api/middleware"
	"github.com/kiranshivaraju/incidentradar/internal/api/response"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const healthPath = "/api/v1/health"

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	ProcessHandler  http.HandlerFunc
	BriefingHandler http.HandlerFunc
	BatchHandler    http.HandlerFunc
	ListRecords     http.HandlerFunc
	GetRecord       http.HandlerFunc
	SamplesHandler  http.HandlerFunc
	DemoHandler     http.HandlerFunc

	StartBuildHandler  http.HandlerFunc
	GetBuildHandler    http.HandlerFunc
	LatestBuildHandler http.HandlerFunc
	BuildStatusHandler http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes,
// wrapped in OpenTelemetry HTTP instrumentation.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get(healthPath, orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeRead))

			r.Get("/api/v1/incidents", orNotImplemented(deps.ListRecords))
			r.Get("/api/v1/incidents/{recordID}", orNotImplemented(deps.GetRecord))
			r.Get("/api/v1/samples", orNotImplemented(deps.SamplesHandler))
			r.Get("/api/v1/indexes/builds/latest", orNotImplemented(deps.LatestBuildHandler))
			r.Get("/api/v1/indexes/builds/{buildID}", orNotImplemented(deps.GetBuildHandler))
			r.Get("/api/v1/indexes/builds/{buildID}/status", orNotImplemented(deps.BuildStatusHandler))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeProcess))

			r.Post("/api/v1/incidents", orNotImplemented(deps.ProcessHandler))
			r.Post("/api/v1/incidents/briefing", orNotImplemented(deps.BriefingHandler))
			r.Post("/api/v1/incidents/batch", orNotImplemented(deps.BatchHandler))
			r.Post("/api/v1/demo/run", orNotImplemented(deps.DemoHandler))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Post("/api/v1/indexes/build", orNotImplemented(deps.StartBuildHandler))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != healthPath && r.URL.Path != "/metrics"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

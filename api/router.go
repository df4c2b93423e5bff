package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/versiond/metrics"
	"github.com/GoCodeAlone/versiond/migration"
	"github.com/GoCodeAlone/versiond/negotiate"
	"github.com/GoCodeAlone/versiond/registry"
)

// Deps groups the services the API layer serves.
type Deps struct {
	Registry *registry.Service
	Detector *negotiate.Detector
	Resolver *negotiate.Resolver
	Analyzer *negotiate.Analyzer
	Planner  *migration.Planner
	Executor *migration.Executor

	// DefaultVersion is echoed in version-error bodies.
	DefaultVersion string
	Logger         *slog.Logger
	// Metrics may be nil to disable the /metrics endpoint and all
	// instrumentation.
	Metrics *metrics.Collector
}

// NewRouter creates an http.Handler with all routes registered. Every
// route except /metrics and /healthz runs behind version detection;
// those two must also appear in the detector's excluded paths.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	mw := NewMiddleware(d.Detector, d.Resolver, d.DefaultVersion, d.Logger, d.Metrics)
	detect := func(h http.HandlerFunc) http.Handler {
		return mw.DetectVersion(h)
	}

	// --- Version catalog ---
	verH := NewVersionHandler(d.Registry, d.Resolver, d.Analyzer, d.Logger, d.Metrics)
	mux.Handle("POST /api/versions", detect(verH.Create))
	mux.Handle("GET /api/versions", detect(verH.List))
	mux.Handle("GET /api/versions/{version}", detect(verH.Get))
	mux.Handle("PUT /api/versions/{version}", detect(verH.Update))
	mux.Handle("DELETE /api/versions/{version}", detect(verH.Delete))

	// --- Negotiation and compatibility ---
	mux.Handle("POST /api/negotiate", detect(verH.Negotiate))
	mux.Handle("GET /api/compatibility", detect(verH.Compatibility))

	// --- Migrations ---
	migH := NewMigrationHandler(d.Planner, d.Executor, d.Logger)
	mux.Handle("POST /api/migrations", detect(migH.Create))
	mux.Handle("GET /api/migrations", detect(migH.List))
	mux.Handle("GET /api/migrations/{id}", detect(migH.Status))
	mux.Handle("POST /api/migrations/{id}/execute", detect(migH.Execute))
	mux.Handle("POST /api/migrations/{id}/rollback", detect(migH.Rollback))

	// --- Operational endpoints, outside version detection ---
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

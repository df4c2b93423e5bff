package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GoCodeAlone/versiond/metrics"
	"github.com/GoCodeAlone/versiond/negotiate"
	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/semver"
)

// VersionHandler serves the version catalog, negotiation and
// compatibility endpoints.
type VersionHandler struct {
	registry *registry.Service
	resolver *negotiate.Resolver
	analyzer *negotiate.Analyzer
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewVersionHandler creates a VersionHandler.
func NewVersionHandler(reg *registry.Service, resolver *negotiate.Resolver, analyzer *negotiate.Analyzer, logger *slog.Logger, collector *metrics.Collector) *VersionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionHandler{
		registry: reg,
		resolver: resolver,
		analyzer: analyzer,
		logger:   logger,
		metrics:  collector,
	}
}

// Create handles POST /api/versions.
func (h *VersionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec registry.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.decodeError(w, err)
		return
	}

	if err := h.registry.Create(r.Context(), &rec); err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicate):
			WriteError(w, http.StatusConflict, CodeDuplicate, err.Error())
		case errors.Is(err, registry.ErrInvalidRecord):
			WriteError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		default:
			h.internal(w, "create version", err)
		}
		return
	}
	WriteJSON(w, http.StatusCreated, rec)
}

// List handles GET /api/versions.
func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := registry.Filter{Status: registry.Status(q.Get("status"))}
	if f.Status != "" && !f.Status.Valid() {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "unknown status "+string(f.Status))
		return
	}
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	records, err := h.registry.List(r.Context(), f)
	if err != nil {
		h.internal(w, "list versions", err)
		return
	}
	if records == nil {
		records = []*registry.Record{}
	}
	WriteJSON(w, http.StatusOK, records)
}

// Get handles GET /api/versions/{version}.
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, ok := h.pathVersion(w, r, "version")
	if !ok {
		return
	}

	rec, err := h.registry.Get(r.Context(), v)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, err.Error())
			return
		}
		h.internal(w, "get version", err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Update handles PUT /api/versions/{version}. The path identifies the
// record; a version field in the body is ignored.
func (h *VersionHandler) Update(w http.ResponseWriter, r *http.Request) {
	v, ok := h.pathVersion(w, r, "version")
	if !ok {
		return
	}

	var rec registry.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.decodeError(w, err)
		return
	}
	rec.Version = v

	if err := h.registry.Update(r.Context(), &rec); err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			WriteError(w, http.StatusNotFound, CodeNotFound, err.Error())
		case errors.Is(err, registry.ErrInvalidRecord):
			WriteError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		default:
			h.internal(w, "update version", err)
		}
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/versions/{version}. Deletion is soft: the
// record transitions to retired and stays readable.
func (h *VersionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	v, ok := h.pathVersion(w, r, "version")
	if !ok {
		return
	}

	if err := h.registry.Delete(r.Context(), v); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, err.Error())
			return
		}
		h.internal(w, "delete version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Negotiate handles POST /api/negotiate.
func (h *VersionHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	var req negotiate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.decodeError(w, err)
		return
	}

	result := negotiate.Negotiate(req, h.resolver.Supported())
	if h.metrics != nil {
		h.metrics.Negotiations.WithLabelValues(strconv.FormatBool(result.MigrationRequired)).Inc()
	}
	WriteJSON(w, http.StatusOK, result)
}

// Compatibility handles GET /api/compatibility?source=&target=.
func (h *VersionHandler) Compatibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	source, err := semver.Parse(q.Get("source"))
	if err != nil {
		WriteVersionError(w, http.StatusBadRequest, CodeInvalidVersionFormat,
			"source: "+err.Error(), h.resolver.Supported(), "")
		return
	}
	target, err := semver.Parse(q.Get("target"))
	if err != nil {
		WriteVersionError(w, http.StatusBadRequest, CodeInvalidVersionFormat,
			"target: "+err.Error(), h.resolver.Supported(), "")
		return
	}

	WriteJSON(w, http.StatusOK, h.analyzer.Check(r.Context(), source, target))
}

// pathVersion parses the {version} path parameter, writing a 400 on
// failure.
func (h *VersionHandler) pathVersion(w http.ResponseWriter, r *http.Request, key string) (semver.Version, bool) {
	v, err := semver.Parse(r.PathValue(key))
	if err != nil {
		WriteVersionError(w, http.StatusBadRequest, CodeInvalidVersionFormat,
			err.Error(), h.resolver.Supported(), "")
		return semver.Version{}, false
	}
	return v, true
}

func (h *VersionHandler) decodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, semver.ErrInvalidFormat) {
		WriteVersionError(w, http.StatusBadRequest, CodeInvalidVersionFormat,
			err.Error(), h.resolver.Supported(), "")
		return
	}
	WriteError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
}

func (h *VersionHandler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, "error", err)
	WriteError(w, http.StatusInternalServerError, CodeInternal, op+" failed")
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GoCodeAlone/versiond/migration"
	"github.com/GoCodeAlone/versiond/semver"
)

// MigrationHandler serves migration plan creation, execution, rollback
// and status endpoints.
type MigrationHandler struct {
	planner  *migration.Planner
	executor *migration.Executor
	logger   *slog.Logger
}

// NewMigrationHandler creates a MigrationHandler.
func NewMigrationHandler(planner *migration.Planner, executor *migration.Executor, logger *slog.Logger) *MigrationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MigrationHandler{planner: planner, executor: executor, logger: logger}
}

type createPlanRequest struct {
	SourceVersion semver.Version `json:"source_version"`
	TargetVersion semver.Version `json:"target_version"`
	Name          string         `json:"name"`
	CreatedBy     string         `json:"created_by,omitempty"`
}

// Create handles POST /api/migrations.
func (h *MigrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, semver.ErrInvalidFormat) {
			WriteError(w, http.StatusBadRequest, CodeInvalidVersionFormat, err.Error())
			return
		}
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "name is required")
		return
	}

	plan, err := h.planner.CreatePlan(r.Context(), req.SourceVersion, req.TargetVersion, req.Name, req.CreatedBy)
	if err != nil {
		h.internal(w, "create migration plan", err)
		return
	}
	WriteJSON(w, http.StatusCreated, plan)
}

// Execute handles POST /api/migrations/{id}/execute. The dry_run query
// parameter runs handlers in dry-run mode.
func (h *MigrationHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	plan, err := h.executor.Execute(r.Context(), id, dryRun)
	if err != nil {
		h.executionError(w, "execute migration", err)
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}

// Rollback handles POST /api/migrations/{id}/rollback.
func (h *MigrationHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	plan, err := h.executor.Rollback(r.Context(), r.PathValue("id"))
	if err != nil {
		h.executionError(w, "rollback migration", err)
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}

// Status handles GET /api/migrations/{id}.
func (h *MigrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	plan, err := h.executor.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, migration.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, err.Error())
			return
		}
		h.internal(w, "migration status", err)
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}

// List handles GET /api/migrations?status=&limit=.
func (h *MigrationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := migration.PlanStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "unknown status "+string(status))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	plans, err := h.executor.List(r.Context(), status, limit)
	if err != nil {
		h.internal(w, "list migrations", err)
		return
	}
	if plans == nil {
		plans = []*migration.Plan{}
	}
	WriteJSON(w, http.StatusOK, plans)
}

// executionError maps executor errors: absent plans are 404, illegal
// state transitions are 409, everything else is a 500. A failed run
// still returns the error; the persisted plan keeps the detail.
func (h *MigrationHandler) executionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, migration.ErrNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, migration.ErrInvalidState):
		WriteError(w, http.StatusConflict, CodeInvalidState, err.Error())
	default:
		h.internal(w, op, err)
	}
}

func (h *MigrationHandler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, "error", err)
	WriteError(w, http.StatusInternalServerError, CodeInternal, op+" failed")
}

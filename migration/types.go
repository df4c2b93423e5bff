// Package migration plans and executes multi-step upgrade and rollback
// procedures between API versions.
package migration

import (
	"errors"
	"time"

	"github.com/GoCodeAlone/versiond/semver"
)

// Sentinel errors for migration operations.
var (
	// ErrNotFound is returned for unknown plan ids.
	ErrNotFound = errors.New("migration plan not found")
	// ErrInvalidState is returned when an operation is illegal in the
	// plan's current status.
	ErrInvalidState = errors.New("invalid migration state")
)

// StepType identifies the kind of work a migration step performs.
// One handler is registered per type.
type StepType string

const (
	StepSchema        StepType = "schema"
	StepEndpoint      StepType = "endpoint"
	StepDataTransform StepType = "data_transform"
	StepConfig        StepType = "config"
	StepValidation    StepType = "validation"
	StepCleanup       StepType = "cleanup"
)

// Step is one unit of work in a migration plan.
type Step struct {
	ID          string         `json:"id"`
	Type        StepType       `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	// EstimatedDuration is in minutes.
	EstimatedDuration int `json:"estimated_duration"`
}

// cloneForRollback produces the rollback mirror of a step: same type
// and duration, renamed, with the original parameters copied verbatim
// plus a rollback marker. Parameters that only matter for the forward
// direction are carried along unchanged; rollback handlers ignore them.
func (s Step) cloneForRollback() Step {
	params := make(map[string]any, len(s.Parameters)+1)
	for k, v := range s.Parameters {
		params[k] = v
	}
	params["rollback"] = true

	return Step{
		ID:                s.ID + "-rollback",
		Type:              s.Type,
		Name:              "rollback: " + s.Name,
		Description:       s.Description,
		Parameters:        params,
		EstimatedDuration: s.EstimatedDuration,
	}
}

// PlanStatus is the lifecycle state of a migration plan.
type PlanStatus string

const (
	StatusPending    PlanStatus = "pending"
	StatusInProgress PlanStatus = "in_progress"
	StatusCompleted  PlanStatus = "completed"
	StatusFailed     PlanStatus = "failed"
	StatusRolledBack PlanStatus = "rolled_back"
)

// Valid reports whether s is a known plan status.
func (s PlanStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusRolledBack:
		return true
	}
	return false
}

// Plan is an ordered step sequence migrating from one API version to
// another, with its mirrored rollback sequence. The executor owns the
// plan exclusively while a run is in flight and persists it after
// every step.
type Plan struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	SourceVersion semver.Version `json:"source_version"`
	TargetVersion semver.Version `json:"target_version"`
	Steps         []Step         `json:"steps"`
	RollbackSteps []Step         `json:"rollback_steps"`
	// EstimatedDuration is in minutes, including a 20% buffer.
	EstimatedDuration int `json:"estimated_duration"`

	Status        PlanStatus `json:"status"`
	Progress      float64    `json:"progress"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
	ErrorMessages []string   `json:"error_messages,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

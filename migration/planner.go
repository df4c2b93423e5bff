package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/versiond/semver"
	"github.com/GoCodeAlone/versiond/store"
)

const keyPrefix = "migration:"

func planKey(id string) string { return keyPrefix + id }

// Planner derives migration plans from a source/target version pair
// and persists them.
type Planner struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewPlanner creates a Planner backed by the given store.
func NewPlanner(s store.Store, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{store: s, logger: logger, now: time.Now}
}

// CreatePlan builds and persists a pending plan migrating source to
// target. The step sequence is derived from the highest differing
// version tier; the rollback sequence mirrors it in reverse.
func (p *Planner) CreatePlan(ctx context.Context, source, target semver.Version, name, createdBy string) (*Plan, error) {
	steps := GenerateSteps(source, target)

	now := p.now()
	plan := &Plan{
		ID:                uuid.NewString(),
		Name:              name,
		SourceVersion:     source,
		TargetVersion:     target,
		Steps:             steps,
		RollbackSteps:     GenerateRollbackSteps(steps),
		EstimatedDuration: estimateDuration(steps),
		Status:            StatusPending,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := savePlan(ctx, p.store, plan); err != nil {
		return nil, err
	}

	p.logger.Info("migration plan created",
		"plan_id", plan.ID,
		"source", source.String(),
		"target", target.String(),
		"steps", len(plan.Steps),
		"estimated_minutes", plan.EstimatedDuration)
	return plan, nil
}

// GenerateSteps produces the ordered step sequence for a source→target
// migration. The rule table keys on the highest-precedence differing
// tier; a cleanup step is always appended.
func GenerateSteps(source, target semver.Version) []Step {
	var steps []Step

	switch {
	case target.Major > source.Major:
		steps = append(steps,
			Step{
				ID:                uuid.NewString(),
				Type:              StepValidation,
				Name:              "validate breaking-change preconditions",
				Description:       fmt.Sprintf("verify clients of %s can absorb the breaking changes in %s", source, target),
				Parameters:        map[string]any{"source": source.String(), "target": target.String()},
				EstimatedDuration: 5,
			},
			Step{
				ID:                uuid.NewString(),
				Type:              StepSchema,
				Name:              "migrate schema",
				Description:       fmt.Sprintf("apply schema changes for %s", target),
				Parameters:        map[string]any{"major_upgrade": true, "target": target.String()},
				EstimatedDuration: 30,
			},
			Step{
				ID:                uuid.NewString(),
				Type:              StepEndpoint,
				Name:              "migrate endpoints",
				Description:       fmt.Sprintf("re-route endpoints from %s to %s", source, target),
				Parameters:        map[string]any{"version_change": "major", "target": target.String()},
				EstimatedDuration: 15,
			},
		)
	case target.Minor > source.Minor:
		steps = append(steps,
			Step{
				ID:                uuid.NewString(),
				Type:              StepEndpoint,
				Name:              "add new endpoints",
				Description:       fmt.Sprintf("register endpoints introduced in %s", target),
				Parameters:        map[string]any{"version_change": "minor", "target": target.String()},
				EstimatedDuration: 10,
			},
			Step{
				ID:                uuid.NewString(),
				Type:              StepConfig,
				Name:              "update configuration",
				Description:       fmt.Sprintf("roll configuration forward to %s", target),
				Parameters:        map[string]any{"minor_upgrade": true, "target": target.String()},
				EstimatedDuration: 5,
			},
		)
	case target.Patch > source.Patch:
		steps = append(steps, Step{
			ID:                uuid.NewString(),
			Type:              StepValidation,
			Name:              "validate patch compatibility",
			Description:       fmt.Sprintf("confirm %s is drop-in compatible with %s", target, source),
			Parameters:        map[string]any{"source": source.String(), "target": target.String()},
			EstimatedDuration: 3,
		})
	}

	steps = append(steps, Step{
		ID:                uuid.NewString(),
		Type:              StepCleanup,
		Name:              "clean up migration artifacts",
		Description:       "remove temporary migration state",
		Parameters:        map[string]any{},
		EstimatedDuration: 2,
	})

	return steps
}

// GenerateRollbackSteps mirrors steps in reverse order, marking each
// clone with parameters.rollback = true.
func GenerateRollbackSteps(steps []Step) []Step {
	out := make([]Step, 0, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		out = append(out, steps[i].cloneForRollback())
	}
	return out
}

// estimateDuration sums the step durations and adds a 20% buffer,
// rounded to whole minutes.
func estimateDuration(steps []Step) int {
	total := 0
	for _, s := range steps {
		total += s.EstimatedDuration
	}
	return int(math.Round(float64(total) * 1.2))
}

// savePlan marshals and persists a plan document.
func savePlan(ctx context.Context, s store.Store, plan *Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", plan.ID, err)
	}
	if err := s.Put(ctx, planKey(plan.ID), data); err != nil {
		return fmt.Errorf("store plan %s: %w", plan.ID, err)
	}
	return nil
}

// loadPlan fetches and unmarshals a plan document.
func loadPlan(ctx context.Context, s store.Store, id string) (*Plan, error) {
	data, err := s.Get(ctx, planKey(id))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load plan %s: %w", id, err)
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return &plan, nil
}

package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/GoCodeAlone/versiond/metrics"
	"github.com/GoCodeAlone/versiond/store"
)

// maxErrorMessages caps the per-plan failure list so a very large plan
// cannot grow its persisted record without bound. Overflow is recorded
// as a single truncation marker.
const maxErrorMessages = 100

// Executor runs migration plans step by step, tracking progress and
// state. Steps of one plan execute strictly in order; distinct plans
// may run concurrently. The only shared mutable state is the
// active-plan set, guarded by a mutex.
//
// The active set is process-local: it stops a second Execute of the
// same plan id within this process, not across instances. Multi-node
// deployments need an external lock or lease on the persistence layer.
type Executor struct {
	store    store.Store
	handlers *HandlerRegistry
	logger   *slog.Logger
	metrics  *metrics.Collector
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*Plan
}

// NewExecutor creates an Executor. collector may be nil to disable
// instrumentation.
func NewExecutor(s store.Store, handlers *HandlerRegistry, logger *slog.Logger, collector *metrics.Collector) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:    s,
		handlers: handlers,
		logger:   logger,
		metrics:  collector,
		now:      time.Now,
		active:   make(map[string]*Plan),
	}
}

// Execute runs the plan's steps in order. Every step is always
// attempted: a handler error is recorded on the plan and execution
// continues with the next step. The final status is completed only
// when no step failed. With dryRun set, handlers are invoked in
// dry-run mode but state transitions and persistence happen exactly
// as in a real run.
func (e *Executor) Execute(ctx context.Context, id string, dryRun bool) (*Plan, error) {
	plan, err := loadPlan(ctx, e.store, id)
	if err != nil {
		return nil, err
	}

	switch plan.Status {
	case StatusInProgress:
		return nil, fmt.Errorf("%w: plan %s is already running", ErrInvalidState, id)
	case StatusCompleted:
		return nil, fmt.Errorf("%w: plan %s is already completed", ErrInvalidState, id)
	}

	if err := e.register(plan); err != nil {
		return nil, err
	}

	now := e.now()
	plan.Status = StatusInProgress
	plan.StartedAt = &now
	plan.CompletedAt = nil
	plan.Progress = 0
	plan.SuccessCount = 0
	plan.FailureCount = 0
	plan.ErrorMessages = nil
	if err := e.persist(ctx, plan); err != nil {
		return nil, e.abort(ctx, plan, "execute", err)
	}

	e.logger.Info("migration started",
		"plan_id", plan.ID,
		"source", plan.SourceVersion.String(),
		"target", plan.TargetVersion.String(),
		"dry_run", dryRun)

	if err := e.runSteps(ctx, plan, plan.Steps, dryRun); err != nil {
		return nil, e.abort(ctx, plan, "execute", err)
	}

	e.finish(plan, "execute", StatusCompleted)
	if err := e.persist(ctx, plan); err != nil {
		e.unregister(plan.ID)
		return nil, err
	}
	e.unregister(plan.ID)
	return plan, nil
}

// Rollback runs the plan's rollback steps. Only a completed plan can
// be rolled back; dry-run is not supported for rollback.
func (e *Executor) Rollback(ctx context.Context, id string) (*Plan, error) {
	plan, err := loadPlan(ctx, e.store, id)
	if err != nil {
		return nil, err
	}

	if plan.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: plan %s has status %s, only completed plans can be rolled back",
			ErrInvalidState, id, plan.Status)
	}

	if err := e.register(plan); err != nil {
		return nil, err
	}

	plan.Progress = 0
	plan.SuccessCount = 0
	plan.FailureCount = 0
	if err := e.persist(ctx, plan); err != nil {
		return nil, e.abort(ctx, plan, "rollback", err)
	}

	e.logger.Info("rollback started", "plan_id", plan.ID)

	if err := e.runSteps(ctx, plan, plan.RollbackSteps, false); err != nil {
		return nil, e.abort(ctx, plan, "rollback", err)
	}

	e.finish(plan, "rollback", StatusRolledBack)
	if err := e.persist(ctx, plan); err != nil {
		e.unregister(plan.ID)
		return nil, err
	}
	e.unregister(plan.ID)
	return plan, nil
}

// runSteps attempts every step in order. Progress is persisted before
// each step runs, so a concurrent status reader sees "about to run
// step i", not "finished step i". Step errors are recorded and the
// loop continues; only infrastructure errors (persistence, cancelled
// context) escape as orchestration failures.
func (e *Executor) runSteps(ctx context.Context, plan *Plan, steps []Step, dryRun bool) error {
	total := len(steps)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("orchestration aborted before step %q: %w", step.Name, err)
		}

		plan.Progress = float64(i) / float64(total) * 100
		if err := e.persist(ctx, plan); err != nil {
			return fmt.Errorf("persist progress before step %q: %w", step.Name, err)
		}

		outcome, err := e.dispatch(ctx, step, dryRun)
		if err != nil {
			plan.FailureCount++
			msg := fmt.Sprintf("step %q (%s) failed: %v", step.Name, step.Type, err)
			e.recordError(plan, msg)
			e.logger.Warn("migration step failed",
				"plan_id", plan.ID,
				"step", step.Name,
				"type", string(step.Type),
				"error", err)
			e.countStep(step.Type, "failure")
			continue
		}

		plan.SuccessCount++
		e.logger.Info("migration step completed",
			"plan_id", plan.ID,
			"step", step.Name,
			"type", string(step.Type),
			"outcome", outcome)
		e.countStep(step.Type, "success")
	}
	return nil
}

// dispatch routes a step to the handler registered for its type. A
// missing handler counts as a step failure, not an orchestration
// failure.
func (e *Executor) dispatch(ctx context.Context, step Step, dryRun bool) (string, error) {
	h, ok := e.handlers.Handler(step.Type)
	if !ok {
		return "", fmt.Errorf("no handler registered for step type %q", step.Type)
	}
	return h.Execute(ctx, step, dryRun)
}

// finish applies the terminal status for a run: success when no step
// failed, failed otherwise. Progress is forced to 100 on success.
func (e *Executor) finish(plan *Plan, kind string, successStatus PlanStatus) {
	now := e.now()
	if plan.FailureCount == 0 {
		plan.Status = successStatus
		plan.Progress = 100
	} else {
		plan.Status = StatusFailed
	}
	plan.CompletedAt = &now

	e.logger.Info("migration finished",
		"plan_id", plan.ID,
		"kind", kind,
		"status", string(plan.Status),
		"succeeded", plan.SuccessCount,
		"failed", plan.FailureCount)

	if e.metrics != nil {
		e.metrics.MigrationRuns.WithLabelValues(kind, string(plan.Status)).Inc()
		if plan.StartedAt != nil {
			e.metrics.MigrationDuration.WithLabelValues(kind).Observe(now.Sub(*plan.StartedAt).Seconds())
		}
	}
}

// abort handles an orchestration failure: the plan is marked failed
// and persisted on a best-effort basis, then the error propagates.
func (e *Executor) abort(ctx context.Context, plan *Plan, kind string, cause error) error {
	now := e.now()
	plan.Status = StatusFailed
	plan.CompletedAt = &now
	e.recordError(plan, fmt.Sprintf("orchestration failure: %v", cause))

	// The incoming context may already be cancelled; the failed state
	// must still reach the store.
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}
	if err := e.persist(persistCtx, plan); err != nil {
		e.logger.Error("persist failed plan state", "plan_id", plan.ID, "error", err)
	}
	e.unregister(plan.ID)

	if e.metrics != nil {
		e.metrics.MigrationRuns.WithLabelValues(kind, "orchestration_failure").Inc()
	}
	return cause
}

// Status returns the best-known state of a plan: the in-flight copy
// when the plan is executing in this process, otherwise the persisted
// record.
func (e *Executor) Status(ctx context.Context, id string) (*Plan, error) {
	e.mu.Lock()
	if snapshot, ok := e.active[id]; ok {
		cp := clonePlan(snapshot)
		e.mu.Unlock()
		return cp, nil
	}
	e.mu.Unlock()

	return loadPlan(ctx, e.store, id)
}

// List returns persisted plans, optionally filtered by status, sorted
// by creation time descending and capped to limit (0 means no cap).
func (e *Executor) List(ctx context.Context, status PlanStatus, limit int) ([]*Plan, error) {
	kvs, err := e.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	var plans []*Plan
	for _, kv := range kvs {
		plan, err := loadPlan(ctx, e.store, kv.Key[len(keyPrefix):])
		if err != nil {
			return nil, err
		}
		if status != "" && plan.Status != status {
			continue
		}
		plans = append(plans, plan)
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})

	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}
	return plans, nil
}

// register adds a snapshot of the plan to the active set, rejecting a
// second concurrent run of the same id within this process. The
// snapshot is refreshed at every persist point, so status readers see
// consistent state without sharing the plan the run loop mutates.
func (e *Executor) register(plan *Plan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, running := e.active[plan.ID]; running {
		return fmt.Errorf("%w: plan %s is already running", ErrInvalidState, plan.ID)
	}
	e.active[plan.ID] = clonePlan(plan)
	if e.metrics != nil {
		e.metrics.ActiveMigrations.Inc()
	}
	return nil
}

func (e *Executor) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[id]; ok {
		delete(e.active, id)
		if e.metrics != nil {
			e.metrics.ActiveMigrations.Dec()
		}
	}
}

// recordError appends to the plan's failure list, capping growth.
func (e *Executor) recordError(plan *Plan, msg string) {
	if len(plan.ErrorMessages) >= maxErrorMessages {
		if len(plan.ErrorMessages) == maxErrorMessages {
			plan.ErrorMessages = append(plan.ErrorMessages,
				fmt.Sprintf("error list truncated at %d entries", maxErrorMessages))
		}
		return
	}
	plan.ErrorMessages = append(plan.ErrorMessages, msg)
}

func (e *Executor) persist(ctx context.Context, plan *Plan) error {
	plan.UpdatedAt = e.now()
	if err := savePlan(ctx, e.store, plan); err != nil {
		return err
	}

	// Refresh the active-set snapshot for concurrent status readers.
	e.mu.Lock()
	if _, ok := e.active[plan.ID]; ok {
		e.active[plan.ID] = clonePlan(plan)
	}
	e.mu.Unlock()
	return nil
}

func (e *Executor) countStep(t StepType, result string) {
	if e.metrics != nil {
		e.metrics.MigrationSteps.WithLabelValues(string(t), result).Inc()
	}
}

// clonePlan copies a plan so status readers never share the slices the
// executor is still mutating.
func clonePlan(p *Plan) *Plan {
	cp := *p
	cp.Steps = append([]Step(nil), p.Steps...)
	cp.RollbackSteps = append([]Step(nil), p.RollbackSteps...)
	cp.ErrorMessages = append([]string(nil), p.ErrorMessages...)
	return &cp
}

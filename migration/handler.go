package migration

import (
	"context"
	"fmt"
	"sync"
)

// StepHandler executes one kind of migration step. Implementations are
// supplied by the owning subsystems (schema owners, endpoint owners,
// and so on); this package only dispatches to them.
//
// When dryRun is set the handler must perform no side effects and
// return a descriptive no-op outcome. A returned error is recorded on
// the plan as a step failure; it never aborts the run.
type StepHandler interface {
	Execute(ctx context.Context, step Step, dryRun bool) (string, error)
}

// HandlerFunc adapts a function to the StepHandler interface.
type HandlerFunc func(ctx context.Context, step Step, dryRun bool) (string, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, step Step, dryRun bool) (string, error) {
	return f(ctx, step, dryRun)
}

// HandlerRegistry maps step types to their handlers. Handlers are
// registered at startup; execution looks them up per step.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[StepType]StepHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[StepType]StepHandler)}
}

// Register binds a handler to a step type. Registering the same type
// twice is a wiring mistake and returns an error.
func (r *HandlerRegistry) Register(t StepType, h StepHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler for step type %q already registered", t)
	}
	r.handlers[t] = h
	return nil
}

// Handler returns the handler for a step type.
func (r *HandlerRegistry) Handler(t StepType) (StepHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// NoopHandler is a StepHandler that does nothing. It backs step types
// whose real handler lives in another subsystem that is not wired in
// this deployment, and it is the reference dry-run implementation.
type NoopHandler struct{}

// Execute returns a descriptive outcome without doing any work.
func (NoopHandler) Execute(_ context.Context, step Step, dryRun bool) (string, error) {
	if dryRun {
		return fmt.Sprintf("dry-run: would execute %s step %q", step.Type, step.Name), nil
	}
	return fmt.Sprintf("no-op: %s step %q acknowledged", step.Type, step.Name), nil
}

// RegisterNoopHandlers binds NoopHandler to every step type that has
// no handler yet.
func RegisterNoopHandlers(r *HandlerRegistry) {
	for _, t := range []StepType{
		StepSchema, StepEndpoint, StepDataTransform,
		StepConfig, StepValidation, StepCleanup,
	} {
		if _, ok := r.Handler(t); !ok {
			_ = r.Register(t, NoopHandler{})
		}
	}
}

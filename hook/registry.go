package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/id"
	"github.com/saverio-kantox/tarearbol/worker"
)

// Named entry types pair a hook implementation with the hook name captured
// at registration time. This avoids type-asserting back to Hook inside the
// emit methods.
type stateChangedEntry struct {
	name string
	hook StateChanged
}

type stepOverrunEntry struct {
	name string
	hook StepOverrun
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

type unitStartedEntry struct {
	name string
	hook UnitStarted
}

type unitHaltedEntry struct {
	name string
	hook UnitHalted
}

type unitReplacedEntry struct {
	name string
	hook UnitReplaced
}

type unitRestartedEntry struct {
	name string
	hook UnitRestarted
}

type unitAbandonedEntry struct {
	name string
	hook UnitAbandoned
}

type tickCompletedEntry struct {
	name string
	hook TickCompleted
}

// Registry holds registered hooks and dispatches lifecycle events to them.
// It type-caches hooks at registration time so emit calls iterate only over
// hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	stateChanged  []stateChangedEntry
	stepOverrun   []stepOverrunEntry
	shutdown      []shutdownEntry
	unitStarted   []unitStartedEntry
	unitHalted    []unitHaltedEntry
	unitReplaced  []unitReplacedEntry
	unitRestarted []unitRestartedEntry
	unitAbandoned []unitAbandonedEntry
	tickCompleted []tickCompletedEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(StateChanged); ok {
		r.stateChanged = append(r.stateChanged, stateChangedEntry{name, e})
	}
	if e, ok := h.(StepOverrun); ok {
		r.stepOverrun = append(r.stepOverrun, stepOverrunEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
	if e, ok := h.(UnitStarted); ok {
		r.unitStarted = append(r.unitStarted, unitStartedEntry{name, e})
	}
	if e, ok := h.(UnitHalted); ok {
		r.unitHalted = append(r.unitHalted, unitHaltedEntry{name, e})
	}
	if e, ok := h.(UnitReplaced); ok {
		r.unitReplaced = append(r.unitReplaced, unitReplacedEntry{name, e})
	}
	if e, ok := h.(UnitRestarted); ok {
		r.unitRestarted = append(r.unitRestarted, unitRestartedEntry{name, e})
	}
	if e, ok := h.(UnitAbandoned); ok {
		r.unitAbandoned = append(r.unitAbandoned, unitAbandonedEntry{name, e})
	}
	if e, ok := h.(TickCompleted); ok {
		r.tickCompleted = append(r.tickCompleted, tickCompletedEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// ──────────────────────────────────────────────────
// Pool event emitters
// ──────────────────────────────────────────────────

// EmitStateChange notifies all hooks that implement StateChanged and
// aggregates their verdicts: if any hook returns Restart, Restart wins.
func (r *Registry) EmitStateChange(ctx context.Context, status tarearbol.Status) Action {
	verdict := Continue
	for _, e := range r.stateChanged {
		if e.hook.OnStateChange(ctx, status) == Restart {
			r.logger.Warn("hook requested pool restart",
				slog.String("hook", e.name),
				slog.String("status", string(status)),
			)
			verdict = Restart
		}
	}
	return verdict
}

// EmitStepOverrun notifies all hooks that implement StepOverrun.
func (r *Registry) EmitStepOverrun(ctx context.Context, o Overrun) {
	for _, e := range r.stepOverrun {
		if err := e.hook.OnStepOverrun(ctx, o); err != nil {
			r.logHookError("OnStepOverrun", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Unit event emitters
// ──────────────────────────────────────────────────

// EmitUnitStarted notifies all hooks that implement UnitStarted.
func (r *Registry) EmitUnitStarted(ctx context.Context, workerID string, unit id.UnitID, d worker.Descriptor) {
	for _, e := range r.unitStarted {
		if err := e.hook.OnUnitStarted(ctx, workerID, unit, d); err != nil {
			r.logHookError("OnUnitStarted", e.name, err)
		}
	}
}

// EmitUnitHalted notifies all hooks that implement UnitHalted.
func (r *Registry) EmitUnitHalted(ctx context.Context, workerID string, unit id.UnitID) {
	for _, e := range r.unitHalted {
		if err := e.hook.OnUnitHalted(ctx, workerID, unit); err != nil {
			r.logHookError("OnUnitHalted", e.name, err)
		}
	}
}

// EmitUnitReplaced notifies all hooks that implement UnitReplaced.
func (r *Registry) EmitUnitReplaced(ctx context.Context, workerID string, unit id.UnitID, next worker.Descriptor) {
	for _, e := range r.unitReplaced {
		if err := e.hook.OnUnitReplaced(ctx, workerID, unit, next); err != nil {
			r.logHookError("OnUnitReplaced", e.name, err)
		}
	}
}

// EmitUnitRestarted notifies all hooks that implement UnitRestarted.
func (r *Registry) EmitUnitRestarted(ctx context.Context, workerID string, unit id.UnitID, attempt int, cause error) {
	for _, e := range r.unitRestarted {
		if err := e.hook.OnUnitRestarted(ctx, workerID, unit, attempt, cause); err != nil {
			r.logHookError("OnUnitRestarted", e.name, err)
		}
	}
}

// EmitUnitAbandoned notifies all hooks that implement UnitAbandoned.
func (r *Registry) EmitUnitAbandoned(ctx context.Context, workerID string, cause error) {
	for _, e := range r.unitAbandoned {
		if err := e.hook.OnUnitAbandoned(ctx, workerID, cause); err != nil {
			r.logHookError("OnUnitAbandoned", e.name, err)
		}
	}
}

// EmitTickCompleted notifies all hooks that implement TickCompleted.
func (r *Registry) EmitTickCompleted(ctx context.Context, workerID string, result any, elapsed time.Duration) {
	for _, e := range r.tickCompleted {
		if err := e.hook.OnTickCompleted(ctx, workerID, result, elapsed); err != nil {
			r.logHookError("OnTickCompleted", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pool.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}

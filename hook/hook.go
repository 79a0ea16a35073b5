package hook

import (
	"context"
	"time"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/id"
	"github.com/saverio-kantox/tarearbol/worker"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// Action is the return value of a state-change hook.
type Action int

const (
	// Continue accepts the transition.
	Continue Action = iota
	// Restart asks the manager to tear down and restart the whole pool.
	Restart
)

// Overrun describes one slow-execution watchdog event. Exactly one Overrun
// is emitted per overlong step invocation, however long it keeps running.
type Overrun struct {
	// WorkerID is the worker key whose step overran.
	WorkerID string
	// Unit identifies the execution unit running the step.
	Unit id.UnitID
	// Started is when the step invocation began.
	Started time.Time
	// Elapsed is the time since Started at the moment the watchdog fired.
	Elapsed time.Duration
	// Threshold is the watchdog threshold (timeout * lull) that was
	// exceeded.
	Threshold time.Duration
}

// ──────────────────────────────────────────────────
// Pool lifecycle hooks
// ──────────────────────────────────────────────────

// StateChanged is called on every pool status transition, including the
// initial transition to starting before the coordinator accepts traffic.
type StateChanged interface {
	OnStateChange(ctx context.Context, status tarearbol.Status) Action
}

// StepOverrun is called once per watchdog overrun event. The step is never
// cancelled; the event is observational only.
type StepOverrun interface {
	OnStepOverrun(ctx context.Context, o Overrun) error
}

// Shutdown is called during graceful pool shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Unit lifecycle hooks
// ──────────────────────────────────────────────────

// UnitStarted is called when the supervisor materializes a unit for a
// descriptor.
type UnitStarted interface {
	OnUnitStarted(ctx context.Context, workerID string, unit id.UnitID, d worker.Descriptor) error
}

// UnitHalted is called when a unit terminates because its step returned a
// halt directive or the worker was deleted.
type UnitHalted interface {
	OnUnitHalted(ctx context.Context, workerID string, unit id.UnitID) error
}

// UnitReplaced is called when a swap directive replaces a unit with a new
// descriptor.
type UnitReplaced interface {
	OnUnitReplaced(ctx context.Context, workerID string, unit id.UnitID, next worker.Descriptor) error
}

// UnitRestarted is called when the isolation boundary restarts a unit after
// a worker fault. attempt counts restarts within the current window.
type UnitRestarted interface {
	OnUnitRestarted(ctx context.Context, workerID string, unit id.UnitID, attempt int, cause error) error
}

// UnitAbandoned is called when a unit exhausts its restart budget and is
// given up on. This is the terminal notification for that unit; siblings
// are unaffected.
type UnitAbandoned interface {
	OnUnitAbandoned(ctx context.Context, workerID string, cause error) error
}

// TickCompleted is called after a tick stores its result and a next tick
// has been scheduled.
type TickCompleted interface {
	OnTickCompleted(ctx context.Context, workerID string, result any, elapsed time.Duration) error
}

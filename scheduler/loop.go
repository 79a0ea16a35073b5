package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/hook"
	"github.com/saverio-kantox/tarearbol/id"
	"github.com/saverio-kantox/tarearbol/middleware"
	"github.com/saverio-kantox/tarearbol/worker"
)

// Store is the slice of the coordinator the loop needs: refresh its own
// descriptor, remove it on halt, and write back tick results. Alive
// distinguishes a deleted descriptor from a dead store.
type Store interface {
	Get(id string) (worker.Descriptor, bool)
	Del(id string)
	SetResult(id string, result any)
	Alive() bool
}

// Emitter receives the loop's observational events. hook.Registry satisfies
// this interface.
type Emitter interface {
	EmitStepOverrun(ctx context.Context, o hook.Overrun)
	EmitTickCompleted(ctx context.Context, workerID string, result any, elapsed time.Duration)
}

// Outcome reports how a loop ended when it ended on its own terms.
type Outcome struct {
	// Halted is set when the step returned a halt directive or the
	// descriptor disappeared from the store between ticks.
	Halted bool

	// Replaced is set when the step returned a swap directive. NewDesc is
	// the replacement the supervisor must register and start.
	Replaced bool
	NewDesc  worker.Descriptor
}

// Loop drives the repeated-execution cycle for one worker unit.
type Loop struct {
	workerID string
	unit     id.UnitID
	desc     worker.Descriptor
	step     worker.Step
	store    Store

	emitter Emitter
	mw      middleware.Middleware
	limiter *rate.Limiter
	logger  *slog.Logger

	defTimeout time.Duration
	defLull    float64
}

// Option configures a Loop.
type Option func(*Loop)

// WithEmitter sets the hook emitter for overrun and tick events.
func WithEmitter(e Emitter) Option {
	return func(l *Loop) { l.emitter = e }
}

// WithMiddleware wraps every step invocation in the given middleware.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(l *Loop) { l.mw = mw }
}

// WithLimiter throttles step invocations against a pool-wide rate limiter.
// The wait happens before the watchdog is armed, so throttling time never
// counts as step overrun.
func WithLimiter(lim *rate.Limiter) Option {
	return func(l *Loop) { l.limiter = lim }
}

// WithLogger sets the loop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithDefaults sets the pool defaults used when the descriptor leaves
// timeout or lull unset.
func WithDefaults(timeout time.Duration, lull float64) Option {
	return func(l *Loop) {
		if timeout > 0 {
			l.defTimeout = timeout
		}
		if lull >= 1 {
			l.defLull = lull
		}
	}
}

// New creates a loop for one unit. step is the pool-wide handler; the
// descriptor's own Step, when set, overrides it. Returns
// tarearbol.ErrNoHandler when neither is available.
func New(workerID string, unit id.UnitID, desc worker.Descriptor, step worker.Step, store Store, opts ...Option) (*Loop, error) {
	if desc.Step != nil {
		step = desc.Step
	}
	if step == nil {
		return nil, tarearbol.ErrNoHandler
	}

	l := &Loop{
		workerID:   workerID,
		unit:       unit,
		desc:       desc,
		step:       step,
		store:      store,
		logger:     slog.Default(),
		defTimeout: tarearbol.DefaultConfig().DefaultTimeout,
		defLull:    tarearbol.DefaultConfig().DefaultLull,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run executes ticks until the loop halts, is replaced, is cancelled, or the
// step faults. The first tick fires immediately; subsequent ticks wait out
// the descriptor's cadence. A step error (or panic) escapes uncaught so the
// caller's isolation boundary can handle it.
func (l *Loop) Run(ctx context.Context) (Outcome, error) {
	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		default:
		}

		// Refresh the snapshot: a put that replaced the descriptor takes
		// effect from this tick on, never mid-tick. A missing descriptor
		// means the worker was deleted while we slept.
		if d, ok := l.store.Get(l.workerID); ok {
			l.desc = d
		} else {
			if !l.store.Alive() {
				// A dead store is not a deletion; surface it so the
				// pool-level recovery takes over.
				return Outcome{}, tarearbol.ErrCoordinatorDown
			}
			l.logger.Debug("descriptor gone, halting unit",
				slog.String("worker_id", l.workerID),
			)
			return Outcome{Halted: true}, nil
		}

		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return Outcome{}, err
			}
		}

		directive, elapsed, err := l.tick(ctx)
		if err != nil {
			return Outcome{}, err
		}

		delay, outcome, terminal, err := l.interpret(ctx, directive, elapsed)
		if err != nil {
			return Outcome{}, err
		}
		if terminal {
			return outcome, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// tick runs one step invocation under the watchdog. The watchdog goroutine
// fires at most once; the deferred close releases it even when the step
// panics.
func (l *Loop) tick(ctx context.Context) (worker.Directive, time.Duration, error) {
	timeout := l.desc.EffectiveTimeout(l.defTimeout)
	lull := l.desc.EffectiveLull(l.defLull)
	threshold := time.Duration(float64(timeout) * lull)

	start := time.Now()
	stepDone := make(chan struct{})
	watchdog := time.NewTimer(threshold)

	go func() {
		select {
		case <-stepDone:
		case <-watchdog.C:
			l.logger.Warn("step overrun",
				slog.String("worker_id", l.workerID),
				slog.String("unit_id", l.unit.String()),
				slog.Duration("threshold", threshold),
			)
			if l.emitter != nil {
				l.emitter.EmitStepOverrun(ctx, hook.Overrun{
					WorkerID:  l.workerID,
					Unit:      l.unit,
					Started:   start,
					Elapsed:   time.Since(start),
					Threshold: threshold,
				})
			}
		}
	}()
	defer func() {
		close(stepDone)
		watchdog.Stop()
	}()

	inv := worker.Invocation{ID: l.workerID, Unit: l.unit, Payload: l.desc.Payload}
	handler := func(ctx context.Context) (worker.Directive, error) {
		return l.step(ctx, inv)
	}

	var (
		d   worker.Directive
		err error
	)
	if l.mw != nil {
		d, err = l.mw(ctx, &inv, handler)
	} else {
		d, err = handler(ctx)
	}
	return d, time.Since(start), err
}

// interpret applies the directive protocol and yields the delay before the
// next tick, or a terminal outcome. An unbuildable swap target is a worker
// fault.
func (l *Loop) interpret(ctx context.Context, d worker.Directive, elapsed time.Duration) (time.Duration, Outcome, bool, error) {
	switch d.Kind() {
	case worker.KindHalt:
		l.store.Del(l.workerID)
		return 0, Outcome{Halted: true}, true, nil

	case worker.KindDone:
		l.store.SetResult(l.workerID, d.Result())
		l.emitTick(ctx, d.Result(), elapsed)
		return l.cadence(), Outcome{}, false, nil

	case worker.KindAfter:
		l.store.SetResult(l.workerID, d.Result())
		l.emitTick(ctx, d.Result(), elapsed)
		return d.Delay(), Outcome{}, false, nil

	case worker.KindSwap:
		next, ok := d.SwapTarget()
		if !ok {
			return 0, Outcome{}, false, tarearbol.ErrInvalidSwap
		}
		return 0, Outcome{Replaced: true, NewDesc: next}, true, nil

	default:
		// Legacy path: an unrecognized directive is treated as a raw
		// result. Kept for steps migrating from value-returning handlers.
		l.logger.Warn("step returned unrecognized directive, storing as raw result",
			slog.String("worker_id", l.workerID),
		)
		l.store.SetResult(l.workerID, d.Result())
		l.emitTick(ctx, d.Result(), elapsed)
		return l.cadence(), Outcome{}, false, nil
	}
}

// cadence returns the nominal inter-tick delay: the cron schedule when the
// descriptor carries one, the effective timeout otherwise.
func (l *Loop) cadence() time.Duration {
	if l.desc.Schedule != "" {
		if sched, err := worker.ParseSchedule(l.desc.Schedule); err == nil {
			return time.Until(sched.Next(time.Now()))
		}
	}
	return l.desc.EffectiveTimeout(l.defTimeout)
}

func (l *Loop) emitTick(ctx context.Context, result any, elapsed time.Duration) {
	if l.emitter != nil {
		l.emitter.EmitTickCompleted(ctx, l.workerID, result, elapsed)
	}
}

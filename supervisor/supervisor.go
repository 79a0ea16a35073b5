package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/backoff"
	"github.com/saverio-kantox/tarearbol/id"
	"github.com/saverio-kantox/tarearbol/middleware"
	"github.com/saverio-kantox/tarearbol/scheduler"
	"github.com/saverio-kantox/tarearbol/worker"
)

// Store is the slice of the coordinator the supervisor and its loops need.
type Store interface {
	scheduler.Store
	Put(d worker.Descriptor)
	Ready() bool
}

// Emitter receives unit lifecycle events plus the loop-level events the
// supervisor forwards into each scheduler. hook.Registry satisfies this
// interface.
type Emitter interface {
	scheduler.Emitter
	EmitUnitStarted(ctx context.Context, workerID string, unit id.UnitID, d worker.Descriptor)
	EmitUnitHalted(ctx context.Context, workerID string, unit id.UnitID)
	EmitUnitReplaced(ctx context.Context, workerID string, unit id.UnitID, next worker.Descriptor)
	EmitUnitRestarted(ctx context.Context, workerID string, unit id.UnitID, attempt int, cause error)
	EmitUnitAbandoned(ctx context.Context, workerID string, cause error)
}

// Unit is the handle for one live execution context.
type Unit struct {
	workerID string

	mu   sync.Mutex
	unit id.UnitID
	desc worker.Descriptor

	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerID returns the worker key the unit is bound to.
func (u *Unit) WorkerID() string { return u.workerID }

// ID returns the current unit ID. Restarts mint a fresh one.
func (u *Unit) ID() id.UnitID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unit
}

// Descriptor returns the descriptor the unit was started with.
func (u *Unit) Descriptor() worker.Descriptor {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.desc
}

// Done is closed when the unit's goroutine has fully exited.
func (u *Unit) Done() <-chan struct{} { return u.done }

func (u *Unit) setID(next id.UnitID) {
	u.mu.Lock()
	u.unit = next
	u.mu.Unlock()
}

// LiveUnit is one entry of a supervisor snapshot.
type LiveUnit struct {
	WorkerID   string
	Unit       id.UnitID
	Descriptor worker.Descriptor
}

// ──────────────────────────────────────────────────
// Supervisor
// ──────────────────────────────────────────────────

// Supervisor owns the set of live units. Create one with New; it holds no
// goroutines of its own — each started unit brings its own.
type Supervisor struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger

	step    worker.Step
	mw      middleware.Middleware
	limiter *rate.Limiter
	backoff backoff.Strategy

	maxRestarts   int
	restartWindow time.Duration
	defTimeout    time.Duration
	defLull       float64

	mu      sync.Mutex
	units   map[string]*Unit
	stopped bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithEmitter sets the hook emitter for unit lifecycle events.
func WithEmitter(e Emitter) Option {
	return func(s *Supervisor) { s.emitter = e }
}

// WithLogger sets the supervisor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHandler sets the pool-wide step run by units whose descriptor does
// not carry its own.
func WithHandler(step worker.Step) Option {
	return func(s *Supervisor) { s.step = step }
}

// WithMiddleware wraps every step invocation of every unit.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(s *Supervisor) { s.mw = mw }
}

// WithLimiter throttles step invocations pool-wide.
func WithLimiter(lim *rate.Limiter) Option {
	return func(s *Supervisor) { s.limiter = lim }
}

// WithBackoff sets the delay strategy between unit restarts.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(s *Supervisor) {
		if strategy != nil {
			s.backoff = strategy
		}
	}
}

// WithRestartLimit bounds restart intensity: at most maxRestarts within
// window, after which the unit is abandoned.
func WithRestartLimit(maxRestarts int, window time.Duration) Option {
	return func(s *Supervisor) {
		if maxRestarts > 0 {
			s.maxRestarts = maxRestarts
		}
		if window > 0 {
			s.restartWindow = window
		}
	}
}

// WithDefaults sets the pool defaults for descriptors that leave timeout or
// lull unset.
func WithDefaults(timeout time.Duration, lull float64) Option {
	return func(s *Supervisor) {
		if timeout > 0 {
			s.defTimeout = timeout
		}
		if lull >= 1 {
			s.defLull = lull
		}
	}
}

// New creates a Supervisor bound to the given coordinator store.
func New(store Store, opts ...Option) *Supervisor {
	cfg := tarearbol.DefaultConfig()
	s := &Supervisor{
		store:         store,
		logger:        slog.Default(),
		backoff:       backoff.DefaultStrategy(),
		maxRestarts:   cfg.MaxRestarts,
		restartWindow: cfg.RestartWindow,
		defTimeout:    cfg.DefaultTimeout,
		defLull:       cfg.DefaultLull,
		units:         make(map[string]*Unit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start materializes a unit for the descriptor and begins its loop. Fails
// with tarearbol.ErrDuplicateID if a unit for the worker key is already
// live, and with tarearbol.ErrNotReady if the coordinator has not completed
// its starting transition.
func (s *Supervisor) Start(ctx context.Context, d worker.Descriptor) (*Unit, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if !s.store.Ready() {
		return nil, tarearbol.ErrNotReady
	}

	unitCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return nil, tarearbol.ErrSupervisorDown
	}
	if _, live := s.units[d.ID]; live {
		s.mu.Unlock()
		cancel()
		return nil, tarearbol.ErrDuplicateID
	}
	u := &Unit{
		workerID: d.ID,
		unit:     id.NewUnitID(),
		desc:     d,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.units[d.ID] = u
	s.mu.Unlock()

	if s.emitter != nil {
		s.emitter.EmitUnitStarted(ctx, d.ID, u.ID(), d)
	}
	s.logger.Debug("unit started",
		slog.String("worker_id", d.ID),
		slog.String("unit_id", u.ID().String()),
	)

	go s.run(unitCtx, u)
	return u, nil
}

// Stop terminates the unit for the worker key and waits for its goroutine
// to exit. Idempotent; a missing unit is a no-op.
func (s *Supervisor) Stop(workerID string) {
	s.mu.Lock()
	u, ok := s.units[workerID]
	if ok {
		delete(s.units, workerID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	u.cancel()
	<-u.done
}

// StopAll cancels every live unit and waits for them to exit, bounded by
// ctx. The supervisor refuses new Starts afterwards.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	s.stopped = true
	units := make([]*Unit, 0, len(s.units))
	for _, u := range s.units {
		units = append(units, u)
	}
	s.units = make(map[string]*Unit)
	s.mu.Unlock()

	for _, u := range units {
		u.cancel()
	}
	for _, u := range units {
		select {
		case <-u.done:
		case <-ctx.Done():
			return
		}
	}
}

// Lookup returns the live unit for a worker key.
func (s *Supervisor) Lookup(workerID string) (*Unit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[workerID]
	return u, ok
}

// Snapshot returns the live units and their descriptors. The manager's
// recovery path re-seeds a fresh coordinator from this.
func (s *Supervisor) Snapshot() []LiveUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LiveUnit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, LiveUnit{
			WorkerID:   u.workerID,
			Unit:       u.ID(),
			Descriptor: u.Descriptor(),
		})
	}
	return out
}

// ──────────────────────────────────────────────────
// Unit lifecycle
// ──────────────────────────────────────────────────

// run drives one unit through loop executions and restarts until it
// terminates. Runs on the unit's own goroutine.
func (s *Supervisor) run(ctx context.Context, u *Unit) {
	defer close(u.done)

	var faults []time.Time

	for {
		outcome, err := s.runOnce(ctx, u)

		switch {
		case err == nil && outcome.Replaced:
			s.replace(ctx, u, outcome.NewDesc)
			return

		case err == nil:
			// Halted: the loop already removed the descriptor.
			s.remove(u)
			if s.emitter != nil {
				s.emitter.EmitUnitHalted(ctx, u.workerID, u.ID())
			}
			s.logger.Debug("unit halted", slog.String("worker_id", u.workerID))
			return

		case errors.Is(err, context.Canceled):
			// Orderly stop. Stop/StopAll already dropped the entry; this
			// covers a parent context ending on its own.
			s.remove(u)
			return

		case errors.Is(err, tarearbol.ErrCoordinatorDown):
			// Not a worker fault. The unit stays in the map so the
			// manager's recovery snapshot still covers it; the recovery
			// path replaces this supervisor wholesale.
			s.logger.Warn("unit parked, coordinator down",
				slog.String("worker_id", u.workerID),
			)
			return
		}

		// Worker fault. Spend one restart from the sliding-window budget.
		now := time.Now()
		kept := faults[:0]
		for _, t := range faults {
			if now.Sub(t) <= s.restartWindow {
				kept = append(kept, t)
			}
		}
		faults = append(kept, now)
		attempt := len(faults)

		if attempt > s.maxRestarts {
			s.store.Del(u.workerID)
			s.remove(u)
			if s.emitter != nil {
				s.emitter.EmitUnitAbandoned(ctx, u.workerID, err)
			}
			s.logger.Error("unit abandoned, restart budget exhausted",
				slog.String("worker_id", u.workerID),
				slog.Int("restarts", attempt-1),
				slog.String("error", err.Error()),
			)
			return
		}

		u.setID(id.NewUnitID())
		if s.emitter != nil {
			s.emitter.EmitUnitRestarted(ctx, u.workerID, u.ID(), attempt, err)
		}
		s.logger.Warn("unit restarting after fault",
			slog.String("worker_id", u.workerID),
			slog.String("unit_id", u.ID().String()),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		delay := s.backoff.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runOnce executes one scheduler loop to completion. This is the isolation
// boundary: a panic inside the step surfaces here as an error and never
// reaches sibling units.
func (s *Supervisor) runOnce(ctx context.Context, u *Unit) (out scheduler.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tarearbol: worker panic: %v", r)
		}
	}()

	opts := []scheduler.Option{
		scheduler.WithLogger(s.logger),
		scheduler.WithDefaults(s.defTimeout, s.defLull),
	}
	if s.emitter != nil {
		opts = append(opts, scheduler.WithEmitter(s.emitter))
	}
	if s.mw != nil {
		opts = append(opts, scheduler.WithMiddleware(s.mw))
	}
	if s.limiter != nil {
		opts = append(opts, scheduler.WithLimiter(s.limiter))
	}

	loop, err := scheduler.New(u.workerID, u.ID(), u.Descriptor(), s.step, s.store, opts...)
	if err != nil {
		return scheduler.Outcome{}, err
	}
	return loop.Run(ctx)
}

// replace swaps a terminated unit for its successor descriptor: the old
// descriptor is removed, the new one registered, and a fresh unit started.
func (s *Supervisor) replace(ctx context.Context, u *Unit, next worker.Descriptor) {
	s.store.Del(u.workerID)
	s.remove(u)
	s.store.Put(next)

	if s.emitter != nil {
		s.emitter.EmitUnitReplaced(ctx, u.workerID, u.ID(), next)
	}
	s.logger.Info("unit replaced",
		slog.String("worker_id", u.workerID),
		slog.String("next_worker_id", next.ID),
	)

	if _, err := s.Start(context.WithoutCancel(ctx), next); err != nil {
		s.logger.Error("replacement unit failed to start",
			slog.String("worker_id", next.ID),
			slog.String("error", err.Error()),
		)
	}
}

// remove drops the map entry if it still points at the caller's unit.
func (s *Supervisor) remove(u *Unit) {
	s.mu.Lock()
	if cur, ok := s.units[u.workerID]; ok && cur == u {
		delete(s.units, u.workerID)
	}
	s.mu.Unlock()
}

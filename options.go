package tarearbol

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Pool.
type Option func(*Pool) error

// coordinatorRunner is an internal interface for the coordinator lifecycle.
// The concrete type lives in the coordinator package; the manager package
// wires it in to avoid an import cycle.
type coordinatorRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// supervisorRunner is an internal interface for the unit supervisor
// lifecycle.
type supervisorRunner interface {
	StopAll(ctx context.Context)
}

// hookEmitter is an internal interface for hook lifecycle events.
type hookEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Pool is the root lifecycle holder for a worker pool. It owns the
// configuration and logger and starts its components in the declared
// dependency order: coordinator first, then the unit supervisor.
//
// Create one with New() and functional options, then use manager.Build to
// wire the coordinator, supervisor, and scheduler together. The Pool holds
// references to those components via internal interfaces so the root
// package never imports the subsystem packages.
type Pool struct {
	config Config
	logger *slog.Logger

	coordinator coordinatorRunner
	supervisor  supervisorRunner
	hooks       hookEmitter

	started bool
}

// New creates a new Pool with the given options.
func New(opts ...Option) (*Pool, error) {
	p := &Pool{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Logger returns the pool's logger.
func (p *Pool) Logger() *slog.Logger { return p.logger }

// Config returns a copy of the pool's configuration.
func (p *Pool) Config() Config { return p.config }

// SetCoordinator sets the coordinator runner (called by the manager package).
func (p *Pool) SetCoordinator(c coordinatorRunner) { p.coordinator = c }

// SetSupervisor sets the unit supervisor (called by the manager package).
func (p *Pool) SetSupervisor(s supervisorRunner) { p.supervisor = s }

// SetHooks sets the hook emitter (called by the manager package).
func (p *Pool) SetHooks(h hookEmitter) { p.hooks = h }

// Start brings the pool's components up in dependency order. A coordinator
// startup failure aborts the whole sequence.
func (p *Pool) Start(ctx context.Context) error {
	if p.coordinator == nil {
		return ErrCoordinatorDown
	}
	if err := p.coordinator.Start(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Stop tears the pool down in reverse dependency order: units first, then
// the coordinator, then the shutdown hooks.
func (p *Pool) Stop(ctx context.Context) error {
	if p.supervisor != nil && p.started {
		p.supervisor.StopAll(ctx)
	}
	if p.coordinator != nil && p.started {
		p.coordinator.Stop()
	}
	if p.hooks != nil {
		p.hooks.EmitShutdown(ctx)
	}
	p.started = false
	return nil
}

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(p *Pool) error {
		p.config = c
		return nil
	}
}

// WithLogger sets the structured logger for the pool.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) error {
		p.logger = l
		return nil
	}
}

// WithDefaultTimeout sets the inter-tick delay used by descriptors that do
// not specify their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(p *Pool) error {
		p.config.DefaultTimeout = d
		return nil
	}
}

// WithDefaultLull sets the default watchdog multiplier. Values below 1 are
// rejected: a lull under 1 would fire the watchdog before the nominal
// timeout has even elapsed.
func WithDefaultLull(lull float64) Option {
	return func(p *Pool) error {
		if lull < 1 {
			return ErrInvalidLull
		}
		p.config.DefaultLull = lull
		return nil
	}
}

// WithRestartLimit sets the per-unit restart budget: at most max restarts
// within the given sliding window before the unit is abandoned.
func WithRestartLimit(max int, window time.Duration) Option {
	return func(p *Pool) error {
		p.config.MaxRestarts = max
		p.config.RestartWindow = window
		return nil
	}
}

// WithMailboxSize sets the coordinator's command buffer size.
func WithMailboxSize(n int) Option {
	return func(p *Pool) error {
		p.config.MailboxSize = n
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight steps
// during graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(p *Pool) error {
		p.config.ShutdownTimeout = d
		return nil
	}
}

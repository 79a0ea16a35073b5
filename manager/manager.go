package manager

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/backoff"
	"github.com/saverio-kantox/tarearbol/coordinator"
	"github.com/saverio-kantox/tarearbol/hook"
	mw "github.com/saverio-kantox/tarearbol/middleware"
	"github.com/saverio-kantox/tarearbol/observability"
	"github.com/saverio-kantox/tarearbol/supervisor"
	"github.com/saverio-kantox/tarearbol/worker"
)

// Manager wraps a Pool with typed subsystem access.
// Use Build() to create one from a Pool.
type Manager struct {
	p      *tarearbol.Pool
	hooks  *hook.Registry
	logger *slog.Logger

	step    worker.Step
	mws     []mw.Middleware
	chain   mw.Middleware
	bo      backoff.Strategy
	limiter *rate.Limiter
	initial []worker.Descriptor

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu      sync.RWMutex
	coord   *coordinator.Coordinator
	sup     *supervisor.Supervisor
	running bool

	// baseCtx outlives any caller context: units and the recovery watcher
	// are bound to the pool's lifetime, not to the Start call's.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithHandler sets the pool-wide execution step, run by every worker whose
// descriptor does not carry its own.
func WithHandler(step worker.Step) Option {
	return func(m *Manager) { m.step = step }
}

// WithUnits supplies the initial worker set started by Start, in descriptor
// ID order.
func WithUnits(descs ...worker.Descriptor) Option {
	return func(m *Manager) { m.initial = append(m.initial, descs...) }
}

// WithHook registers a lifecycle hook with the manager.
func WithHook(h hook.Hook) Option {
	return func(m *Manager) { m.hooks.Register(h) }
}

// WithMiddleware adds middleware to the manager's step chain.
func WithMiddleware(middleware mw.Middleware) Option {
	return func(m *Manager) { m.mws = append(m.mws, middleware) }
}

// WithBackoff sets the restart backoff strategy for faulted units.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(m *Manager) { m.bo = b }
}

// WithStepRate throttles step invocations pool-wide with a token bucket.
// Zero values disable throttling.
func WithStepRate(limit rate.Limit, burst int) Option {
	return func(m *Manager) {
		if limit > 0 && burst > 0 {
			m.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the manager.
// When set, the tracing middleware uses this provider instead of the global
// one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the manager.
// When set, both the metrics middleware and the observability hook use this
// provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(m *Manager) { m.meterProvider = mp }
}

// Build creates a Manager from an existing Pool and wires the coordinator
// and supervisor into it.
func Build(p *tarearbol.Pool, opts ...Option) (*Manager, error) {
	logger := p.Logger()

	m := &Manager{
		p:      p,
		hooks:  hook.NewRegistry(logger),
		logger: logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	// Default backoff strategy if none provided.
	if m.bo == nil {
		m.bo = backoff.DefaultStrategy()
	}

	for _, d := range m.initial {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if m.tracerProvider != nil {
		tracer := m.tracerProvider.Tracer("github.com/saverio-kantox/tarearbol")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if m.meterProvider != nil {
		meter := m.meterProvider.Meter("github.com/saverio-kantox/tarearbol")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics hook.
	var obsHook *observability.MetricsHook
	if m.meterProvider != nil {
		meter := m.meterProvider.Meter("github.com/saverio-kantox/tarearbol/observability")
		obsHook = observability.NewMetricsHookWithMeter(meter)
	} else {
		obsHook = observability.NewMetricsHook()
	}
	m.hooks.Register(obsHook)

	// Default middleware stack: tracing → metrics → logging, then user
	// middleware innermost.
	allMws := []mw.Middleware{tracingMw, metricsMw, mw.Logging(logger)}
	allMws = append(allMws, m.mws...)
	m.chain = mw.Chain(allMws...)

	coord, sup := m.buildComponents()
	m.coord = coord
	m.sup = sup

	// Wire back into the Pool.
	p.SetCoordinator(coord)
	p.SetSupervisor(sup)
	p.SetHooks(m.hooks)

	return m, nil
}

// buildComponents creates a fresh coordinator and supervisor pair. Called
// once at Build time and again on every coordinator-fault recovery.
func (m *Manager) buildComponents() (*coordinator.Coordinator, *supervisor.Supervisor) {
	cfg := m.p.Config()

	coord := coordinator.New(m.hooks, m.logger,
		coordinator.WithMailboxSize(cfg.MailboxSize),
	)

	supOpts := []supervisor.Option{
		supervisor.WithEmitter(m.hooks),
		supervisor.WithLogger(m.logger),
		supervisor.WithHandler(m.step),
		supervisor.WithMiddleware(m.chain),
		supervisor.WithBackoff(m.bo),
		supervisor.WithRestartLimit(cfg.MaxRestarts, cfg.RestartWindow),
		supervisor.WithDefaults(cfg.DefaultTimeout, cfg.DefaultLull),
	}
	if m.limiter != nil {
		supOpts = append(supOpts, supervisor.WithLimiter(m.limiter))
	}
	sup := supervisor.New(coord, supOpts...)

	return coord, sup
}

// Start brings the pool up in dependency order: coordinator, supervisor,
// then one unit per initial descriptor (in ID order). A coordinator startup
// failure aborts the whole sequence. After the initial units are live the
// pool status transitions to up and the recovery watcher takes over.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.baseCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	coord := m.coord
	sup := m.sup
	m.running = true
	m.mu.Unlock()

	if err := m.p.Start(ctx); err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		m.cancel()
		return err
	}

	if err := m.seed(coord, sup, m.initial); err != nil {
		m.p.Stop(ctx) //nolint:errcheck // already failing
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		m.cancel()
		return err
	}

	coord.SetStatus(tarearbol.StatusUp)
	go m.watch(coord)

	m.logger.Info("pool started", slog.Int("units", len(m.initial)))
	return nil
}

// seed registers descriptors with the coordinator and starts their units in
// ID order.
func (m *Manager) seed(coord *coordinator.Coordinator, sup *supervisor.Supervisor, descs []worker.Descriptor) error {
	sorted := make([]worker.Descriptor, len(descs))
	copy(sorted, descs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, d := range sorted {
		coord.Put(d)
		if _, err := sup.Start(m.baseCtx, d); err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts the pool down: status transitions to down, every
// unit is cancelled, the coordinator's loop exits, and shutdown hooks fire.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	coord := m.coord
	m.mu.Unlock()

	m.cancel()
	coord.SetStatus(tarearbol.StatusDown)

	err := m.p.Stop(ctx)
	m.logger.Info("pool stopped")
	return err
}

// ──────────────────────────────────────────────────
// Pool operations
// ──────────────────────────────────────────────────

// Put upserts the descriptor for workerID and returns the unit handle. A
// new worker gets a fresh unit; a live worker keeps its unit and picks up
// the new descriptor from its next tick.
func (m *Manager) Put(workerID string, opts ...worker.Option) (*supervisor.Unit, error) {
	d, err := worker.New(workerID, opts...)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	coord, sup, running := m.coord, m.sup, m.running
	m.mu.RUnlock()
	if !running {
		return nil, tarearbol.ErrCoordinatorDown
	}

	coord.Put(d)
	if u, live := sup.Lookup(workerID); live {
		return u, nil
	}
	return sup.Start(m.baseCtx, d)
}

// Del removes the descriptor and stops the unit. No-op if absent.
func (m *Manager) Del(workerID string) {
	m.mu.RLock()
	coord, sup, running := m.coord, m.sup, m.running
	m.mu.RUnlock()
	if !running {
		return
	}

	coord.Del(workerID)
	sup.Stop(workerID)
}

// Get reads the descriptor for workerID from the coordinator.
func (m *Manager) Get(workerID string) (worker.Descriptor, bool) {
	m.mu.RLock()
	coord := m.coord
	m.mu.RUnlock()
	return coord.Get(workerID)
}

// Result returns the last result stored by workerID's step.
func (m *Manager) Result(workerID string) (any, bool) {
	m.mu.RLock()
	coord := m.coord
	m.mu.RUnlock()
	return coord.Result(workerID)
}

// Status returns the pool status.
func (m *Manager) Status() tarearbol.Status {
	m.mu.RLock()
	coord := m.coord
	m.mu.RUnlock()
	return coord.Status()
}

// Hooks returns the hook registry.
func (m *Manager) Hooks() *hook.Registry { return m.hooks }

// Coordinator returns the current coordinator instance. After a coordinator
// fault and recovery this is a different instance than before.
func (m *Manager) Coordinator() *coordinator.Coordinator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coord
}

// Pool returns the underlying Pool.
func (m *Manager) Pool() *tarearbol.Pool { return m.p }

// ──────────────────────────────────────────────────
// Recovery
// ──────────────────────────────────────────────────

// watch waits for the coordinator's loop to exit. A clean exit (orderly
// Stop) ends the watch; a fault escalates to a full ordered restart of
// everything downstream.
func (m *Manager) watch(coord *coordinator.Coordinator) {
	select {
	case <-m.baseCtx.Done():
		return
	case <-coord.Done():
	}

	cause := coord.Err()
	if cause == nil {
		return
	}

	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if !running {
		return
	}

	m.recover(cause)
}

// recover implements the rest_for_one contract: on a coordinator fault the
// supervisor and every unit are torn down and rebuilt on top of a fresh
// coordinator, re-seeded from the last live snapshot. Coordinator state is
// lost with the fault; the descriptors survive in their units.
func (m *Manager) recover(cause error) {
	m.logger.Error("coordinator fault, restarting pool",
		slog.String("error", cause.Error()),
	)

	m.mu.Lock()
	oldSup := m.sup
	m.mu.Unlock()

	snapshot := oldSup.Snapshot()

	stopCtx, cancel := context.WithTimeout(m.baseCtx, m.p.Config().ShutdownTimeout)
	oldSup.StopAll(stopCtx)
	cancel()

	coord, sup := m.buildComponents()
	if err := coord.Start(m.baseCtx); err != nil {
		m.logger.Error("pool restart aborted, coordinator refused to start",
			slog.String("error", err.Error()),
		)
		return
	}

	descs := make([]worker.Descriptor, 0, len(snapshot))
	for _, lu := range snapshot {
		descs = append(descs, lu.Descriptor)
	}
	if err := m.seed(coord, sup, descs); err != nil {
		m.logger.Error("pool restart incomplete",
			slog.String("error", err.Error()),
		)
	}
	coord.SetStatus(tarearbol.StatusUp)

	m.mu.Lock()
	m.coord = coord
	m.sup = sup
	m.mu.Unlock()
	m.p.SetCoordinator(coord)
	m.p.SetSupervisor(sup)

	go m.watch(coord)

	m.logger.Info("pool restarted after coordinator fault",
		slog.Int("units", len(descs)),
	)
}

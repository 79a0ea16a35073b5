package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/hook"
	"github.com/saverio-kantox/tarearbol/id"
	"github.com/saverio-kantox/tarearbol/worker"
)

// meterName is the instrumentation scope name for pool lifecycle metrics.
const meterName = "github.com/saverio-kantox/tarearbol/observability"

// Compile-time interface checks.
var (
	_ hook.Hook          = (*MetricsHook)(nil)
	_ hook.StateChanged  = (*MetricsHook)(nil)
	_ hook.StepOverrun   = (*MetricsHook)(nil)
	_ hook.UnitStarted   = (*MetricsHook)(nil)
	_ hook.UnitHalted    = (*MetricsHook)(nil)
	_ hook.UnitReplaced  = (*MetricsHook)(nil)
	_ hook.UnitRestarted = (*MetricsHook)(nil)
	_ hook.UnitAbandoned = (*MetricsHook)(nil)
	_ hook.TickCompleted = (*MetricsHook)(nil)
)

// MetricsHook records pool-wide lifecycle metrics via OpenTelemetry.
// Register it with the hook registry to automatically track unit churn,
// tick throughput, watchdog overruns, and status transitions.
type MetricsHook struct {
	unitStarted    metric.Int64Counter
	unitHalted     metric.Int64Counter
	unitReplaced   metric.Int64Counter
	unitRestarted  metric.Int64Counter
	unitAbandoned  metric.Int64Counter
	stepOverruns   metric.Int64Counter
	ticks          metric.Int64Counter
	tickDuration   metric.Float64Histogram
	statusChanges  metric.Int64Counter
}

// NewMetricsHook creates a MetricsHook using the global OTel MeterProvider.
// With no provider configured the instruments are noops.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a MetricsHook with the provided meter.
// Use this variant to inject a specific MeterProvider for testing.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	h := &MetricsHook{}

	// Instrument creation errors leave noop instruments behind, which is
	// the degradation we want.
	h.unitStarted, _ = meter.Int64Counter("tarearbol.unit.started",
		metric.WithDescription("Units materialized"),
		metric.WithUnit("{unit}"))
	h.unitHalted, _ = meter.Int64Counter("tarearbol.unit.halted",
		metric.WithDescription("Units terminated by a halt directive or deletion"),
		metric.WithUnit("{unit}"))
	h.unitReplaced, _ = meter.Int64Counter("tarearbol.unit.replaced",
		metric.WithDescription("Units replaced by a swap directive"),
		metric.WithUnit("{unit}"))
	h.unitRestarted, _ = meter.Int64Counter("tarearbol.unit.restarted",
		metric.WithDescription("Unit restarts after worker faults"),
		metric.WithUnit("{restart}"))
	h.unitAbandoned, _ = meter.Int64Counter("tarearbol.unit.abandoned",
		metric.WithDescription("Units abandoned after exhausting their restart budget"),
		metric.WithUnit("{unit}"))
	h.stepOverruns, _ = meter.Int64Counter("tarearbol.step.overruns",
		metric.WithDescription("Watchdog overrun notifications"),
		metric.WithUnit("{overrun}"))
	h.ticks, _ = meter.Int64Counter("tarearbol.tick.completed",
		metric.WithDescription("Completed scheduling ticks"),
		metric.WithUnit("{tick}"))
	h.tickDuration, _ = meter.Float64Histogram("tarearbol.tick.duration",
		metric.WithDescription("Step execution time per tick in seconds"),
		metric.WithUnit("s"))
	h.statusChanges, _ = meter.Int64Counter("tarearbol.pool.status_changes",
		metric.WithDescription("Pool status transitions"),
		metric.WithUnit("{transition}"))

	return h
}

// Name implements hook.Hook.
func (h *MetricsHook) Name() string { return "observability-metrics" }

// OnStateChange implements hook.StateChanged. It only observes; the verdict
// is always Continue.
func (h *MetricsHook) OnStateChange(ctx context.Context, status tarearbol.Status) hook.Action {
	h.statusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
	))
	return hook.Continue
}

// OnStepOverrun implements hook.StepOverrun.
func (h *MetricsHook) OnStepOverrun(ctx context.Context, o hook.Overrun) error {
	h.stepOverruns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker_id", o.WorkerID),
	))
	return nil
}

// OnUnitStarted implements hook.UnitStarted.
func (h *MetricsHook) OnUnitStarted(ctx context.Context, workerID string, _ id.UnitID, _ worker.Descriptor) error {
	h.unitStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker_id", workerID),
	))
	return nil
}

// OnUnitHalted implements hook.UnitHalted.
func (h *MetricsHook) OnUnitHalted(ctx context.Context, workerID string, _ id.UnitID) error {
	h.unitHalted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker_id", workerID),
	))
	return nil
}

// OnUnitReplaced implements hook.UnitReplaced.
func (h *MetricsHook) OnUnitReplaced(ctx context.Context, workerID string, _ id.UnitID, next worker.Descriptor) error {
	h.unitReplaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker_id", workerID),
		attribute.String("next_worker_id", next.ID),
	))
	return nil
}

// OnUnitRestarted implements hook.UnitRestarted.
func (h *MetricsHook) OnUnitRestarted(ctx context.Context, workerID string, _ id.UnitID, attempt int, _ error) error {
	h.unitRestarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker_id", workerID),
		attribute.Int("attempt", attempt),
	))
	return nil
}

// OnUnitAbandoned implements hook.UnitAbandoned.
func (h *MetricsHook) OnUnitAbandoned(ctx context.Context, workerID string, _ error) error {
	h.unitAbandoned.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker_id", workerID),
	))
	return nil
}

// OnTickCompleted implements hook.TickCompleted.
func (h *MetricsHook) OnTickCompleted(ctx context.Context, workerID string, _ any, elapsed time.Duration) error {
	attrs := metric.WithAttributes(attribute.String("worker_id", workerID))
	h.ticks.Add(ctx, 1, attrs)
	h.tickDuration.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

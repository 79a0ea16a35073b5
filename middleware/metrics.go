package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/saverio-kantox/tarearbol/worker"
)

// meterName is the instrumentation scope name for tarearbol metrics.
const meterName = "github.com/saverio-kantox/tarearbol"

// Metrics returns middleware that records per-tick execution metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - tarearbol.step.duration (Float64Histogram): step execution time in
//     seconds, with attributes: worker_id, directive, status ("ok" or "error")
//   - tarearbol.step.ticks (Int64Counter): total step invocations,
//     with attributes: worker_id, directive, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"tarearbol.step.duration",
		metric.WithDescription("Duration of step execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	ticks, tErr := meter.Int64Counter(
		"tarearbol.step.ticks",
		metric.WithDescription("Total number of step invocations"),
		metric.WithUnit("{tick}"),
	)
	_ = tErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, inv *worker.Invocation, next Handler) (worker.Directive, error) {
		start := time.Now()
		d, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("worker_id", inv.ID),
			attribute.String("directive", d.String()),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		ticks.Add(ctx, 1, attrs)

		return d, err
	}
}

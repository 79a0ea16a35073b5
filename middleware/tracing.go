package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saverio-kantox/tarearbol/worker"
)

// tracerName is the instrumentation scope name for tarearbol tracing.
const tracerName = "github.com/saverio-kantox/tarearbol"

// Tracing returns middleware that wraps step execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: tarearbol.worker.id and tarearbol.unit.id.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *worker.Invocation, next Handler) (worker.Directive, error) {
		ctx, span := tracer.Start(ctx, "tarearbol.step.execute",
			trace.WithAttributes(
				attribute.String("tarearbol.worker.id", inv.ID),
				attribute.String("tarearbol.unit.id", inv.Unit.String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		d, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return d, err
	}
}

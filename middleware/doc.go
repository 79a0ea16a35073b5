// Package middleware provides composable middleware for step execution.
//
// A [Middleware] is a function that wraps a worker step. Middleware are
// composed into a chain using [Chain] and applied around every tick of
// every worker in the pool. They are applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → tracing → step
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Tracing())
//
// # Built-in Middleware
//
//   - [Logging] — logs worker key, directive kind, duration, and outcome at each tick
//   - [Tracing] — wraps the tick in an OpenTelemetry span
//   - [Metrics] — records per-tick duration and outcome counters
//
// There is deliberately no panic-recovery middleware: a panic inside a
// step is a worker fault and must reach the unit's isolation boundary,
// where the restart budget decides the unit's fate. Catching it here
// would turn a fault into an ordinary error.
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, inv *worker.Invocation, next middleware.Handler) (worker.Directive, error) {
//	        // pre-processing
//	        d, err := next(ctx)
//	        // post-processing
//	        return d, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware

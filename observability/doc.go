// Package observability provides an OpenTelemetry-based metrics hook for
// tarearbol. The MetricsHook implements lifecycle hook interfaces to record
// pool-wide counters for unit starts, halts, replacements, restarts,
// abandonments, ticks, step overruns, and status transitions.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability

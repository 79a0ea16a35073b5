// Package worker defines the worker descriptor, the execution step, and the
// directive protocol that a step uses to tell the scheduler what to do next.
//
// # Descriptor
//
// A [Descriptor] is the configuration record identifying one worker's
// behavior: an opaque payload handed to each step invocation, the inter-tick
// delay (Timeout, default 1s), and the watchdog multiplier (Lull, default
// 1.1). The slow-execution watchdog fires after Timeout * Lull without
// cancelling the step.
//
// Descriptors are built with [New] plus functional options and validated at
// construction time:
//
//	d, err := worker.New("w1",
//	    worker.WithPayload(cfg),
//	    worker.WithTimeout(5*time.Second),
//	    worker.WithLull(1.5),
//	)
//
// A descriptor may carry a cron expression instead of a fixed delay:
//
//	d, err := worker.New("nightly", worker.WithSchedule("@every 1h"))
//
// # Step and Directives
//
// A [Step] is invoked once per tick with the worker key and payload. Its
// directive drives the state machine:
//
//	worker.Halt()              // remove the worker, destroy the unit
//	worker.Done(result)        // store result, reschedule after Timeout
//	worker.After(d, result)    // store result, reschedule after d
//	worker.Swap(id, payload)   // replace this unit with a new descriptor
//
// A zero-value or otherwise unrecognized directive is a degraded legacy
// path: the scheduler stores whatever value it carries as a raw result,
// logs a diagnostic, and reschedules after the default Timeout.
//
// A step that returns a non-nil error (or panics) raises a worker fault:
// the scheduler does not catch it, the supervisor's isolation boundary
// restarts the unit within a bounded budget.
package worker

// Package scheduler implements the per-worker self-rescheduling execution
// loop.
//
// Each live unit runs one [Loop]. A tick refreshes the descriptor snapshot
// from the coordinator, arms the slow-execution watchdog at timeout × lull,
// invokes the step through the middleware chain, and interprets the returned
// directive: halt destroys the unit, done and after store a result and wait
// out the cadence, swap hands a replacement descriptor back to the
// supervisor, and anything unrecognized takes the degraded raw-result path
// with a diagnostic.
//
// The watchdog is observational only. It never cancels the step; it emits
// exactly one overrun notification per overlong invocation and then waits
// for the real result like everyone else.
//
// The loop does not catch step faults. An error or panic escapes Run so the
// supervisor's isolation boundary can apply the bounded-restart policy.
package scheduler

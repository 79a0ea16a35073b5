// Package audit is a tarearbol hook that bridges pool lifecycle events to
// an immutable audit trail backend.
//
// Every pool and unit lifecycle event emits a structured audit event
// through the [Recorder] interface. The hook assigns appropriate severity
// levels (info for normal operations, warning for restarts and overruns,
// critical for abandonments) and rich metadata (worker key, unit ID,
// elapsed time, errors).
//
// # Usage
//
//	audit.New(audit.RecorderFunc(func(ctx context.Context, evt *audit.Event) error {
//	    return trail.Write(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionUnitRestarted,
//	        audit.ActionUnitAbandoned,
//	        audit.ActionStepOverrun,
//	    ),
//	)
package audit

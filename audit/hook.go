package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/hook"
	"github.com/saverio-kantox/tarearbol/id"
	"github.com/saverio-kantox/tarearbol/worker"
)

// Compile-time interface checks.
var (
	_ hook.Hook          = (*Hook)(nil)
	_ hook.StateChanged  = (*Hook)(nil)
	_ hook.StepOverrun   = (*Hook)(nil)
	_ hook.UnitStarted   = (*Hook)(nil)
	_ hook.UnitHalted    = (*Hook)(nil)
	_ hook.UnitReplaced  = (*Hook)(nil)
	_ hook.UnitRestarted = (*Hook)(nil)
	_ hook.UnitAbandoned = (*Hook)(nil)
	_ hook.TickCompleted = (*Hook)(nil)
)

// Recorder is the interface audit backends must implement. It is defined
// locally so this package carries no dependency on any particular trail
// implementation — callers inject the concrete backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is a local representation of an audit event.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Hook bridges tarearbol lifecycle events to an audit trail backend.
// Each lifecycle event emits a structured audit event through the
// [Recorder].
type Hook struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates a Hook that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Hook {
	h := &Hook{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements hook.Hook.
func (h *Hook) Name() string { return "audit" }

// ── Pool lifecycle hooks ────────────────────────────

// OnStateChange implements hook.StateChanged. The hook only observes; the
// verdict is always Continue.
func (h *Hook) OnStateChange(ctx context.Context, status tarearbol.Status) hook.Action {
	severity := SeverityInfo
	if status == tarearbol.StatusDown {
		severity = SeverityWarning
	}
	_ = h.record(ctx, ActionStatusChanged, severity, OutcomeSuccess,
		ResourcePool, "", CategoryPool, nil,
		"status", string(status),
	)
	return hook.Continue
}

// OnStepOverrun implements hook.StepOverrun.
func (h *Hook) OnStepOverrun(ctx context.Context, o hook.Overrun) error {
	return h.record(ctx, ActionStepOverrun, SeverityWarning, OutcomeFailure,
		ResourceStep, o.WorkerID, CategoryStep, nil,
		"unit_id", o.Unit.String(),
		"elapsed_ms", o.Elapsed.Milliseconds(),
		"threshold_ms", o.Threshold.Milliseconds(),
	)
}

// ── Unit lifecycle hooks ────────────────────────────

// OnUnitStarted implements hook.UnitStarted.
func (h *Hook) OnUnitStarted(ctx context.Context, workerID string, unit id.UnitID, d worker.Descriptor) error {
	return h.record(ctx, ActionUnitStarted, SeverityInfo, OutcomeSuccess,
		ResourceUnit, workerID, CategoryUnit, nil,
		"unit_id", unit.String(),
		"timeout_ms", d.Timeout.Milliseconds(),
	)
}

// OnUnitHalted implements hook.UnitHalted.
func (h *Hook) OnUnitHalted(ctx context.Context, workerID string, unit id.UnitID) error {
	return h.record(ctx, ActionUnitHalted, SeverityInfo, OutcomeSuccess,
		ResourceUnit, workerID, CategoryUnit, nil,
		"unit_id", unit.String(),
	)
}

// OnUnitReplaced implements hook.UnitReplaced.
func (h *Hook) OnUnitReplaced(ctx context.Context, workerID string, unit id.UnitID, next worker.Descriptor) error {
	return h.record(ctx, ActionUnitReplaced, SeverityInfo, OutcomeSuccess,
		ResourceUnit, workerID, CategoryUnit, nil,
		"unit_id", unit.String(),
		"next_worker_id", next.ID,
	)
}

// OnUnitRestarted implements hook.UnitRestarted.
func (h *Hook) OnUnitRestarted(ctx context.Context, workerID string, unit id.UnitID, attempt int, cause error) error {
	return h.record(ctx, ActionUnitRestarted, SeverityWarning, OutcomeFailure,
		ResourceUnit, workerID, CategoryUnit, cause,
		"unit_id", unit.String(),
		"attempt", attempt,
	)
}

// OnUnitAbandoned implements hook.UnitAbandoned.
func (h *Hook) OnUnitAbandoned(ctx context.Context, workerID string, cause error) error {
	return h.record(ctx, ActionUnitAbandoned, SeverityCritical, OutcomeFailure,
		ResourceUnit, workerID, CategoryUnit, cause,
	)
}

// OnTickCompleted implements hook.TickCompleted.
func (h *Hook) OnTickCompleted(ctx context.Context, workerID string, _ any, elapsed time.Duration) error {
	return h.record(ctx, ActionTickCompleted, SeverityInfo, OutcomeSuccess,
		ResourceStep, workerID, CategoryStep, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (h *Hook) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if h.enabled != nil && !h.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := h.recorder.Record(ctx, evt); recErr != nil {
		h.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

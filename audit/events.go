package audit

// Audit event actions. Each constant corresponds to one lifecycle hook and
// becomes the Action field of the audit event.
const (
	ActionStatusChanged = "pool.status_changed"
	ActionStepOverrun   = "step.overrun"
	ActionUnitStarted   = "unit.started"
	ActionUnitHalted    = "unit.halted"
	ActionUnitReplaced  = "unit.replaced"
	ActionUnitRestarted = "unit.restarted"
	ActionUnitAbandoned = "unit.abandoned"
	ActionTickCompleted = "tick.completed"
)

// Audit event categories group related actions.
const (
	CategoryPool = "tarearbol.pool"
	CategoryUnit = "tarearbol.unit"
	CategoryStep = "tarearbol.step"
)

// Resource types used as the Resource field in audit events.
const (
	ResourcePool = "pool"
	ResourceUnit = "worker_unit"
	ResourceStep = "step"
)

// AllActions returns every action this hook can emit.
func AllActions() []string {
	return []string{
		ActionStatusChanged,
		ActionStepOverrun,
		ActionUnitStarted,
		ActionUnitHalted,
		ActionUnitReplaced,
		ActionUnitRestarted,
		ActionUnitAbandoned,
		ActionTickCompleted,
	}
}

package worker

import "time"

// Kind discriminates the directive protocol.
type Kind int

const (
	// KindUnknown is the zero value: the degraded legacy path. The
	// scheduler stores the carried value as a raw result, emits a
	// diagnostic, and reschedules after the default timeout.
	KindUnknown Kind = iota
	// KindHalt removes the worker and destroys its unit.
	KindHalt
	// KindDone stores a result and reschedules after the descriptor's
	// timeout (or its cron schedule).
	KindDone
	// KindAfter stores a result and reschedules after a custom delay.
	KindAfter
	// KindSwap replaces this unit with a new descriptor.
	KindSwap
)

// Directive is the structured return value of a Step, telling the scheduler
// what to do next. Build directives with Halt, Done, After, or Swap; the
// zero value takes the degraded legacy path.
type Directive struct {
	kind   Kind
	result any
	delay  time.Duration

	swapID   string
	swapOpts []Option
}

// Halt tells the scheduler to remove this worker's descriptor from the
// coordinator and destroy the unit.
func Halt() Directive {
	return Directive{kind: KindHalt}
}

// Done stores result alongside the descriptor and reschedules after the
// descriptor's own cadence.
func Done(result any) Directive {
	return Directive{kind: KindDone, result: result}
}

// After stores result and reschedules after the given delay instead of the
// descriptor's default timeout. The override applies to the next tick only.
func After(delay time.Duration, result any) Directive {
	return Directive{kind: KindAfter, result: result, delay: delay}
}

// Swap atomically replaces this unit: the current descriptor is removed and
// a new one is created under newID, inheriting defaults unless re-specified
// through opts. The current unit terminates; a fresh unit starts for the
// new descriptor.
func Swap(newID string, payload any, opts ...Option) Directive {
	all := append([]Option{WithPayload(payload)}, opts...)
	return Directive{kind: KindSwap, swapID: newID, swapOpts: all}
}

// Raw wraps an arbitrary value in an unrecognized directive. This is the
// legacy path kept for callers migrating from result-returning steps; new
// code should use Done.
func Raw(v any) Directive {
	return Directive{kind: KindUnknown, result: v}
}

// Kind returns the directive's discriminator.
func (d Directive) Kind() Kind { return d.kind }

// Result returns the value carried by Done, After, or Raw directives.
func (d Directive) Result() any { return d.result }

// Delay returns the custom reschedule delay of an After directive.
func (d Directive) Delay() time.Duration { return d.delay }

// SwapTarget returns the replacement descriptor built from a Swap
// directive. Returns false if the directive is not a Swap.
func (d Directive) SwapTarget() (Descriptor, bool) {
	if d.kind != KindSwap {
		return Descriptor{}, false
	}
	nd, err := New(d.swapID, d.swapOpts...)
	if err != nil {
		return Descriptor{}, false
	}
	return nd, true
}

// String returns the directive kind for logging.
func (d Directive) String() string {
	switch d.kind {
	case KindHalt:
		return "halt"
	case KindDone:
		return "done"
	case KindAfter:
		return "after"
	case KindSwap:
		return "swap"
	default:
		return "unknown"
	}
}

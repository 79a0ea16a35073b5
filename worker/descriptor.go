package worker

import (
	"context"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/saverio-kantox/tarearbol"
	"github.com/saverio-kantox/tarearbol/id"
)

// Step is the user-supplied execution step, invoked once per scheduling
// tick. The returned Directive tells the scheduler what to do next; a
// non-nil error is a worker fault handled by the supervisor's isolation
// boundary, not by the scheduler.
type Step func(ctx context.Context, inv Invocation) (Directive, error)

// Invocation carries the identity and payload of one step invocation.
type Invocation struct {
	// ID is the worker key the descriptor was registered under.
	ID string

	// Unit identifies the live execution unit running this invocation.
	// Restarted or replaced units get fresh unit IDs.
	Unit id.UnitID

	// Payload is the opaque value from the descriptor.
	Payload any
}

// Descriptor is the configuration record identifying one worker's behavior.
// It is owned by the coordinator; the scheduler holds a read-only snapshot
// for the lifetime of a unit.
type Descriptor struct {
	// ID is the unique worker key.
	ID string

	// Payload is handed to the execution step on every tick.
	Payload any

	// Timeout is the delay between iterations. Zero means the pool
	// default (1s).
	Timeout time.Duration

	// Lull is the watchdog multiplier: the slow-execution watchdog fires
	// after Timeout * Lull. Must be >= 1. Zero means the pool default
	// (1.1).
	Lull float64

	// Schedule is an optional cron expression ("0 9 * * *", "@every 1h").
	// When set it overrides the fixed Timeout cadence for rescheduling;
	// the watchdog threshold still derives from Timeout * Lull.
	Schedule string

	// Step optionally overrides the pool-wide handler for this worker.
	Step Step
}

// scheduleParser accepts standard 5-field cron plus descriptors like
// "@every 30s".
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression as accepted by the Schedule field.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// Option configures a Descriptor.
type Option func(*Descriptor)

// WithPayload sets the opaque payload handed to the execution step.
func WithPayload(v any) Option {
	return func(d *Descriptor) { d.Payload = v }
}

// WithTimeout sets the delay between iterations.
func WithTimeout(t time.Duration) Option {
	return func(d *Descriptor) { d.Timeout = t }
}

// WithLull sets the watchdog multiplier. Values below 1 are rejected by
// New: they would fire the watchdog before the nominal timeout elapses.
func WithLull(lull float64) Option {
	return func(d *Descriptor) { d.Lull = lull }
}

// WithSchedule sets a cron expression that overrides the fixed Timeout
// cadence.
func WithSchedule(expr string) Option {
	return func(d *Descriptor) { d.Schedule = expr }
}

// WithStep sets a per-worker step overriding the pool-wide handler.
func WithStep(s Step) Option {
	return func(d *Descriptor) { d.Step = s }
}

// New builds and validates a Descriptor for the given worker key.
// Unset Timeout and Lull fall back to the pool defaults at scheduling time.
func New(workerID string, opts ...Option) (Descriptor, error) {
	if workerID == "" {
		return Descriptor{}, tarearbol.ErrEmptyID
	}

	d := Descriptor{ID: workerID}
	for _, opt := range opts {
		opt(&d)
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// MustNew is like New but panics on error. Use for hardcoded descriptors.
func MustNew(workerID string, opts ...Option) Descriptor {
	d, err := New(workerID, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate checks the descriptor's invariants: a non-empty key, a lull of
// at least 1 (when set), and a parseable schedule (when set).
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return tarearbol.ErrEmptyID
	}
	if d.Lull != 0 && d.Lull < 1 {
		return tarearbol.ErrInvalidLull
	}
	if d.Schedule != "" {
		if _, err := ParseSchedule(d.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveTimeout returns the descriptor's Timeout, or def when unset.
func (d Descriptor) EffectiveTimeout(def time.Duration) time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return def
}

// EffectiveLull returns the descriptor's Lull, or def when unset.
func (d Descriptor) EffectiveLull(def float64) float64 {
	if d.Lull >= 1 {
		return d.Lull
	}
	return def
}

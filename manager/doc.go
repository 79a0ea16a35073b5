// Package manager wires all tarearbol subsystems together. It creates the
// hook registry, the coordinator, the unit supervisor, and the middleware
// chain, and exposes the pool's public operations: Put, Del, Get, Result,
// and Status.
//
// This package exists to break the import cycle: the root tarearbol package
// defines Status, Config, and the sentinel errors (imported by every
// subsystem) and so cannot import those packages back. The manager package
// sits above all subsystem packages and below the application layer.
//
// Startup order is fixed: coordinator first, then the supervisor, then one
// unit per initial descriptor. A coordinator startup failure aborts the
// whole sequence. The manager also owns the recovery contract: it watches
// the coordinator and, on a coordinator fault, tears down the supervisor
// and every unit, builds fresh instances, re-seeds the descriptors from the
// supervisor's last live snapshot, and brings the pool status back to up. A
// single unit's fault never reaches this path; the supervisor contains it.
package manager

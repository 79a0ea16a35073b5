// Package tarearbol provides a supervised pool of long-running worker loops
// for Go. Each worker repeatedly invokes a user-supplied execution step on
// its own cadence, with runtime-adjustable delays, live add/remove/query of
// workers, slow-execution detection, and ordered recovery of the whole pool
// when the shared coordination state is lost.
//
// Tarearbol is designed as a library, not a service. Import it, configure a
// step handler, and declare workers as descriptors.
//
// # Quick Start
//
//	p, err := tarearbol.New(
//	    tarearbol.WithLogger(logger),
//	)
//
//	m, err := manager.Build(p,
//	    manager.WithHandler(perform),
//	    manager.WithUnits(map[string]worker.Descriptor{...}),
//	)
//
// # Architecture
//
// Tarearbol is a small supervision tree with a declared dependency order:
// the coordinator (single-owner state store) is upstream of the supervisor
// (unit lifecycle and failure isolation), which is upstream of each worker's
// scheduler loop. A coordinator fault tears down and restarts everything
// downstream of it; a single worker's fault restarts only that worker,
// within a bounded budget, and never touches its siblings.
//
// The root package holds shared types only. The manager package wires the
// subsystems together and exposes the put/del/get facade.
//
// All unit IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package tarearbol

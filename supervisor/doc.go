// Package supervisor materializes and destroys execution units, one per
// worker descriptor, with failure isolation between them.
//
// Every unit is a goroutine running a scheduler loop. A fault inside one
// unit's step — an error return or a panic — is contained at that unit's
// isolation boundary: the unit is restarted with a fresh unit ID and a
// backoff delay, subject to a bounded restart budget (at most MaxRestarts
// within a sliding RestartWindow). A unit that exhausts its budget is
// abandoned and reported through the hook registry; siblings and the
// coordinator are never affected.
//
// Starting a unit requires a coordinator that has completed its starting
// transition; otherwise Start fails with tarearbol.ErrNotReady.
package supervisor

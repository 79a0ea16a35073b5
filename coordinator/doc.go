// Package coordinator implements the shared coordination state store: the
// single owner of the pool status and the worker-key → descriptor mapping.
//
// All state lives inside one goroutine and is reachable only through a
// command mailbox, never via shared-memory mutation. Writes (Put, Del,
// SetResult, SetStatus) enqueue a command and return immediately with no
// acknowledgement; reads (Get, Result, Status, Snapshot) send a command
// carrying a reply channel and block until answered. Commands are processed
// one at a time in admission order, so all mutations are totally ordered —
// but a writer cannot assume its write is visible to a read issued
// concurrently by another caller.
//
// On Start the store transitions to starting and invokes the state-change
// hook before accepting any other traffic; a Restart verdict from the hook
// aborts startup. Later SetStatus transitions emit the hook from inside the
// loop; a Restart verdict there terminates the loop, observable on Done(),
// and the manager performs the full ordered pool restart.
package coordinator

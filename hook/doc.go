// Package hook defines the observer hook system for tarearbol.
// Hooks are notified of lifecycle events (pool state transitions, slow
// step executions, unit starts/halts/replacements/restarts) and can react
// to them — logging, metrics, alerting, or requesting a pool restart.
//
// Each lifecycle event is a separate interface so hooks opt in only to the
// events they care about. The one hook that can influence the pool is
// [StateChanged]: returning [Restart] from OnStateChange asks the manager
// to tear down and restart the whole pool.
package hook

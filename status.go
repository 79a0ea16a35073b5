package tarearbol

// Status is the aggregate lifecycle state of the whole worker pool.
// It is owned by the coordinator and mutated only through explicit
// transition requests.
type Status string

const (
	// StatusDown means the pool is not running.
	StatusDown Status = "down"
	// StatusStarting means the coordinator is up but the pool has not
	// finished materializing its initial workers.
	StatusStarting Status = "starting"
	// StatusUp means the pool is fully started.
	StatusUp Status = "up"
	// StatusUnknown is reported when the status cannot be determined,
	// for example while the coordinator is being restarted.
	StatusUnknown Status = "unknown"
)

// Valid reports whether s is one of the defined status values.
func (s Status) Valid() bool {
	switch s {
	case StatusDown, StatusStarting, StatusUp, StatusUnknown:
		return true
	}
	return false
}

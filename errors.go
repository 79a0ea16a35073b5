package tarearbol

import "errors"

var (
	// Coordinator errors.
	ErrCoordinatorDown  = errors.New("tarearbol: coordinator not running")
	ErrRestartRequested = errors.New("tarearbol: restart requested by state hook")

	// Supervisor errors.
	ErrDuplicateID    = errors.New("tarearbol: unit already live for id")
	ErrNotReady       = errors.New("tarearbol: coordinator has not completed startup")
	ErrUnitNotFound   = errors.New("tarearbol: unit not found")
	ErrRestartsSpent  = errors.New("tarearbol: restart budget exhausted")
	ErrSupervisorDown = errors.New("tarearbol: supervisor stopped")

	// Descriptor validation errors.
	ErrEmptyID     = errors.New("tarearbol: descriptor id must not be empty")
	ErrInvalidLull = errors.New("tarearbol: lull must be >= 1")
	ErrInvalidSwap = errors.New("tarearbol: swap directive carries an invalid replacement descriptor")

	// Lifecycle errors.
	ErrNoHandler = errors.New("tarearbol: no step handler configured")
	ErrStopped   = errors.New("tarearbol: pool stopped")
)

package tarearbol

import "time"

// Config holds configuration for a worker pool.
type Config struct {
	// DefaultTimeout is the inter-tick delay used by descriptors that do
	// not specify their own.
	DefaultTimeout time.Duration

	// DefaultLull is the watchdog multiplier used by descriptors that do
	// not specify their own. The slow-execution watchdog fires after
	// timeout * lull. Must be >= 1.
	DefaultLull float64

	// MaxRestarts is the number of restarts a single unit may consume
	// within RestartWindow before it is abandoned.
	MaxRestarts int

	// RestartWindow is the sliding window over which MaxRestarts is
	// counted.
	RestartWindow time.Duration

	// MailboxSize is the coordinator's command buffer size. Writers block
	// only when the mailbox is full.
	MailboxSize int

	// ShutdownTimeout is the maximum time to wait for in-flight steps
	// during graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  1 * time.Second,
		DefaultLull:     1.1,
		MaxRestarts:     5,
		RestartWindow:   10 * time.Second,
		MailboxSize:     128,
		ShutdownTimeout: 30 * time.Second,
	}
}

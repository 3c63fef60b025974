package fieldwork

import "time"

// Config holds configuration for the Fieldwork coordinator.
type Config struct {
	// GenerationTimeout bounds a single call to the document generator.
	// The generator may still finish server-side after this elapses.
	GenerationTimeout time.Duration

	// ActionTimeout bounds every other lifecycle action. Zero disables it.
	ActionTimeout time.Duration

	// ReconcileAttempts is the number of reads the reconciliation guard
	// performs before giving up with an unknown outcome.
	ReconcileAttempts int

	// ReconcileInitialDelay and ReconcileMaxDelay bound the exponential
	// backoff between reconciliation reads.
	ReconcileInitialDelay time.Duration
	ReconcileMaxDelay     time.Duration

	// MutateAttempts is how many times an optimistic read-modify-write is
	// re-applied after a version conflict.
	MutateAttempts int

	// SecondHalfDelay is how long after the first payout the second half
	// becomes releasable.
	SecondHalfDelay time.Duration

	// AdminRecipients receive pending-task and other admin-facing alerts.
	AdminRecipients []string

	// MilestoneThresholds are the earnings percentages that trigger a
	// one-time broadcast.
	MilestoneThresholds []int

	// BroadcastConcurrency caps in-flight sends during a broadcast.
	BroadcastConcurrency int

	// BroadcastRate caps sends per second during a broadcast. Zero means
	// unlimited.
	BroadcastRate float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GenerationTimeout:     5 * time.Minute,
		ActionTimeout:         30 * time.Second,
		ReconcileAttempts:     3,
		ReconcileInitialDelay: 200 * time.Millisecond,
		ReconcileMaxDelay:     2 * time.Second,
		MutateAttempts:        5,
		SecondHalfDelay:       24 * time.Hour,
		MilestoneThresholds:   []int{80, 90, 100},
		BroadcastConcurrency:  8,
		BroadcastRate:         10,
	}
}

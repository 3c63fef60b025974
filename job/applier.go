package job

import (
	"context"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// Applier applies a command to a stored job and returns the persisted
// result. The engine's implementation also executes effects and emits
// lifecycle hooks; StoreApplier only persists.
type Applier interface {
	Apply(ctx context.Context, jobID id.JobID, cmd Command) (*Job, error)
}

// EffectRunner executes the side effects of a change to j.
type EffectRunner interface {
	RunEffects(ctx context.Context, j *Job, effects []Effect)
}

// StoreApplier applies commands straight to a Store and drops effects.
type StoreApplier struct {
	Store    Store
	Attempts int
}

// Apply runs the command through Apply with optimistic retries.
func (a StoreApplier) Apply(ctx context.Context, jobID id.JobID, cmd Command) (*Job, error) {
	j, _, err := Apply(ctx, a.Store, jobID, a.Attempts, cmd)
	return j, err
}

// DiscardEffects is an EffectRunner that does nothing.
type DiscardEffects struct{}

// RunEffects does nothing.
func (DiscardEffects) RunEffects(context.Context, *Job, []Effect) {}

package job

import (
	"context"
	"errors"
	"fmt"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// MutateFunc changes a freshly read copy of a job in place. Returning
// false skips the write.
type MutateFunc func(j *Job) (changed bool, err error)

// Mutate performs an optimistic read-modify-write. fn is re-applied to a
// fresh read whenever the store reports a version conflict, up to attempts
// times. The returned job is the persisted state.
func Mutate(ctx context.Context, s Store, jobID id.JobID, attempts int, fn MutateFunc) (*Job, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur, err := s.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		changed, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if !changed {
			return cur, nil
		}
		err = s.UpdateJob(ctx, cur)
		if err == nil {
			return cur, nil
		}
		if !errors.Is(err, fieldwork.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("mutate %s after %d attempts: %w", jobID, attempts, lastErr)
}

// Apply runs Transition inside Mutate and returns the persisted job with
// the effects of the attempt that committed.
func Apply(ctx context.Context, s Store, jobID id.JobID, attempts int, cmd Command) (*Job, []Effect, error) {
	var effects []Effect
	j, err := Mutate(ctx, s, jobID, attempts, func(cur *Job) (bool, error) {
		next, eff, err := Transition(cur, cmd)
		if err != nil {
			return false, err
		}
		effects = eff
		if !Persists(eff) {
			return false, nil
		}
		next.Version = cur.Version
		*cur = *next
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return j, effects, nil
}

package job_test

import (
	"context"
	"errors"
	"testing"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/store/memory"
)

// racingStore bumps the stored job before the first update so the caller
// sees a version conflict.
type racingStore struct {
	*memory.Store
	raced bool
}

func (r *racingStore) UpdateJob(ctx context.Context, j *job.Job) error {
	if !r.raced {
		r.raced = true
		other, err := r.Store.GetJob(ctx, j.ID)
		if err != nil {
			return err
		}
		other.AccessNotes = "gate code 1234"
		if err := r.Store.UpdateJob(ctx, other); err != nil {
			return err
		}
	}
	return r.Store.UpdateJob(ctx, j)
}

func TestMutateRetriesOnConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := &racingStore{Store: memory.New()}

	j := lead()
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	calls := 0
	got, err := job.Mutate(ctx, s, j.ID, 3, func(cur *job.Job) (bool, error) {
		calls++
		cur.LeadNotes = "called back"
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got.LeadNotes != "called back" || got.AccessNotes != "gate code 1234" {
		t.Errorf("merged job = %+v", got)
	}
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}
}

func TestMutateGivesUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()

	j := lead()
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	_, err := job.Mutate(ctx, s, j.ID, 2, func(cur *job.Job) (bool, error) {
		// Advance the stored copy behind the caller's back every time.
		other, _ := s.GetJob(ctx, cur.ID)
		_ = s.UpdateJob(ctx, other)
		cur.LeadNotes = "never lands"
		return true, nil
	})
	if !errors.Is(err, fieldwork.ErrVersionConflict) {
		t.Errorf("err = %v, want ErrVersionConflict", err)
	}
}

func TestMutateSkipsUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()

	j := lead()
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	got, err := job.Mutate(ctx, s, j.ID, 1, func(*job.Job) (bool, error) { return false, nil })
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1 (no write)", got.Version)
	}
}

func TestApplyRollbackNoWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()

	j := lead()
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	got, effects, err := job.Apply(ctx, s, j.ID, 3, cmd(job.ActionRollback, fieldwork.SystemActor(), job.Payload{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(effects) != 0 || got.Version != 1 || got.Status != job.StateLead {
		t.Errorf("rollback on lead wrote: version=%d effects=%v", got.Version, effects)
	}
}

package redis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/store"
	"github.com/garagescholars/garage-tech-stack-sub001/store/redis"
	"github.com/garagescholars/garage-tech-stack-sub001/store/storetest"
)

func newStore(t *testing.T) *redis.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.New(client)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestStaleClaimAfterUpdate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	j := storetest.NewLead("posted")
	j.Status = job.StateApprovedForPosting
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	stale, _ := s.GetJob(ctx, j.ID)

	j.Status = job.StateCancelled
	j.CancelReason = "client withdrew"
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	stale.AssigneeID = "sch-late"
	stale.Status = job.StateUpcoming
	if err := s.ClaimJob(ctx, stale); !errors.Is(err, fieldwork.ErrAlreadyClaimed) {
		t.Fatalf("claim of cancelled job err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestCloseEndsWatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ch, err := s.WatchJobs(ctx, job.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	for range ch {
	}
	if _, err := s.WatchJobs(ctx, job.Filter{}); !errors.Is(err, fieldwork.ErrStoreClosed) {
		t.Fatalf("watch after close err = %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, fieldwork.ErrStoreClosed) {
		t.Fatalf("ping after close err = %v", err)
	}
}

package memory

import (
	"context"
	"errors"
	"testing"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/store"
	"github.com/garagescholars/garage-tech-stack-sub001/store/storetest"
)

func TestConformance(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}

	if err := s.Ping(ctx); !errors.Is(err, fieldwork.ErrStoreClosed) {
		t.Errorf("Ping after close = %v, want ErrStoreClosed", err)
	}
	if _, err := s.WatchJobs(ctx, jobFilter()); !errors.Is(err, fieldwork.ErrStoreClosed) {
		t.Errorf("WatchJobs after close = %v, want ErrStoreClosed", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := storetest.NewLead("copy")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	got.ClientName = "mutated"
	got.IntakePhotoPaths = append(got.IntakePhotoPaths, "x")

	again, _ := s.GetJob(ctx, j.ID)
	if again.ClientName != "copy" || len(again.IntakePhotoPaths) != 0 {
		t.Errorf("stored job was aliased: %+v", again)
	}
}

func jobFilter() job.Filter { return job.Filter{} }

package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/middleware"
	"github.com/garagescholars/garage-tech-stack-sub001/scope"
)

func newCall(action string) middleware.Call {
	return middleware.Call{
		JobID:  id.NewJobID(),
		Action: action,
		Actor:  fieldwork.ScholarActor("sch-1"),
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ middleware.Call, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ middleware.Call, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	err := chain(context.Background(), newCall("claim"), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) error {
		called = true
		return nil
	}

	err := chain(context.Background(), newCall("claim"), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ middleware.Call, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	err := chain(context.Background(), newCall("claim"), func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	err := mw(context.Background(), newCall("check_in"), func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	var pe *middleware.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if pe.Action != "check_in" || pe.Value != "test panic" {
		t.Errorf("panic error = %+v", pe)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	called := false
	err := mw(context.Background(), newCall("check_in"), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_PassesErrorsThrough(t *testing.T) {
	mw := middleware.Logging(slog.Default())

	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"guard", fieldwork.NewGuardError("check_out", "media", "IN_PROGRESS", "video missing")},
		{"failure", errors.New("store down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mw(context.Background(), newCall("check_out"), func(_ context.Context) error {
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestTimeout_AppliesDeadline(t *testing.T) {
	mw := middleware.Timeout(slog.Default())
	c := newCall("approve_and_pay")
	c.Timeout = 50 * time.Millisecond

	err := mw(context.Background(), c, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("expected a deadline")
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTimeout_NoDeadlineWhenZero(t *testing.T) {
	mw := middleware.Timeout(slog.Default())

	err := mw(context.Background(), newCall("claim"), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Fatal("expected no deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTimeout_KeepsSoonerCallerDeadline(t *testing.T) {
	mw := middleware.Timeout(slog.Default())
	c := newCall("claim")
	c.Timeout = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	want, _ := ctx.Deadline()

	err := mw(ctx, c, func(ctx context.Context) error {
		got, ok := ctx.Deadline()
		if !ok || !got.Equal(want) {
			t.Errorf("deadline = %v, want caller deadline %v", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestScope_AttachesActor(t *testing.T) {
	mw := middleware.Scope()
	c := newCall("claim")

	err := mw(context.Background(), c, func(ctx context.Context) error {
		a, ok := scope.ActorFrom(ctx)
		if !ok {
			t.Fatal("expected actor in context")
		}
		if a != c.Actor {
			t.Errorf("actor = %+v, want %+v", a, c.Actor)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScope_KeepsExistingActor(t *testing.T) {
	mw := middleware.Scope()
	outer := fieldwork.AdminActor("admin-1")
	ctx := scope.WithActor(context.Background(), outer)

	err := mw(ctx, newCall("claim"), func(ctx context.Context) error {
		if a, _ := scope.ActorFrom(ctx); a != outer {
			t.Errorf("actor = %+v, want %+v", a, outer)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

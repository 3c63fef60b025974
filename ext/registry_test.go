package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/garagescholars/garage-tech-stack-sub001/ext"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) record(name string) error {
	e.calls = append(e.calls, name)
	return nil
}

func (e *allHooksExt) OnJobIntake(context.Context, *job.Job) error {
	return e.record("OnJobIntake")
}

func (e *allHooksExt) OnJobTransitioned(context.Context, *job.Job, job.StatusChange) error {
	return e.record("OnJobTransitioned")
}

func (e *allHooksExt) OnJobClaimed(context.Context, *job.Job) error {
	return e.record("OnJobClaimed")
}

func (e *allHooksExt) OnClaimConflict(context.Context, id.JobID, string) error {
	return e.record("OnClaimConflict")
}

func (e *allHooksExt) OnTaskProposed(context.Context, *job.Job, job.Task) error {
	return e.record("OnTaskProposed")
}

func (e *allHooksExt) OnTaskDecided(context.Context, *job.Job, job.Task, task.Decision) error {
	return e.record("OnTaskDecided")
}

func (e *allHooksExt) OnSopGenerated(context.Context, *job.Job, bool) error {
	return e.record("OnSopGenerated")
}

func (e *allHooksExt) OnSopReconciled(context.Context, id.JobID, sop.Outcome, error) error {
	return e.record("OnSopReconciled")
}

func (e *allHooksExt) OnPayoutCreated(context.Context, *payout.Payout) error {
	return e.record("OnPayoutCreated")
}

func (e *allHooksExt) OnMilestoneReached(context.Context, *scholar.Scholar, scholar.Milestone, []notify.Delivery) error {
	return e.record("OnMilestoneReached")
}

func (e *allHooksExt) OnNotificationDelivered(context.Context, string, notify.Delivery) error {
	return e.record("OnNotificationDelivered")
}

func (e *allHooksExt) OnShutdown(context.Context) error {
	return e.record("OnShutdown")
}

// claimOnlyExt only implements claim hooks.
type claimOnlyExt struct {
	calls []string
}

func (e *claimOnlyExt) Name() string { return "claim-only" }

func (e *claimOnlyExt) OnJobClaimed(context.Context, *job.Job) error {
	e.calls = append(e.calls, "OnJobClaimed")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobClaimed(context.Context, *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	co := &claimOnlyExt{}
	r.Register(all)
	r.Register(co)

	ctx := context.Background()
	j := &job.Job{ID: id.NewJobID(), ClientName: "A. Smith"}

	r.EmitJobClaimed(ctx, j)
	if !slices.Equal(all.calls, []string{"OnJobClaimed"}) || !slices.Equal(co.calls, []string{"OnJobClaimed"}) {
		t.Fatalf("all = %v, claim-only = %v", all.calls, co.calls)
	}

	r.EmitJobIntake(ctx, j)
	if len(all.calls) != 2 || all.calls[1] != "OnJobIntake" {
		t.Fatalf("all: expected OnJobIntake as 2nd, got %v", all.calls)
	}
	if len(co.calls) != 1 {
		t.Fatalf("claim-only: should still have 1 call, got %v", co.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(nil)
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{ID: id.NewJobID()}
	tk := job.Task{ID: id.NewTaskID(), Text: "Sweep"}

	r.EmitJobIntake(ctx, j)
	r.EmitJobTransitioned(ctx, j, job.StatusChange{From: job.StateLead, To: job.StateSopNeedsReview})
	r.EmitJobClaimed(ctx, j)
	r.EmitClaimConflict(ctx, j.ID, "sch-2")
	r.EmitTaskProposed(ctx, j, tk)
	r.EmitTaskDecided(ctx, j, tk, task.DecisionApprove)
	r.EmitSopGenerated(ctx, j, false)
	r.EmitSopReconciled(ctx, j.ID, sop.OutcomeRecovered, nil)
	r.EmitPayoutCreated(ctx, &payout.Payout{ID: id.NewPayoutID()})
	r.EmitMilestoneReached(ctx, &scholar.Scholar{}, scholar.Milestone{Threshold: 90}, nil)
	r.EmitNotificationDelivered(ctx, "milestone", notify.Delivery{Recipient: "+1555", Delivered: true})
	r.EmitShutdown(ctx)

	expected := []string{
		"OnJobIntake", "OnJobTransitioned", "OnJobClaimed", "OnClaimConflict",
		"OnTaskProposed", "OnTaskDecided", "OnSopGenerated", "OnSopReconciled",
		"OnPayoutCreated", "OnMilestoneReached", "OnNotificationDelivered", "OnShutdown",
	}
	if !slices.Equal(all.calls, expected) {
		t.Fatalf("calls = %v\nwant    %v", all.calls, expected)
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitJobClaimed(ctx, &job.Job{ID: id.NewJobID()})
	r.EmitShutdown(ctx)

	if !slices.Equal(all.calls, []string{"OnJobClaimed", "OnShutdown"}) {
		t.Fatalf("all-hooks calls = %v", all.calls)
	}
}

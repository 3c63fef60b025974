package payout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/store/memory"
)

var t0 = time.Date(2026, 10, 9, 17, 0, 0, 0, time.UTC)

type complaints map[id.JobID]bool

func (c complaints) HasComplaint(_ context.Context, jobID id.JobID) (bool, error) {
	return c[jobID], nil
}

// completed stores a completed job paying total to "sch-1".
func completed(t *testing.T, s *memory.Store, total int64) *job.Job {
	t.Helper()
	at := t0
	j := &job.Job{
		Entity:      fieldwork.NewEntity(),
		ID:          id.NewJobID(),
		Status:      job.StateCompleted,
		ClientName:  "A. Smith",
		AssigneeID:  "sch-1",
		Payout:      total,
		CompletedAt: &at,
	}
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	return j
}

func TestSplitPayoutSumsToTotal(t *testing.T) {
	t.Parallel()
	for _, total := range []int64{0, 1, 2, 19999, 20000} {
		split := job.SplitPayout(total)
		if split.First+split.Second != total {
			t.Errorf("SplitPayout(%d) = %+v", total, split)
		}
		if split.Second < split.First {
			t.Errorf("SplitPayout(%d): odd cent should go to the second half, got %+v", total, split)
		}
	}
}

func TestReleaseSecondHalf(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	sp := payout.NewSplitter(s, s, payout.WithDelay(time.Hour))
	j := completed(t, s, 20001)

	if _, err := sp.ReleaseSecondHalf(ctx, j.ID, t0.Add(2*time.Hour)); !fieldwork.IsGuard(err) {
		t.Fatalf("release without first half err = %v, want guard", err)
	}

	first, err := sp.CreateFirstHalf(ctx, j, job.SplitPayout(j.Payout), t0)
	if err != nil {
		t.Fatal(err)
	}
	if first.Amount != 10000 || first.Status != payout.StatusPending || first.ScholarID != "sch-1" {
		t.Fatalf("first = %+v", first)
	}
	again, err := sp.CreateFirstHalf(ctx, j, job.SplitPayout(j.Payout), t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("repeat first half: %v", err)
	}
	if again.ID != first.ID || !again.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("repeat first half = %+v, want the existing %s", again, first.ID)
	}

	if _, err := sp.ReleaseSecondHalf(ctx, j.ID, t0.Add(30*time.Minute)); !fieldwork.IsGuard(err) {
		t.Fatalf("early release err = %v, want guard", err)
	}
	second, err := sp.ReleaseSecondHalf(ctx, j.ID, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if second.Amount != 10001 || second.Type != payout.TypeSecondHalf || !second.DueAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("second = %+v", second)
	}
	if _, err := sp.ReleaseSecondHalf(ctx, j.ID, t0.Add(2*time.Hour)); !errors.Is(err, fieldwork.ErrPayoutExists) {
		t.Fatalf("repeat release err = %v, want ErrPayoutExists", err)
	}

	list, err := s.ListPayouts(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Amount+list[1].Amount != j.Payout {
		t.Fatalf("payouts = %+v", list)
	}
}

func TestReleaseHonorsRecordedDueDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	sp := payout.NewSplitter(s, s, payout.WithDelay(time.Hour))
	j := completed(t, s, 1000)
	if _, err := sp.CreateFirstHalf(ctx, j, job.SplitPayout(j.Payout), t0); err != nil {
		t.Fatal(err)
	}

	due := t0.Add(48 * time.Hour)
	_, err := job.Mutate(ctx, s, j.ID, 1, func(cur *job.Job) (bool, error) {
		cur.SecondHalfDueAt = &due
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sp.ReleaseSecondHalf(ctx, j.ID, t0.Add(2*time.Hour)); !fieldwork.IsGuard(err) {
		t.Fatalf("release before recorded due date err = %v, want guard", err)
	}
	if _, err := sp.ReleaseSecondHalf(ctx, j.ID, due); err != nil {
		t.Fatal(err)
	}
}

func TestReleaseBlockedByComplaint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	var c complaints = map[id.JobID]bool{}
	sp := payout.NewSplitter(s, s, payout.WithDelay(0), payout.WithComplaintChecker(c))
	j := completed(t, s, 1000)
	c[j.ID] = true

	if _, err := sp.CreateFirstHalf(ctx, j, job.SplitPayout(j.Payout), t0); err != nil {
		t.Fatal(err)
	}
	_, err := sp.ReleaseSecondHalf(ctx, j.ID, t0)
	var ge *fieldwork.GuardError
	if !errors.As(err, &ge) || ge.Guard != "complaint" {
		t.Fatalf("err = %v, want complaint guard", err)
	}
}

func TestReleaseRequiresCompletedJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	sp := payout.NewSplitter(s, s)
	j := &job.Job{ID: id.NewJobID(), Status: job.StateReviewPending, ClientName: "x"}
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := sp.ReleaseSecondHalf(ctx, j.ID, t0); !fieldwork.IsGuard(err) {
		t.Fatalf("err = %v, want guard", err)
	}
	if _, err := sp.ReleaseSecondHalf(ctx, id.NewJobID(), t0); !errors.Is(err, fieldwork.ErrJobNotFound) {
		t.Fatalf("missing job err = %v", err)
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	sp := payout.NewSplitter(s, s)
	j := completed(t, s, 500)
	p, err := sp.CreateFirstHalf(ctx, j, job.SplitPayout(j.Payout), t0)
	if err != nil {
		t.Fatal(err)
	}

	paid, err := sp.MarkPaid(ctx, p.ID, t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if paid.Status != payout.StatusPaid || !paid.PaidAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("paid = %+v", paid)
	}
	again, err := sp.MarkPaid(ctx, p.ID, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !again.PaidAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("second MarkPaid moved PaidAt to %v", again.PaidAt)
	}
}

// racingPayouts hides the first half from the initial lookup, as when a
// concurrent approval records it between the lookup and the insert.
type racingPayouts struct {
	*memory.Store
	lists int
}

func (r *racingPayouts) ListPayouts(ctx context.Context, jobID id.JobID) ([]*payout.Payout, error) {
	r.lists++
	if r.lists == 1 {
		return nil, nil
	}
	return r.Store.ListPayouts(ctx, jobID)
}

func TestCreateFirstHalfReturnsConcurrentRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	j := completed(t, s, 20000)

	winner, err := payout.NewSplitter(s, s).CreateFirstHalf(ctx, j, job.SplitPayout(j.Payout), t0)
	if err != nil {
		t.Fatal(err)
	}

	rp := &racingPayouts{Store: s}
	got, err := payout.NewSplitter(rp, s).CreateFirstHalf(ctx, j, job.SplitPayout(j.Payout), t0)
	if err != nil {
		t.Fatalf("racing first half: %v", err)
	}
	if got.ID != winner.ID {
		t.Errorf("got %s, want the recorded %s", got.ID, winner.ID)
	}
	list, _ := s.ListPayouts(ctx, j.ID)
	if len(list) != 1 {
		t.Errorf("payouts = %d, want 1", len(list))
	}
}

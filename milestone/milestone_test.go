package milestone_test

import (
	"context"
	"testing"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/milestone"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/store/memory"
)

var now = time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)

func TestNewlyCrossed(t *testing.T) {
	t.Parallel()

	th := milestone.DefaultThresholds
	tests := []struct {
		name     string
		pct      float64
		achieved []int
		want     int
		ok       bool
	}{
		{"below all", 79.9, nil, 0, false},
		{"exactly 80", 80, nil, 80, true},
		{"95 with 80 achieved", 95, []int{80}, 90, true},
		{"95 with nothing achieved picks highest", 95, nil, 90, true},
		{"150 picks 100", 150, []int{80}, 100, true},
		{"all achieved", 120, []int{80, 90, 100}, 0, false},
		{"highest achieved, lower skipped", 100, []int{100}, 90, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := milestone.NewlyCrossed(tt.pct, tt.achieved, th)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("NewlyCrossed(%v, %v) = %d, %v; want %d, %v", tt.pct, tt.achieved, got, ok, tt.want, tt.ok)
			}
		})
	}
}

type env struct {
	store *memory.Store
	sent  *notify.Memory
	n     *milestone.Notifier
	hero  *scholar.Scholar
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	for _, sc := range []*scholar.Scholar{
		{ID: id.NewScholarID(), Name: "Jordan", PhoneNumber: "+15550001", MonthlyGoal: 100000},
		{ID: id.NewScholarID(), Name: "Sam", PhoneNumber: "+15550002"},
		{ID: id.NewScholarID(), Name: "Riley"},
	} {
		if err := s.CreateScholar(ctx, sc); err != nil {
			t.Fatal(err)
		}
	}
	all, err := s.ListScholars(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var hero *scholar.Scholar
	for _, sc := range all {
		if sc.Name == "Jordan" {
			hero = sc
		}
	}
	sent := &notify.Memory{}
	n := milestone.New(s, s, notify.NewBroadcaster(sent),
		milestone.WithClock(func() time.Time { return now }),
	)
	return &env{store: s, sent: sent, n: n, hero: hero}
}

// complete stores a completed job paying amount to the scholar.
func (e *env) complete(t *testing.T, scholarID id.ID, amount int64, at time.Time) {
	t.Helper()
	j := &job.Job{
		Entity:      fieldwork.NewEntity(),
		ID:          id.NewJobID(),
		Status:      job.StateCompleted,
		ClientName:  "client",
		AssigneeID:  scholarID.String(),
		Payout:      amount,
		CompletedAt: &at,
	}
	if err := e.store.CreateJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}
}

func TestRecomputeRecordsOnlyHighestNewThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.store.RecordMilestone(ctx, scholar.Milestone{
		ScholarID: e.hero.ID, Period: scholar.Period(now), Threshold: 80, AchievedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	e.complete(t, e.hero.ID, 60000, now.Add(-time.Hour))
	e.complete(t, e.hero.ID, 35000, now.Add(-2*time.Hour))
	// Last month does not count.
	e.complete(t, e.hero.ID, 50000, now.AddDate(0, -1, 0))

	res, err := e.n.Recompute(ctx, e.hero.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Earnings != 95000 || res.Percentage != 95 {
		t.Fatalf("earnings = %d (%.1f%%)", res.Earnings, res.Percentage)
	}
	if !res.Recorded || res.Threshold != 90 {
		t.Fatalf("result = %+v, want 90 recorded", res)
	}
	got, err := e.store.ListMilestones(ctx, e.hero.ID, scholar.Period(now))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 80 || got[1] != 90 {
		t.Fatalf("milestones = %v, want [80 90]", got)
	}
	if sent := e.sent.Sent(); len(sent) != 2 {
		t.Fatalf("sent %d messages, want one per scholar with a phone", len(sent))
	}

	// A second pass finds nothing new and sends nothing.
	res, err = e.n.Recompute(ctx, e.hero.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Recorded {
		t.Fatalf("second pass recorded %d again", res.Threshold)
	}
	if sent := e.sent.Sent(); len(sent) != 2 {
		t.Fatalf("second pass sent more messages: %d", len(sent))
	}
}

func TestRecomputeRecordsDespiteDeliveryFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	e.sent.Fail = func(address string) bool { return address == "+15550002" }

	e.complete(t, e.hero.ID, 100000, now.Add(-time.Hour))
	res, err := e.n.Recompute(ctx, e.hero.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Recorded || res.Threshold != 100 {
		t.Fatalf("result = %+v", res)
	}
	delivered := 0
	for _, d := range res.Deliveries {
		if d.Delivered {
			delivered++
		}
	}
	if len(res.Deliveries) != 2 || delivered != 1 {
		t.Fatalf("deliveries = %+v", res.Deliveries)
	}
	got, _ := e.store.ListMilestones(ctx, e.hero.ID, scholar.Period(now))
	if len(got) != 1 || got[0] != 100 {
		t.Fatalf("milestones = %v", got)
	}
}

func TestRecomputeSkipsScholarWithoutGoal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	all, _ := e.store.ListScholars(ctx)
	for _, sc := range all {
		if sc.MonthlyGoal != 0 {
			continue
		}
		e.complete(t, sc.ID, 500000, now.Add(-time.Hour))
		res, err := e.n.Recompute(ctx, sc.ID)
		if err != nil {
			t.Fatal(err)
		}
		if res.Recorded || res.Percentage != 0 {
			t.Fatalf("goal-less scholar result = %+v", res)
		}
	}
	if len(e.sent.Sent()) != 0 {
		t.Fatal("no broadcast expected")
	}
}

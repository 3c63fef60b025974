// Package storetest is a conformance suite run against every store.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/store"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGetJob", testCreateAndGetJob},
		{"CreateJobDuplicate", testCreateJobDuplicate},
		{"GetJobNotFound", testGetJobNotFound},
		{"UpdateJobVersionCAS", testUpdateJobVersionCAS},
		{"ClaimJobExclusive", testClaimJobExclusive},
		{"ClaimJobWrongStatus", testClaimJobWrongStatus},
		{"ClaimJobStaleVersion", testClaimJobStaleVersion},
		{"ListJobsFilters", testListJobsFilters},
		{"WatchJobs", testWatchJobs},
		{"Scholars", testScholars},
		{"Milestones", testMilestones},
		{"Payouts", testPayouts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// NewLead returns an unsaved LEAD job.
func NewLead(client string) *job.Job {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &job.Job{
		Entity:     fieldwork.Entity{CreatedAt: now, UpdatedAt: now},
		ID:         id.NewJobID(),
		Status:     job.StateLead,
		ClientName: client,
	}
}

func testCreateAndGetJob(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := NewLead("A. Smith")
	j.ProductSelections = []string{"2 x Overhead rack (4x8)"}
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if j.Version != 1 {
		t.Errorf("Version = %d, want 1", j.Version)
	}
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ClientName != "A. Smith" || got.Status != job.StateLead || got.Version != 1 {
		t.Errorf("unexpected job %+v", got)
	}
	if len(got.ProductSelections) != 1 || got.ProductSelections[0] != "2 x Overhead rack (4x8)" {
		t.Errorf("ProductSelections = %v", got.ProductSelections)
	}
}

func testCreateJobDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := NewLead("dup")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	err := s.CreateJob(ctx, j)
	if !errors.Is(err, fieldwork.ErrJobExists) {
		t.Errorf("err = %v, want ErrJobExists", err)
	}
}

func testGetJobNotFound(t *testing.T, s store.Store) {
	_, err := s.GetJob(context.Background(), id.NewJobID())
	if !errors.Is(err, fieldwork.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func testUpdateJobVersionCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := NewLead("cas")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	a, _ := s.GetJob(ctx, j.ID)
	b, _ := s.GetJob(ctx, j.ID)

	a.LeadNotes = "first"
	if err := s.UpdateJob(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("Version = %d, want 2", a.Version)
	}

	b.LeadNotes = "second"
	err := s.UpdateJob(ctx, b)
	if !errors.Is(err, fieldwork.ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}
	if !fieldwork.IsConflict(err) {
		t.Error("version conflict should be a conflict")
	}

	got, _ := s.GetJob(ctx, j.ID)
	if got.LeadNotes != "first" {
		t.Errorf("LeadNotes = %q, want first", got.LeadNotes)
	}
}

func postedJob(t *testing.T, s store.Store) *job.Job {
	t.Helper()
	j := NewLead("posted")
	j.Status = job.StateApprovedForPosting
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	return j
}

func testClaimJobExclusive(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := postedJob(t, s)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := range racers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cp, err := s.GetJob(ctx, j.ID)
			if err != nil {
				t.Error(err)
				return
			}
			cp.AssigneeID = "scholar-" + string(rune('a'+n))
			cp.Status = job.StateUpcoming
			err = s.ClaimJob(ctx, cp)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, cp.AssigneeID)
			case errors.Is(err, fieldwork.ErrAlreadyClaimed):
				conflicts++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
	if conflicts != racers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, racers-1)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.AssigneeID != winners[0] || got.Status != job.StateUpcoming {
		t.Errorf("stored assignee=%q status=%s, want %q UPCOMING", got.AssigneeID, got.Status, winners[0])
	}
}

func testClaimJobWrongStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := NewLead("lead")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	j.AssigneeID = "scholar-x"
	err := s.ClaimJob(ctx, j)
	if !errors.Is(err, fieldwork.ErrAlreadyClaimed) {
		t.Errorf("err = %v, want ErrAlreadyClaimed", err)
	}
}

func testClaimJobStaleVersion(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := postedJob(t, s)

	claim, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	edit, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	edit.TimeWindow = "13:00-15:00"
	if err := s.UpdateJob(ctx, edit); err != nil {
		t.Fatal(err)
	}

	claim.AssigneeID = "scholar-late"
	claim.Status = job.StateUpcoming
	if err := s.ClaimJob(ctx, claim); !errors.Is(err, fieldwork.ErrVersionConflict) {
		t.Fatalf("stale claim err = %v, want ErrVersionConflict", err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.AssigneeID != "" || got.TimeWindow != "13:00-15:00" {
		t.Fatalf("after stale claim assignee=%q window=%q", got.AssigneeID, got.TimeWindow)
	}

	got.AssigneeID = "scholar-late"
	got.Status = job.StateUpcoming
	if err := s.ClaimJob(ctx, got); err != nil {
		t.Fatalf("fresh claim: %v", err)
	}
	stored, _ := s.GetJob(ctx, j.ID)
	if stored.AssigneeID != "scholar-late" || stored.TimeWindow != "13:00-15:00" {
		t.Errorf("stored assignee=%q window=%q", stored.AssigneeID, stored.TimeWindow)
	}
	if stored.Version != edit.Version+1 {
		t.Errorf("version = %d, want %d", stored.Version, edit.Version+1)
	}
}

func testListJobsFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	mk := func(status job.State, assignee string, completed *time.Time) {
		j := NewLead("list")
		j.Status = status
		j.AssigneeID = assignee
		j.CompletedAt = completed
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}
	inPeriod := now.Add(-time.Hour)
	before := now.AddDate(0, -2, 0)
	mk(job.StateLead, "", nil)
	mk(job.StateCompleted, "sch-a", &inPeriod)
	mk(job.StateCompleted, "sch-a", &before)
	mk(job.StateCompleted, "sch-b", &inPeriod)
	mk(job.StateUpcoming, "sch-a", nil)

	all, err := s.ListJobs(ctx, job.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("all = %d, want 5", len(all))
	}

	completed, _ := s.ListJobs(ctx, job.ListOpts{
		Status:        job.StateCompleted,
		AssigneeID:    "sch-a",
		CompletedFrom: now.AddDate(0, 0, -7),
		CompletedTo:   now.Add(time.Hour),
	})
	if len(completed) != 1 {
		t.Errorf("completed in window = %d, want 1", len(completed))
	}

	page, _ := s.ListJobs(ctx, job.ListOpts{Limit: 2})
	if len(page) != 2 {
		t.Errorf("page = %d, want 2", len(page))
	}
}

func testWatchJobs(t *testing.T, s store.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.WatchJobs(ctx, job.Filter{Statuses: []job.State{job.StateCompleted}})
	if err != nil {
		t.Fatalf("WatchJobs: %v", err)
	}
	// Give subscription-based feeds time to attach.
	time.Sleep(100 * time.Millisecond)

	j := NewLead("watch")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	j.Status = job.StateCompleted
	j.AssigneeID = "sch-w"
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-ch:
		if c.Job.ID != j.ID || c.Job.Status != job.StateCompleted {
			t.Errorf("change = %s %s, want %s COMPLETED", c.Job.ID, c.Job.Status, j.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func testScholars(t *testing.T, s store.Store) {
	ctx := context.Background()
	sc := &scholar.Scholar{
		Entity:      fieldwork.NewEntity(),
		ID:          id.NewScholarID(),
		Name:        "Jordan",
		PhoneNumber: "+15550101",
		MonthlyGoal: 200000,
	}
	if err := s.CreateScholar(ctx, sc); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetScholar(ctx, sc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Jordan" || got.MonthlyGoal != 200000 {
		t.Errorf("unexpected scholar %+v", got)
	}
	got.MonthlyGoal = 300000
	if err := s.UpdateScholar(ctx, got); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ListScholars(ctx)
	if len(list) != 1 || list[0].MonthlyGoal != 300000 {
		t.Errorf("list = %+v", list)
	}
	if _, err := s.GetScholar(ctx, id.NewScholarID()); !errors.Is(err, fieldwork.ErrScholarNotFound) {
		t.Errorf("err = %v, want ErrScholarNotFound", err)
	}
}

func testMilestones(t *testing.T, s store.Store) {
	ctx := context.Background()
	sid := id.NewScholarID()
	m := scholar.Milestone{ScholarID: sid, Period: "2026-10", Threshold: 80, AchievedAt: time.Now().UTC()}

	added, err := s.RecordMilestone(ctx, m)
	if err != nil || !added {
		t.Fatalf("first record = %v, %v; want true", added, err)
	}
	added, err = s.RecordMilestone(ctx, m)
	if err != nil || added {
		t.Fatalf("second record = %v, %v; want false", added, err)
	}
	m.Threshold = 90
	if _, err := s.RecordMilestone(ctx, m); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListMilestones(ctx, sid, "2026-10")
	if len(got) != 2 || got[0] != 80 || got[1] != 90 {
		t.Errorf("milestones = %v, want [80 90]", got)
	}
	other, _ := s.ListMilestones(ctx, sid, "2026-11")
	if len(other) != 0 {
		t.Errorf("next period = %v, want empty", other)
	}
}

func testPayouts(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	jobID := id.NewJobID()
	first := &payout.Payout{
		Entity:    fieldwork.Entity{CreatedAt: now, UpdatedAt: now},
		ID:        id.NewPayoutID(),
		JobID:     jobID,
		ScholarID: "sch-p",
		Amount:    5000,
		Status:    payout.StatusPending,
		Type:      payout.TypeFirstHalf,
		DueAt:     now,
	}
	if err := s.CreatePayout(ctx, first); err != nil {
		t.Fatal(err)
	}
	dup := *first
	dup.ID = id.NewPayoutID()
	if err := s.CreatePayout(ctx, &dup); !errors.Is(err, fieldwork.ErrPayoutExists) {
		t.Errorf("duplicate err = %v, want ErrPayoutExists", err)
	}

	second := *first
	second.ID = id.NewPayoutID()
	second.Type = payout.TypeSecondHalf
	second.DueAt = now.Add(24 * time.Hour)
	if err := s.CreatePayout(ctx, &second); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListPayouts(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Type != payout.TypeFirstHalf {
		t.Fatalf("list = %+v", list)
	}

	paidAt := now.Add(time.Minute)
	first.Status = payout.StatusPaid
	first.PaidAt = &paidAt
	if err := s.UpdatePayout(ctx, first); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetPayout(ctx, first.ID)
	if got.Status != payout.StatusPaid || got.PaidAt == nil {
		t.Errorf("payout = %+v", got)
	}
	if _, err := s.GetPayout(ctx, id.NewPayoutID()); !errors.Is(err, fieldwork.ErrPayoutNotFound) {
		t.Errorf("err = %v, want ErrPayoutNotFound", err)
	}
}

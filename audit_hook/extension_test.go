package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	ah "github.com/garagescholars/garage-tech-stack-sub001/audit_hook"
	"github.com/garagescholars/garage-tech-stack-sub001/ext"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/scope"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func newTestJob() *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		Status:     job.StateUpcoming,
		ClientName: "A. Smith",
		Package:    "graduate",
		AssigneeID: "sch-1",
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e := ah.New(&mockRecorder{})
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

func TestExtension_JobTransitioned(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	j := newTestJob()

	change := job.StatusChange{
		From:    job.StateApprovedForPosting,
		To:      job.StateUpcoming,
		Action:  job.ActionClaim,
		ActorID: "sch-1",
	}
	if err := e.OnJobTransitioned(context.Background(), j, change); err != nil {
		t.Fatalf("OnJobTransitioned: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionJobTransitioned {
		t.Errorf("Action: want %q, got %q", ah.ActionJobTransitioned, evt.Action)
	}
	if evt.Resource != ah.ResourceJob || evt.Category != ah.CategoryJob {
		t.Errorf("Resource/Category: got %q/%q", evt.Resource, evt.Category)
	}
	if evt.ResourceID != j.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", j.ID.String(), evt.ResourceID)
	}
	if evt.Metadata["from_state"] != "APPROVED_FOR_POSTING" || evt.Metadata["to_state"] != "UPCOMING" {
		t.Errorf("Metadata: got %v", evt.Metadata)
	}
	if evt.Severity != ah.SeverityInfo || evt.Outcome != ah.OutcomeSuccess {
		t.Errorf("Severity/Outcome: got %q/%q", evt.Severity, evt.Outcome)
	}
}

func TestExtension_RecordsActorFromContext(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	j := newTestJob()

	ctx := scope.WithActor(context.Background(), fieldwork.AdminActor("admin-7"))
	if err := e.OnJobIntake(ctx, j); err != nil {
		t.Fatalf("OnJobIntake: %v", err)
	}
	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.ActorID != "admin-7" || evt.ActorRole != "admin" {
		t.Errorf("actor = %q/%q, want admin-7/admin", evt.ActorID, evt.ActorRole)
	}

	if err := e.OnJobIntake(context.Background(), j); err != nil {
		t.Fatalf("OnJobIntake: %v", err)
	}
	if evt := rec.last(); evt.ActorID != "" {
		t.Errorf("actor without context = %q, want empty", evt.ActorID)
	}
}

func TestExtension_ClaimConflict(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	jobID := id.NewJobID()

	if err := e.OnClaimConflict(context.Background(), jobID, "sch-2"); err != nil {
		t.Fatal(err)
	}
	evt := rec.last()
	if evt.Severity != ah.SeverityWarning || evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Severity/Outcome: got %q/%q", evt.Severity, evt.Outcome)
	}
	if evt.Metadata["scholar_id"] != "sch-2" {
		t.Errorf("Metadata[scholar_id]: got %v", evt.Metadata["scholar_id"])
	}
}

func TestExtension_SopReconciledSeverity(t *testing.T) {
	tests := []struct {
		outcome  sop.Outcome
		severity string
		result   string
	}{
		{sop.OutcomeRecovered, ah.SeverityInfo, ah.OutcomeSuccess},
		{sop.OutcomeSuperseded, ah.SeverityInfo, ah.OutcomeSuccess},
		{sop.OutcomeReverted, ah.SeverityCritical, ah.OutcomeFailure},
		{sop.OutcomeUnknown, ah.SeverityWarning, ah.OutcomeFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			rec := &mockRecorder{}
			e := ah.New(rec)
			if err := e.OnSopReconciled(context.Background(), id.NewJobID(), tt.outcome, nil); err != nil {
				t.Fatal(err)
			}
			evt := rec.last()
			if evt.Severity != tt.severity || evt.Outcome != tt.result {
				t.Errorf("got %q/%q, want %q/%q", evt.Severity, evt.Outcome, tt.severity, tt.result)
			}
			if evt.Metadata["outcome"] != string(tt.outcome) {
				t.Errorf("Metadata[outcome]: got %v", evt.Metadata["outcome"])
			}
		})
	}
}

func TestExtension_NotificationDelivered(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()

	if err := e.OnNotificationDelivered(ctx, "milestone", notify.Delivery{Recipient: "+15550001", Delivered: true}); err != nil {
		t.Fatal(err)
	}
	if evt := rec.last(); evt.ResourceID != "+15550001" || evt.Outcome != ah.OutcomeSuccess {
		t.Errorf("delivered event = %+v", evt)
	}

	if err := e.OnNotificationDelivered(ctx, "milestone", notify.Delivery{Recipient: "+15550002", Error: "carrier rejected"}); err != nil {
		t.Fatal(err)
	}
	evt := rec.last()
	if evt.Outcome != ah.OutcomeFailure || evt.Severity != ah.SeverityWarning {
		t.Errorf("failed event = %+v", evt)
	}
	if evt.Reason != "carrier rejected" {
		t.Errorf("Reason: want %q, got %q", "carrier rejected", evt.Reason)
	}
}

func TestExtension_PayoutCreated(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	p := &payout.Payout{
		ID:        id.NewPayoutID(),
		JobID:     id.NewJobID(),
		ScholarID: "sch-1",
		Amount:    10000,
		Type:      payout.TypeFirstHalf,
	}
	if err := e.OnPayoutCreated(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	evt := rec.last()
	if evt.Metadata["amount"] != int64(10000) || evt.Metadata["payment_type"] != string(payout.TypeFirstHalf) {
		t.Errorf("Metadata: got %v", evt.Metadata)
	}
}

// ── Filtering ────────────────────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionJobClaimed, ah.ActionClaimConflict))

	ctx := context.Background()
	j := newTestJob()

	if err := e.OnJobIntake(ctx, j); err != nil {
		t.Fatalf("OnJobIntake: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (intake disabled), got %d", rec.count())
	}

	if err := e.OnJobClaimed(ctx, j); err != nil {
		t.Fatalf("OnJobClaimed: %v", err)
	}
	if err := e.OnClaimConflict(ctx, j.ID, "sch-2"); err != nil {
		t.Fatalf("OnClaimConflict: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── Recorder error handling test ─────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder)

	// Audit failures must not fail a lifecycle action.
	if err := e.OnJobIntake(context.Background(), newTestJob()); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(ah.New(rec))

	ctx := context.Background()
	j := newTestJob()
	tk := job.Task{ID: id.NewTaskID(), Text: "Sweep", ProposedBy: "sch-1"}
	s := &scholar.Scholar{ID: id.NewScholarID(), Name: "Jordan"}

	reg.EmitJobIntake(ctx, j)
	reg.EmitJobTransitioned(ctx, j, job.StatusChange{From: job.StateLead, To: job.StateSopNeedsReview})
	reg.EmitJobClaimed(ctx, j)
	reg.EmitClaimConflict(ctx, j.ID, "sch-2")
	reg.EmitTaskProposed(ctx, j, tk)
	reg.EmitTaskDecided(ctx, j, tk, task.DecisionReject)
	reg.EmitSopGenerated(ctx, j, true)
	reg.EmitSopReconciled(ctx, j.ID, sop.OutcomeReverted, nil)
	reg.EmitPayoutCreated(ctx, &payout.Payout{ID: id.NewPayoutID(), JobID: j.ID})
	reg.EmitMilestoneReached(ctx, s, scholar.Milestone{ScholarID: s.ID, Threshold: 90}, []notify.Delivery{{Delivered: true}})
	reg.EmitNotificationDelivered(ctx, "milestone", notify.Delivery{Recipient: "+1555", Delivered: true})

	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}
	for _, action := range allActions {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}

package task_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/store/memory"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

var (
	admin    = fieldwork.AdminActor("admin-1")
	assignee = fieldwork.ScholarActor("sch-1")
	outsider = fieldwork.ScholarActor("sch-2")
	t0       = time.Date(2026, 10, 3, 8, 0, 0, 0, time.UTC)
)

type recorder struct {
	mu      sync.Mutex
	effects []job.Effect
}

func (r *recorder) RunEffects(_ context.Context, _ *job.Job, effects []job.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effects...)
}

func (r *recorder) notifications() []job.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []job.Effect
	for _, e := range r.effects {
		if e.Kind == job.EffectNotify {
			out = append(out, e)
		}
	}
	return out
}

// seed stores an in-progress job held by assignee.
func seed(t *testing.T, s job.Store) *job.Job {
	t.Helper()
	at := t0
	j := &job.Job{
		ID:         id.NewJobID(),
		Status:     job.StateInProgress,
		ClientName: "A. Smith",
		AssigneeID: assignee.ID,
		ClaimedAt:  &at,
		Checklist: []job.Task{
			{ID: id.NewTaskID(), Text: "Check in", ApprovalStatus: job.ApprovalApproved},
		},
	}
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	return j
}

func newGate(s job.Store, r *recorder) *task.Gate {
	return task.NewGate(s,
		task.WithEffects(r),
		task.WithClock(func() time.Time { return t0 }),
	)
}

func TestProposeApprovalStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name      string
		actor     fieldwork.Actor
		want      job.ApprovalStatus
		wantAlert bool
	}{
		{"admin is approved", admin, job.ApprovalApproved, false},
		{"assignee is pending", assignee, job.ApprovalPending, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := memory.New()
			r := &recorder{}
			j := seed(t, s)

			got, added, err := newGate(s, r).Propose(ctx, j.ID, tt.actor, "Label bins", id.Nil)
			if err != nil {
				t.Fatal(err)
			}
			if added.ApprovalStatus != tt.want {
				t.Errorf("approval = %s, want %s", added.ApprovalStatus, tt.want)
			}
			if len(got.Checklist) != 2 {
				t.Errorf("checklist len = %d", len(got.Checklist))
			}
			alerts := r.notifications()
			if tt.wantAlert != (len(alerts) == 1 && alerts[0].Audience == job.AudienceAdmins) {
				t.Errorf("admin alerts = %+v", alerts)
			}
		})
	}
}

func TestProposeGuards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	g := newGate(s, &recorder{})
	j := seed(t, s)

	if _, _, err := g.Propose(ctx, j.ID, outsider, "Sneaky", id.Nil); !fieldwork.IsGuard(err) {
		t.Errorf("outsider err = %v, want guard", err)
	}
	if _, _, err := g.Propose(ctx, j.ID, assignee, "   ", id.Nil); !fieldwork.IsGuard(err) {
		t.Errorf("blank text err = %v, want guard", err)
	}
	if _, _, err := g.Propose(ctx, j.ID, admin, "Child", id.NewTaskID()); !errors.Is(err, fieldwork.ErrTaskNotFound) {
		t.Errorf("missing parent err = %v", err)
	}

	_, parent, err := g.Propose(ctx, j.ID, admin, "Shelving", id.Nil)
	if err != nil {
		t.Fatal(err)
	}
	_, child, err := g.Propose(ctx, j.ID, assignee, "Anchor left unit", parent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if child.ParentID != parent.ID {
		t.Errorf("parent = %s, want %s", child.ParentID, parent.ID)
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	r := &recorder{}
	g := newGate(s, r)
	j := seed(t, s)

	_, keep, err := g.Propose(ctx, j.ID, assignee, "Sweep floor", id.Nil)
	if err != nil {
		t.Fatal(err)
	}
	_, drop, err := g.Propose(ctx, j.ID, assignee, "Paint walls", id.Nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := g.Decide(ctx, j.ID, keep.ID, assignee, task.DecisionApprove); !fieldwork.IsUnauthorized(err) {
		t.Fatalf("scholar decide err = %v, want unauthorized", err)
	}

	got, err := g.Decide(ctx, j.ID, keep.ID, admin, task.DecisionApprove)
	if err != nil {
		t.Fatal(err)
	}
	approved, _ := got.Task(keep.ID)
	if approved.ApprovalStatus != job.ApprovalApproved || approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(t0) {
		t.Errorf("approved task = %+v", approved)
	}

	got, err = g.Decide(ctx, j.ID, drop.ID, admin, task.DecisionReject)
	if err != nil {
		t.Fatal(err)
	}
	if removed, _ := got.Task(drop.ID); removed != nil {
		t.Fatal("rejected task should be removed")
	}
	alerts := r.notifications()
	last := alerts[len(alerts)-1]
	if last.Audience != job.AudienceScholar || last.ScholarID != assignee.ID {
		t.Errorf("reject notification = %+v", last)
	}

	if _, err := g.Decide(ctx, j.ID, keep.ID, admin, task.DecisionReject); !fieldwork.IsGuard(err) {
		t.Errorf("decide on approved task err = %v, want guard", err)
	}
	if _, err := g.Decide(ctx, j.ID, drop.ID, admin, task.DecisionApprove); !errors.Is(err, fieldwork.ErrTaskNotFound) {
		t.Errorf("decide on removed task err = %v", err)
	}
}

func TestToggleCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.New()
	g := newGate(s, &recorder{})
	j := seed(t, s)

	_, pending, err := g.Propose(ctx, j.ID, assignee, "Haul boxes", id.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.ToggleCompletion(ctx, j.ID, pending.ID, assignee); !fieldwork.IsUnauthorized(err) {
		t.Fatalf("pending toggle by proposer err = %v, want unauthorized", err)
	}

	got, err := g.ToggleCompletion(ctx, j.ID, pending.ID, admin)
	if err != nil {
		t.Fatal(err)
	}
	if tk, _ := got.Task(pending.ID); !tk.Completed {
		t.Error("admin toggle should complete the pending task")
	}

	approvedID := j.Checklist[0].ID
	if _, err := g.ToggleCompletion(ctx, j.ID, approvedID, outsider); !fieldwork.IsGuard(err) {
		t.Errorf("outsider toggle err = %v, want guard", err)
	}
	got, err = g.ToggleCompletion(ctx, j.ID, approvedID, assignee)
	if err != nil {
		t.Fatal(err)
	}
	tk, _ := got.Task(approvedID)
	if !tk.Completed || tk.CompletedAt == nil {
		t.Errorf("task = %+v", tk)
	}
	got, err = g.ToggleCompletion(ctx, j.ID, approvedID, assignee)
	if err != nil {
		t.Fatal(err)
	}
	if tk, _ := got.Task(approvedID); tk.Completed || tk.CompletedAt != nil {
		t.Errorf("second toggle should clear completion, got %+v", tk)
	}
}

// proposingStore lets a scholar propose a task in between ApproveAll's
// snapshot and its first write.
type proposingStore struct {
	*memory.Store
	gate *task.Gate
	once sync.Once
	late *job.Task
}

func (p *proposingStore) UpdateJob(ctx context.Context, j *job.Job) error {
	p.once.Do(func() {
		_, late, err := p.gate.Propose(ctx, j.ID, assignee, "Late addition", id.Nil)
		if err != nil {
			panic(err)
		}
		p.late = late
	})
	return p.Store.UpdateJob(ctx, j)
}

func TestApproveAllOnlySweepsSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := memory.New()
	j := seed(t, mem)

	inner := newGate(mem, &recorder{})
	_, a, err := inner.Propose(ctx, j.ID, assignee, "Sort tools", id.Nil)
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := inner.Propose(ctx, j.ID, assignee, "Mount pegboard", id.Nil)
	if err != nil {
		t.Fatal(err)
	}

	ps := &proposingStore{Store: mem, gate: inner}
	got, approved, err := newGate(ps, &recorder{}).ApproveAll(ctx, j.ID, admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(approved) != 2 {
		t.Fatalf("approved = %v, want the two snapshot tasks", approved)
	}
	for _, tid := range []id.TaskID{a.ID, b.ID} {
		if tk, _ := got.Task(tid); tk.ApprovalStatus != job.ApprovalApproved {
			t.Errorf("task %s = %s", tid, tk.ApprovalStatus)
		}
	}
	late, _ := got.Task(ps.late.ID)
	if late == nil || late.ApprovalStatus != job.ApprovalPending {
		t.Fatalf("late task = %+v, want still pending", late)
	}

	if _, _, err := newGate(mem, &recorder{}).ApproveAll(ctx, j.ID, assignee); !fieldwork.IsUnauthorized(err) {
		t.Errorf("scholar approve-all err = %v", err)
	}
}

func TestDecisionsRejectedOnTerminalJobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, state := range []job.State{job.StateCompleted, job.StateCancelled} {
		t.Run(string(state), func(t *testing.T) {
			t.Parallel()
			s := memory.New()
			g := newGate(s, &recorder{})
			pending := id.NewTaskID()
			j := &job.Job{
				ID:         id.NewJobID(),
				Status:     state,
				ClientName: "A. Smith",
				AssigneeID: assignee.ID,
				Checklist: []job.Task{
					{ID: pending, Text: "Haul boxes", ApprovalStatus: job.ApprovalPending, ProposedBy: assignee.ID},
				},
			}
			if err := s.CreateJob(ctx, j); err != nil {
				t.Fatal(err)
			}

			if _, err := g.Decide(ctx, j.ID, pending, admin, task.DecisionApprove); !errors.Is(err, fieldwork.ErrInvalidTransition) {
				t.Errorf("Decide err = %v, want ErrInvalidTransition", err)
			}
			if _, _, err := g.ApproveAll(ctx, j.ID, admin); !errors.Is(err, fieldwork.ErrInvalidTransition) {
				t.Errorf("ApproveAll err = %v, want ErrInvalidTransition", err)
			}

			got, err := s.GetJob(ctx, j.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Version != j.Version {
				t.Errorf("version = %d, want %d", got.Version, j.Version)
			}
			if tk, _ := got.Task(pending); tk == nil || tk.ApprovalStatus != job.ApprovalPending {
				t.Errorf("task = %+v, want still pending", tk)
			}
		})
	}
}

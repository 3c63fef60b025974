package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// Decision is an admin's verdict on a pending task.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool { return d == DecisionApprove || d == DecisionReject }

// Emitter receives gate lifecycle notifications.
type Emitter interface {
	TaskProposed(ctx context.Context, j *job.Job, t job.Task)
	TaskDecided(ctx context.Context, j *job.Job, t job.Task, d Decision)
}

type nopEmitter struct{}

func (nopEmitter) TaskProposed(context.Context, *job.Job, job.Task) {}
func (nopEmitter) TaskDecided(context.Context, *job.Job, job.Task, Decision) {}

// scholarStates are the states in which the assignee may edit the checklist.
var scholarStates = []job.State{job.StateUpcoming, job.StateInProgress, job.StateChangesRequested}

// Gate applies checklist operations to jobs.
type Gate struct {
	jobs     job.Store
	effects  job.EffectRunner
	emitter  Emitter
	attempts int
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithEffects sets the runner for notify effects.
func WithEffects(r job.EffectRunner) Option { return func(g *Gate) { g.effects = r } }

// WithEmitter sets the lifecycle emitter.
func WithEmitter(e Emitter) Option { return func(g *Gate) { g.emitter = e } }

// WithAttempts sets the optimistic retry budget per operation.
func WithAttempts(n int) Option { return func(g *Gate) { g.attempts = n } }

// WithClock sets the gate clock.
func WithClock(c func() time.Time) Option { return func(g *Gate) { g.clock = c } }

// WithLogger sets the gate logger.
func WithLogger(l *slog.Logger) Option { return func(g *Gate) { g.logger = l } }

// NewGate creates a Gate over jobs.
func NewGate(jobs job.Store, opts ...Option) *Gate {
	g := &Gate{
		jobs:     jobs,
		effects:  job.DiscardEffects{},
		emitter:  nopEmitter{},
		attempts: 5,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Propose appends a task. An admin's task is approved at once; a scholar's
// waits for review and alerts the admins. parentID groups the task under
// an existing one and may be nil.
func (g *Gate) Propose(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, text string, parentID id.TaskID) (*job.Job, *job.Task, error) {
	text = strings.TrimSpace(text)
	var added job.Task
	var effects []job.Effect

	j, err := job.Mutate(ctx, g.jobs, jobID, g.attempts, func(j *job.Job) (bool, error) {
		effects = nil
		if text == "" {
			return false, guard("propose_task", "text", j, "task text is required")
		}
		if j.Status.Terminal() {
			return false, fieldwork.NewTransitionError("propose_task", string(j.Status))
		}
		if !actor.Privileged() {
			if actor.Role != fieldwork.RoleScholar {
				return false, fieldwork.NewAuthError("propose_task", actor.Role)
			}
			if !j.IsAssignee(actor.ID) {
				return false, guard("propose_task", "assignee", j, "only the assigned scholar may propose tasks")
			}
			if !slices.Contains(scholarStates, j.Status) {
				return false, fieldwork.NewTransitionError("propose_task", string(j.Status))
			}
		}
		if !parentID.IsNil() {
			if t, _ := j.Task(parentID); t == nil {
				return false, fmt.Errorf("parent %s: %w", parentID, fieldwork.ErrTaskNotFound)
			}
		}

		now := g.clock()
		added = job.Task{
			ID:         id.NewTaskID(),
			Text:       text,
			ParentID:   parentID,
			ProposedBy: actor.ID,
		}
		if actor.Privileged() {
			added.ApprovalStatus = job.ApprovalApproved
			added.ApprovedBy = actor.ID
			added.ApprovedAt = &now
		} else {
			added.ApprovalStatus = job.ApprovalPending
			effects = append(effects, job.NotifyAdmins(
				fmt.Sprintf("%s proposed a new task on the job for %s: %q", actor.ID, j.ClientName, text)))
		}
		j.Checklist = append(j.Checklist, added)
		j.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	g.logger.Info("task proposed",
		slog.String("job_id", jobID.String()),
		slog.String("task_id", added.ID.String()),
		slog.String("approval_status", string(added.ApprovalStatus)),
	)
	g.effects.RunEffects(ctx, j, effects)
	g.emitter.TaskProposed(ctx, j, added)
	t, _ := j.Task(added.ID)
	return j, t, nil
}

// Decide approves or rejects a pending task. Approval stamps the task;
// rejection removes it and tells the proposer. Admin only.
func (g *Gate) Decide(ctx context.Context, jobID id.JobID, taskID id.TaskID, actor fieldwork.Actor, d Decision) (*job.Job, error) {
	if !actor.Privileged() {
		return nil, fieldwork.NewAuthError("decide_task", actor.Role)
	}
	if !d.Valid() {
		return nil, fieldwork.NewGuardError("decide_task", "decision", "", fmt.Sprintf("unknown decision %q", d))
	}

	var decided job.Task
	var effects []job.Effect
	j, err := job.Mutate(ctx, g.jobs, jobID, g.attempts, func(j *job.Job) (bool, error) {
		effects = nil
		if j.Status.Terminal() {
			return false, fieldwork.NewTransitionError("decide_task", string(j.Status))
		}
		t, idx := j.Task(taskID)
		if t == nil {
			return false, fmt.Errorf("task %s: %w", taskID, fieldwork.ErrTaskNotFound)
		}
		if t.ApprovalStatus != job.ApprovalPending {
			return false, guard("decide_task", "pending", j, "task is not awaiting approval")
		}
		now := g.clock()
		switch d {
		case DecisionApprove:
			t.ApprovalStatus = job.ApprovalApproved
			t.ApprovedBy = actor.ID
			t.ApprovedAt = &now
			decided = *t
		case DecisionReject:
			decided = *t
			j.Checklist = slices.Delete(j.Checklist, idx, idx+1)
			for i := range j.Checklist {
				if j.Checklist[i].ParentID == taskID {
					j.Checklist[i].ParentID = id.Nil
				}
			}
			if decided.ProposedBy != "" {
				effects = append(effects, job.NotifyScholar(decided.ProposedBy,
					fmt.Sprintf("Your task %q on the job for %s was rejected.", decided.Text, j.ClientName)))
			}
		}
		j.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("task decided",
		slog.String("job_id", jobID.String()),
		slog.String("task_id", taskID.String()),
		slog.String("decision", string(d)),
	)
	g.effects.RunEffects(ctx, j, effects)
	g.emitter.TaskDecided(ctx, j, decided, d)
	return j, nil
}

// ApproveAll approves the tasks that are pending when it is called. Tasks
// proposed after the call begins stay pending even if the write has to be
// retried. It returns the approved task IDs.
func (g *Gate) ApproveAll(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) (*job.Job, []id.TaskID, error) {
	if !actor.Privileged() {
		return nil, nil, fieldwork.NewAuthError("approve_all_tasks", actor.Role)
	}
	snap, err := g.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	pending := snap.PendingTaskIDs()
	if len(pending) == 0 {
		return snap, nil, nil
	}

	var approved []id.TaskID
	j, err := job.Mutate(ctx, g.jobs, jobID, g.attempts, func(j *job.Job) (bool, error) {
		approved = approved[:0]
		if j.Status.Terminal() {
			return false, fieldwork.NewTransitionError("approve_all_tasks", string(j.Status))
		}
		now := g.clock()
		for _, tid := range pending {
			t, _ := j.Task(tid)
			if t == nil || t.ApprovalStatus != job.ApprovalPending {
				continue
			}
			t.ApprovalStatus = job.ApprovalApproved
			t.ApprovedBy = actor.ID
			t.ApprovedAt = &now
			approved = append(approved, tid)
		}
		if len(approved) == 0 {
			return false, nil
		}
		j.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	g.logger.Info("tasks approved",
		slog.String("job_id", jobID.String()),
		slog.Int("count", len(approved)),
	)
	for _, tid := range approved {
		if t, _ := j.Task(tid); t != nil {
			g.emitter.TaskDecided(ctx, j, *t, DecisionApprove)
		}
	}
	return j, approved, nil
}

// ToggleCompletion flips a task's completed flag. A pending task can only
// be toggled by an admin; scholars must hold the job and be on site.
func (g *Gate) ToggleCompletion(ctx context.Context, jobID id.JobID, taskID id.TaskID, actor fieldwork.Actor) (*job.Job, error) {
	return job.Mutate(ctx, g.jobs, jobID, g.attempts, func(j *job.Job) (bool, error) {
		t, _ := j.Task(taskID)
		if t == nil {
			return false, fmt.Errorf("task %s: %w", taskID, fieldwork.ErrTaskNotFound)
		}
		if t.ApprovalStatus == job.ApprovalPending && !actor.Privileged() {
			return false, fieldwork.NewAuthError("toggle_task", actor.Role)
		}
		if j.Status.Terminal() {
			return false, fieldwork.NewTransitionError("toggle_task", string(j.Status))
		}
		if !actor.Privileged() {
			if !j.IsAssignee(actor.ID) {
				return false, guard("toggle_task", "assignee", j, "only the assigned scholar may complete tasks")
			}
			if !slices.Contains(scholarStates, j.Status) {
				return false, fieldwork.NewTransitionError("toggle_task", string(j.Status))
			}
		}
		now := g.clock()
		t.Completed = !t.Completed
		if t.Completed {
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
		j.UpdatedAt = now
		return true, nil
	})
}

func guard(action, name string, j *job.Job, reason string) error {
	return fieldwork.NewGuardError(action, name, string(j.Status), reason)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/media"
	"github.com/garagescholars/garage-tech-stack-sub001/milestone"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// ──────────────────────────────────────────────────
// Intake and reads
// ──────────────────────────────────────────────────

// Intake records a new lead. Only admin and system actors may create jobs.
func (eng *Engine) Intake(ctx context.Context, actor fieldwork.Actor, in job.LeadInput) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, id.Nil, "intake", actor, func(ctx context.Context) error {
		if !actor.Privileged() {
			return fieldwork.NewAuthError("intake", actor.Role)
		}
		j, err := job.NewLead(in, eng.now())
		if err != nil {
			return err
		}
		if err := eng.store.CreateJob(ctx, j); err != nil {
			return err
		}
		eng.extensions.EmitJobIntake(ctx, j)
		out = j
		return nil
	})
	return out, err
}

// Job returns a job by ID.
func (eng *Engine) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.store.GetJob(ctx, jobID)
}

// Jobs lists jobs matching opts.
func (eng *Engine) Jobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return eng.store.ListJobs(ctx, opts)
}

// ──────────────────────────────────────────────────
// Lifecycle actions
// ──────────────────────────────────────────────────

// Do applies any lifecycle action by name. Actions with extra boundary
// checks (claim, check-in, check-out) and the document review actions are
// routed to their dedicated methods.
func (eng *Engine) Do(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, action job.Action, p job.Payload) (*job.Job, error) {
	switch action {
	case job.ActionClaim:
		return eng.Claim(ctx, jobID, actor)
	case job.ActionCheckIn:
		return eng.CheckIn(ctx, jobID, actor, p.PhotoPath)
	case job.ActionCheckOut:
		return eng.CheckOut(ctx, jobID, actor, p.PhotoPath, p.VideoPath)
	case job.ActionApproveSop:
		return eng.ApproveSop(ctx, jobID, actor, p.FinalText)
	case job.ActionGenerate:
		if p.Form == nil {
			return nil, fieldwork.NewGuardError(string(action), "form", "", "conversion form is required")
		}
		if _, err := eng.GenerateSop(ctx, jobID, actor, *p.Form); err != nil {
			return nil, err
		}
		return eng.store.GetJob(ctx, jobID)
	}
	return eng.do(ctx, jobID, actor, action, p)
}

func (eng *Engine) do(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, action job.Action, p job.Payload) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, jobID, string(action), actor, func(ctx context.Context) error {
		j, err := eng.Apply(ctx, jobID, job.Command{Action: action, Actor: actor, Payload: p, At: eng.now()})
		out = j
		return err
	})
	return out, err
}

// Claim assigns a posted job to the calling scholar. Of any number of
// concurrent claims exactly one succeeds; the rest get ErrAlreadyClaimed.
// A claim that races an unrelated write to a still-claimable job is
// re-applied to the fresh copy, so the other write is kept.
func (eng *Engine) Claim(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, jobID, string(job.ActionClaim), actor, func(ctx context.Context) error {
		cmd := job.Command{Action: job.ActionClaim, Actor: actor, At: eng.now()}
		next, effects, err := eng.claim(ctx, jobID, cmd)
		if errors.Is(err, fieldwork.ErrAlreadyClaimed) {
			eng.extensions.EmitClaimConflict(ctx, jobID, actor.ID)
		}
		if err != nil {
			return err
		}
		eng.emitTransition(ctx, next, cmd)
		eng.extensions.EmitJobClaimed(ctx, next)
		eng.RunEffects(ctx, next, effects)
		out = next
		return nil
	})
	return out, err
}

func (eng *Engine) claim(ctx context.Context, jobID id.JobID, cmd job.Command) (*job.Job, []job.Effect, error) {
	attempts := max(eng.fw.Config().MutateAttempts, 1)
	var lastErr error
	for range attempts {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		cur, err := eng.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, nil, err
		}
		next, effects, err := job.Transition(cur, cmd)
		if err != nil {
			return nil, nil, err
		}
		next.Version = cur.Version
		err = eng.store.ClaimJob(ctx, next)
		if err == nil {
			return next, effects, nil
		}
		if !errors.Is(err, fieldwork.ErrVersionConflict) {
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, fmt.Errorf("claim %s after %d attempts: %w", jobID, attempts, lastErr)
}

// Assign hands a posted or upcoming job to a named scholar.
func (eng *Engine) Assign(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, scholarID string) (*job.Job, error) {
	return eng.do(ctx, jobID, actor, job.ActionAssign, job.Payload{AssigneeID: scholarID})
}

// Reschedule moves the appointment. An empty window keeps the current one.
func (eng *Engine) Reschedule(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, at time.Time, window string) (*job.Job, error) {
	return eng.do(ctx, jobID, actor, job.ActionReschedule, job.Payload{ScheduledFor: at, TimeWindow: window})
}

// CheckIn starts work on site. photoPath is optional; when given it must be
// an uploaded check-in photo of this job.
func (eng *Engine) CheckIn(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, photoPath string) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, jobID, string(job.ActionCheckIn), actor, func(ctx context.Context) error {
		if err := eng.verifyMedia(ctx, jobID, job.ActionCheckIn, photoPath, media.KindCheckInPhoto); err != nil {
			return err
		}
		j, err := eng.Apply(ctx, jobID, job.Command{
			Action:  job.ActionCheckIn,
			Actor:   actor,
			Payload: job.Payload{PhotoPath: photoPath},
			At:      eng.now(),
		})
		out = j
		return err
	})
	return out, err
}

// CheckOut finishes work on site. Both the photo and the video must already
// be uploaded for this job.
func (eng *Engine) CheckOut(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, photoPath, videoPath string) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, jobID, string(job.ActionCheckOut), actor, func(ctx context.Context) error {
		if err := eng.verifyMedia(ctx, jobID, job.ActionCheckOut, photoPath, media.KindCheckOutPhoto); err != nil {
			return err
		}
		if err := eng.verifyMedia(ctx, jobID, job.ActionCheckOut, videoPath, media.KindCheckOutVideo); err != nil {
			return err
		}
		j, err := eng.Apply(ctx, jobID, job.Command{
			Action:  job.ActionCheckOut,
			Actor:   actor,
			Payload: job.Payload{PhotoPath: photoPath, VideoPath: videoPath},
			At:      eng.now(),
		})
		out = j
		return err
	})
	return out, err
}

// RequestChanges sends a reviewed job back to its scholar with notes.
func (eng *Engine) RequestChanges(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, notes string) (*job.Job, error) {
	return eng.do(ctx, jobID, actor, job.ActionRequestChanges, job.Payload{Notes: notes})
}

// Disqualify removes the assignee and reposts the job.
func (eng *Engine) Disqualify(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, reason string) (*job.Job, error) {
	return eng.do(ctx, jobID, actor, job.ActionDisqualify, job.Payload{Reason: reason})
}

// ApproveAndPay completes a reviewed job and records the first payout half.
func (eng *Engine) ApproveAndPay(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) (*job.Job, error) {
	return eng.do(ctx, jobID, actor, job.ActionApproveAndPay, job.Payload{})
}

// Cancel closes a job for good.
func (eng *Engine) Cancel(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, reason string) (*job.Job, error) {
	return eng.do(ctx, jobID, actor, job.ActionCancel, job.Payload{Reason: reason})
}

// Rollback returns a job under review to LEAD.
func (eng *Engine) Rollback(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, notes string) (*job.Job, error) {
	return eng.do(ctx, jobID, actor, job.ActionRollback, job.Payload{Notes: notes})
}

// ──────────────────────────────────────────────────
// Document review
// ──────────────────────────────────────────────────

// GenerateSop converts a lead and asks the generator for a draft.
func (eng *Engine) GenerateSop(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, form job.ConversionForm) (*sop.Session, error) {
	var out *sop.Session
	err := eng.run(ctx, jobID, string(job.ActionGenerate), actor, func(ctx context.Context) error {
		s, err := eng.pipeline.Generate(ctx, jobID, actor, form)
		out = s
		return err
	})
	return out, err
}

// RegenerateSop replaces the draft under review using extra guidance.
func (eng *Engine) RegenerateSop(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, notes string) (*sop.Session, error) {
	var out *sop.Session
	err := eng.run(ctx, jobID, "regenerate", actor, func(ctx context.Context) error {
		s, err := eng.pipeline.Regenerate(ctx, jobID, actor, notes)
		out = s
		return err
	})
	return out, err
}

// ApproveSop seals the document and posts the job. An empty finalText
// approves the current draft.
func (eng *Engine) ApproveSop(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, finalText string) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, jobID, string(job.ActionApproveSop), actor, func(ctx context.Context) error {
		j, err := eng.pipeline.Approve(ctx, jobID, actor, finalText)
		out = j
		return err
	})
	return out, err
}

// CancelSop abandons the review and rolls the job back to LEAD.
func (eng *Engine) CancelSop(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) error {
	return eng.run(ctx, jobID, "cancel_review", actor, func(ctx context.Context) error {
		return eng.pipeline.Cancel(ctx, jobID, actor)
	})
}

// RecoverSop settles a generation whose result was never observed.
func (eng *Engine) RecoverSop(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) (*sop.Session, error) {
	var out *sop.Session
	err := eng.run(ctx, jobID, "recover", actor, func(ctx context.Context) error {
		s, err := eng.pipeline.Recover(ctx, jobID, actor)
		out = s
		return err
	})
	return out, err
}

// SopSession returns the review session of a job.
func (eng *Engine) SopSession(ctx context.Context, jobID id.JobID) (*sop.Session, error) {
	return eng.pipeline.Session(ctx, jobID)
}

// ──────────────────────────────────────────────────
// Checklist tasks
// ──────────────────────────────────────────────────

// ProposeTask adds a checklist item. parentID may be id.Nil.
func (eng *Engine) ProposeTask(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, text string, parentID id.TaskID) (*job.Job, *job.Task, error) {
	var (
		j *job.Job
		t *job.Task
	)
	err := eng.run(ctx, jobID, "propose_task", actor, func(ctx context.Context) error {
		var err error
		j, t, err = eng.gate.Propose(ctx, jobID, actor, text, parentID)
		return err
	})
	return j, t, err
}

// DecideTask approves or rejects a pending item.
func (eng *Engine) DecideTask(ctx context.Context, jobID id.JobID, taskID id.TaskID, actor fieldwork.Actor, d task.Decision) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, jobID, "decide_task", actor, func(ctx context.Context) error {
		j, err := eng.gate.Decide(ctx, jobID, taskID, actor, d)
		out = j
		return err
	})
	return out, err
}

// ApproveAllTasks approves every item pending when it is called.
func (eng *Engine) ApproveAllTasks(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) (*job.Job, []id.TaskID, error) {
	var (
		j        *job.Job
		approved []id.TaskID
	)
	err := eng.run(ctx, jobID, "approve_all_tasks", actor, func(ctx context.Context) error {
		var err error
		j, approved, err = eng.gate.ApproveAll(ctx, jobID, actor)
		return err
	})
	return j, approved, err
}

// ToggleTask flips an item's completed flag.
func (eng *Engine) ToggleTask(ctx context.Context, jobID id.JobID, taskID id.TaskID, actor fieldwork.Actor) (*job.Job, error) {
	var out *job.Job
	err := eng.run(ctx, jobID, "toggle_task", actor, func(ctx context.Context) error {
		j, err := eng.gate.ToggleCompletion(ctx, jobID, taskID, actor)
		out = j
		return err
	})
	return out, err
}

// ──────────────────────────────────────────────────
// Media
// ──────────────────────────────────────────────────

// AttachMedia uploads evidence for a job and returns its storage path.
// Only the assigned scholar may attach media, and only while the job is
// open.
func (eng *Engine) AttachMedia(ctx context.Context, jobID id.JobID, actor fieldwork.Actor, kind media.Kind, name, contentType string, r io.Reader) (string, error) {
	var out string
	err := eng.run(ctx, jobID, "attach_media", actor, func(ctx context.Context) error {
		j, err := eng.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !j.IsAssignee(actor.ID) {
			return fieldwork.NewGuardError("attach_media", "assignee", string(j.Status),
				"only the assigned scholar may attach media")
		}
		if j.Status.Terminal() {
			return fieldwork.NewTransitionError("attach_media", string(j.Status))
		}
		p, err := media.Path(jobID, kind, name)
		if err != nil {
			return fieldwork.NewGuardError("attach_media", "media", string(j.Status), err.Error())
		}
		if err := eng.media.Upload(ctx, p, contentType, r); err != nil {
			return fmt.Errorf("upload %s: %w", p, err)
		}
		eng.logger.Info("media attached",
			slog.String("job_id", jobID.String()),
			slog.String("kind", string(kind)),
			slog.String("path", p),
		)
		out = p
		return nil
	})
	return out, err
}

// MediaURL resolves a stored artifact to a retrievable URL.
func (eng *Engine) MediaURL(ctx context.Context, path string) (string, error) {
	return eng.media.URL(ctx, path)
}

func (eng *Engine) verifyMedia(ctx context.Context, jobID id.JobID, action job.Action, p string, kind media.Kind) error {
	if p == "" {
		return nil
	}
	guard := func(reason string) error {
		return fieldwork.NewGuardError(string(action), "media", "", reason)
	}
	if !media.BelongsTo(p, jobID, kind) {
		return guard(fmt.Sprintf("%s is not a %s of this job", p, kind))
	}
	ok, err := eng.media.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("check media %s: %w", p, err)
	}
	if !ok {
		return guard(fmt.Sprintf("%s has not been uploaded", p))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Payouts
// ──────────────────────────────────────────────────

// ReleaseSecondHalf records the deferred payout half once it is due.
func (eng *Engine) ReleaseSecondHalf(ctx context.Context, jobID id.JobID, actor fieldwork.Actor) (*payout.Payout, error) {
	var out *payout.Payout
	err := eng.run(ctx, jobID, "release_second_half", actor, func(ctx context.Context) error {
		if !actor.Privileged() {
			return fieldwork.NewAuthError("release_second_half", actor.Role)
		}
		p, err := eng.splitter.ReleaseSecondHalf(ctx, jobID, eng.now())
		if err != nil {
			return err
		}
		eng.extensions.EmitPayoutCreated(ctx, p)
		out = p
		return nil
	})
	return out, err
}

// MarkPaid records that a payout has been sent.
func (eng *Engine) MarkPaid(ctx context.Context, payoutID id.PayoutID, actor fieldwork.Actor) (*payout.Payout, error) {
	var out *payout.Payout
	err := eng.run(ctx, id.Nil, "mark_paid", actor, func(ctx context.Context) error {
		if !actor.Privileged() {
			return fieldwork.NewAuthError("mark_paid", actor.Role)
		}
		p, err := eng.splitter.MarkPaid(ctx, payoutID, eng.now())
		out = p
		return err
	})
	return out, err
}

// Payouts lists the payouts of a job.
func (eng *Engine) Payouts(ctx context.Context, jobID id.JobID) ([]*payout.Payout, error) {
	return eng.store.ListPayouts(ctx, jobID)
}

// ──────────────────────────────────────────────────
// Scholars and milestones
// ──────────────────────────────────────────────────

// ScholarInput is the registration form of a scholar.
type ScholarInput struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	MonthlyGoal int64  `json:"monthly_goal,omitempty" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterScholar adds a scholar to the roster.
func (eng *Engine) RegisterScholar(ctx context.Context, actor fieldwork.Actor, in ScholarInput) (*scholar.Scholar, error) {
	var out *scholar.Scholar
	err := eng.run(ctx, id.Nil, "register_scholar", actor, func(ctx context.Context) error {
		if !actor.Privileged() {
			return fieldwork.NewAuthError("register_scholar", actor.Role)
		}
		in.Name = strings.TrimSpace(in.Name)
		if err := validate.Struct(in); err != nil {
			return fieldwork.NewGuardError("register_scholar", "input", "", err.Error())
		}
		now := eng.now()
		s := &scholar.Scholar{
			Entity:      fieldwork.Entity{CreatedAt: now, UpdatedAt: now},
			ID:          id.NewScholarID(),
			Name:        in.Name,
			PhoneNumber: in.PhoneNumber,
			Email:       in.Email,
			MonthlyGoal: in.MonthlyGoal,
		}
		if err := eng.store.CreateScholar(ctx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

// Scholar returns a scholar by ID.
func (eng *Engine) Scholar(ctx context.Context, scholarID id.ScholarID) (*scholar.Scholar, error) {
	return eng.store.GetScholar(ctx, scholarID)
}

// Scholars lists the roster.
func (eng *Engine) Scholars(ctx context.Context) ([]*scholar.Scholar, error) {
	return eng.store.ListScholars(ctx)
}

// RecomputeMilestones re-evaluates one scholar's earnings milestones.
func (eng *Engine) RecomputeMilestones(ctx context.Context, scholarID id.ScholarID, actor fieldwork.Actor) (*milestone.Result, error) {
	var out *milestone.Result
	err := eng.run(ctx, id.Nil, "recompute_milestones", actor, func(ctx context.Context) error {
		if !actor.Privileged() {
			return fieldwork.NewAuthError("recompute_milestones", actor.Role)
		}
		res, err := eng.milestones.Recompute(ctx, scholarID)
		out = res
		return err
	})
	return out, err
}

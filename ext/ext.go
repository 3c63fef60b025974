// Package ext defines the extension system for fieldwork.
// Extensions are notified of lifecycle events (lead intake, transitions,
// claims, document generation, payouts, milestones) and can react to
// them: logging, metrics, auditing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobIntake is called after a lead is stored.
type JobIntake interface {
	OnJobIntake(ctx context.Context, j *job.Job) error
}

// JobTransitioned is called after a lifecycle action is persisted. change
// is the history entry the action appended.
type JobTransitioned interface {
	OnJobTransitioned(ctx context.Context, j *job.Job, change job.StatusChange) error
}

// JobClaimed is called after a scholar wins a claim.
type JobClaimed interface {
	OnJobClaimed(ctx context.Context, j *job.Job) error
}

// ClaimConflict is called when a claim loses the race.
type ClaimConflict interface {
	OnClaimConflict(ctx context.Context, jobID id.JobID, scholarID string) error
}

// ──────────────────────────────────────────────────
// Checklist hooks
// ──────────────────────────────────────────────────

// TaskProposed is called after a checklist task is added.
type TaskProposed interface {
	OnTaskProposed(ctx context.Context, j *job.Job, t job.Task) error
}

// TaskDecided is called after an admin approves or rejects a task.
type TaskDecided interface {
	OnTaskDecided(ctx context.Context, j *job.Job, t job.Task, d task.Decision) error
}

// ──────────────────────────────────────────────────
// Document hooks
// ──────────────────────────────────────────────────

// SopGenerated is called when a draft becomes reviewable.
type SopGenerated interface {
	OnSopGenerated(ctx context.Context, j *job.Job, regenerated bool) error
}

// SopReconciled is called after the reconciliation guard settles a failed
// generation.
type SopReconciled interface {
	OnSopReconciled(ctx context.Context, jobID id.JobID, outcome sop.Outcome, err error) error
}

// ──────────────────────────────────────────────────
// Payout, milestone and notification hooks
// ──────────────────────────────────────────────────

// PayoutCreated is called after a payout record is stored.
type PayoutCreated interface {
	OnPayoutCreated(ctx context.Context, p *payout.Payout) error
}

// MilestoneReached is called after a milestone is recorded, with the
// outcome of its broadcast.
type MilestoneReached interface {
	OnMilestoneReached(ctx context.Context, s *scholar.Scholar, m scholar.Milestone, deliveries []notify.Delivery) error
}

// NotificationDelivered is called once per recipient of a lifecycle
// notification. subject names what the notification was about.
type NotificationDelivered interface {
	OnNotificationDelivered(ctx context.Context, subject string, d notify.Delivery) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

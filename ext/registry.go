package ext

import (
	"context"
	"log/slog"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobIntakeEntry struct {
	name string
	hook JobIntake
}

type jobTransitionedEntry struct {
	name string
	hook JobTransitioned
}

type jobClaimedEntry struct {
	name string
	hook JobClaimed
}

type claimConflictEntry struct {
	name string
	hook ClaimConflict
}

type taskProposedEntry struct {
	name string
	hook TaskProposed
}

type taskDecidedEntry struct {
	name string
	hook TaskDecided
}

type sopGeneratedEntry struct {
	name string
	hook SopGenerated
}

type sopReconciledEntry struct {
	name string
	hook SopReconciled
}

type payoutCreatedEntry struct {
	name string
	hook PayoutCreated
}

type milestoneReachedEntry struct {
	name string
	hook MilestoneReached
}

type notificationDeliveredEntry struct {
	name string
	hook NotificationDelivered
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobIntake             []jobIntakeEntry
	jobTransitioned       []jobTransitionedEntry
	jobClaimed            []jobClaimedEntry
	claimConflict         []claimConflictEntry
	taskProposed          []taskProposedEntry
	taskDecided           []taskDecidedEntry
	sopGenerated          []sopGeneratedEntry
	sopReconciled         []sopReconciledEntry
	payoutCreated         []payoutCreatedEntry
	milestoneReached      []milestoneReachedEntry
	notificationDelivered []notificationDeliveredEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobIntake); ok {
		r.jobIntake = append(r.jobIntake, jobIntakeEntry{name, h})
	}
	if h, ok := e.(JobTransitioned); ok {
		r.jobTransitioned = append(r.jobTransitioned, jobTransitionedEntry{name, h})
	}
	if h, ok := e.(JobClaimed); ok {
		r.jobClaimed = append(r.jobClaimed, jobClaimedEntry{name, h})
	}
	if h, ok := e.(ClaimConflict); ok {
		r.claimConflict = append(r.claimConflict, claimConflictEntry{name, h})
	}
	if h, ok := e.(TaskProposed); ok {
		r.taskProposed = append(r.taskProposed, taskProposedEntry{name, h})
	}
	if h, ok := e.(TaskDecided); ok {
		r.taskDecided = append(r.taskDecided, taskDecidedEntry{name, h})
	}
	if h, ok := e.(SopGenerated); ok {
		r.sopGenerated = append(r.sopGenerated, sopGeneratedEntry{name, h})
	}
	if h, ok := e.(SopReconciled); ok {
		r.sopReconciled = append(r.sopReconciled, sopReconciledEntry{name, h})
	}
	if h, ok := e.(PayoutCreated); ok {
		r.payoutCreated = append(r.payoutCreated, payoutCreatedEntry{name, h})
	}
	if h, ok := e.(MilestoneReached); ok {
		r.milestoneReached = append(r.milestoneReached, milestoneReachedEntry{name, h})
	}
	if h, ok := e.(NotificationDelivered); ok {
		r.notificationDelivered = append(r.notificationDelivered, notificationDeliveredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Emitters
// ──────────────────────────────────────────────────

// EmitJobIntake notifies all extensions that implement JobIntake.
func (r *Registry) EmitJobIntake(ctx context.Context, j *job.Job) {
	for _, e := range r.jobIntake {
		if err := e.hook.OnJobIntake(ctx, j); err != nil {
			r.logHookError("OnJobIntake", e.name, err)
		}
	}
}

// EmitJobTransitioned notifies all extensions that implement JobTransitioned.
func (r *Registry) EmitJobTransitioned(ctx context.Context, j *job.Job, change job.StatusChange) {
	for _, e := range r.jobTransitioned {
		if err := e.hook.OnJobTransitioned(ctx, j, change); err != nil {
			r.logHookError("OnJobTransitioned", e.name, err)
		}
	}
}

// EmitJobClaimed notifies all extensions that implement JobClaimed.
func (r *Registry) EmitJobClaimed(ctx context.Context, j *job.Job) {
	for _, e := range r.jobClaimed {
		if err := e.hook.OnJobClaimed(ctx, j); err != nil {
			r.logHookError("OnJobClaimed", e.name, err)
		}
	}
}

// EmitClaimConflict notifies all extensions that implement ClaimConflict.
func (r *Registry) EmitClaimConflict(ctx context.Context, jobID id.JobID, scholarID string) {
	for _, e := range r.claimConflict {
		if err := e.hook.OnClaimConflict(ctx, jobID, scholarID); err != nil {
			r.logHookError("OnClaimConflict", e.name, err)
		}
	}
}

// EmitTaskProposed notifies all extensions that implement TaskProposed.
func (r *Registry) EmitTaskProposed(ctx context.Context, j *job.Job, t job.Task) {
	for _, e := range r.taskProposed {
		if err := e.hook.OnTaskProposed(ctx, j, t); err != nil {
			r.logHookError("OnTaskProposed", e.name, err)
		}
	}
}

// EmitTaskDecided notifies all extensions that implement TaskDecided.
func (r *Registry) EmitTaskDecided(ctx context.Context, j *job.Job, t job.Task, d task.Decision) {
	for _, e := range r.taskDecided {
		if err := e.hook.OnTaskDecided(ctx, j, t, d); err != nil {
			r.logHookError("OnTaskDecided", e.name, err)
		}
	}
}

// EmitSopGenerated notifies all extensions that implement SopGenerated.
func (r *Registry) EmitSopGenerated(ctx context.Context, j *job.Job, regenerated bool) {
	for _, e := range r.sopGenerated {
		if err := e.hook.OnSopGenerated(ctx, j, regenerated); err != nil {
			r.logHookError("OnSopGenerated", e.name, err)
		}
	}
}

// EmitSopReconciled notifies all extensions that implement SopReconciled.
func (r *Registry) EmitSopReconciled(ctx context.Context, jobID id.JobID, outcome sop.Outcome, reconcileErr error) {
	for _, e := range r.sopReconciled {
		if err := e.hook.OnSopReconciled(ctx, jobID, outcome, reconcileErr); err != nil {
			r.logHookError("OnSopReconciled", e.name, err)
		}
	}
}

// EmitPayoutCreated notifies all extensions that implement PayoutCreated.
func (r *Registry) EmitPayoutCreated(ctx context.Context, p *payout.Payout) {
	for _, e := range r.payoutCreated {
		if err := e.hook.OnPayoutCreated(ctx, p); err != nil {
			r.logHookError("OnPayoutCreated", e.name, err)
		}
	}
}

// EmitMilestoneReached notifies all extensions that implement MilestoneReached.
func (r *Registry) EmitMilestoneReached(ctx context.Context, s *scholar.Scholar, m scholar.Milestone, deliveries []notify.Delivery) {
	for _, e := range r.milestoneReached {
		if err := e.hook.OnMilestoneReached(ctx, s, m, deliveries); err != nil {
			r.logHookError("OnMilestoneReached", e.name, err)
		}
	}
}

// EmitNotificationDelivered notifies all extensions that implement NotificationDelivered.
func (r *Registry) EmitNotificationDelivered(ctx context.Context, subject string, d notify.Delivery) {
	for _, e := range r.notificationDelivered {
		if err := e.hook.OnNotificationDelivered(ctx, subject, d); err != nil {
			r.logHookError("OnNotificationDelivered", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block a lifecycle
// action that has already been persisted.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}

package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garagescholars/garage-tech-stack-sub001/ext"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/scope"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension             = (*Extension)(nil)
	_ ext.JobIntake             = (*Extension)(nil)
	_ ext.JobTransitioned       = (*Extension)(nil)
	_ ext.JobClaimed            = (*Extension)(nil)
	_ ext.ClaimConflict         = (*Extension)(nil)
	_ ext.TaskProposed          = (*Extension)(nil)
	_ ext.TaskDecided           = (*Extension)(nil)
	_ ext.SopGenerated          = (*Extension)(nil)
	_ ext.SopReconciled         = (*Extension)(nil)
	_ ext.PayoutCreated         = (*Extension)(nil)
	_ ext.MilestoneReached      = (*Extension)(nil)
	_ ext.NotificationDelivered = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Who
	ActorID   string `json:"actor_id,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobIntake implements ext.JobIntake.
func (e *Extension) OnJobIntake(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobIntake, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"client_name", j.ClientName,
		"package", j.Package,
	)
}

// OnJobTransitioned implements ext.JobTransitioned.
func (e *Extension) OnJobTransitioned(ctx context.Context, j *job.Job, change job.StatusChange) error {
	return e.record(ctx, ActionJobTransitioned, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"action", string(change.Action),
		"from_state", string(change.From),
		"to_state", string(change.To),
		"actor_id", change.ActorID,
		"note", change.Note,
	)
}

// OnJobClaimed implements ext.JobClaimed.
func (e *Extension) OnJobClaimed(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobClaimed, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"scholar_id", j.AssigneeID,
	)
}

// OnClaimConflict implements ext.ClaimConflict.
func (e *Extension) OnClaimConflict(ctx context.Context, jobID id.JobID, scholarID string) error {
	return e.record(ctx, ActionClaimConflict, SeverityWarning, OutcomeFailure,
		ResourceJob, jobID.String(), CategoryJob, nil,
		"scholar_id", scholarID,
	)
}

// ── Checklist hooks ─────────────────────────────────

// OnTaskProposed implements ext.TaskProposed.
func (e *Extension) OnTaskProposed(ctx context.Context, j *job.Job, t job.Task) error {
	return e.record(ctx, ActionTaskProposed, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID.String(), CategoryTask, nil,
		"job_id", j.ID.String(),
		"proposed_by", t.ProposedBy,
		"approval_status", string(t.ApprovalStatus),
	)
}

// OnTaskDecided implements ext.TaskDecided.
func (e *Extension) OnTaskDecided(ctx context.Context, j *job.Job, t job.Task, d task.Decision) error {
	return e.record(ctx, ActionTaskDecided, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID.String(), CategoryTask, nil,
		"job_id", j.ID.String(),
		"decision", string(d),
		"text", t.Text,
	)
}

// ── Document hooks ──────────────────────────────────

// OnSopGenerated implements ext.SopGenerated.
func (e *Extension) OnSopGenerated(ctx context.Context, j *job.Job, regenerated bool) error {
	return e.record(ctx, ActionSopGenerated, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategorySop, nil,
		"regenerated", regenerated,
	)
}

// OnSopReconciled implements ext.SopReconciled. A reverted generation is
// critical: the admin saw a failure.
func (e *Extension) OnSopReconciled(ctx context.Context, jobID id.JobID, outcome sop.Outcome, reconcileErr error) error {
	severity, result := SeverityInfo, OutcomeSuccess
	switch outcome {
	case sop.OutcomeReverted:
		severity, result = SeverityCritical, OutcomeFailure
	case sop.OutcomeUnknown:
		severity, result = SeverityWarning, OutcomeFailure
	}
	return e.record(ctx, ActionSopReconciled, severity, result,
		ResourceJob, jobID.String(), CategorySop, reconcileErr,
		"outcome", string(outcome),
	)
}

// ── Payout and scholar hooks ────────────────────────

// OnPayoutCreated implements ext.PayoutCreated.
func (e *Extension) OnPayoutCreated(ctx context.Context, p *payout.Payout) error {
	return e.record(ctx, ActionPayoutCreated, SeverityInfo, OutcomeSuccess,
		ResourcePayout, p.ID.String(), CategoryPayout, nil,
		"job_id", p.JobID.String(),
		"scholar_id", p.ScholarID,
		"amount", p.Amount,
		"payment_type", string(p.Type),
	)
}

// OnMilestoneReached implements ext.MilestoneReached.
func (e *Extension) OnMilestoneReached(ctx context.Context, s *scholar.Scholar, m scholar.Milestone, deliveries []notify.Delivery) error {
	delivered := 0
	for _, d := range deliveries {
		if d.Delivered {
			delivered++
		}
	}
	return e.record(ctx, ActionMilestoneReached, SeverityInfo, OutcomeSuccess,
		ResourceScholar, s.ID.String(), CategoryScholar, nil,
		"period", m.Period,
		"threshold", m.Threshold,
		"recipients", len(deliveries),
		"delivered", delivered,
	)
}

// OnNotificationDelivered implements ext.NotificationDelivered. One event
// is recorded per recipient.
func (e *Extension) OnNotificationDelivered(ctx context.Context, subject string, d notify.Delivery) error {
	severity, outcome := SeverityInfo, OutcomeSuccess
	var err error
	if !d.Delivered {
		severity, outcome = SeverityWarning, OutcomeFailure
		if d.Error != "" {
			err = errors.New(d.Error)
		}
	}
	return e.record(ctx, ActionNotificationDelivered, severity, outcome,
		ResourceNotification, d.Recipient, CategoryNotification, err,
		"subject", subject,
		"delivered", d.Delivered,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	actorID, role := scope.Capture(ctx)
	evt := &AuditEvent{
		ActorID:    actorID,
		ActorRole:  role,
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

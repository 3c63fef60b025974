package observability

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/garagescholars/garage-tech-stack-sub001/ext"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/garagescholars/garage-tech-stack-sub001/observability"

// Compile-time interface checks.
var (
	_ ext.Extension             = (*MetricsExtension)(nil)
	_ ext.JobIntake             = (*MetricsExtension)(nil)
	_ ext.JobTransitioned       = (*MetricsExtension)(nil)
	_ ext.JobClaimed            = (*MetricsExtension)(nil)
	_ ext.ClaimConflict         = (*MetricsExtension)(nil)
	_ ext.TaskProposed          = (*MetricsExtension)(nil)
	_ ext.TaskDecided           = (*MetricsExtension)(nil)
	_ ext.SopGenerated          = (*MetricsExtension)(nil)
	_ ext.SopReconciled         = (*MetricsExtension)(nil)
	_ ext.PayoutCreated         = (*MetricsExtension)(nil)
	_ ext.MilestoneReached      = (*MetricsExtension)(nil)
	_ ext.NotificationDelivered = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics through an OTel
// meter. Register it as an extension to track intake volume, transition
// rates by action, claim races, SOP reconciliation outcomes, payouts and
// notification delivery.
type MetricsExtension struct {
	JobIntake       metric.Int64Counter
	JobTransitions  metric.Int64Counter
	JobClaims       metric.Int64Counter
	ClaimConflicts  metric.Int64Counter
	TaskProposals   metric.Int64Counter
	TaskDecisions   metric.Int64Counter
	SopGenerations  metric.Int64Counter
	Reconciliations metric.Int64Counter
	PayoutsCreated  metric.Int64Counter
	PayoutAmount    metric.Int64Counter
	Milestones      metric.Int64Counter
	Notifications   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider. If none is configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Use an sdk/metric ManualReader-backed meter in tests.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	return &MetricsExtension{
		JobIntake:       counter(meter, "fieldwork.job.intake", "Leads taken in", "{job}"),
		JobTransitions:  counter(meter, "fieldwork.job.transitions", "Committed lifecycle transitions", "{transition}"),
		JobClaims:       counter(meter, "fieldwork.job.claims", "Successful job claims", "{claim}"),
		ClaimConflicts:  counter(meter, "fieldwork.job.claim_conflicts", "Claims lost to a concurrent claimer", "{claim}"),
		TaskProposals:   counter(meter, "fieldwork.task.proposals", "Checklist tasks added", "{task}"),
		TaskDecisions:   counter(meter, "fieldwork.task.decisions", "Admin decisions on pending tasks", "{decision}"),
		SopGenerations:  counter(meter, "fieldwork.sop.generations", "Work-instruction drafts produced", "{document}"),
		Reconciliations: counter(meter, "fieldwork.sop.reconciliations", "Reconciliations after a failed generation call", "{reconciliation}"),
		PayoutsCreated:  counter(meter, "fieldwork.payouts.created", "Payout records created", "{payout}"),
		PayoutAmount:    counter(meter, "fieldwork.payouts.amount", "Total payout amount created", "{cent}"),
		Milestones:      counter(meter, "fieldwork.milestones.reached", "Earnings milestones broadcast", "{milestone}"),
		Notifications:   counter(meter, "fieldwork.notifications", "Notification send attempts", "{message}"),
	}
}

// counter creates an Int64Counter. On error the OTel API returns a noop
// instrument, so the extension degrades gracefully.
func counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit)) //nolint:errcheck // noop fallback
	return c
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobIntake implements ext.JobIntake.
func (m *MetricsExtension) OnJobIntake(ctx context.Context, j *job.Job) error {
	m.JobIntake.Add(ctx, 1, metric.WithAttributes(attribute.String("package", j.Package)))
	return nil
}

// OnJobTransitioned implements ext.JobTransitioned.
func (m *MetricsExtension) OnJobTransitioned(ctx context.Context, _ *job.Job, change job.StatusChange) error {
	m.JobTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(change.Action)),
		attribute.String("to_state", string(change.To)),
	))
	return nil
}

// OnJobClaimed implements ext.JobClaimed.
func (m *MetricsExtension) OnJobClaimed(ctx context.Context, _ *job.Job) error {
	m.JobClaims.Add(ctx, 1)
	return nil
}

// OnClaimConflict implements ext.ClaimConflict.
func (m *MetricsExtension) OnClaimConflict(ctx context.Context, _ id.JobID, _ string) error {
	m.ClaimConflicts.Add(ctx, 1)
	return nil
}

// ── Task hooks ──────────────────────────────────────

// OnTaskProposed implements ext.TaskProposed.
func (m *MetricsExtension) OnTaskProposed(ctx context.Context, _ *job.Job, t job.Task) error {
	m.TaskProposals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("approval_status", string(t.ApprovalStatus)),
	))
	return nil
}

// OnTaskDecided implements ext.TaskDecided.
func (m *MetricsExtension) OnTaskDecided(ctx context.Context, _ *job.Job, _ job.Task, d task.Decision) error {
	m.TaskDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", string(d))))
	return nil
}

// ── SOP hooks ───────────────────────────────────────

// OnSopGenerated implements ext.SopGenerated.
func (m *MetricsExtension) OnSopGenerated(ctx context.Context, _ *job.Job, regenerated bool) error {
	m.SopGenerations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("regenerated", regenerated)))
	return nil
}

// OnSopReconciled implements ext.SopReconciled.
func (m *MetricsExtension) OnSopReconciled(ctx context.Context, _ id.JobID, outcome sop.Outcome, _ error) error {
	m.Reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	return nil
}

// ── Payout and notification hooks ───────────────────

// OnPayoutCreated implements ext.PayoutCreated.
func (m *MetricsExtension) OnPayoutCreated(ctx context.Context, p *payout.Payout) error {
	attrs := metric.WithAttributes(attribute.String("payment_type", string(p.Type)))
	m.PayoutsCreated.Add(ctx, 1, attrs)
	m.PayoutAmount.Add(ctx, p.Amount, attrs)
	return nil
}

// OnMilestoneReached implements ext.MilestoneReached.
func (m *MetricsExtension) OnMilestoneReached(ctx context.Context, _ *scholar.Scholar, ms scholar.Milestone, _ []notify.Delivery) error {
	m.Milestones.Add(ctx, 1, metric.WithAttributes(attribute.String("threshold", strconv.Itoa(ms.Threshold))))
	return nil
}

// OnNotificationDelivered implements ext.NotificationDelivered.
func (m *MetricsExtension) OnNotificationDelivered(ctx context.Context, subject string, d notify.Delivery) error {
	m.Notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subject", subject),
		attribute.Bool("delivered", d.Delivered),
	))
	return nil
}

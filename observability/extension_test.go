package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/garagescholars/garage-tech-stack-sub001/ext"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/observability"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		Status:     job.StateUpcoming,
		ClientName: "A. Smith",
		Package:    "graduate",
		AssigneeID: "sch-1",
	}
}

// sum collects reader and totals the data points of the named counter whose
// attributes include every kv in match.
func sum(t *testing.T, reader *sdkmetric.ManualReader, name string, match ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
		dp:
			for _, p := range data.DataPoints {
				for _, kv := range match {
					if v, ok := p.Attributes.Value(kv.Key); !ok || v != kv.Value {
						continue dp
					}
				}
				total += p.Value
			}
		}
	}
	return total
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_JobTransitioned(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()
	j := newTestJob()

	for _, change := range []job.StatusChange{
		{From: job.StateApprovedForPosting, To: job.StateUpcoming, Action: job.ActionClaim},
		{From: job.StateUpcoming, To: job.StateInProgress, Action: job.ActionCheckIn},
		{From: job.StateChangesRequested, To: job.StateInProgress, Action: job.ActionCheckIn},
	} {
		if err := e.OnJobTransitioned(ctx, j, change); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := sum(t, reader, "fieldwork.job.transitions"); got != 3 {
		t.Errorf("transitions: want 3, got %d", got)
	}
	if got := sum(t, reader, "fieldwork.job.transitions", attribute.String("action", "check_in")); got != 2 {
		t.Errorf("check_in transitions: want 2, got %d", got)
	}
}

func TestMetricsExtension_SopReconciledByOutcome(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()
	jobID := id.NewJobID()

	_ = e.OnSopReconciled(ctx, jobID, sop.OutcomeRecovered, nil)
	_ = e.OnSopReconciled(ctx, jobID, sop.OutcomeReverted, errors.New("timeout"))
	_ = e.OnSopReconciled(ctx, jobID, sop.OutcomeReverted, errors.New("timeout"))

	if got := sum(t, reader, "fieldwork.sop.reconciliations", attribute.String("outcome", "reverted")); got != 2 {
		t.Errorf("reverted: want 2, got %d", got)
	}
	if got := sum(t, reader, "fieldwork.sop.reconciliations", attribute.String("outcome", "recovered")); got != 1 {
		t.Errorf("recovered: want 1, got %d", got)
	}
}

func TestMetricsExtension_PayoutAmount(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	_ = e.OnPayoutCreated(ctx, &payout.Payout{Amount: 10000, Type: payout.TypeFirstHalf})
	_ = e.OnPayoutCreated(ctx, &payout.Payout{Amount: 10001, Type: payout.TypeSecondHalf})

	if got := sum(t, reader, "fieldwork.payouts.created"); got != 2 {
		t.Errorf("payouts: want 2, got %d", got)
	}
	if got := sum(t, reader, "fieldwork.payouts.amount"); got != 20001 {
		t.Errorf("amount: want 20001, got %d", got)
	}
}

func TestMetricsExtension_NotificationDelivered(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	_ = e.OnNotificationDelivered(ctx, "milestone", notify.Delivery{Recipient: "+1", Delivered: true})
	_ = e.OnNotificationDelivered(ctx, "milestone", notify.Delivery{Recipient: "+2", Error: "rejected"})

	if got := sum(t, reader, "fieldwork.notifications", attribute.Bool("delivered", false)); got != 1 {
		t.Errorf("undelivered: want 1, got %d", got)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	j := newTestJob()
	tk := job.Task{ID: id.NewTaskID(), Text: "Sweep", ApprovalStatus: job.ApprovalPending}

	reg.EmitJobIntake(ctx, j)
	reg.EmitJobTransitioned(ctx, j, job.StatusChange{From: job.StateLead, To: job.StateSopNeedsReview, Action: job.ActionGenerate})
	reg.EmitJobClaimed(ctx, j)
	reg.EmitClaimConflict(ctx, j.ID, "sch-2")
	reg.EmitTaskProposed(ctx, j, tk)
	reg.EmitTaskDecided(ctx, j, tk, task.DecisionApprove)
	reg.EmitSopGenerated(ctx, j, false)
	reg.EmitSopReconciled(ctx, j.ID, sop.OutcomeSuperseded, nil)
	reg.EmitPayoutCreated(ctx, &payout.Payout{Amount: 500, Type: payout.TypeFirstHalf})
	reg.EmitMilestoneReached(ctx, &scholar.Scholar{}, scholar.Milestone{Threshold: 90}, nil)
	reg.EmitNotificationDelivered(ctx, "claim", notify.Delivery{Delivered: true})

	for _, name := range []string{
		"fieldwork.job.intake",
		"fieldwork.job.transitions",
		"fieldwork.job.claims",
		"fieldwork.job.claim_conflicts",
		"fieldwork.task.proposals",
		"fieldwork.task.decisions",
		"fieldwork.sop.generations",
		"fieldwork.sop.reconciliations",
		"fieldwork.payouts.created",
		"fieldwork.milestones.reached",
		"fieldwork.notifications",
	} {
		if got := sum(t, reader, name); got != 1 {
			t.Errorf("%s: want 1, got %d", name, got)
		}
	}
}

// Package milestone detects when a scholar's earnings cross a goal
// threshold and broadcasts each crossing once.
package milestone

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
)

// DefaultThresholds are the goal percentages that trigger a broadcast.
var DefaultThresholds = []int{80, 90, 100}

// NewlyCrossed returns the highest threshold at or below pct that is not in
// achieved. Lower unreached thresholds are skipped, not queued.
func NewlyCrossed(pct float64, achieved, thresholds []int) (int, bool) {
	best, found := 0, false
	for _, th := range thresholds {
		if float64(th) > pct || slices.Contains(achieved, th) {
			continue
		}
		if !found || th > best {
			best, found = th, true
		}
	}
	return best, found
}

// Percentage returns earnings as a percentage of goal. A non-positive goal
// yields 0.
func Percentage(earnings, goal int64) float64 {
	if goal <= 0 {
		return 0
	}
	return float64(earnings) * 100 / float64(goal)
}

// Emitter receives milestone notifications.
type Emitter interface {
	MilestoneReached(ctx context.Context, s *scholar.Scholar, m scholar.Milestone, deliveries []notify.Delivery)
}

type nopEmitter struct{}

func (nopEmitter) MilestoneReached(context.Context, *scholar.Scholar, scholar.Milestone, []notify.Delivery) {
}

// Result describes one recompute pass for one scholar.
type Result struct {
	ScholarID  id.ScholarID      `json:"scholar_id"`
	Period     string            `json:"period"`
	Earnings   int64             `json:"earnings"`
	Goal       int64             `json:"goal"`
	Percentage float64           `json:"percentage"`
	Threshold  int               `json:"threshold,omitempty"`
	Recorded   bool              `json:"recorded"`
	Deliveries []notify.Delivery `json:"deliveries,omitempty"`
}

// Notifier recomputes goal progress and broadcasts new milestones.
type Notifier struct {
	jobs        job.Store
	scholars    scholar.Store
	broadcaster *notify.Broadcaster
	thresholds  []int
	emitter     Emitter
	clock       func() time.Time
	logger      *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithThresholds overrides DefaultThresholds.
func WithThresholds(t ...int) Option {
	return func(n *Notifier) { n.thresholds = slices.Clone(t) }
}

// WithEmitter sets the lifecycle emitter.
func WithEmitter(e Emitter) Option { return func(n *Notifier) { n.emitter = e } }

// WithClock sets the clock that picks the goal period.
func WithClock(c func() time.Time) Option { return func(n *Notifier) { n.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(n *Notifier) { n.logger = l } }

// New creates a Notifier.
func New(jobs job.Store, scholars scholar.Store, b *notify.Broadcaster, opts ...Option) *Notifier {
	n := &Notifier{
		jobs:        jobs,
		scholars:    scholars,
		broadcaster: b,
		thresholds:  slices.Clone(DefaultThresholds),
		emitter:     nopEmitter{},
		clock:       func() time.Time { return time.Now().UTC() },
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Recompute sums the scholar's completed-job pay for the current period
// and, if a threshold is newly crossed, records it and then broadcasts it
// to every scholar with a phone number. The record comes first: a failed
// delivery never un-achieves a milestone, and a recorded milestone is never
// broadcast again.
func (n *Notifier) Recompute(ctx context.Context, scholarID id.ScholarID) (*Result, error) {
	s, err := n.scholars.GetScholar(ctx, scholarID)
	if err != nil {
		return nil, err
	}
	now := n.clock()
	period := scholar.Period(now)
	res := &Result{ScholarID: scholarID, Period: period, Goal: s.MonthlyGoal}
	if s.MonthlyGoal <= 0 {
		return res, nil
	}

	from, to, err := scholar.PeriodBounds(period)
	if err != nil {
		return nil, err
	}
	completed, err := n.jobs.ListJobs(ctx, job.ListOpts{
		Status:        job.StateCompleted,
		AssigneeID:    scholarID.String(),
		CompletedFrom: from,
		CompletedTo:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("milestone: list completed jobs: %w", err)
	}
	for _, j := range completed {
		res.Earnings += j.Payout
	}
	res.Percentage = Percentage(res.Earnings, s.MonthlyGoal)

	achieved, err := n.scholars.ListMilestones(ctx, scholarID, period)
	if err != nil {
		return nil, fmt.Errorf("milestone: list milestones: %w", err)
	}
	threshold, ok := NewlyCrossed(res.Percentage, achieved, n.thresholds)
	if !ok {
		return res, nil
	}
	res.Threshold = threshold

	m := scholar.Milestone{ScholarID: scholarID, Period: period, Threshold: threshold, AchievedAt: now}
	added, err := n.scholars.RecordMilestone(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("milestone: record: %w", err)
	}
	if !added {
		// A concurrent pass recorded it first and owns the broadcast.
		return res, nil
	}
	res.Recorded = true

	n.logger.Info("milestone reached",
		slog.String("scholar_id", scholarID.String()),
		slog.String("period", period),
		slog.Int("threshold", threshold),
		slog.Float64("percentage", res.Percentage),
	)

	recipients, err := n.recipients(ctx)
	if err != nil {
		n.logger.Warn("milestone broadcast skipped",
			slog.String("scholar_id", scholarID.String()),
			slog.String("error", err.Error()),
		)
	} else {
		res.Deliveries = n.broadcaster.Broadcast(ctx, recipients, Message(s.Name, threshold))
	}
	n.emitter.MilestoneReached(ctx, s, m, res.Deliveries)
	return res, nil
}

// RecomputeAll runs Recompute for every scholar. Per-scholar failures are
// logged and skipped.
func (n *Notifier) RecomputeAll(ctx context.Context) ([]*Result, error) {
	all, err := n.scholars.ListScholars(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Result, 0, len(all))
	for _, s := range all {
		res, err := n.Recompute(ctx, s.ID)
		if err != nil {
			n.logger.Warn("milestone recompute failed",
				slog.String("scholar_id", s.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (n *Notifier) recipients(ctx context.Context) ([]string, error) {
	all, err := n.scholars.ListScholars(ctx)
	if err != nil {
		return nil, err
	}
	var phones []string
	for _, s := range all {
		if s.PhoneNumber != "" {
			phones = append(phones, s.PhoneNumber)
		}
	}
	return phones, nil
}

// Message is the broadcast text for a milestone.
func Message(name string, threshold int) string {
	if threshold >= 100 {
		return fmt.Sprintf("%s just hit 100%% of their monthly goal. Congratulations!", name)
	}
	return fmt.Sprintf("%s just reached %d%% of their monthly goal. Keep it up!", name, threshold)
}

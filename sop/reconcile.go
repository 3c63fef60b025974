package sop

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/backoff"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// Outcome is the reconciled result of a generation call whose client-side
// result was lost or failed.
type Outcome string

const (
	// OutcomeRecovered means the document was produced server-side and the
	// job is waiting for review.
	OutcomeRecovered Outcome = "recovered"
	// OutcomeReverted means no document exists and the job is back in LEAD.
	OutcomeReverted Outcome = "reverted"
	// OutcomeSuperseded means the job moved on (approved, cancelled) while
	// the call was outstanding. Nothing is changed.
	OutcomeSuperseded Outcome = "superseded"
	// OutcomeUnknown means the job could not be read. Nothing is changed.
	OutcomeUnknown Outcome = "unknown"
)

// Guard decides the true outcome of a failed generation by re-reading the
// persisted job. Reconcile is idempotent: running it again after any
// outcome yields the same outcome with no further writes.
type Guard struct {
	jobs     job.Store
	policy   backoff.Policy
	attempts int
	clock    func() time.Time
	logger   *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithReadPolicy sets the retry policy for reconciliation reads.
func WithReadPolicy(p backoff.Policy) GuardOption {
	return func(g *Guard) { g.policy = p }
}

// WithGuardLogger sets the guard's logger.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// WithGuardClock sets the clock used to stamp reverts.
func WithGuardClock(c func() time.Time) GuardOption {
	return func(g *Guard) { g.clock = c }
}

// WithGuardMutateAttempts sets how many times a revert is re-applied on a
// version conflict.
func WithGuardMutateAttempts(n int) GuardOption {
	return func(g *Guard) { g.attempts = n }
}

// NewGuard creates a Guard over jobs.
func NewGuard(jobs job.Store, opts ...GuardOption) *Guard {
	g := &Guard{
		jobs:     jobs,
		policy:   backoff.DefaultPolicy(),
		attempts: 5,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.policy.Retryable = func(err error) bool {
		return !errors.Is(err, fieldwork.ErrJobNotFound)
	}
	return g
}

// Reconcile reads the job and settles the generation outcome:
//
//   - a document present while SOP_NEEDS_REVIEW is a success the caller
//     missed (Recovered, job returned for review);
//   - no document while SOP_NEEDS_REVIEW reverts the job to LEAD (Reverted);
//   - LEAD without a document is already reverted (Reverted, no write);
//   - any other state is left untouched (Superseded).
//
// A job that cannot be read after the bounded retries yields Unknown and is
// never reverted.
func (g *Guard) Reconcile(ctx context.Context, jobID id.JobID) (Outcome, *job.Job, error) {
	var cur *job.Job
	err := backoff.Retry(ctx, g.policy, func(ctx context.Context, attempt int) error {
		j, err := g.jobs.GetJob(ctx, jobID)
		if err != nil {
			g.logger.Warn("reconcile read failed",
				slog.String("job_id", jobID.String()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}
		cur = j
		return nil
	})
	if err != nil {
		return OutcomeUnknown, nil, err
	}

	hasDoc := strings.TrimSpace(cur.GeneratedSop) != ""
	switch {
	case cur.Status == job.StateSopNeedsReview && hasDoc:
		return OutcomeRecovered, cur, nil
	case cur.Status == job.StateLead && !hasDoc:
		return OutcomeReverted, cur, nil
	case cur.Status != job.StateSopNeedsReview:
		return OutcomeSuperseded, cur, nil
	}

	// No document yet: revert, unless one lands between our read and the
	// write, in which case the fresh read wins.
	recovered := false
	superseded := false
	reverted, err := job.Mutate(ctx, g.jobs, jobID, g.attempts, func(j *job.Job) (bool, error) {
		recovered, superseded = false, false
		if j.Status != job.StateSopNeedsReview {
			superseded = j.Status != job.StateLead
			return false, nil
		}
		if strings.TrimSpace(j.GeneratedSop) != "" {
			recovered = true
			return false, nil
		}
		next, _, err := job.Transition(j, job.Command{
			Action: job.ActionRollback,
			Actor:  fieldwork.SystemActor(),
			At:     g.clock(),
			Payload: job.Payload{
				Notes: "generation failed",
			},
		})
		if err != nil {
			return false, err
		}
		next.Version = j.Version
		*j = *next
		return true, nil
	})
	switch {
	case err != nil:
		return OutcomeUnknown, nil, err
	case recovered:
		return OutcomeRecovered, reverted, nil
	case superseded:
		return OutcomeSuperseded, reverted, nil
	}
	g.logger.Info("generation reverted",
		slog.String("job_id", jobID.String()),
		slog.String("to_state", string(reverted.Status)),
	)
	return OutcomeReverted, reverted, nil
}

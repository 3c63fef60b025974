// Package reactor consumes the job change feed and keeps derived state in
// step with it. Today that is milestone tracking: every change to a
// completed, assigned job triggers a milestone recompute for the assignee.
//
// The reactor never polls. It holds one WatchJobs subscription and a small
// pool of goroutines that process changes; if the feed closes while the
// reactor is running it re-subscribes with backoff.
package reactor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/garagescholars/garage-tech-stack-sub001/backoff"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/milestone"
)

// Recomputer re-evaluates a scholar's earnings milestones.
type Recomputer interface {
	Recompute(ctx context.Context, scholarID id.ScholarID) (*milestone.Result, error)
}

// DefaultFilter selects changes that can move a scholar's earnings.
var DefaultFilter = job.Filter{
	Statuses:     []job.State{job.StateCompleted},
	AssignedOnly: true,
}

// Reactor turns job changes into milestone recomputes.
type Reactor struct {
	jobs        job.Store
	recomputer  Recomputer
	filter      job.Filter
	concurrency int
	resubscribe backoff.Strategy
	logger      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	running bool
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithFilter overrides which changes trigger a recompute.
func WithFilter(f job.Filter) Option {
	return func(r *Reactor) { r.filter = f }
}

// WithConcurrency sets the number of recompute goroutines.
func WithConcurrency(n int) Option {
	return func(r *Reactor) { r.concurrency = n }
}

// WithResubscribeBackoff sets the delay strategy used when the change feed
// closes unexpectedly.
func WithResubscribeBackoff(s backoff.Strategy) Option {
	return func(r *Reactor) { r.resubscribe = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reactor) { r.logger = l }
}

// New creates a reactor over jobs.
func New(jobs job.Store, rc Recomputer, opts ...Option) *Reactor {
	r := &Reactor{
		jobs:        jobs,
		recomputer:  rc,
		filter:      DefaultFilter,
		concurrency: 4,
		resubscribe: backoff.NewExponentialWithJitter(100*time.Millisecond, 10*time.Second),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the change feed and launches the workers. It
// returns once the first subscription is established.
func (r *Reactor) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	changes, err := r.jobs.WatchJobs(runCtx, r.filter)
	if err != nil {
		cancel()
		return err
	}

	r.running = true
	r.cancel = cancel
	// Each run owns its queue. A feed loop left over from a timed-out Stop
	// closes only the queue it was started with.
	work := make(chan id.ScholarID, r.concurrency*4)

	r.logger.Info("reactor starting", slog.Int("concurrency", r.concurrency))

	for range r.concurrency {
		r.wg.Add(1)
		go r.workLoop(runCtx, work)
	}
	r.wg.Add(1)
	go r.feedLoop(runCtx, changes, work)

	return nil
}

// Stop cancels the subscription and waits for in-flight recomputes. If ctx
// ends first, Stop returns its error without waiting further.
func (r *Reactor) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	r.logger.Info("reactor stopping")
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("reactor stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("reactor shutdown timed out")
		return ctx.Err()
	}
}

// feedLoop forwards scholar IDs from the change feed to the workers and
// re-subscribes when the feed closes before the reactor is stopped.
func (r *Reactor) feedLoop(ctx context.Context, changes <-chan job.Change, work chan<- id.ScholarID) {
	defer r.wg.Done()
	defer close(work)

	attempt := 0
	for {
		for c := range changes {
			attempt = 0
			scholarID, ok := r.scholarOf(c)
			if !ok {
				continue
			}
			select {
			case work <- scholarID:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		for {
			attempt++
			r.logger.Warn("change feed closed, resubscribing", slog.Int("attempt", attempt))
			timer := time.NewTimer(r.resubscribe.Delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			var err error
			changes, err = r.jobs.WatchJobs(ctx, r.filter)
			if err == nil {
				break
			}
			r.logger.Error("resubscribe failed", slog.String("error", err.Error()))
		}
	}
}

func (r *Reactor) scholarOf(c job.Change) (id.ScholarID, bool) {
	if c.Job == nil || c.Job.AssigneeID == "" {
		return id.Nil, false
	}
	scholarID, err := id.ParseScholarID(c.Job.AssigneeID)
	if err != nil {
		r.logger.Warn("change for unknown assignee",
			slog.String("job_id", c.Job.ID.String()),
			slog.String("assignee_id", c.Job.AssigneeID),
		)
		return id.Nil, false
	}
	return scholarID, true
}

// workLoop is run by each recompute goroutine.
func (r *Reactor) workLoop(ctx context.Context, work <-chan id.ScholarID) {
	defer r.wg.Done()

	for scholarID := range work {
		res, err := r.recomputer.Recompute(ctx, scholarID)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Error("milestone recompute failed",
					slog.String("scholar_id", scholarID.String()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if res.Recorded {
			r.logger.Info("milestone recorded",
				slog.String("scholar_id", scholarID.String()),
				slog.Int("threshold", res.Threshold),
				slog.Float64("percentage", res.Percentage),
			)
		}
	}
}

package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// ComplaintChecker reports whether a client complaint blocks the deferred
// half of a job's payout.
type ComplaintChecker interface {
	HasComplaint(ctx context.Context, jobID id.JobID) (bool, error)
}

// NoComplaints is a ComplaintChecker that never finds a complaint.
type NoComplaints struct{}

// HasComplaint always reports false.
func (NoComplaints) HasComplaint(context.Context, id.JobID) (bool, error) { return false, nil }

// Splitter derives payout records from approved jobs.
type Splitter struct {
	payouts    Store
	jobs       job.Store
	complaints ComplaintChecker
	delay      time.Duration
	logger     *slog.Logger
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithComplaintChecker sets the complaint checker consulted before the
// second half is released.
func WithComplaintChecker(c ComplaintChecker) SplitterOption {
	return func(s *Splitter) { s.complaints = c }
}

// WithDelay sets how long after the first half the second half is due.
func WithDelay(d time.Duration) SplitterOption {
	return func(s *Splitter) { s.delay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SplitterOption {
	return func(s *Splitter) { s.logger = l }
}

// NewSplitter creates a Splitter.
func NewSplitter(payouts Store, jobs job.Store, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		payouts:    payouts,
		jobs:       jobs,
		complaints: NoComplaints{},
		delay:      24 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delay returns the deferral between the two halves.
func (s *Splitter) Delay() time.Duration { return s.delay }

// CreateFirstHalf records the immediate half of a job's payout. A first
// half already on file for the job is returned as is, so repeating the
// call never records a second one.
func (s *Splitter) CreateFirstHalf(ctx context.Context, j *job.Job, split job.PayoutSplit, now time.Time) (*Payout, error) {
	if existing, err := s.firstHalf(ctx, j.ID); err != nil || existing != nil {
		return existing, err
	}
	p := &Payout{
		Entity:    fieldwork.Entity{CreatedAt: now, UpdatedAt: now},
		ID:        id.NewPayoutID(),
		JobID:     j.ID,
		ScholarID: j.AssigneeID,
		Amount:    split.First,
		Status:    StatusPending,
		Type:      TypeFirstHalf,
		DueAt:     now,
	}
	if err := s.payouts.CreatePayout(ctx, p); err != nil {
		if errors.Is(err, fieldwork.ErrPayoutExists) {
			if existing, ferr := s.firstHalf(ctx, j.ID); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create first half for %s: %w", j.ID, err)
	}
	s.logger.Info("first payout half created",
		slog.String("job_id", j.ID.String()),
		slog.String("scholar_id", j.AssigneeID),
		slog.Int64("amount", p.Amount),
	)
	return p, nil
}

func (s *Splitter) firstHalf(ctx context.Context, jobID id.JobID) (*Payout, error) {
	existing, err := s.payouts.ListPayouts(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list payouts for %s: %w", jobID, err)
	}
	for _, p := range existing {
		if p.Type == TypeFirstHalf {
			return p, nil
		}
	}
	return nil, nil
}

// ReleaseSecondHalf creates the deferred half once the first half exists,
// the delay has elapsed and no complaint is on file. Releasing twice
// returns ErrPayoutExists.
func (s *Splitter) ReleaseSecondHalf(ctx context.Context, jobID id.JobID, now time.Time) (*Payout, error) {
	j, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StateCompleted {
		return nil, fieldwork.NewGuardError("release_second_half", "status", string(j.Status),
			"job is not completed")
	}

	existing, err := s.payouts.ListPayouts(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var first *Payout
	for _, p := range existing {
		switch p.Type {
		case TypeFirstHalf:
			first = p
		case TypeSecondHalf:
			return nil, fieldwork.ErrPayoutExists
		}
	}
	if first == nil {
		return nil, fieldwork.NewGuardError("release_second_half", "first_half", string(j.Status),
			"first payout half does not exist")
	}

	due := first.CreatedAt.Add(s.delay)
	if j.SecondHalfDueAt != nil {
		due = *j.SecondHalfDueAt
	}
	if now.Before(due) {
		return nil, fieldwork.NewGuardError("release_second_half", "delay", string(j.Status),
			fmt.Sprintf("second half is not due until %s", due.Format(time.RFC3339)))
	}

	complaint, err := s.complaints.HasComplaint(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("check complaints for %s: %w", jobID, err)
	}
	if complaint {
		return nil, fieldwork.NewGuardError("release_second_half", "complaint", string(j.Status),
			"a complaint is on file for this job")
	}

	p := &Payout{
		Entity:    fieldwork.Entity{CreatedAt: now, UpdatedAt: now},
		ID:        id.NewPayoutID(),
		JobID:     jobID,
		ScholarID: first.ScholarID,
		Amount:    j.Payout - first.Amount,
		Status:    StatusPending,
		Type:      TypeSecondHalf,
		DueAt:     due,
	}
	if err := s.payouts.CreatePayout(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("second payout half released",
		slog.String("job_id", jobID.String()),
		slog.String("scholar_id", p.ScholarID),
		slog.Int64("amount", p.Amount),
	)
	return p, nil
}

// MarkPaid flips a payout to paid. Marking a paid payout again is a no-op.
func (s *Splitter) MarkPaid(ctx context.Context, payoutID id.ID, now time.Time) (*Payout, error) {
	p, err := s.payouts.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusPaid {
		return p, nil
	}
	p.Status = StatusPaid
	p.PaidAt = &now
	p.UpdatedAt = now
	if err := s.payouts.UpdatePayout(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

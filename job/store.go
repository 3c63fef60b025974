package job

import (
	"context"
	"time"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Status filters by lifecycle state. Empty means all states.
	Status State
	// AssigneeID filters by assigned scholar. Empty means any.
	AssigneeID string
	// CompletedFrom and CompletedTo bound CompletedAt (inclusive, exclusive).
	// Zero values are unbounded.
	CompletedFrom time.Time
	CompletedTo   time.Time
}

// Match reports whether j satisfies the options' filters.
func (o ListOpts) Match(j *Job) bool {
	if o.Status != "" && j.Status != o.Status {
		return false
	}
	if o.AssigneeID != "" && j.AssigneeID != o.AssigneeID {
		return false
	}
	if !o.CompletedFrom.IsZero() || !o.CompletedTo.IsZero() {
		if j.CompletedAt == nil {
			return false
		}
		if !o.CompletedFrom.IsZero() && j.CompletedAt.Before(o.CompletedFrom) {
			return false
		}
		if !o.CompletedTo.IsZero() && !j.CompletedAt.Before(o.CompletedTo) {
			return false
		}
	}
	return true
}

// ChangeOp describes what happened to a job.
type ChangeOp string

const (
	ChangeCreated ChangeOp = "created"
	ChangeUpdated ChangeOp = "updated"
)

// Change is one entry in the job change feed.
type Change struct {
	Op  ChangeOp  `json:"op"`
	Job *Job      `json:"job"`
	At  time.Time `json:"at"`
}

// Filter selects which changes a watcher receives.
type Filter struct {
	// Statuses limits changes to jobs in one of these states. Empty means all.
	Statuses []State
	// AssigneeID limits changes to jobs held by this scholar.
	AssigneeID string
	// AssignedOnly drops changes for unassigned jobs.
	AssignedOnly bool
}

// Match reports whether j passes the filter.
func (f Filter) Match(j *Job) bool {
	if j == nil {
		return false
	}
	if f.AssignedOnly && j.AssigneeID == "" {
		return false
	}
	if f.AssigneeID != "" && j.AssigneeID != f.AssigneeID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if j.Status == s {
			return true
		}
	}
	return false
}

// Store defines the persistence contract for jobs.
type Store interface {
	// CreateJob persists a new job with Version 1. Returns ErrJobExists if
	// the ID is taken.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists j only if the stored Version equals j.Version,
	// then increments j.Version. Returns ErrVersionConflict otherwise.
	UpdateJob(ctx context.Context, j *Job) error

	// ClaimJob persists j only if the stored job is still
	// APPROVED_FOR_POSTING with no assignee and its Version equals
	// j.Version, then increments j.Version. Returns ErrAlreadyClaimed when
	// the job is no longer claimable and ErrVersionConflict when it is
	// claimable but changed since j was read. Exactly one of any number of
	// concurrent claims on the same job succeeds.
	ClaimJob(ctx context.Context, j *Job) error

	// ListJobs returns jobs matching opts ordered by creation time.
	ListJobs(ctx context.Context, opts ListOpts) ([]*Job, error)

	// WatchJobs streams job changes matching f until ctx is cancelled, at
	// which point the channel is closed.
	WatchJobs(ctx context.Context, f Filter) (<-chan Change, error)
}

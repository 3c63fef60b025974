// Package payout defines payout records derived from completed jobs and
// the splitter that creates them.
//
// A job's payout is split into two halves that always sum to the job's
// payout field. The first half is created when the job is approved and
// paid. The second half is deferred: it may be released only once the
// first half exists, the configured delay has elapsed and no complaint is
// on file.
package payout

import (
	"context"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// Status is the payment status of a payout.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Type identifies which half of a job's payout a record is.
type Type string

const (
	TypeFirstHalf  Type = "first_half"
	TypeSecondHalf Type = "second_half"
)

// Payout is one payment owed to a scholar for a job.
type Payout struct {
	fieldwork.Entity

	ID        id.ID      `json:"id"`
	JobID     id.JobID   `json:"job_id"`
	ScholarID string     `json:"scholar_id"`
	Amount    int64      `json:"amount"`
	Status    Status     `json:"status"`
	Type      Type       `json:"payment_type"`
	DueAt     time.Time  `json:"due_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// Store defines the persistence contract for payouts.
type Store interface {
	// CreatePayout persists a new payout. Returns ErrPayoutExists if the
	// job already has a payout of the same type.
	CreatePayout(ctx context.Context, p *Payout) error

	// GetPayout retrieves a payout by ID.
	GetPayout(ctx context.Context, payoutID id.ID) (*Payout, error)

	// ListPayouts returns a job's payouts, first half first.
	ListPayouts(ctx context.Context, jobID id.JobID) ([]*Payout, error)

	// UpdatePayout persists changes to an existing payout.
	UpdatePayout(ctx context.Context, p *Payout) error
}

package job

import (
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// State represents the lifecycle status of a job.
type State string

const (
	// StateLead is an unconverted inbound inquiry.
	StateLead State = "LEAD"
	// StateSopNeedsReview means conversion happened and a work-instruction
	// document is being generated or reviewed.
	StateSopNeedsReview State = "SOP_NEEDS_REVIEW"
	// StateApprovedForPosting means the job is visible to field workers.
	StateApprovedForPosting State = "APPROVED_FOR_POSTING"
	// StateUpcoming means a worker holds the job.
	StateUpcoming State = "UPCOMING"
	// StateInProgress means the assignee checked in.
	StateInProgress State = "IN_PROGRESS"
	// StateReviewPending means the assignee checked out and an admin must review.
	StateReviewPending State = "REVIEW_PENDING"
	// StateChangesRequested means the review sent the job back for rework.
	StateChangesRequested State = "CHANGES_REQUESTED"
	// StateCompleted is terminal.
	StateCompleted State = "COMPLETED"
	// StateCancelled is terminal.
	StateCancelled State = "CANCELLED"
)

// States lists every state in lifecycle order.
var States = []State{
	StateLead, StateSopNeedsReview, StateApprovedForPosting, StateUpcoming,
	StateInProgress, StateReviewPending, StateChangesRequested,
	StateCompleted, StateCancelled,
}

// Terminal reports whether no further lifecycle transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// ApprovalStatus is the admin sign-off status of a checklist task.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalPending  ApprovalStatus = "PENDING"
)

// Task is a checklist item on a job.
type Task struct {
	ID             id.ID          `json:"id"`
	Text           string         `json:"text"`
	Completed      bool           `json:"completed"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ParentID       id.ID          `json:"parent_id,omitempty"`
	ProposedBy     string         `json:"proposed_by,omitempty"`
	ApprovedBy     string         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
}

// StatusChange is one entry in a job's history.
type StatusChange struct {
	From    State     `json:"from"`
	To      State     `json:"to"`
	Action  Action    `json:"action"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
	Note    string    `json:"note,omitempty"`
}

// Job is the aggregate root of the lifecycle engine.
type Job struct {
	fieldwork.Entity

	ID      id.JobID `json:"id"`
	Version int64    `json:"version"`
	Status  State    `json:"status"`

	// Lead intake.
	ClientName       string   `json:"client_name"`
	ClientPhone      string   `json:"client_phone,omitempty"`
	ClientEmail      string   `json:"client_email,omitempty"`
	Address          string   `json:"address,omitempty"`
	Package          string   `json:"package,omitempty"`
	LeadNotes        string   `json:"lead_notes,omitempty"`
	IntakePhotoPaths []string `json:"intake_photo_paths,omitempty"`

	// Conversion snapshot. Frozen once the job leaves LEAD.
	ScheduledFor       time.Time `json:"scheduled_for,omitzero"`
	TimeWindow         string    `json:"time_window,omitempty"`
	ProductSelections  []string  `json:"product_selections,omitempty"`
	ShelvingSelections []string  `json:"shelving_selections,omitempty"`
	AddOns             []string  `json:"add_ons,omitempty"`
	Payout             int64     `json:"payout"`
	ClientPrice        int64     `json:"client_price"`
	AccessNotes        string    `json:"access_notes,omitempty"`

	// Work instructions.
	GeneratedSop  string     `json:"generated_sop,omitempty"`
	SopApprovedBy string     `json:"sop_approved_by,omitempty"`
	SopApprovedAt *time.Time `json:"sop_approved_at,omitempty"`
	Checklist     []Task     `json:"checklist,omitempty"`

	// Dispatch.
	AssigneeID string     `json:"assignee_id,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`

	// Field evidence.
	CheckInAt         *time.Time `json:"check_in_at,omitempty"`
	CheckInPhotoPath  string     `json:"check_in_photo_path,omitempty"`
	CheckOutAt        *time.Time `json:"check_out_at,omitempty"`
	CheckOutPhotoPath string     `json:"check_out_photo_path,omitempty"`
	CheckOutVideoPath string     `json:"check_out_video_path,omitempty"`

	// Review and close-out.
	ReviewNotes     string     `json:"review_notes,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	SecondHalfDueAt *time.Time `json:"second_half_due_at,omitempty"`

	History []StatusChange `json:"history,omitempty"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.IntakePhotoPaths = cloneSlice(j.IntakePhotoPaths)
	cp.ProductSelections = cloneSlice(j.ProductSelections)
	cp.ShelvingSelections = cloneSlice(j.ShelvingSelections)
	cp.AddOns = cloneSlice(j.AddOns)
	cp.History = cloneSlice(j.History)
	cp.SopApprovedAt = cloneTime(j.SopApprovedAt)
	cp.ClaimedAt = cloneTime(j.ClaimedAt)
	cp.CheckInAt = cloneTime(j.CheckInAt)
	cp.CheckOutAt = cloneTime(j.CheckOutAt)
	cp.CompletedAt = cloneTime(j.CompletedAt)
	cp.SecondHalfDueAt = cloneTime(j.SecondHalfDueAt)
	if j.Checklist != nil {
		cp.Checklist = make([]Task, len(j.Checklist))
		for i, t := range j.Checklist {
			t.ApprovedAt = cloneTime(t.ApprovedAt)
			t.CompletedAt = cloneTime(t.CompletedAt)
			cp.Checklist[i] = t
		}
	}
	return &cp
}

// Task returns the checklist task with the given ID and its index.
func (j *Job) Task(taskID id.ID) (*Task, int) {
	for i := range j.Checklist {
		if j.Checklist[i].ID == taskID {
			return &j.Checklist[i], i
		}
	}
	return nil, -1
}

// PendingTaskIDs returns the IDs of tasks awaiting admin approval.
func (j *Job) PendingTaskIDs() []id.ID {
	var ids []id.ID
	for _, t := range j.Checklist {
		if t.ApprovalStatus == ApprovalPending {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// IsAssignee reports whether actorID holds the job.
func (j *Job) IsAssignee(actorID string) bool {
	return j.AssigneeID != "" && j.AssigneeID == actorID
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

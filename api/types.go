package api

import (
	"time"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// ListJobsRequest holds query parameters for GET /v1/jobs.
type ListJobsRequest struct {
	Status     string `form:"status"`
	AssigneeID string `form:"assignee_id"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// AssignRequest names the scholar an admin hands a job to.
type AssignRequest struct {
	ScholarID string `json:"scholar_id" binding:"required"`
}

// RescheduleRequest moves a job to a new date and time window.
type RescheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for" binding:"required"`
	TimeWindow   string    `json:"time_window"`
}

// CheckInRequest references the uploaded check-in photo.
type CheckInRequest struct {
	PhotoPath string `json:"photo_path"`
}

// CheckOutRequest references the uploaded check-out evidence.
type CheckOutRequest struct {
	PhotoPath string `json:"photo_path"`
	VideoPath string `json:"video_path"`
}

// ReasonRequest carries the reason for cancel and disqualify.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// NotesRequest carries review notes for request-changes, rollback and
// regenerate.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ApproveSopRequest seals the reviewed document text.
type ApproveSopRequest struct {
	FinalText string `json:"final_text"`
}

// ProposeTaskRequest adds a checklist task, optionally under a parent.
type ProposeTaskRequest struct {
	Text     string `json:"text" binding:"required"`
	ParentID string `json:"parent_id"`
}

// DecisionRequest approves or rejects a proposed task.
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// ProposeTaskResponse is returned by POST /v1/jobs/:jobId/tasks.
type ProposeTaskResponse struct {
	Job  *job.Job  `json:"job"`
	Task *job.Task `json:"task"`
}

// ApproveAllResponse is returned by POST /v1/jobs/:jobId/tasks/approve-all.
type ApproveAllResponse struct {
	Job      *job.Job    `json:"job"`
	Approved []id.TaskID `json:"approved"`
}

// MediaResponse is returned by media upload and URL lookups.
type MediaResponse struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func defaultLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

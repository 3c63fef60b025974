package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// intake handles POST /v1/leads.
func (a *API) intake(c *gin.Context) {
	var req job.LeadInput
	if !bindJSON(c, &req, false) {
		return
	}
	j, err := a.eng.Intake(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, j)
}

// listJobs handles GET /v1/jobs.
func (a *API) listJobs(c *gin.Context) {
	var req ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	opts := job.ListOpts{
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
		AssigneeID: req.AssigneeID,
	}
	if req.Status != "" {
		opts.Status = job.State(strings.ToUpper(req.Status))
		if !opts.Status.Valid() {
			badRequest(c, fmt.Sprintf("unknown status %q", req.Status))
			return
		}
	}
	jobs, err := a.eng.Jobs(c.Request.Context(), opts)
	if err != nil {
		fail(c, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

// getJob handles GET /v1/jobs/:jobId.
func (a *API) getJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	j, err := a.eng.Job(c.Request.Context(), jobID)
	respond(c, j, err)
}

// ── Lifecycle actions ─────────────────────────────────────────────

func (a *API) claim(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	j, err := a.eng.Claim(c.Request.Context(), jobID, actorFrom(c))
	respond(c, j, err)
}

func (a *API) assign(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req AssignRequest
	if !bindJSON(c, &req, false) {
		return
	}
	j, err := a.eng.Assign(c.Request.Context(), jobID, actorFrom(c), req.ScholarID)
	respond(c, j, err)
}

func (a *API) checkIn(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req CheckInRequest
	if !bindJSON(c, &req, true) {
		return
	}
	j, err := a.eng.CheckIn(c.Request.Context(), jobID, actorFrom(c), req.PhotoPath)
	respond(c, j, err)
}

func (a *API) checkOut(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req CheckOutRequest
	if !bindJSON(c, &req, true) {
		return
	}
	j, err := a.eng.CheckOut(c.Request.Context(), jobID, actorFrom(c), req.PhotoPath, req.VideoPath)
	respond(c, j, err)
}

func (a *API) reschedule(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req RescheduleRequest
	if !bindJSON(c, &req, false) {
		return
	}
	j, err := a.eng.Reschedule(c.Request.Context(), jobID, actorFrom(c), req.ScheduledFor, req.TimeWindow)
	respond(c, j, err)
}

func (a *API) cancel(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req ReasonRequest
	if !bindJSON(c, &req, true) {
		return
	}
	j, err := a.eng.Cancel(c.Request.Context(), jobID, actorFrom(c), req.Reason)
	respond(c, j, err)
}

func (a *API) requestChanges(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req NotesRequest
	if !bindJSON(c, &req, true) {
		return
	}
	j, err := a.eng.RequestChanges(c.Request.Context(), jobID, actorFrom(c), req.Notes)
	respond(c, j, err)
}

func (a *API) disqualify(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req ReasonRequest
	if !bindJSON(c, &req, true) {
		return
	}
	j, err := a.eng.Disqualify(c.Request.Context(), jobID, actorFrom(c), req.Reason)
	respond(c, j, err)
}

func (a *API) rollback(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req NotesRequest
	if !bindJSON(c, &req, true) {
		return
	}
	j, err := a.eng.Rollback(c.Request.Context(), jobID, actorFrom(c), req.Notes)
	respond(c, j, err)
}

func (a *API) approveAndPay(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	j, err := a.eng.ApproveAndPay(c.Request.Context(), jobID, actorFrom(c))
	respond(c, j, err)
}

// ── helpers ───────────────────────────────────────────────────────

// respond writes v as 200 OK, or the mapped error.
func respond(c *gin.Context, v any, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// bindJSON decodes the request body into req. An optional body may be
// empty.
func bindJSON(c *gin.Context, req any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func jobIDParam(c *gin.Context) (id.JobID, bool) {
	jobID, err := id.ParseJobID(c.Param("jobId"))
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid job ID: %v", err))
		return id.Nil, false
	}
	return jobID, true
}

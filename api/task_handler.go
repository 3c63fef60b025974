package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// proposeTask handles POST /v1/jobs/:jobId/tasks.
func (a *API) proposeTask(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req ProposeTaskRequest
	if !bindJSON(c, &req, false) {
		return
	}
	parentID := id.Nil
	if req.ParentID != "" {
		var err error
		if parentID, err = id.ParseTaskID(req.ParentID); err != nil {
			badRequest(c, fmt.Sprintf("invalid parent ID: %v", err))
			return
		}
	}
	j, t, err := a.eng.ProposeTask(c.Request.Context(), jobID, actorFrom(c), req.Text, parentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ProposeTaskResponse{Job: j, Task: t})
}

// approveAllTasks handles POST /v1/jobs/:jobId/tasks/approve-all.
func (a *API) approveAllTasks(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	j, approved, err := a.eng.ApproveAllTasks(c.Request.Context(), jobID, actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	if approved == nil {
		approved = []id.TaskID{}
	}
	c.JSON(http.StatusOK, ApproveAllResponse{Job: j, Approved: approved})
}

// decideTask handles POST /v1/jobs/:jobId/tasks/:taskId/decision.
func (a *API) decideTask(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if !bindJSON(c, &req, false) {
		return
	}
	d := task.Decision(strings.ToUpper(req.Decision))
	if !d.Valid() {
		badRequest(c, fmt.Sprintf("unknown decision %q", req.Decision))
		return
	}
	j, err := a.eng.DecideTask(c.Request.Context(), jobID, taskID, actorFrom(c), d)
	respond(c, j, err)
}

// toggleTask handles POST /v1/jobs/:jobId/tasks/:taskId/toggle.
func (a *API) toggleTask(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}
	j, err := a.eng.ToggleTask(c.Request.Context(), jobID, taskID, actorFrom(c))
	respond(c, j, err)
}

func taskIDParam(c *gin.Context) (id.TaskID, bool) {
	taskID, err := id.ParseTaskID(c.Param("taskId"))
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid task ID: %v", err))
		return id.Nil, false
	}
	return taskID, true
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// getSop handles GET /v1/jobs/:jobId/sop.
func (a *API) getSop(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	s, err := a.eng.SopSession(c.Request.Context(), jobID)
	respond(c, s, err)
}

// generateSop handles POST /v1/jobs/:jobId/sop/generate. The body is the
// conversion form.
func (a *API) generateSop(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var form job.ConversionForm
	if !bindJSON(c, &form, false) {
		return
	}
	s, err := a.eng.GenerateSop(c.Request.Context(), jobID, actorFrom(c), form)
	respond(c, s, err)
}

func (a *API) regenerateSop(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req NotesRequest
	if !bindJSON(c, &req, true) {
		return
	}
	s, err := a.eng.RegenerateSop(c.Request.Context(), jobID, actorFrom(c), req.Notes)
	respond(c, s, err)
}

func (a *API) approveSop(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req ApproveSopRequest
	if !bindJSON(c, &req, true) {
		return
	}
	j, err := a.eng.ApproveSop(c.Request.Context(), jobID, actorFrom(c), req.FinalText)
	respond(c, j, err)
}

func (a *API) cancelSop(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	if err := a.eng.CancelSop(c.Request.Context(), jobID, actorFrom(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) recoverSop(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	s, err := a.eng.RecoverSop(c.Request.Context(), jobID, actorFrom(c))
	respond(c, s, err)
}

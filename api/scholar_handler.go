package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garagescholars/garage-tech-stack-sub001/engine"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
)

// ── Payouts ───────────────────────────────────────────────────────

// listPayouts handles GET /v1/jobs/:jobId/payouts.
func (a *API) listPayouts(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	ps, err := a.eng.Payouts(c.Request.Context(), jobID)
	if ps == nil {
		ps = []*payout.Payout{}
	}
	respond(c, ps, err)
}

// releaseSecondHalf handles POST /v1/jobs/:jobId/release-second-half.
func (a *API) releaseSecondHalf(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	p, err := a.eng.ReleaseSecondHalf(c.Request.Context(), jobID, actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// markPaid handles POST /v1/payouts/:payoutId/paid.
func (a *API) markPaid(c *gin.Context) {
	payoutID, err := id.ParsePayoutID(c.Param("payoutId"))
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid payout ID: %v", err))
		return
	}
	p, err := a.eng.MarkPaid(c.Request.Context(), payoutID, actorFrom(c))
	respond(c, p, err)
}

// ── Scholars ──────────────────────────────────────────────────────

// registerScholar handles POST /v1/scholars.
func (a *API) registerScholar(c *gin.Context) {
	var req engine.ScholarInput
	if !bindJSON(c, &req, false) {
		return
	}
	s, err := a.eng.RegisterScholar(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// listScholars handles GET /v1/scholars.
func (a *API) listScholars(c *gin.Context) {
	ss, err := a.eng.Scholars(c.Request.Context())
	if ss == nil {
		ss = []*scholar.Scholar{}
	}
	respond(c, ss, err)
}

// getScholar handles GET /v1/scholars/:scholarId.
func (a *API) getScholar(c *gin.Context) {
	scholarID, ok := scholarIDParam(c)
	if !ok {
		return
	}
	s, err := a.eng.Scholar(c.Request.Context(), scholarID)
	respond(c, s, err)
}

// recomputeMilestones handles POST /v1/scholars/:scholarId/milestones/recompute.
func (a *API) recomputeMilestones(c *gin.Context) {
	scholarID, ok := scholarIDParam(c)
	if !ok {
		return
	}
	res, err := a.eng.RecomputeMilestones(c.Request.Context(), scholarID, actorFrom(c))
	respond(c, res, err)
}

func scholarIDParam(c *gin.Context) (id.ScholarID, bool) {
	scholarID, err := id.ParseScholarID(c.Param("scholarId"))
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid scholar ID: %v", err))
		return id.Nil, false
	}
	return scholarID, true
}

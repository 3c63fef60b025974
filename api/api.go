// Package api exposes the fieldwork engine over HTTP using gin.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garagescholars/garage-tech-stack-sub001/engine"
)

// API wires all HTTP handlers together for the fieldwork system.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger used for request and error logging.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API from a fieldwork Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), a.requestLogger())
	router.GET("/health", func(c *gin.Context) {
		if err := a.eng.Store().Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	a.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers all fieldwork API routes under /v1. Every route
// requires an actor identity.
func (a *API) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/v1", actorMiddleware())

	a.registerJobRoutes(v1)
	a.registerSopRoutes(v1)
	a.registerTaskRoutes(v1)
	a.registerMediaRoutes(v1)
	a.registerPayoutRoutes(v1)
	a.registerScholarRoutes(v1)
}

func (a *API) registerJobRoutes(g *gin.RouterGroup) {
	g.POST("/leads", a.intake)
	g.GET("/jobs", a.listJobs)
	g.GET("/jobs/:jobId", a.getJob)

	g.POST("/jobs/:jobId/claim", a.claim)
	g.POST("/jobs/:jobId/assign", a.assign)
	g.POST("/jobs/:jobId/check-in", a.checkIn)
	g.POST("/jobs/:jobId/check-out", a.checkOut)
	g.POST("/jobs/:jobId/reschedule", a.reschedule)
	g.POST("/jobs/:jobId/cancel", a.cancel)
	g.POST("/jobs/:jobId/request-changes", a.requestChanges)
	g.POST("/jobs/:jobId/disqualify", a.disqualify)
	g.POST("/jobs/:jobId/rollback", a.rollback)
	g.POST("/jobs/:jobId/approve-and-pay", a.approveAndPay)
}

func (a *API) registerSopRoutes(g *gin.RouterGroup) {
	g.GET("/jobs/:jobId/sop", a.getSop)
	g.POST("/jobs/:jobId/sop/generate", a.generateSop)
	g.POST("/jobs/:jobId/sop/regenerate", a.regenerateSop)
	g.POST("/jobs/:jobId/sop/approve", a.approveSop)
	g.POST("/jobs/:jobId/sop/cancel", a.cancelSop)
	g.POST("/jobs/:jobId/sop/recover", a.recoverSop)
}

func (a *API) registerTaskRoutes(g *gin.RouterGroup) {
	g.POST("/jobs/:jobId/tasks", a.proposeTask)
	g.POST("/jobs/:jobId/tasks/approve-all", a.approveAllTasks)
	g.POST("/jobs/:jobId/tasks/:taskId/decision", a.decideTask)
	g.POST("/jobs/:jobId/tasks/:taskId/toggle", a.toggleTask)
}

func (a *API) registerMediaRoutes(g *gin.RouterGroup) {
	g.POST("/jobs/:jobId/media", a.uploadMedia)
	g.GET("/media/url", a.mediaURL)
}

func (a *API) registerPayoutRoutes(g *gin.RouterGroup) {
	g.GET("/jobs/:jobId/payouts", a.listPayouts)
	g.POST("/jobs/:jobId/release-second-half", a.releaseSecondHalf)
	g.POST("/payouts/:payoutId/paid", a.markPaid)
}

func (a *API) registerScholarRoutes(g *gin.RouterGroup) {
	g.POST("/scholars", a.registerScholar)
	g.GET("/scholars", a.listScholars)
	g.GET("/scholars/:scholarId", a.getScholar)
	g.POST("/scholars/:scholarId/milestones/recompute", a.recomputeMilestones)
}

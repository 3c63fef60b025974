package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

// Actor identity headers. Requests are trusted to carry them; verifying
// them belongs to the gateway in front of this service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

const actorKey = "fieldwork.actor"

// actorMiddleware resolves the calling actor from request headers. The
// system role is reserved for the engine and rejected here.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "missing " + HeaderActorID + " header",
				Code:  "unauthenticated",
			})
			return
		}
		role := fieldwork.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))))
		if role != fieldwork.RoleAdmin && role != fieldwork.RoleScholar {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Error: "invalid " + HeaderActorRole + " header: " + string(role),
				Code:  "bad_request",
			})
			return
		}
		c.Set(actorKey, fieldwork.Actor{ID: actorID, Role: role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) fieldwork.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(fieldwork.Actor); ok {
			return actor
		}
	}
	return fieldwork.Actor{}
}

// requestLogger logs one structured line per request.
func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if actor := actorFrom(c); actor.ID != "" {
			attrs = append(attrs, "actor_id", actor.ID, "actor_role", string(actor.Role))
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			a.logger.Error("HTTP request with errors", attrs...)
			return
		}
		a.logger.Info("HTTP request", attrs...)
	}
}

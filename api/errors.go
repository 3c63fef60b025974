package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Guard     string `json:"guard,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// errorStatus maps engine errors to an HTTP status and response body.
func errorStatus(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var ge *fieldwork.GuardError
	if errors.As(err, &ge) {
		resp.Guard = ge.Guard
	}

	switch {
	case fieldwork.IsUnauthorized(err):
		resp.Code = "forbidden"
		return http.StatusForbidden, resp
	case errors.Is(err, fieldwork.ErrAlreadyClaimed):
		resp.Code = "already_claimed"
		return http.StatusConflict, resp
	case errors.Is(err, fieldwork.ErrInvalidTransition):
		resp.Code = "invalid_transition"
		return http.StatusConflict, resp
	case errors.Is(err, fieldwork.ErrGuardViolation):
		resp.Code = "guard_violation"
		return http.StatusUnprocessableEntity, resp
	case fieldwork.IsConflict(err):
		resp.Code = "conflict"
		return http.StatusConflict, resp
	case isNotFound(err):
		resp.Code = "not_found"
		return http.StatusNotFound, resp
	case errors.Is(err, fieldwork.ErrGenerationFailed):
		resp.Code = "generation_failed"
		resp.Retryable = true
		return http.StatusBadGateway, resp
	case errors.Is(err, fieldwork.ErrNotificationFailed):
		resp.Code = "notification_failed"
		resp.Retryable = true
		return http.StatusBadGateway, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = "timeout"
		resp.Retryable = true
		return http.StatusGatewayTimeout, resp
	}
	resp.Code = "internal"
	return http.StatusInternalServerError, resp
}

func isNotFound(err error) bool {
	return errors.Is(err, fieldwork.ErrJobNotFound) ||
		errors.Is(err, fieldwork.ErrTaskNotFound) ||
		errors.Is(err, fieldwork.ErrScholarNotFound) ||
		errors.Is(err, fieldwork.ErrPayoutNotFound) ||
		errors.Is(err, fieldwork.ErrMediaNotFound)
}

// fail writes the mapped error response. Server-side failures are also
// attached to the context so the request logger reports them.
func fail(c *gin.Context, err error) {
	status, resp := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

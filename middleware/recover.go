package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// PanicError is returned in place of a panic raised inside an action.
type PanicError struct {
	Action string
	JobID  id.JobID
	Value  any
}

func (e *PanicError) Error() string {
	if e.JobID.IsNil() {
		return fmt.Sprintf("fieldwork: %s panicked: %v", e.Action, e.Value)
	}
	return fmt.Sprintf("fieldwork: %s on %s panicked: %v", e.Action, e.JobID, e.Value)
}

// Recover turns a panic in the chain into a *PanicError so one bad action
// cannot take down the HTTP server or the change reactor.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c Call, next Handler) (retErr error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.ErrorContext(ctx, "action panicked",
				slog.String("action", c.Action),
				slog.String("job_id", c.JobID.String()),
				slog.String("actor_id", c.Actor.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			retErr = &PanicError{Action: c.Action, JobID: c.JobID, Value: r}
		}()
		return next(ctx)
	}
}

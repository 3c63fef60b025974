package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Timeout bounds a call by c.Timeout. A caller deadline that already falls
// sooner is kept as is. Calls with a zero Timeout, such as SOP generation
// which bounds its own generator call, run unbounded here.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		if c.Timeout <= 0 {
			return next(ctx)
		}
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= c.Timeout {
			return next(ctx)
		}

		ctx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		err := next(ctx)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.WarnContext(ctx, "action deadline exceeded",
				slog.String("action", c.Action),
				slog.String("job_id", c.JobID.String()),
				slog.Duration("timeout", c.Timeout),
			)
		}
		return err
	}
}

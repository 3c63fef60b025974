package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs action start and completion.
// Guard and authorization rejections are expected outcomes and are logged
// at warn level; everything else that fails is an error.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c Call, next Handler) error {
		logger.Debug("action started",
			slog.String("action", c.Action),
			slog.String("job_id", c.JobID.String()),
			slog.String("actor_id", c.Actor.ID),
			slog.String("role", string(c.Actor.Role)),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			logger.Info("action completed",
				slog.String("action", c.Action),
				slog.String("job_id", c.JobID.String()),
				slog.String("actor_id", c.Actor.ID),
				slog.Duration("elapsed", elapsed),
			)
		case rejected(err):
			logger.Warn("action rejected",
				slog.String("action", c.Action),
				slog.String("job_id", c.JobID.String()),
				slog.String("actor_id", c.Actor.ID),
				slog.String("error", err.Error()),
			)
		default:
			logger.Error("action failed",
				slog.String("action", c.Action),
				slog.String("job_id", c.JobID.String()),
				slog.String("actor_id", c.Actor.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		}

		return err
	}
}

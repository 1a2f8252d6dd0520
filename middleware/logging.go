package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/courierhq/courier/job"
)

// Logging returns middleware that logs handler start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		logger.Info("handler started",
			slog.String("handler", env.Handler),
			slog.String("envelope_id", env.ID),
			slog.String("queue", env.Queue),
			slog.Int("attempt", env.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("handler failed",
				slog.String("handler", env.Handler),
				slog.String("envelope_id", env.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("handler completed",
				slog.String("handler", env.Handler),
				slog.String("envelope_id", env.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}

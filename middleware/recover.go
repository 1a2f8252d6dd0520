package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/courierhq/courier/job"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors (so the retry policy applies) and
// logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("handler panicked",
					slog.String("handler", env.Handler),
					slog.String("envelope_id", env.ID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in handler %s: %v", env.Handler, r)
			}
		}()
		return next(ctx)
	}
}

package middleware

import (
	"context"
	"time"

	"github.com/courierhq/courier/job"
)

// Timeout returns middleware that enforces a fixed execution deadline on
// every handler call. A zero limit disables the deadline. When the
// deadline is exceeded the context is cancelled and the handler should
// return context.DeadlineExceeded, which then flows through the retry
// policy like any other failure.
func Timeout(limit time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Envelope, next Handler) error {
		if limit > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}
		return next(ctx)
	}
}

// Package middleware provides composable middleware for handler
// execution on the consumer side. Middleware wraps handler calls
// synchronously and can modify execution (recover from panics, log,
// trace, enforce timeouts).
package middleware

import (
	"context"

	"github.com/courierhq/courier/job"
)

// Handler is the terminal function that executes the envelope's handler.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the envelope being executed, and the next handler.
// Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, env *job.Envelope, next Handler) error

// Chain composes multiple middleware into a single Middleware. Middleware
// are applied right-to-left: the first in the list is the outermost
// wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, env, prev)
			}
		}
		return h(ctx)
	}
}

// Package worker implements the consumer runtime: a bounded pool of
// goroutines draining broker subscriptions, resolving each delivered
// envelope against the local registry, executing its handler through the
// middleware chain, and resolving the delivery handle exactly once
// (ack, requeue, or reject).
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/backoff"
	"github.com/courierhq/courier/codec"
	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/hook"
	"github.com/courierhq/courier/job"
	"github.com/courierhq/courier/middleware"
	"github.com/courierhq/courier/transport"
)

// Executor runs one delivered envelope through the processing state
// machine and resolves its handle. Safe for concurrent use.
type Executor struct {
	registry *job.Registry
	codec    codec.Codec
	hooks    *hook.Registry
	archive  *dlq.Service
	backoff  backoff.Strategy
	mw       middleware.Middleware
	logger   *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCodec sets the envelope codec. Defaults to JSON.
func WithCodec(c codec.Codec) ExecutorOption {
	return func(e *Executor) { e.codec = c }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(h *hook.Registry) ExecutorOption {
	return func(e *Executor) { e.hooks = h }
}

// WithArchive sets the dead-letter archive service. Terminal rejections
// are archived with their full body for inspection and replay.
func WithArchive(a *dlq.Service) ExecutorOption {
	return func(e *Executor) { e.archive = a }
}

// WithBackoff sets the requeue delay strategy. Defaults to full jitter.
func WithBackoff(s backoff.Strategy) ExecutorOption {
	return func(e *Executor) { e.backoff = s }
}

// WithMiddleware sets the handler middleware chain.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *job.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		codec:    &codec.JSON{},
		backoff:  backoff.Default(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Process runs one delivery to a terminal resolution. The returned error
// reports resolution failures only; handler failures are absorbed into
// the requeue/reject outcome. ctx cancellation interrupts the handler at
// its next safe point and requeues the envelope with its attempt counter
// unchanged, so interrupted work is redelivered rather than lost.
//
// Handles are resolved on a context detached from ctx: a shutdown that
// cancels the handler must not also cancel the broker call that returns
// its envelope to the queue.
func (e *Executor) Process(ctx context.Context, queueName string, d *transport.Delivery) error {
	resolveCtx := context.WithoutCancel(ctx)

	var env job.Envelope
	if err := e.codec.Unmarshal(d.Body, &env); err != nil {
		// Undecodable body: a producer/consumer contract mismatch, never
		// a transient fault. Dead-letter it with the raw body intact.
		e.logger.Error("envelope decode failed",
			slog.String("queue", queueName),
			slog.String("error", err.Error()),
		)
		if e.hooks != nil {
			e.hooks.EmitContractViolation(resolveCtx, queueName, d.Body, err)
		}
		return d.Handle.Reject(resolveCtx, d.Body, fmt.Sprintf("decode: %v", err))
	}

	entry, ok := e.registry.Lookup(env.Handler)
	if !ok || entry.Handler == nil {
		// Unresolvable handler name: a configuration error that cannot
		// self-heal without a deploy. Reject immediately; retry settings
		// in the envelope do not apply.
		err := fmt.Errorf("%w: %q", courier.ErrHandlerNotFound, env.Handler)
		e.logger.Error("no handler for envelope",
			slog.String("envelope_id", env.ID),
			slog.String("handler", env.Handler),
			slog.String("queue", queueName),
		)
		return e.reject(resolveCtx, d, &env, err)
	}

	if e.hooks != nil {
		e.hooks.EmitStarted(ctx, &env)
	}

	start := time.Now()
	err := e.execute(ctx, entry, &env)
	elapsed := time.Since(start)

	if err == nil {
		if ackErr := d.Handle.Ack(resolveCtx); ackErr != nil {
			return ackErr
		}
		if e.hooks != nil {
			e.hooks.EmitCompleted(resolveCtx, &env, elapsed)
		}
		return nil
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Interrupted by shutdown, not a handler fault. Return the
		// envelope as delivered so the next consumer starts the same
		// attempt over.
		e.logger.Warn("envelope interrupted by shutdown",
			slog.String("envelope_id", env.ID),
			slog.String("handler", env.Handler),
			slog.Int("attempt", env.Attempt),
		)
		return d.Handle.Requeue(resolveCtx, d.Body, 0)
	}

	e.logger.Warn("handler failed",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
		slog.Int("attempt", env.Attempt),
		slog.Duration("elapsed", elapsed),
		slog.String("error", err.Error()),
	)

	if env.Attempt+1 < env.Retry.EffectiveMax() {
		return e.requeue(resolveCtx, d, &env, err)
	}
	return e.reject(resolveCtx, d, &env, err)
}

// execute invokes the handler through the middleware chain.
func (e *Executor) execute(ctx context.Context, entry *job.Entry, env *job.Envelope) error {
	run := func(ctx context.Context) error {
		return entry.Handler(ctx, env.Args)
	}
	if e.mw == nil {
		return run(ctx)
	}
	return e.mw(ctx, env, run)
}

// requeue bumps the attempt counter, re-encodes, and returns the
// envelope to the broker after a backoff delay.
func (e *Executor) requeue(ctx context.Context, d *transport.Delivery, env *job.Envelope, cause error) error {
	retried := *env
	retried.Attempt = env.Attempt + 1

	body, err := e.codec.Marshal(&retried)
	if err != nil {
		// Cannot re-encode what we just decoded; treat as terminal.
		return e.reject(ctx, d, env, fmt.Errorf("re-encode for retry: %w", err))
	}

	delay := e.backoff.Delay(retried.Attempt)
	if err := d.Handle.Requeue(ctx, body, delay); err != nil {
		return err
	}
	if e.hooks != nil {
		e.hooks.EmitRetrying(ctx, env, cause, delay)
	}
	return nil
}

// reject dead-letters the envelope and archives it for replay.
func (e *Executor) reject(ctx context.Context, d *transport.Delivery, env *job.Envelope, cause error) error {
	if err := d.Handle.Reject(ctx, d.Body, cause.Error()); err != nil {
		return err
	}
	if e.archive != nil {
		if err := e.archive.Push(ctx, env, cause); err != nil {
			e.logger.Error("dead-letter archive failed",
				slog.String("envelope_id", env.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.hooks != nil {
		e.hooks.EmitRejected(ctx, env, cause)
	}
	return nil
}

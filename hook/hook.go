// Package hook defines the lifecycle observation points for courier.
// Hooks are notified of dispatch and consumption events and can react to
// them — logging, metrics, alerting. Each event is a separate interface
// so hooks opt in only to the events they care about.
package hook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/courierhq/courier/job"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// Dispatched is called after an envelope is accepted by the transport.
type Dispatched interface {
	OnDispatched(ctx context.Context, env *job.Envelope) error
}

// Started is called when a worker begins executing a delivered envelope.
type Started interface {
	OnStarted(ctx context.Context, env *job.Envelope) error
}

// Completed is called after a handler finishes successfully.
type Completed interface {
	OnCompleted(ctx context.Context, env *job.Envelope, elapsed time.Duration) error
}

// Retrying is called when a handler fails and the envelope is requeued.
type Retrying interface {
	OnRetrying(ctx context.Context, env *job.Envelope, err error, delay time.Duration) error
}

// Rejected is called when an envelope is terminally rejected: handler
// failure past the retry budget, or an unresolvable handler name.
type Rejected interface {
	OnRejected(ctx context.Context, env *job.Envelope, err error) error
}

// ContractViolation is called when a delivered body cannot be decoded —
// a producer/consumer contract mismatch, not a transient runtime fault.
type ContractViolation interface {
	OnContractViolation(ctx context.Context, queue string, body []byte, err error) error
}

// Registry fans lifecycle events out to registered hooks. Hook errors are
// logged and never interrupt the delivery pipeline. Safe for concurrent
// use; hooks are expected to be registered at process start.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger
}

// NewRegistry creates a hook registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

func (r *Registry) each(fn func(Hook) (string, error)) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()

	for _, h := range hooks {
		if event, err := fn(h); err != nil {
			r.logger.Error("hook failed",
				slog.String("hook", h.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

// EmitDispatched notifies Dispatched hooks.
func (r *Registry) EmitDispatched(ctx context.Context, env *job.Envelope) {
	r.each(func(h Hook) (string, error) {
		if o, ok := h.(Dispatched); ok {
			return "dispatched", o.OnDispatched(ctx, env)
		}
		return "", nil
	})
}

// EmitStarted notifies Started hooks.
func (r *Registry) EmitStarted(ctx context.Context, env *job.Envelope) {
	r.each(func(h Hook) (string, error) {
		if o, ok := h.(Started); ok {
			return "started", o.OnStarted(ctx, env)
		}
		return "", nil
	})
}

// EmitCompleted notifies Completed hooks.
func (r *Registry) EmitCompleted(ctx context.Context, env *job.Envelope, elapsed time.Duration) {
	r.each(func(h Hook) (string, error) {
		if o, ok := h.(Completed); ok {
			return "completed", o.OnCompleted(ctx, env, elapsed)
		}
		return "", nil
	})
}

// EmitRetrying notifies Retrying hooks.
func (r *Registry) EmitRetrying(ctx context.Context, env *job.Envelope, err error, delay time.Duration) {
	r.each(func(h Hook) (string, error) {
		if o, ok := h.(Retrying); ok {
			return "retrying", o.OnRetrying(ctx, env, err, delay)
		}
		return "", nil
	})
}

// EmitRejected notifies Rejected hooks.
func (r *Registry) EmitRejected(ctx context.Context, env *job.Envelope, err error) {
	r.each(func(h Hook) (string, error) {
		if o, ok := h.(Rejected); ok {
			return "rejected", o.OnRejected(ctx, env, err)
		}
		return "", nil
	})
}

// EmitContractViolation notifies ContractViolation hooks.
func (r *Registry) EmitContractViolation(ctx context.Context, queue string, body []byte, err error) {
	r.each(func(h Hook) (string, error) {
		if o, ok := h.(ContractViolation); ok {
			return "contract_violation", o.OnContractViolation(ctx, queue, body, err)
		}
		return "", nil
	})
}

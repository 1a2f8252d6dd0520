// Package producer implements the dispatch side of courier: resolving a
// logical handler name against the registry, merging dispatch defaults
// with per-call options, running the transform chain, and handing the
// envelope to the delivery strategy (broker publish in production, inline
// execution in development and test).
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/codec"
	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/hook"
	"github.com/courierhq/courier/id"
	"github.com/courierhq/courier/job"
	"github.com/courierhq/courier/transport"
)

// Producer re-enqueues replayed dead-letter envelopes.
var _ dlq.Publisher = (*Producer)(nil)

// Transform rewrites an envelope between option merging and delivery.
// Transforms run in registration order; the declared registry defaults
// (pre-merge) are passed alongside so a transform can distinguish
// declared values from caller overrides. Returning an error aborts the
// dispatch.
type Transform func(ctx context.Context, env *job.Envelope, declared job.Options) (*job.Envelope, error)

// deliverer is the delivery strategy selected once at construction.
type deliverer interface {
	Deliver(ctx context.Context, env *job.Envelope) error
}

// Producer dispatches envelopes. Safe for concurrent use once constructed.
type Producer struct {
	registry   *job.Registry
	transport  transport.Transport
	codec      codec.Codec
	hooks      *hook.Registry
	transforms []Transform
	env        courier.Environment
	deliver    deliverer
	logger     *slog.Logger
}

// Option configures a Producer.
type Option func(*Producer)

// WithCodec sets the envelope serialization codec. Defaults to JSON.
func WithCodec(c codec.Codec) Option {
	return func(p *Producer) { p.codec = c }
}

// WithTransform appends a transform to the dispatch chain. Transforms
// run in the order they were added.
func WithTransform(t Transform) Option {
	return func(p *Producer) { p.transforms = append(p.transforms, t) }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(h *hook.Registry) Option {
	return func(p *Producer) { p.hooks = h }
}

// WithEnvironment selects the delivery strategy: development and test
// execute dispatched envelopes inline against the local registry,
// production publishes to the broker. Defaults to production.
func WithEnvironment(env courier.Environment) Option {
	return func(p *Producer) { p.env = env }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Producer) { p.logger = l }
}

// New creates a Producer over the given registry and transport. The
// transport may be nil when the environment is development or test.
func New(registry *job.Registry, t transport.Transport, opts ...Option) (*Producer, error) {
	p := &Producer{
		registry:  registry,
		transport: t,
		codec:     &codec.JSON{},
		env:       courier.EnvProduction,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.registry == nil {
		return nil, fmt.Errorf("courier/producer: nil registry")
	}

	// The delivery strategy is fixed here, once. Nothing re-checks the
	// environment per dispatch.
	switch p.env {
	case courier.EnvDevelopment, courier.EnvTest:
		p.deliver = &inlineDeliverer{registry: p.registry, logger: p.logger}
	default:
		if p.transport == nil {
			return nil, fmt.Errorf("courier/producer: nil transport in %s environment", p.env)
		}
		p.deliver = &brokerDeliverer{transport: p.transport, codec: p.codec}
	}
	return p, nil
}

// Dispatch resolves name against the registry, merges the registered
// defaults with the caller's options (caller options win per key), runs
// the transform chain, and delivers the envelope. Proxy registrations
// rewrite the envelope's handler name to the derived target.
//
// Dispatching an unregistered name fails with courier.ErrHandlerNotFound:
// a misspelled name must surface here, not vanish into the broker. Use
// Push to publish an envelope nothing in this process declared.
func (p *Producer) Dispatch(ctx context.Context, name string, args job.ArgList, opts ...job.Option) (*job.Envelope, error) {
	entry, ok := p.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", courier.ErrHandlerNotFound, name)
	}

	merged := entry.Defaults
	for _, o := range opts {
		o(&merged)
	}

	env := &job.Envelope{
		ID:         id.NewEnvelopeID().String(),
		Handler:    entry.Target,
		Queue:      merged.Queue,
		Retry:      merged.Retry,
		Args:       args,
		Attempt:    0,
		EnqueuedAt: time.Now().UTC(),
	}

	var err error
	for _, t := range p.transforms {
		if env, err = t(ctx, env, entry.Defaults); err != nil {
			return nil, fmt.Errorf("courier/producer: transform: %w", err)
		}
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	if err := p.deliver.Deliver(ctx, env); err != nil {
		return nil, err
	}

	p.logger.Debug("envelope dispatched",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
		slog.String("queue", env.Queue),
	)
	if p.hooks != nil {
		p.hooks.EmitDispatched(ctx, env)
	}
	return env, nil
}

// Push publishes an envelope to the named queue without consulting the
// registry: the low-level path for envelopes whose handler this process
// never declared. Zero-value ID, Queue, and EnqueuedAt fields are filled
// in; everything else is taken as given.
func (p *Producer) Push(ctx context.Context, queue string, env *job.Envelope) error {
	if env.ID == "" {
		env.ID = id.NewEnvelopeID().String()
	}
	if env.Queue == "" {
		env.Queue = queue
	}
	if env.EnqueuedAt.IsZero() {
		env.EnqueuedAt = time.Now().UTC()
	}
	if err := env.Validate(); err != nil {
		return err
	}
	if err := p.deliver.Deliver(ctx, env); err != nil {
		return err
	}
	if p.hooks != nil {
		p.hooks.EmitDispatched(ctx, env)
	}
	return nil
}

// brokerDeliverer publishes serialized envelopes to the broker.
type brokerDeliverer struct {
	transport transport.Transport
	codec     codec.Codec
}

func (d *brokerDeliverer) Deliver(ctx context.Context, env *job.Envelope) error {
	payload, err := d.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("courier/producer: encode envelope %s: %w", env.ID, err)
	}
	return d.transport.Publish(ctx, env.Queue, payload)
}

// inlineDeliverer executes envelopes synchronously against the local
// registry. It never touches a broker, so development and test runs need
// no infrastructure; envelope retry policies do not apply inline.
type inlineDeliverer struct {
	registry *job.Registry
	logger   *slog.Logger
}

func (d *inlineDeliverer) Deliver(ctx context.Context, env *job.Envelope) error {
	entry, ok := d.registry.Lookup(env.Handler)
	if !ok || entry.Handler == nil {
		return fmt.Errorf("%w: %q has no local handler for inline execution",
			courier.ErrHandlerNotFound, env.Handler)
	}
	d.logger.Debug("executing envelope inline",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
	)
	return entry.Handler(ctx, env.Args)
}

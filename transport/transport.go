// Package transport defines the thin adapter over the external message
// broker. The broker owns durability, delivery order, and dead-letter
// storage; this package only publishes opaque payloads and drains
// subscription streams with exactly-once delivery resolution per handle.
package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/courierhq/courier"
)

// Transport is the producer/consumer boundary to the broker.
type Transport interface {
	// Publish sends a serialized envelope to the named queue. Transient
	// broker failures are retried internally; exhausted retries surface
	// as courier.ErrTransport.
	Publish(ctx context.Context, queue string, payload []byte) error

	// Subscribe opens a lazy, potentially-infinite delivery stream for
	// the named queue. The stream is non-restartable and safe for exactly
	// one drainer per process.
	Subscribe(ctx context.Context, queue string) (Subscription, error)

	// Ping verifies broker connectivity.
	Ping(ctx context.Context) error

	// Close releases broker resources. Open subscriptions stop yielding.
	Close() error
}

// Subscription is a single-drainer stream of deliveries from one queue.
type Subscription interface {
	// Receive blocks until a delivery is available, the context is
	// cancelled, or the transport closes (courier.ErrTransportClosed).
	Receive(ctx context.Context) (*Delivery, error)

	// Close stops the stream. In-flight handles remain resolvable.
	Close() error
}

// Delivery is one received envelope body plus the broker token that must
// be resolved exactly once.
type Delivery struct {
	Body   []byte
	Handle Handle
}

// Handle resolves a delivery. Exactly one of Ack, Requeue, or Reject may
// be called; a second resolution is a broken delivery contract and panics
// with courier.ErrDoubleResolution, since silently ignoring it could lose
// or duplicate messages.
type Handle interface {
	// Ack removes the delivery permanently.
	Ack(ctx context.Context) error

	// Requeue returns body to the queue for redelivery after delay.
	// The body may differ from the delivered one (e.g. attempt bumped).
	Requeue(ctx context.Context, body []byte, delay time.Duration) error

	// Reject routes the delivery to the dead-letter stream with a reason.
	Reject(ctx context.Context, body []byte, reason string) error
}

// ResolveGuard enforces the single-resolution contract for Handle
// implementations. Embed one and call Resolve at the top of each
// resolution method.
type ResolveGuard struct {
	resolved atomic.Bool
}

// Resolve marks the handle resolved, panicking on a second call.
func (g *ResolveGuard) Resolve() {
	if g.resolved.Swap(true) {
		panic(courier.ErrDoubleResolution)
	}
}

// Resolved reports whether the handle has been resolved.
func (g *ResolveGuard) Resolved() bool { return g.resolved.Load() }

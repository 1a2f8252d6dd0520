// Package memq provides an in-process transport for development and
// tests. Queues are bounded channels; rejected deliveries accumulate in a
// per-queue dead-letter list that tests can inspect.
package memq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/transport"
)

// Compile-time interface checks.
var (
	_ transport.Transport    = (*Broker)(nil)
	_ transport.Subscription = (*subscription)(nil)
	_ transport.Handle       = (*handle)(nil)
)

const queueDepth = 1024

// DeadLetter is a rejected delivery retained for inspection.
type DeadLetter struct {
	Body   []byte
	Reason string
}

// Broker is an in-memory transport. Safe for concurrent use.
type Broker struct {
	mu      sync.Mutex
	queues  map[string]chan []byte
	dead    map[string][]DeadLetter
	closeCh chan struct{}
	closed  bool
}

// New creates an empty in-memory broker.
func New() *Broker {
	return &Broker{
		queues:  make(map[string]chan []byte),
		dead:    make(map[string][]DeadLetter),
		closeCh: make(chan struct{}),
	}
}

func (b *Broker) queue(name string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[name]
	if !ok {
		ch = make(chan []byte, queueDepth)
		b.queues[name] = ch
	}
	return ch
}

// Publish appends the payload to the named queue.
func (b *Broker) Publish(_ context.Context, queue string, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return courier.ErrTransportClosed
	}

	select {
	case b.queue(queue) <- payload:
		return nil
	default:
		return fmt.Errorf("%w: queue %q full", courier.ErrTransport, queue)
	}
}

// Subscribe opens a delivery stream for the named queue.
func (b *Broker) Subscribe(_ context.Context, queue string) (transport.Subscription, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, courier.ErrTransportClosed
	}
	return &subscription{b: b, name: queue, ch: b.queue(queue), closeCh: make(chan struct{})}, nil
}

// Ping always succeeds while the broker is open.
func (b *Broker) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return courier.ErrTransportClosed
	}
	return nil
}

// Close stops all subscriptions.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.closeCh)
	return nil
}

// Len returns the number of buffered payloads in a queue.
func (b *Broker) Len(queue string) int {
	return len(b.queue(queue))
}

// DeadLetters returns the rejected deliveries for a queue.
func (b *Broker) DeadLetters(queue string) []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DeadLetter, len(b.dead[queue]))
	copy(out, b.dead[queue])
	return out
}

func (b *Broker) reject(queue string, body []byte, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead[queue] = append(b.dead[queue], DeadLetter{Body: body, Reason: reason})
}

type subscription struct {
	b       *Broker
	name    string
	ch      chan []byte
	closeCh chan struct{}
	once    sync.Once
}

func (s *subscription) Receive(ctx context.Context) (*transport.Delivery, error) {
	select {
	case body := <-s.ch:
		return &transport.Delivery{
			Body:   body,
			Handle: &handle{b: s.b, queue: s.name},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closeCh:
		return nil, courier.ErrTransportClosed
	case <-s.b.closeCh:
		return nil, courier.ErrTransportClosed
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() { close(s.closeCh) })
	return nil
}

type handle struct {
	transport.ResolveGuard
	b     *Broker
	queue string
}

func (h *handle) Ack(_ context.Context) error {
	h.Resolve()
	return nil
}

func (h *handle) Requeue(ctx context.Context, body []byte, delay time.Duration) error {
	h.Resolve()
	if delay <= 0 {
		return h.b.Publish(ctx, h.queue, body)
	}
	time.AfterFunc(delay, func() {
		_ = h.b.Publish(context.Background(), h.queue, body)
	})
	return nil
}

func (h *handle) Reject(_ context.Context, body []byte, reason string) error {
	h.Resolve()
	h.b.reject(h.queue, body, reason)
	return nil
}

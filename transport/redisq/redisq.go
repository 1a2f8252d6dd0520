// Package redisq implements transport.Transport on Redis Streams.
//
// Each queue is a Stream consumed through a consumer group (XADD /
// XREADGROUP / XACK). Delayed requeues park in a Sorted Set scored by
// release time and a mover goroutine feeds them back into the stream.
// Rejected deliveries land in a per-queue dead-letter stream.
//
// Usage:
//
//	tr, err := redisq.Dial(ctx, "redis://localhost:6379/0")
//	if err != nil { ... }
//	defer tr.Close()
package redisq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/backoff"
	"github.com/courierhq/courier/transport"
)

// Compile-time interface checks.
var (
	_ transport.Transport    = (*Transport)(nil)
	_ transport.Subscription = (*subscription)(nil)
	_ transport.Handle       = (*handle)(nil)
)

const bodyField = "body"

// Option configures the Transport.
type Option func(*Transport)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithGroup sets the consumer group name shared by all consumers of a
// deployable unit.
func WithGroup(group string) Option {
	return func(t *Transport) { t.group = group }
}

// WithConsumer sets this process's consumer name within the group.
func WithConsumer(name string) Option {
	return func(t *Transport) { t.consumer = name }
}

// WithBlock sets how long a subscription read blocks on the broker before
// re-checking for shutdown.
func WithBlock(d time.Duration) Option {
	return func(t *Transport) { t.block = d }
}

// WithPublishRetries caps transient-failure retries per publish.
func WithPublishRetries(n int) Option {
	return func(t *Transport) { t.pubRetries = n }
}

// WithBackoff sets the delay strategy between publish retries.
func WithBackoff(b backoff.Strategy) Option {
	return func(t *Transport) { t.bo = b }
}

// Transport is a Redis Streams transport. Safe for concurrent use.
type Transport struct {
	client     redis.Cmdable
	group      string
	consumer   string
	block      time.Duration
	pubRetries int
	bo         backoff.Strategy
	logger     *slog.Logger

	closer  func() error // set when the transport owns the client
	closed  atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	groupMu sync.Mutex
	groups  map[string]struct{} // queues with an ensured consumer group
}

// New creates a transport over an existing Redis client. The caller owns
// the client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Transport {
	t := &Transport{
		client:     client,
		group:      "courier",
		consumer:   "courier-" + uuid.NewString(),
		block:      5 * time.Second,
		pubRetries: 5,
		bo:         backoff.NewExponential(100*time.Millisecond, 5*time.Second),
		logger:     slog.Default(),
		stopCh:     make(chan struct{}),
		groups:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dial connects to the broker URL from configuration
// ({scheme}://{credentials}@{host}:{port}/{db}) and verifies connectivity.
// The returned transport owns the connection.
func Dial(ctx context.Context, url string, opts ...Option) (*Transport, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse broker url: %v", courier.ErrTransport, err)
	}

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: broker unreachable: %v", courier.ErrTransport, err)
	}

	t := New(client, opts...)
	t.closer = client.Close
	return t, nil
}

// Publish appends the payload to the queue's stream, retrying transient
// failures with backoff up to the configured ceiling.
func (t *Transport) Publish(ctx context.Context, queue string, payload []byte) error {
	if t.closed.Load() {
		return courier.ErrTransportClosed
	}

	var lastErr error
	for attempt := 0; attempt <= t.pubRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(t.bo.Delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = t.client.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey(queue),
			Values: map[string]any{bodyField: string(payload)},
		}).Err()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t.logger.Warn("publish failed, retrying",
			slog.String("queue", queue),
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()),
		)
	}

	return fmt.Errorf("%w: publish to %q exhausted %d retries: %v",
		courier.ErrTransport, queue, t.pubRetries, lastErr)
}

// Subscribe ensures the queue's consumer group exists, starts the delayed
// requeue mover for the queue, and returns the delivery stream.
func (t *Transport) Subscribe(ctx context.Context, queue string) (transport.Subscription, error) {
	if t.closed.Load() {
		return nil, courier.ErrTransportClosed
	}
	if err := t.ensureGroup(ctx, queue); err != nil {
		return nil, err
	}
	return &subscription{t: t, queue: queue}, nil
}

// ensureGroup creates the consumer group once per queue and launches the
// mover goroutine alongside it.
func (t *Transport) ensureGroup(ctx context.Context, queue string) error {
	t.groupMu.Lock()
	defer t.groupMu.Unlock()

	if _, ok := t.groups[queue]; ok {
		return nil
	}

	err := t.client.XGroupCreateMkStream(ctx, streamKey(queue), t.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("%w: create group for %q: %v", courier.ErrTransport, queue, err)
	}

	t.groups[queue] = struct{}{}
	t.wg.Add(1)
	go t.moverLoop(queue)
	return nil
}

// Ping verifies the Redis connection is alive.
func (t *Transport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Close stops mover goroutines and, when the transport owns the client,
// closes the connection.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.stopCh)
	t.wg.Wait()
	if t.closer != nil {
		return t.closer()
	}
	return nil
}

// moverLoop releases due entries from the retry set back into the stream.
func (t *Transport) moverLoop(queue string) {
	defer t.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.moveDue(queue)
		}
	}
}

func (t *Transport) moveDue(queue string) {
	ctx := context.Background()
	now := strconv.FormatInt(time.Now().Unix(), 10)

	due, err := t.client.ZRangeByScore(ctx, retryKey(queue), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 100,
	}).Result()
	if err != nil && err != redis.Nil {
		t.logger.Error("retry mover read failed",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, member := range due {
		if addErr := t.client.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey(queue),
			Values: map[string]any{bodyField: string(retryMemberBody(member))},
		}).Err(); addErr != nil {
			t.logger.Error("retry mover re-enqueue failed",
				slog.String("queue", queue),
				slog.String("error", addErr.Error()),
			)
			continue
		}
		// Remove only after the stream write succeeded; a crash in between
		// yields a duplicate, never a loss.
		if remErr := t.client.ZRem(ctx, retryKey(queue), member).Err(); remErr != nil {
			t.logger.Warn("retry mover ZREM failed",
				slog.String("queue", queue),
				slog.String("error", remErr.Error()),
			)
		}
	}
}

type subscription struct {
	t      *Transport
	queue  string
	closed atomic.Bool
}

// Receive blocks on XREADGROUP until a delivery arrives. Block timeouts
// loop so shutdown is observed within one block interval.
func (s *subscription) Receive(ctx context.Context) (*transport.Delivery, error) {
	for {
		if s.closed.Load() || s.t.closed.Load() {
			return nil, courier.ErrTransportClosed
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		streams, err := s.t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.t.group,
			Consumer: s.t.consumer,
			Streams:  []string{streamKey(s.queue), ">"},
			Count:    1,
			Block:    s.t.block,
		}).Result()
		if err == redis.Nil {
			continue // block timeout, poll again
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.t.logger.Error("subscription read failed",
				slog.String("queue", s.queue),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				body, ok := msg.Values[bodyField].(string)
				if !ok {
					// Not something a consumer can interpret; drop it from
					// the pending list so it is not redelivered forever.
					s.t.logger.Warn("dropping malformed stream entry",
						slog.String("queue", s.queue),
						slog.String("entry_id", msg.ID),
					)
					_ = s.t.client.XAck(ctx, streamKey(s.queue), s.t.group, msg.ID).Err()
					continue
				}
				return &transport.Delivery{
					Body:   []byte(body),
					Handle: &handle{t: s.t, queue: s.queue, entryID: msg.ID},
				}, nil
			}
		}
	}
}

func (s *subscription) Close() error {
	s.closed.Store(true)
	return nil
}

type handle struct {
	transport.ResolveGuard
	t       *Transport
	queue   string
	entryID string
}

func (h *handle) Ack(ctx context.Context) error {
	h.Resolve()
	return h.t.client.XAck(ctx, streamKey(h.queue), h.t.group, h.entryID).Err()
}

// Requeue writes the (possibly updated) body back first and acks the
// original entry after, so a crash in between duplicates rather than
// loses the envelope.
func (h *handle) Requeue(ctx context.Context, body []byte, delay time.Duration) error {
	h.Resolve()

	var err error
	if delay > 0 {
		err = h.t.client.ZAdd(ctx, retryKey(h.queue), redis.Z{
			Score:  float64(time.Now().Add(delay).Unix()),
			Member: retryMember(uuid.NewString(), body),
		}).Err()
	} else {
		err = h.t.client.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey(h.queue),
			Values: map[string]any{bodyField: string(body)},
		}).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: requeue on %q: %v", courier.ErrTransport, h.queue, err)
	}

	return h.t.client.XAck(ctx, streamKey(h.queue), h.t.group, h.entryID).Err()
}

func (h *handle) Reject(ctx context.Context, body []byte, reason string) error {
	h.Resolve()

	if err := h.t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: deadKey(h.queue),
		Values: map[string]any{
			bodyField: string(body),
			"reason":  reason,
			"at":      time.Now().UTC().Format(time.RFC3339),
		},
	}).Err(); err != nil {
		return fmt.Errorf("%w: dead-letter on %q: %v", courier.ErrTransport, h.queue, err)
	}

	return h.t.client.XAck(ctx, streamKey(h.queue), h.t.group, h.entryID).Err()
}

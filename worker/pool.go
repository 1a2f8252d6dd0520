package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/id"
	"github.com/courierhq/courier/queue"
	"github.com/courierhq/courier/transport"
)

// Pool drains broker subscriptions with a bounded number of worker
// slots. Slots are acquired before the broker read, so when every slot
// is busy further envelopes stay buffered in the broker, not in local
// memory.
type Pool struct {
	id        id.ID
	cfg       courier.Config
	transport transport.Transport
	exec      *Executor
	limits    *queue.Manager
	logger    *slog.Logger

	slots chan struct{}
	subs  []transport.Subscription
	wg    sync.WaitGroup

	recvCancel context.CancelFunc
	execCtx    context.Context
	execCancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueLimits sets per-queue rate and concurrency limits.
func WithQueueLimits(m *queue.Manager) PoolOption {
	return func(p *Pool) { p.limits = m }
}

// WithPoolLogger sets a custom logger.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a consumer pool. Concurrency and the queue list come
// from cfg; zero values fall back to DefaultConfig.
func NewPool(cfg courier.Config, t transport.Transport, exec *Executor, opts ...PoolOption) *Pool {
	def := courier.DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = def.Queues
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = def.ShutdownGrace
	}

	p := &Pool{
		id:        id.NewWorkerID(),
		cfg:       cfg,
		transport: t,
		exec:      exec,
		logger:    slog.Default(),
		slots:     make(chan struct{}, cfg.Concurrency),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ID returns the pool's worker identifier.
func (p *Pool) ID() id.ID { return p.id }

// Start subscribes to every configured queue and begins draining. It
// returns once all drain loops are running; processing continues in the
// background until Stop.
func (p *Pool) Start(ctx context.Context) error {
	var startErr error
	p.startOnce.Do(func() {
		recvCtx, recvCancel := context.WithCancel(ctx)
		p.recvCancel = recvCancel
		// Handler lifetimes are controlled by Stop's grace deadline, not
		// by the Start context.
		p.execCtx, p.execCancel = context.WithCancel(context.WithoutCancel(ctx))

		for _, q := range p.cfg.Queues {
			sub, err := p.transport.Subscribe(ctx, q)
			if err != nil {
				startErr = fmt.Errorf("courier/worker: subscribe %q: %w", q, err)
				recvCancel()
				p.execCancel()
				return
			}
			p.subs = append(p.subs, sub)

			p.wg.Add(1)
			go p.drain(recvCtx, q, sub)
		}

		p.logger.Info("worker pool started",
			slog.String("worker_id", p.id.String()),
			slog.Any("queues", p.cfg.Queues),
			slog.Int("concurrency", p.cfg.Concurrency),
		)
	})
	return startErr
}

// drain pulls deliveries from one subscription until the receive context
// is cancelled. One drain loop per queue keeps the subscription
// single-drainer as the transport contract requires.
func (p *Pool) drain(ctx context.Context, queueName string, sub transport.Subscription) {
	defer p.wg.Done()

	for {
		// Slot first, then read: an envelope is only taken off the broker
		// when a worker can run it.
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		if p.limits != nil && !p.waitForQueue(ctx, queueName) {
			<-p.slots
			return
		}

		d, err := sub.Receive(ctx)
		if err != nil {
			<-p.slots
			if p.limits != nil {
				p.limits.Release(queueName)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, courier.ErrTransportClosed) {
				return
			}
			p.logger.Error("receive failed",
				slog.String("queue", queueName),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() {
				<-p.slots
				if p.limits != nil {
					p.limits.Release(queueName)
				}
			}()
			if err := p.exec.Process(p.execCtx, queueName, d); err != nil {
				p.logger.Error("delivery resolution failed",
					slog.String("queue", queueName),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
}

// waitForQueue blocks until the per-queue limiter admits one envelope.
// Returns false when ctx is cancelled first.
func (p *Pool) waitForQueue(ctx context.Context, queueName string) bool {
	for !p.limits.Acquire(queueName) {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// Stop shuts the pool down: new receives stop immediately, in-flight
// handlers get the configured grace period, and any handler still
// running past the deadline has its context cancelled so its envelope is
// requeued with the attempt counter unchanged. ctx bounds how long Stop
// itself waits for stragglers after cancellation.
func (p *Pool) Stop(ctx context.Context) error {
	var stopErr error
	p.stopOnce.Do(func() {
		if p.recvCancel == nil {
			return
		}
		p.logger.Info("worker pool stopping",
			slog.String("worker_id", p.id.String()),
			slog.Duration("grace", p.cfg.ShutdownGrace),
		)

		p.recvCancel()
		for _, sub := range p.subs {
			if err := sub.Close(); err != nil {
				p.logger.Warn("subscription close failed", slog.String("error", err.Error()))
			}
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(p.cfg.ShutdownGrace):
			p.logger.Warn("grace deadline passed, interrupting in-flight handlers")
			p.execCancel()
			select {
			case <-done:
			case <-ctx.Done():
				stopErr = fmt.Errorf("courier/worker: handlers still running after interrupt: %w", ctx.Err())
				return
			}
		case <-ctx.Done():
			p.execCancel()
			stopErr = ctx.Err()
			return
		}

		p.execCancel()
		p.logger.Info("worker pool stopped", slog.String("worker_id", p.id.String()))
	})
	return stopErr
}

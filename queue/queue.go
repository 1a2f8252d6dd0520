// Package queue provides per-queue rate limiting and concurrency caps for
// the consumer runtime. Pool-wide concurrency still bounds total work;
// these limits shape how the slots are shared between queues.
package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-queue behaviour.
type Config struct {
	// Name is the queue identifier (must match the envelope's queue).
	Name string

	// MaxConcurrency limits how many envelopes from this queue may run
	// simultaneously across the local worker pool. Zero means no
	// queue-specific limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained envelopes per second dequeued
	// from this queue. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket limiter. Defaults
	// to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

type queueState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

func newQueueState(cfg Config) *queueState {
	qs := &queueState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		qs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return qs
}

// Manager controls per-queue rate limiting and concurrency. Safe for
// concurrent use.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*queueState
}

// NewManager creates a Manager with the given queue configurations.
// Queues not listed have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{queues: make(map[string]*queueState, len(configs))}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newQueueState(cfg)
	}
	return m
}

// Acquire checks rate limits and concurrency for the queue. If the
// envelope may proceed it increments the active counter and returns true.
// The caller MUST call Release when execution completes.
func (m *Manager) Acquire(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := m.queues[queue]
	if qs == nil {
		return true
	}
	// Check concurrency before drawing a rate token: an acquire that
	// fails on the cap must not burn a token and starve later admissions.
	if qs.config.MaxConcurrency > 0 && qs.active >= qs.config.MaxConcurrency {
		return false
	}
	if qs.limiter != nil && !qs.limiter.Allow() {
		return false
	}
	qs.active++
	return true
}

// Release decrements the active count for the queue.
func (m *Manager) Release(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil && qs.active > 0 {
		qs.active--
	}
}

// ActiveCount returns the current number of active envelopes for a queue.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil {
		return qs.active
	}
	return 0
}

// Package dlq provides the dead-letter archive: terminally rejected
// envelopes are kept with their full body so an operator can inspect the
// failure and replay the work after a fix is deployed.
package dlq

import (
	"context"
	"fmt"
	"time"

	"github.com/courierhq/courier/codec"
	"github.com/courierhq/courier/id"
	"github.com/courierhq/courier/job"
)

// Publisher re-enqueues a replayed envelope. producer.Producer satisfies
// this.
type Publisher interface {
	Push(ctx context.Context, queue string, env *job.Envelope) error
}

// Service provides high-level archive operations over a Store.
type Service struct {
	store Store
	codec codec.Codec
}

// NewService creates a DLQ service. A nil codec defaults to JSON.
func NewService(store Store, c codec.Codec) *Service {
	if c == nil {
		c = &codec.JSON{}
	}
	return &Service{store: store, codec: c}
}

// Push archives a terminally rejected envelope with its cause.
func (s *Service) Push(ctx context.Context, env *job.Envelope, cause error) error {
	body, err := s.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("dlq: encode envelope %s: %w", env.ID, err)
	}

	now := time.Now().UTC()
	return s.store.Push(ctx, &Entry{
		ID:         id.NewDLQID(),
		EnvelopeID: env.ID,
		Handler:    env.Handler,
		Queue:      env.Queue,
		Body:       body,
		Error:      cause.Error(),
		Attempt:    env.Attempt,
		FailedAt:   now,
		CreatedAt:  now,
	})
}

// Replay re-dispatches an archived envelope through pub with a fresh
// attempt counter and marks the entry replayed.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID, pub Publisher) error {
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return err
	}

	var env job.Envelope
	if err := s.codec.Unmarshal(entry.Body, &env); err != nil {
		return fmt.Errorf("dlq: decode entry %s: %w", entryID, err)
	}
	env.Attempt = 0

	if err := pub.Push(ctx, env.Queue, &env); err != nil {
		return err
	}
	return s.store.MarkReplayed(ctx, entryID)
}

// Store returns the underlying archive store for direct access to List,
// Get, Purge, and Count.
func (s *Service) Store() Store { return s.store }

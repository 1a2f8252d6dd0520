// Package cron dispatches envelopes on a schedule. It is a thin layer
// over robfig/cron that turns each tick into a regular dispatch, so
// scheduled work flows through the same registry, transforms, and
// transport as ad-hoc work.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/courierhq/courier/job"
)

// Dispatcher enqueues an envelope by handler name. producer.Producer
// satisfies this.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args job.ArgList, opts ...job.Option) (*job.Envelope, error)
}

// Scheduler runs cron-style schedules that dispatch envelopes on each
// tick. Entries are added before Start; the scheduler is read-only
// thereafter.
type Scheduler struct {
	cron       *robfig.Cron
	dispatcher Dispatcher
	logger     *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler dispatching through d.
func New(d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:       robfig.New(),
		dispatcher: d,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add registers a schedule in standard five-field cron syntax (or
// descriptors like "@hourly") that dispatches name with args on each
// tick. Dispatch failures are logged; the schedule keeps running.
func (s *Scheduler) Add(spec, name string, args job.ArgList, opts ...job.Option) (robfig.EntryID, error) {
	entryID, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		env, err := s.dispatcher.Dispatch(ctx, name, args, opts...)
		if err != nil {
			s.logger.Error("scheduled dispatch failed",
				slog.String("handler", name),
				slog.String("schedule", spec),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Debug("scheduled dispatch",
			slog.String("handler", name),
			slog.String("envelope_id", env.ID),
		)
	})
	if err != nil {
		return 0, fmt.Errorf("courier/cron: add %q for %q: %w", spec, name, err)
	}
	return entryID, nil
}

// Start begins running schedules in a background goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for in-flight dispatch callbacks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

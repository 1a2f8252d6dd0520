package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/courierhq/courier/job"
)

// Compile-time interface checks.
var (
	_ Hook              = (*LoggingHook)(nil)
	_ Dispatched        = (*LoggingHook)(nil)
	_ Started           = (*LoggingHook)(nil)
	_ Completed         = (*LoggingHook)(nil)
	_ Retrying          = (*LoggingHook)(nil)
	_ Rejected          = (*LoggingHook)(nil)
	_ ContractViolation = (*LoggingHook)(nil)
)

// LoggingHook logs every lifecycle event through slog.
type LoggingHook struct {
	logger *slog.Logger
}

// NewLoggingHook creates a logging hook.
func NewLoggingHook(logger *slog.Logger) *LoggingHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHook{logger: logger}
}

func (l *LoggingHook) Name() string { return "logging" }

func (l *LoggingHook) OnDispatched(_ context.Context, env *job.Envelope) error {
	l.logger.Info("envelope dispatched",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
		slog.String("queue", env.Queue),
	)
	return nil
}

func (l *LoggingHook) OnStarted(_ context.Context, env *job.Envelope) error {
	l.logger.Info("envelope started",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
		slog.Int("attempt", env.Attempt),
	)
	return nil
}

func (l *LoggingHook) OnCompleted(_ context.Context, env *job.Envelope, elapsed time.Duration) error {
	l.logger.Info("envelope completed",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

func (l *LoggingHook) OnRetrying(_ context.Context, env *job.Envelope, err error, delay time.Duration) error {
	l.logger.Warn("envelope retrying",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
		slog.Int("attempt", env.Attempt),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()),
	)
	return nil
}

func (l *LoggingHook) OnRejected(_ context.Context, env *job.Envelope, err error) error {
	l.logger.Error("envelope rejected",
		slog.String("envelope_id", env.ID),
		slog.String("handler", env.Handler),
		slog.Int("attempt", env.Attempt),
		slog.String("error", err.Error()),
	)
	return nil
}

func (l *LoggingHook) OnContractViolation(_ context.Context, queue string, body []byte, err error) error {
	l.logger.Error("envelope contract violation",
		slog.String("queue", queue),
		slog.Int("body_bytes", len(body)),
		slog.String("error", err.Error()),
	)
	return nil
}

// Command courierd is the courier consumer daemon: it connects to the
// broker, drains the configured queues with a bounded worker pool, and
// serves Prometheus metrics. Deployments register their handlers in
// registerHandlers and build their own binary from this package.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courierhq/courier/codec"
	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/hook"
	"github.com/courierhq/courier/job"
	"github.com/courierhq/courier/middleware"
	"github.com/courierhq/courier/store/bunstore"
	"github.com/courierhq/courier/store/memory"
	"github.com/courierhq/courier/transport/redisq"
	"github.com/courierhq/courier/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("courierd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// registerHandlers declares the handlers this consumer executes.
func registerHandlers(reg *job.Registry) error {
	// Example:
	//
	//	return job.Register(reg, job.NewDefinition("EmailWorker",
	//		func(ctx context.Context, args SendEmailArgs) error { ... },
	//		job.WithQueue("email"),
	//	))
	return nil
}

func run(logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("starting courierd",
		slog.String("environment", string(cfg.Environment)),
		slog.Any("queues", cfg.Queues),
		slog.Int("concurrency", cfg.Concurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := redisq.Dial(ctx, cfg.BrokerURL,
		redisq.WithLogger(logger),
		redisq.WithBlock(cfg.ReceiveBlock),
		redisq.WithPublishRetries(cfg.PublishRetries),
	)
	if err != nil {
		return err
	}
	defer tp.Close()

	var archiveStore dlq.Store
	if cfg.DLQArchiveDSN != "" {
		db := bunstore.OpenDSN(cfg.DLQArchiveDSN)
		defer db.Close()
		bs := bunstore.New(db, bunstore.WithLogger(logger))
		if err := bs.Migrate(ctx); err != nil {
			return err
		}
		archiveStore = bs
	} else {
		archiveStore = memory.New()
	}
	envCodec := codec.Get(cfg.Codec)
	archive := dlq.NewService(archiveStore, envCodec)

	registry := job.NewRegistry()
	if err := registerHandlers(registry); err != nil {
		return err
	}

	hooks := hook.NewRegistry(logger)
	hooks.Register(hook.NewLoggingHook(logger))
	hooks.Register(hook.NewMetricsHook())

	exec := worker.NewExecutor(registry,
		worker.WithCodec(envCodec),
		worker.WithHooks(hooks),
		worker.WithArchive(archive),
		worker.WithLogger(logger),
		worker.WithMiddleware(
			middleware.Recover(logger),
			middleware.Logging(logger),
			middleware.Tracing(),
			middleware.Metrics(),
		),
	)

	pool := worker.NewPool(cfg, tp, exec, worker.WithPoolLogger(logger))
	if err := pool.Start(ctx); err != nil {
		return err
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+10*time.Second)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		return err
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(stopCtx); err != nil {
			logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/courierhq/courier/job"
)

// meterName is the instrumentation scope name for courier metrics.
const meterName = "github.com/courierhq/courier"

// Metrics returns middleware that records per-handler execution metrics
// using the global OTel MeterProvider. With no MeterProvider configured,
// noop instruments are used and this middleware is a pass-through.
//
// Instruments:
//   - courier.handler.duration (Float64Histogram): execution time in
//     seconds, with attributes: handler, queue, status ("ok" or "error")
//   - courier.handler.executions (Int64Counter): total executions,
//     with the same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once at construction time; on error the
	// OTel API returns noop instruments, so the middleware degrades
	// gracefully.
	duration, dErr := meter.Float64Histogram(
		"courier.handler.duration",
		metric.WithDescription("Duration of handler execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr

	executions, eErr := meter.Int64Counter(
		"courier.handler.executions",
		metric.WithDescription("Total number of handler executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr

	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("handler", env.Handler),
			attribute.String("queue", env.Queue),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}

package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/courier/job"
)

// tracerName is the instrumentation scope name for courier tracing.
const tracerName = "github.com/courierhq/courier"

// Tracing returns middleware that wraps handler execution in an
// OpenTelemetry span. With no global TracerProvider configured the noop
// tracer is used and this middleware is a pass-through.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer,
// for injecting a specific TracerProvider in tests or multi-provider
// setups.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		ctx, span := tracer.Start(ctx, "courier.handler.execute",
			trace.WithAttributes(
				attribute.String("courier.envelope.id", env.ID),
				attribute.String("courier.envelope.handler", env.Handler),
				attribute.String("courier.queue", env.Queue),
				attribute.Int("courier.attempt", env.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}

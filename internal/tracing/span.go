package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func orNoop(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return tracer
}

// StartDispatchSpan starts the span covering one fan-out/fan-in cycle.
func StartDispatchSpan(ctx context.Context, tracer trace.Tracer, runID string, tasks int) (context.Context, trace.Span) {
	return orNoop(tracer).Start(ctx, "dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("reqsim.run_id", runID),
			attribute.Int("reqsim.tasks", tasks),
		),
	)
}

// StartTaskSpan starts the span of a single dispatched unit.
func StartTaskSpan(ctx context.Context, tracer trace.Tracer, taskID int) (context.Context, trace.Span) {
	return orNoop(tracer).Start(ctx, "task",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("reqsim.task_id", taskID)),
	)
}

// StartRequestSpan starts a new span for a request operation.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, protocol, endpoint string) (context.Context, trace.Span) {
	spanName := protocol + " request"
	if endpoint != "" {
		spanName = protocol + " " + endpoint
	}
	ctx, span := orNoop(tracer).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("network.protocol.name", protocol))
	if endpoint != "" {
		span.SetAttributes(attribute.String("reqsim.endpoint", endpoint))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

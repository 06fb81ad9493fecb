package tracing_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/reqsim/internal/config"
	"github.com/torosent/reqsim/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func TestInitDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	p, err := tracing.Init(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when tracing disabled")
	}

	// Tracer should return a no-op (no panic)
	tracer := p.Tracer()
	_, span := tracer.Start(context.Background(), "test")
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled provider should hand out no-op spans")
	}
}

func TestInitWithEndpointEnablesTracing(t *testing.T) {
	// We can't actually connect to an endpoint in unit tests,
	// but we verify the provider is configured correctly.
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:    "localhost:4317",
		Protocol:    "grpc",
		ServiceName: "test-service",
		SampleRate:  1.0,
		Insecure:    true,
		Propagate:   true,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true when tracing enabled")
	}
}

func TestInitHTTPProtocol(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4318",
		Protocol:   "http",
		Insecure:   true,
		SampleRate: 0.5,
		Propagate:  true,
	})
	if err != nil {
		t.Fatalf("Init() with http protocol error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if !p.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true")
	}
}

func TestInitUnsupportedProtocol(t *testing.T) {
	_, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint: "localhost:4317",
		Protocol: "thrift",
		Insecure: true,
	})
	if err == nil {
		t.Fatal("Init() with unsupported protocol should return error")
	}
}

func TestInitInvalidSampleRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
	}{
		{"negative", -0.5},
		{"above one", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tracing.Init(context.Background(), config.TracingConfig{
				Endpoint:   "localhost:4317",
				Protocol:   "grpc",
				Insecure:   true,
				SampleRate: tt.rate,
			})
			if err == nil {
				t.Fatalf("Init() with sample_rate=%g should return error", tt.rate)
			}
		})
	}
}

func TestInitChecksSettingsBeforeExporter(t *testing.T) {
	// An unsupported protocol would fail exporter construction, so reporting
	// the sample rate shows nothing was built first.
	_, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4317",
		Protocol:   "thrift",
		SampleRate: 2,
	})
	if err == nil || !strings.Contains(err.Error(), "sample_rate") {
		t.Fatalf("expected sample_rate error, got %v", err)
	}
}

func TestInitResourceAttributes(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4317",
		Protocol:   "grpc",
		Insecure:   true,
		SampleRate: 1,
	},
		tracing.WithServiceVersion("1.2.3"),
		tracing.WithRunAttributes(attribute.Int("reqsim.tasks", 500)),
	)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	set := p.Resource().Set()
	if v, ok := set.Value(semconv.ServiceNameKey); !ok || v.AsString() != "reqsim" {
		t.Errorf("service.name = %v, want reqsim", v.Emit())
	}
	if v, ok := set.Value(semconv.ServiceVersionKey); !ok || v.AsString() != "1.2.3" {
		t.Errorf("service.version = %v, want 1.2.3", v.Emit())
	}
	if v, ok := set.Value("reqsim.tasks"); !ok || v.AsInt64() != 500 {
		t.Errorf("reqsim.tasks = %v, want 500", v.Emit())
	}
}

func TestDisabledProviderHasNoResource(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	p, err := tracing.Init(context.Background(), config.TracingConfig{Propagate: true})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if p.Resource() != nil {
		t.Error("disabled provider should not build a resource")
	}
	if p.ShouldPropagate() {
		t.Error("disabled provider should not propagate")
	}
}

func TestShouldPropagateOverride(t *testing.T) {
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:  "localhost:4317",
		Protocol:  "grpc",
		Insecure:  true,
		Propagate: false,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when explicitly disabled")
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() {
		t.Error("nil provider ShouldPropagate() = true, want false")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	// Tracer() on nil should return no-op, not panic
	tracer := p.Tracer()
	_, span := tracer.Start(context.Background(), "test")
	span.End()
}

func TestStartRequestSpan(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	tests := []struct {
		name         string
		protocol     string
		endpoint     string
		wantSpanName string
	}{
		{"http with endpoint", "http", "get-users", "http get-users"},
		{"http without endpoint", "http", "", "http request"},
		{"full url endpoint", "http", "GET http://localhost:8080/", "http GET http://localhost:8080/"},
		{"https without endpoint", "https", "", "https request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			ctx, span := tracing.StartRequestSpan(context.Background(), tracer, tt.protocol, tt.endpoint)
			_ = ctx
			span.End()

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			got := spans[0].Name
			if got != tt.wantSpanName {
				t.Errorf("span name = %q, want %q", got, tt.wantSpanName)
			}

			if spans[0].SpanKind != trace.SpanKindClient {
				t.Errorf("span kind = %s, want client", spans[0].SpanKind)
			}
			if !hasAttr(spans[0].Attributes, "network.protocol.name", tt.protocol) {
				t.Errorf("network.protocol.name attribute not found or incorrect")
			}
		})
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-error")
	tracing.EndSpan(span, context.DeadlineExceeded)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status code = %d, want %d (Error)", spans[0].Status.Code, codes.Error)
	}
}

func TestEndSpanOk(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-ok")
	tracing.EndSpan(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("span status code = %d, want %d (Ok)", spans[0].Status.Code, codes.Ok)
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := setupTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "test-inject")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)

	got := headers.Get("Traceparent")
	if got == "" {
		t.Error("traceparent header not injected")
	}
	// traceparent format: version-traceid-spanid-flags (e.g., 00-abc123...-def456...-01)
	if len(got) < 55 {
		t.Errorf("traceparent header too short: %q", got)
	}
}

func TestInjectHTTPHeadersNoSpan(t *testing.T) {
	// Without a span in context, injection should not panic and not set traceparent
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
	))
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)

	got := headers.Get("Traceparent")
	if got != "" {
		t.Errorf("traceparent header should be empty without span, got %q", got)
	}
}

func hasAttr(attrs []attribute.KeyValue, key, want string) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key && attr.Value.Emit() == want {
			return true
		}
	}
	return false
}

func TestDispatchAndTaskSpans(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	ctx, dispatch := tracing.StartDispatchSpan(context.Background(), tracer, "01HRUNID", 3)
	_, task := tracing.StartTaskSpan(ctx, tracer, 2)
	tracing.EndSpan(task, nil)
	tracing.EndSpan(dispatch, nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	taskSpan, dispatchSpan := spans[0], spans[1]
	if taskSpan.Name != "task" || dispatchSpan.Name != "dispatch" {
		t.Fatalf("unexpected span names %q, %q", taskSpan.Name, dispatchSpan.Name)
	}
	if taskSpan.Parent.SpanID() != dispatchSpan.SpanContext.SpanID() {
		t.Errorf("task span should be a child of the dispatch span")
	}
	if !hasAttr(dispatchSpan.Attributes, "reqsim.run_id", "01HRUNID") || !hasAttr(dispatchSpan.Attributes, "reqsim.tasks", "3") {
		t.Errorf("dispatch span attributes = %v", dispatchSpan.Attributes)
	}
	if !hasAttr(taskSpan.Attributes, "reqsim.task_id", "2") {
		t.Errorf("task span attributes = %v", taskSpan.Attributes)
	}
}

func TestNilTracerIsNoop(t *testing.T) {
	ctx, span := tracing.StartDispatchSpan(context.Background(), nil, "run", 1)
	if span.SpanContext().IsValid() {
		t.Errorf("nil tracer should produce a no-op span")
	}
	_, task := tracing.StartTaskSpan(ctx, nil, 1)
	tracing.EndSpan(task, nil)
	tracing.EndSpan(span, nil)
}

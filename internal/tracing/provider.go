// Package tracing exports reqsim's dispatch, task and request spans over OTLP
// and propagates W3C trace context on the outbound GET.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/torosent/reqsim/internal/config"
)

const (
	defaultServiceName  = "reqsim"
	instrumentationName = "github.com/torosent/reqsim"
)

// Provider owns the SDK tracer provider of one reqsim process. The zero
// value and a nil *Provider behave as disabled tracing.
type Provider struct {
	tp        *sdktrace.TracerProvider
	res       *resource.Resource
	tracer    trace.Tracer
	propagate bool
}

type settings struct {
	version string
	attrs   []attribute.KeyValue
}

// Option adjusts the resource reported with every span.
type Option func(*settings)

// WithServiceVersion sets service.version on the resource and the exporter's
// user agent.
func WithServiceVersion(version string) Option {
	return func(s *settings) { s.version = version }
}

// WithRunAttributes adds run-wide attributes such as the task count.
func WithRunAttributes(attrs ...attribute.KeyValue) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

// Init builds a provider for cfg. Without an endpoint (flag or
// OTEL_EXPORTER_OTLP_ENDPOINT) it returns a disabled provider. Settings are
// checked before any exporter is created.
func Init(ctx context.Context, cfg config.TracingConfig, opts ...Option) (*Provider, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return &Provider{}, nil
	}

	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if protocol == "" {
		protocol = "grpc"
	}
	if protocol != "grpc" && protocol != "http" {
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", cfg.Protocol)
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	res, err := newResource(ctx, cfg.ServiceName, s)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := newExporter(ctx, protocol, endpoint, cfg.Insecure, s.version)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		res:       res,
		tracer:    tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(s.version)),
		propagate: cfg.Propagate,
	}, nil
}

// Tracer returns the run's tracer, or a no-op tracer when disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether the outbound GET carries traceparent headers.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.tp != nil && p.propagate
}

// Resource returns the resource attached to exported spans, nil when disabled.
func (p *Provider) Resource() *resource.Resource {
	if p == nil {
		return nil
	}
	return p.res
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func samplerFor(rate float64) (sdktrace.Sampler, error) {
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	case rate == 0:
		return sdktrace.NeverSample(), nil
	case rate == 1:
		return sdktrace.AlwaysSample(), nil
	default:
		return sdktrace.TraceIDRatioBased(rate), nil
	}
}

func newResource(ctx context.Context, serviceName string, s settings) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = os.Getenv("OTEL_SERVICE_NAME")
	}
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if s.version != "" {
		attrs = append(attrs, semconv.ServiceVersion(s.version))
	}
	attrs = append(attrs, s.attrs...)
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithProcessPID(),
		resource.WithHost(),
	)
}

func newExporter(ctx context.Context, protocol, endpoint string, plaintext bool, version string) (sdktrace.SpanExporter, error) {
	userAgent := defaultServiceName
	if version != "" {
		userAgent += "/" + version
	}

	if protocol == "http" {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithHeaders(map[string]string{"User-Agent": userAgent}),
		}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent)),
	}
	if plaintext {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

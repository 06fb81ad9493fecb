package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/reqsim/internal/metrics"
	"github.com/torosent/reqsim/internal/tracing"
)

const maxLoggedBodyBytes = 1024

// Outcome is the result of a completed HTTP exchange. A non-2xx status is a
// classified failure, not an error.
type Outcome struct {
	URL        string
	StatusCode int
	Status     string
	// Body holds a trimmed snippet of the response for failed outcomes.
	Body    string
	Latency time.Duration
}

// Success reports whether the status code is in the 2xx range.
func (o Outcome) Success() bool {
	return o.StatusCode >= 200 && o.StatusCode <= 299
}

// Err returns nil for a successful outcome and an *HTTPError otherwise.
func (o Outcome) Err() error {
	if o.Success() {
		return nil
	}
	return &HTTPError{StatusCode: o.StatusCode, Body: o.Body}
}

// RequestClient issues single GET requests and classifies their outcome.
type RequestClient struct {
	client    *http.Client
	logger    *zap.Logger
	tracer    trace.Tracer
	propagate bool
	collector *metrics.Collector
}

type Option func(*RequestClient)

func WithLogger(logger *zap.Logger) Option {
	return func(c *RequestClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer records a client span per request. When propagate is set, the
// W3C trace context is injected into the request headers.
func WithTracer(tracer trace.Tracer, propagate bool) Option {
	return func(c *RequestClient) {
		c.tracer = tracer
		c.propagate = propagate
	}
}

// WithCollector counts response status codes and transport failure kinds.
func WithCollector(collector *metrics.Collector) Option {
	return func(c *RequestClient) {
		c.collector = collector
	}
}

func New(client *http.Client, opts ...Option) *RequestClient {
	if client == nil {
		client = NewClient(0)
	}
	c := &RequestClient{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs one GET against rawURL. Transport failures come back as a
// *TransportError; any response, whatever its status, comes back as an
// Outcome with a nil error.
func (c *RequestClient) Get(ctx context.Context, rawURL string) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartRequestSpan(ctx, c.tracer, "http", http.MethodGet+" "+rawURL)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Outcome{}, c.transportFailure(span, &TransportError{URL: rawURL, Kind: TransportInvalidRequest, Err: err})
	}
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Outcome{}, c.transportFailure(span, &TransportError{URL: rawURL, Kind: classifyTransport(err), Err: err})
	}
	defer resp.Body.Close()

	outcome := Outcome{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if !outcome.Success() {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		if readErr == nil {
			outcome.Body = strings.TrimSpace(string(snippet))
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	outcome.Latency = time.Since(start)

	if c.collector != nil {
		c.collector.RecordHTTPStatus(outcome.StatusCode)
	}

	fields := []zap.Field{
		zap.String("url", rawURL),
		zap.Int("status", outcome.StatusCode),
		zap.Duration("latency", outcome.Latency),
	}
	if outcome.Success() {
		c.logger.Info("request completed", fields...)
	} else {
		if outcome.Body != "" {
			fields = append(fields, zap.String("body", outcome.Body))
		}
		c.logger.Error("request failed", fields...)
	}

	tracing.EndSpan(span, outcome.Err(), attribute.Int("http.response.status_code", outcome.StatusCode))
	return outcome, nil
}

func (c *RequestClient) transportFailure(span trace.Span, terr *TransportError) error {
	if c.collector != nil {
		c.collector.RecordStatus("http", string(terr.Kind))
	}
	c.logger.Error("request transport error",
		zap.String("url", terr.URL),
		zap.String("kind", string(terr.Kind)),
		zap.Error(terr.Err),
	)
	tracing.EndSpan(span, terr, attribute.String("reqsim.transport_error", string(terr.Kind)))
	return terr
}

// NewClient returns an HTTP client. A zero timeout leaves the exchange bounded
// only by the transport's dial and handshake limits.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

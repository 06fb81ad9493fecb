package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/reqsim/internal/metrics"
)

// DefaultLatency is the simulated processing time of one unit.
const DefaultLatency = 100 * time.Millisecond

// Task is an optional hook run by each unit after its latency pause and
// before the counter increment. A returned error fails the unit and skips
// the increment.
type Task interface {
	Run(ctx context.Context, taskID int) error
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context, taskID int) error

func (f TaskFunc) Run(ctx context.Context, taskID int) error { return f(ctx, taskID) }

// ArrivalModel selects how launches are spaced when RatePerSecond is set.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Dispatcher.
type Options struct {
	Latency        time.Duration               // pause before each increment (0 means DefaultLatency)
	NoLatency      bool                        // skip the pause entirely
	RatePerSecond  int                         // launch pacing (0 means all at once)
	ArrivalModel   ArrivalModel                // spacing of paced launches
	RandomSeed     int64                       // seed for the poisson sampler
	PoissonSampler func() float64              // optional injection for tests
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	Task           Task
	Logger         *zap.Logger
	Tracer         trace.Tracer
	Collector      *metrics.Collector
}

func (o *Options) normalize() {
	switch {
	case o.NoLatency:
		o.Latency = 0
	case o.Latency <= 0:
		o.Latency = DefaultLatency
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

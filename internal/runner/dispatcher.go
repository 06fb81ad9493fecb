package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/reqsim/internal/counter"
	"github.com/torosent/reqsim/internal/tracing"
)

// Result captures one dispatch cycle.
type Result struct {
	RunID      string
	Dispatched int   // units requested
	Launched   int64 // units actually started
	Completed  int64 // units that incremented the counter
	Failed     int64 // units that ended in a TaskFailure
	Duration   time.Duration
}

// Dispatcher fans units out over a shared counter and joins them.
type Dispatcher struct {
	counter  *counter.Counter
	opt      Options
	inFlight atomic.Int64
}

func New(c *counter.Counter, opt Options) *Dispatcher {
	opt.normalize()
	if c == nil {
		c = counter.New(counter.WithLogger(opt.Logger))
	}
	return &Dispatcher{counter: c, opt: opt}
}

// Counter returns the counter the units increment.
func (d *Dispatcher) Counter() *counter.Counter {
	return d.counter
}

// InFlight returns the number of launched units that have not finished yet.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Dispatch launches count units and returns once every launched unit has
// finished. If any unit fails, the first TaskFailure observed is returned
// alongside the Result. ctx bounds launch pacing only; launched units keep
// its values but never see its cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, count int) (Result, error) {
	if count < 0 {
		return Result{}, ErrNegativeCount
	}

	runID := ulid.Make().String()
	logger := d.opt.Logger.With(zap.String("run_id", runID))
	ctx, span := tracing.StartDispatchSpan(ctx, d.opt.Tracer, runID, count)
	unitCtx := context.WithoutCancel(ctx)

	res := Result{RunID: runID, Dispatched: count}
	var completed, failed atomic.Int64
	arrival := newArrivalController(d.opt)
	start := time.Now()

	logger.Debug("dispatch started", zap.Int("tasks", count), zap.Int("rate", d.opt.RatePerSecond))

	var g errgroup.Group
	var interrupted error
	for id := 0; id < count; id++ {
		if err := arrival.Wait(ctx); err != nil {
			interrupted = fmt.Errorf("%w: %w", ErrDispatchInterrupted, err)
			logger.Warn("dispatch interrupted", zap.Int64("launched", res.Launched), zap.Error(err))
			break
		}
		res.Launched++
		d.inFlight.Add(1)
		id := id
		g.Go(func() error {
			defer d.inFlight.Add(-1)
			if err := d.runUnit(unitCtx, logger, id); err != nil {
				failed.Add(1)
				return err
			}
			completed.Add(1)
			return nil
		})
	}
	err := g.Wait()

	res.Completed = completed.Load()
	res.Failed = failed.Load()
	res.Duration = time.Since(start)
	if err == nil {
		err = interrupted
	}
	tracing.EndSpan(span, err)

	fields := []zap.Field{
		zap.Int64("launched", res.Launched),
		zap.Int64("completed", res.Completed),
		zap.Int64("failed", res.Failed),
		zap.Int32("counter", d.counter.Value()),
		zap.Duration("duration", res.Duration),
	}
	var failure *TaskFailure
	if errors.As(err, &failure) {
		logger.Error("dispatch finished with failures", append(fields, zap.Error(err))...)
	} else {
		logger.Info("dispatch finished", fields...)
	}
	return res, err
}

// runUnit executes one unit: pause, optional hook, one increment. Panics
// are caught and turned into a TaskFailure.
func (d *Dispatcher) runUnit(ctx context.Context, logger *zap.Logger, id int) error {
	ctx, span := tracing.StartTaskSpan(ctx, d.opt.Tracer, id)
	start := time.Now()

	var hookErr error
	var pc panics.Catcher
	pc.Try(func() {
		if d.opt.Latency > 0 {
			time.Sleep(d.opt.Latency)
		}
		if d.opt.Task != nil {
			if hookErr = d.opt.Task.Run(ctx, id); hookErr != nil {
				return
			}
		}
		d.counter.Increment()
	})

	var err error
	if r := pc.Recovered(); r != nil {
		cause, ok := r.Value.(error)
		if !ok {
			cause = fmt.Errorf("%v", r.Value)
		}
		err = &TaskFailure{TaskID: id, Cause: cause, Stack: r.Stack}
	} else if hookErr != nil {
		err = &TaskFailure{TaskID: id, Cause: hookErr}
	}

	if d.opt.Collector != nil {
		d.opt.Collector.RecordTask(time.Since(start), err)
	}
	tracing.EndSpan(span, err)
	if err != nil {
		logger.Error("task failed", zap.Int("task_id", id), zap.Error(err))
	}
	return err
}

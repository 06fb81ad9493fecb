// Package runner fans simulated requests out over a shared counter and joins
// them again.
//
// Each unit sleeps for [Options.Latency], runs the optional [Task] hook and
// then increments the [counter.Counter] exactly once:
//
//	c := counter.New(counter.WithLogger(logger))
//	d := runner.New(c, runner.Options{Logger: logger})
//	res, err := d.Dispatch(ctx, 500)
//
// Dispatch always waits for every launched unit. A unit that panics, or whose
// hook returns an error, is reported as a [*TaskFailure] once the whole cycle
// has been joined; the remaining units still run to completion.
//
// # Pacing
//
// By default all units start at once. [Options.RatePerSecond] spaces the
// launches, either uniformly through a token bucket or with exponential gaps
// ([ArrivalModelPoisson]). Pacing never limits how many units are in flight.
// Cancelling the context stops further launches and yields
// [ErrDispatchInterrupted].
package runner

// Package counter implements the shared request counter. The counter is an
// int32 behind a poison-aware Mutex: a goroutine that panics while holding
// the lock leaves it poisoned, and the next Increment recovers instead of
// failing.
package counter

import (
	"errors"
	"math"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrOverflow is the panic value raised when Increment would wrap past
// math.MaxInt32.
var ErrOverflow = errors.New("counter overflow")

// Counter is safe for concurrent use.
type Counter struct {
	state      *Mutex[int32]
	logger     *zap.Logger
	recoveries atomic.Int64
}

// Option configures a Counter.
type Option func(*Counter)

// WithLogger routes counter events to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Counter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInitial starts the counter at value instead of zero.
func WithInitial(value int32) Option {
	return func(c *Counter) {
		c.state = NewMutex(value)
	}
}

func New(opts ...Option) *Counter {
	c := &Counter{
		state:  NewMutex[int32](0),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment adds one and returns the new value. A poisoned lock is taken
// over, logged and cleared; it never fails the caller.
func (c *Counter) Increment() int32 {
	guard, status := c.state.Lock()
	defer guard.Unlock()

	value := guard.Value()
	switch status {
	case Acquired:
	case PoisonedRecoverable:
		c.recoveries.Add(1)
		c.logger.Error("counter lock poisoned, recovering", zap.Int32("counter", *value))
		guard.ClearPoison()
	}

	if *value == math.MaxInt32 {
		panic(ErrOverflow)
	}
	*value++
	c.logger.Info("handled request", zap.Int32("counter", *value))
	return *value
}

// Value returns the current count, whether or not the lock is poisoned.
func (c *Counter) Value() int32 {
	guard, _ := c.state.Lock()
	defer guard.Unlock()
	return *guard.Value()
}

// Update runs fn with exclusive access to the raw value. A panic in fn
// poisons the lock and propagates to the caller. Update does not clear an
// existing poison.
func (c *Counter) Update(fn func(value *int32)) {
	guard, _ := c.state.Lock()
	defer guard.Unlock()
	fn(guard.Value())
}

// Poisoned reports whether the lock is currently poisoned.
func (c *Counter) Poisoned() bool {
	return c.state.Poisoned()
}

// Recoveries returns how many times Increment took over a poisoned lock.
func (c *Counter) Recoveries() int64 {
	return c.recoveries.Load()
}

package counter

import (
	"sync"
	"sync/atomic"
)

// LockStatus reports the state a Mutex was in when it was acquired.
type LockStatus uint8

const (
	// Acquired means the previous holder released the lock normally.
	Acquired LockStatus = iota
	// PoisonedRecoverable means a previous holder panicked while holding the
	// lock. The guard is still usable but the protected value may be
	// inconsistent.
	PoisonedRecoverable
)

func (s LockStatus) String() string {
	switch s {
	case Acquired:
		return "acquired"
	case PoisonedRecoverable:
		return "poisoned"
	default:
		return "unknown"
	}
}

// Mutex guards a value of type T and remembers whether a holder panicked
// while holding it.
type Mutex[T any] struct {
	mu       sync.Mutex
	poisoned atomic.Bool
	value    T
}

// NewMutex returns a Mutex protecting value.
func NewMutex[T any](value T) *Mutex[T] {
	return &Mutex[T]{value: value}
}

// Lock blocks until the mutex is available. Both statuses come with a valid
// guard; callers decide how to treat a poisoned value.
func (m *Mutex[T]) Lock() (*Guard[T], LockStatus) {
	m.mu.Lock()
	status := Acquired
	if m.poisoned.Load() {
		status = PoisonedRecoverable
	}
	return &Guard[T]{m: m}, status
}

// Poisoned reports whether the last holder panicked and nobody has cleared
// the flag since.
func (m *Mutex[T]) Poisoned() bool {
	return m.poisoned.Load()
}

// Guard is exclusive access to the value of a locked Mutex.
type Guard[T any] struct {
	m        *Mutex[T]
	released bool
}

// Value returns a pointer to the protected value. It must not be retained
// after Unlock.
func (g *Guard[T]) Value() *T {
	return &g.m.value
}

// ClearPoison marks the protected value as consistent again.
func (g *Guard[T]) ClearPoison() {
	g.m.poisoned.Store(false)
}

// Unlock releases the mutex. It has to be the deferred function itself
// (defer g.Unlock()), not called from inside another deferred closure:
// when the holder is panicking the mutex is marked poisoned, released, and
// the panic continues unwinding.
func (g *Guard[T]) Unlock() {
	if g.released {
		return
	}
	g.released = true
	if r := recover(); r != nil {
		g.m.poisoned.Store(true)
		g.m.mu.Unlock()
		panic(r)
	}
	g.m.mu.Unlock()
}

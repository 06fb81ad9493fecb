package runner

import (
	"errors"
	"fmt"

	"github.com/torosent/reqsim/internal/counter"
)

var (
	// ErrNegativeCount is returned by Dispatch when asked for fewer than zero units.
	ErrNegativeCount = errors.New("runner: task count must not be negative")
	// ErrDispatchInterrupted wraps the context error when launch pacing was
	// cut short. Units already launched have still been joined.
	ErrDispatchInterrupted = errors.New("runner: dispatch interrupted before all tasks launched")
)

// TaskFailure reports a unit that panicked or whose Task hook failed.
// Stack is set only for panics.
type TaskFailure struct {
	TaskID int
	Cause  error
	Stack  []byte
}

func (e *TaskFailure) Error() string {
	if len(e.Stack) > 0 {
		return fmt.Sprintf("task %d panicked: %v", e.TaskID, e.Cause)
	}
	return fmt.Sprintf("task %d failed: %v", e.TaskID, e.Cause)
}

func (e *TaskFailure) Unwrap() error {
	return e.Cause
}

// FailureKind names the failure bucket used in metrics: counter overflow,
// panic, or task error for a failing hook.
func (e *TaskFailure) FailureKind() string {
	switch {
	case errors.Is(e.Cause, counter.ErrOverflow):
		return "counter overflow"
	case e.Panicked():
		return "panic"
	default:
		return "task error"
	}
}

// Panicked reports whether the unit terminated abnormally rather than
// returning an error.
func (e *TaskFailure) Panicked() bool {
	return len(e.Stack) > 0
}

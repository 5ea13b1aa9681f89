package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderFailure marks a transient completion provider failure.
	ErrProviderFailure = errors.New("completion provider failure")
	// ErrTaskExhausted marks a task that failed on every allowed attempt.
	ErrTaskExhausted = errors.New("task retries exhausted")
)

// ProviderError wraps a failed completion call.
type ProviderError struct {
	TaskID  string
	Attempt int
	// Timeout is set when the per-call deadline expired.
	Timeout bool
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider call for task %s timed out on attempt %d: %v", e.TaskID, e.Attempt, e.Err)
	}
	return fmt.Sprintf("provider call for task %s failed on attempt %d: %v", e.TaskID, e.Attempt, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports whether target is ErrProviderFailure.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}

// TaskExhaustedError is returned once a task has used its retry budget.
type TaskExhaustedError struct {
	TaskID   string
	Attempts int
	// Err is the last provider error.
	Err error
}

func (e *TaskExhaustedError) Error() string {
	return fmt.Sprintf("task %s failed after %d attempts: %v", e.TaskID, e.Attempts, e.Err)
}

func (e *TaskExhaustedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTaskExhausted.
func (e *TaskExhaustedError) Is(target error) bool {
	return target == ErrTaskExhausted
}

package models

import (
	"encoding/json"
	"time"
)

// TaskType is the kind of step a task performs within a plan.
type TaskType string

const (
	TaskTypeAnalyze TaskType = "ANALYZE"
	TaskTypeDesign  TaskType = "DESIGN"
	TaskTypeCode    TaskType = "CODE"
	TaskTypeReview  TaskType = "REVIEW"
	TaskTypeDeploy  TaskType = "DEPLOY"
	TaskTypeTest    TaskType = "TEST"
)

// Valid returns true if the type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeAnalyze, TaskTypeDesign, TaskTypeCode, TaskTypeReview, TaskTypeDeploy, TaskTypeTest:
		return true
	default:
		return false
	}
}

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started or is waiting to retry.
	TaskStatusPending TaskStatus = "PENDING"
	// TaskStatusInProgress indicates a provider call is outstanding.
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	// TaskStatusCompleted indicates the task produced output.
	TaskStatusCompleted TaskStatus = "COMPLETED"
	// TaskStatusFailed indicates the task exhausted its retries.
	TaskStatusFailed TaskStatus = "FAILED"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true once a task can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// DefaultMaxRetries is the retry budget given to planned tasks.
const DefaultMaxRetries = 3

// Task represents one unit of work within an order's plan.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// OrderID is the order this task belongs to.
	OrderID string `json:"order_id"`
	// AgentID is the agent executing the task.
	AgentID string `json:"agent_id"`
	// Sequence is the zero-based position of the task in its plan.
	Sequence int `json:"sequence"`
	// Type is the kind of step.
	Type TaskType `json:"type"`
	// Description is the human-readable instruction for the step.
	Description string `json:"description"`
	// Input is the payload handed to the provider prompt.
	Input json.RawMessage `json:"input,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Output is the provider text, set once completed.
	Output *string `json:"output,omitempty"`
	// Error contains the last error message if the task failed.
	Error *string `json:"error,omitempty"`
	// RetryCount is the number of retries already consumed.
	RetryCount int `json:"retry_count"`
	// MaxRetries bounds RetryCount.
	MaxRetries int `json:"max_retries"`
	// DurationSeconds is the floor-rounded wall-clock time of the last attempt.
	DurationSeconds int `json:"duration_seconds"`
	// StartedAt is when the last attempt started.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// CreatedAt is when the task was planned.
	CreatedAt time.Time `json:"created_at"`
}

// OutputText returns the output or an empty string.
func (t *Task) OutputText() string {
	if t.Output == nil {
		return ""
	}
	return *t.Output
}

// ErrorText returns the error message or an empty string.
func (t *Task) ErrorText() string {
	if t.Error == nil {
		return ""
	}
	return *t.Error
}

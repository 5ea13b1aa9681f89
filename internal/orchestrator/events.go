package orchestrator

import (
	"time"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventOrderProcessing indicates an order was picked up.
	EventOrderProcessing EventType = "order_processing"
	// EventAgentAssigned indicates an agent took the order.
	EventAgentAssigned EventType = "agent_assigned"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskRetry indicates a task attempt failed and will be retried.
	EventTaskRetry EventType = "task_retry"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task exhausted its retries.
	EventTaskFailed EventType = "task_failed"
	// EventOrderCompleted indicates the order was delivered.
	EventOrderCompleted EventType = "order_completed"
	// EventOrderFailed indicates the order ended in FAILED.
	EventOrderFailed EventType = "order_failed"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// OrderID is the order the event belongs to.
	OrderID string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskType is the type of the related task, if applicable.
	TaskType models.TaskType
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure and retry events.
	Error error
	// Attempt is the retry number for retry events.
	Attempt int
	// Delay is the backoff before the next attempt for retry events.
	Delay time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

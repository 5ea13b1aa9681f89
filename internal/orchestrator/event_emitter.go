package orchestrator

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/fulfiller/internal/agent"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// EventEmitter delivers orchestrator events to a single subscriber over a
// buffered channel. A nil *EventEmitter drops everything.
type EventEmitter struct {
	events       chan OrchestratorEvent
	droppedCount atomic.Uint64
	sendTimeout  time.Duration
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events:      make(chan OrchestratorEvent, bufferSize),
		sendTimeout: 100 * time.Millisecond,
	}
}

// Emit sends an event, waiting briefly for a full buffer to drain before
// dropping it. Order processing never blocks on a slow subscriber.
func (e *EventEmitter) Emit(event OrchestratorEvent) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	timer := time.NewTimer(e.sendTimeout)
	defer timer.Stop()
	select {
	case e.events <- event:
	case <-timer.C:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[orchestrator] WARNING: event channel full, dropped event (total dropped: %d): type=%s order=%s",
				count, event.Type, event.OrderID)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	if e == nil {
		return 0
	}
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan OrchestratorEvent {
	if e == nil {
		return nil
	}
	return e.events
}

// Close closes the events channel. Emit must not be called afterwards.
func (e *EventEmitter) Close() {
	if e == nil {
		return
	}
	close(e.events)
}

// RetryHook returns an executor retry callback that reports retries as
// EventTaskRetry events.
func (e *EventEmitter) RetryHook() agent.RetryCallback {
	return func(task *models.Task, err error, delay time.Duration) {
		e.Emit(OrchestratorEvent{
			Type:     EventTaskRetry,
			OrderID:  task.OrderID,
			TaskID:   task.ID,
			TaskType: task.Type,
			AgentID:  task.AgentID,
			Error:    err,
			Attempt:  task.RetryCount,
			Delay:    delay,
		})
	}
}

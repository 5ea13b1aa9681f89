package main

import (
	"fmt"
	"sync"

	"github.com/fatih/color"

	"github.com/ShayCichocki/fulfiller/internal/orchestrator"
)

// shortID trims UUIDs for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatEvent renders an orchestrator event as one uncolored line.
func formatEvent(ev orchestrator.OrchestratorEvent) string {
	order := shortID(ev.OrderID)
	switch ev.Type {
	case orchestrator.EventOrderProcessing:
		return fmt.Sprintf("order %s: processing", order)
	case orchestrator.EventAgentAssigned:
		return fmt.Sprintf("order %s: assigned to %s", order, ev.AgentID)
	case orchestrator.EventTaskStarted:
		return fmt.Sprintf("order %s: %s started", order, ev.TaskType)
	case orchestrator.EventTaskRetry:
		return fmt.Sprintf("order %s: %s retry %d in %s: %v", order, ev.TaskType, ev.Attempt, ev.Delay, ev.Error)
	case orchestrator.EventTaskCompleted:
		return fmt.Sprintf("order %s: %s completed", order, ev.TaskType)
	case orchestrator.EventTaskFailed:
		return fmt.Sprintf("order %s: %s failed: %v", order, ev.TaskType, ev.Error)
	case orchestrator.EventOrderCompleted:
		return fmt.Sprintf("order %s: completed", order)
	case orchestrator.EventOrderFailed:
		return fmt.Sprintf("order %s: failed: %v", order, ev.Error)
	default:
		return fmt.Sprintf("order %s: %s %s", order, ev.Type, ev.Message)
	}
}

// eventColor picks the line color for an event type.
func eventColor(t orchestrator.EventType) *color.Color {
	switch t {
	case orchestrator.EventOrderCompleted, orchestrator.EventTaskCompleted:
		return color.New(color.FgGreen)
	case orchestrator.EventOrderFailed, orchestrator.EventTaskFailed:
		return color.New(color.FgRed)
	case orchestrator.EventTaskRetry:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// printEvents prints events until the channel closes. The returned
// WaitGroup completes once it has.
func printEvents(events <-chan orchestrator.OrchestratorEvent) *sync.WaitGroup {
	var wg sync.WaitGroup
	if events == nil {
		return &wg
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			ts := ev.Timestamp.Format("15:04:05")
			fmt.Printf("%s %s\n", color.HiBlackString(ts), eventColor(ev.Type).Sprint(formatEvent(ev)))
		}
	}()
	return &wg
}

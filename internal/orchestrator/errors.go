package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

var (
	// ErrNoAgentAvailable is matched by NoAgentAvailableError.
	ErrNoAgentAvailable = errors.New("no available agent")
	// ErrPlanningFailure is matched by PlanningError.
	ErrPlanningFailure = errors.New("no task plan for category")
	// ErrInvalidTransition is matched by InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOrderNotFound is returned when ProcessOrder is given an unknown ID.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTasksIncomplete is returned when a delivery is built before every
	// task has completed.
	ErrTasksIncomplete = errors.New("tasks incomplete")
)

// NoAgentAvailableError reports that no active agent of the required type
// had spare capacity.
type NoAgentAvailableError struct {
	AgentType models.AgentType
}

func (e *NoAgentAvailableError) Error() string {
	return fmt.Sprintf("No available %s agent", e.AgentType)
}

// Is reports whether target is ErrNoAgentAvailable.
func (e *NoAgentAvailableError) Is(target error) bool {
	return target == ErrNoAgentAvailable
}

// PlanningError reports a category with no task template.
type PlanningError struct {
	Category models.Category
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("no task template for category %s", e.Category)
}

// Is reports whether target is ErrPlanningFailure.
func (e *PlanningError) Is(target error) bool {
	return target == ErrPlanningFailure
}

// InvalidTransitionError reports a status change outside the order graph.
// It always indicates an orchestration bug.
type InvalidTransitionError struct {
	OrderID string
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for order %s: %s -> %s", e.OrderID, e.From, e.To)
}

// Is reports whether target is ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

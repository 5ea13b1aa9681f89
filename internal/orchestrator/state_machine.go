package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// Transition reasons recorded in status history.
const (
	ReasonProcessing   = "Order received and being processed"
	ReasonInProgress   = "AI agent is working on your order"
	ReasonCompleted    = "Order completed successfully"
	ReasonFailedPrefix = "Order failed: "
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing},
	models.OrderStatusProcessing: {models.OrderStatusInProgress, models.OrderStatusFailed},
	models.OrderStatusInProgress: {models.OrderStatusCompleted, models.OrderStatusFailed},
}

// CanTransition reports whether from -> to is an edge of the order graph.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateMachine moves orders along the status graph and keeps the audit
// trail. Each transition and its history entry are written atomically.
type StateMachine struct {
	store state.HistoryStore
	now   func() time.Time
}

// NewStateMachine creates a state machine writing to store.
func NewStateMachine(store state.HistoryStore) *StateMachine {
	return &StateMachine{store: store, now: time.Now}
}

// Transition moves order to the given status, recording reason with the
// SYSTEM actor. An edge outside the graph returns *InvalidTransitionError
// without touching the store. order is updated on success.
//
// Transition does not observe ctx cancellation so that terminal statuses
// are still written while a cancelled order unwinds.
func (m *StateMachine) Transition(_ context.Context, order *models.Order, to models.OrderStatus, reason string) error {
	from := order.Status
	if !CanTransition(from, to) {
		err := &InvalidTransitionError{OrderID: order.ID, From: from, To: to}
		log.Printf("[orchestrator] ERROR: %v", err)
		debugLog("[state] ERROR: %v", err)
		return err
	}

	now := m.now().UTC()
	entry := &models.StatusHistoryEntry{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		Actor:      models.ActorSystem,
		CreatedAt:  now,
	}
	if err := m.store.TransitionOrder(order.ID, from, to, entry); err != nil {
		return fmt.Errorf("transition order %s to %s: %w", order.ID, to, err)
	}

	order.Status = to
	order.UpdatedAt = now
	debugLog("[state] order %s %s -> %s: %s", order.ID, from, to, reason)
	return nil
}

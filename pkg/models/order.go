package models

import (
	"encoding/json"
	"time"
)

// Category is the service type a client ordered.
type Category string

const (
	// CategoryWebsite is a generated marketing or listing website.
	CategoryWebsite Category = "WEBSITE"
	// CategoryChatbot is an embeddable tenant-support chatbot.
	CategoryChatbot Category = "CHATBOT"
	// CategoryPhoneAssistant is an AI phone line for a property.
	CategoryPhoneAssistant Category = "PHONE_ASSISTANT"
	// CategoryTaxPrep is a tax preparation document package.
	CategoryTaxPrep Category = "TAX_PREP"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryWebsite,
	CategoryChatbot,
	CategoryPhoneAssistant,
	CategoryTaxPrep,
}

// Valid returns true if the category is a known value.
func (c Category) Valid() bool {
	switch c {
	case CategoryWebsite, CategoryChatbot, CategoryPhoneAssistant, CategoryTaxPrep:
		return true
	default:
		return false
	}
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was submitted but not picked up.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusProcessing indicates the order is being assigned and planned.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusInProgress indicates an agent is executing the plan.
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	// OrderStatusCompleted indicates the order was delivered.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusFailed indicates the order could not be fulfilled.
	OrderStatusFailed OrderStatus = "FAILED"
)

// Valid returns true if the status is a known value.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusInProgress,
		OrderStatusCompleted, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for statuses with no outgoing transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Order represents one client service request.
type Order struct {
	// ID is the unique identifier for this order.
	ID string `json:"id"`
	// ClientID identifies the client that submitted the order.
	ClientID string `json:"client_id"`
	// Category is the ordered service type.
	Category Category `json:"category"`
	// Requirements is the opaque structured payload submitted by the client.
	Requirements json.RawMessage `json:"requirements,omitempty"`
	// Status is the current lifecycle state.
	Status OrderStatus `json:"status"`
	// AssignedAgentID is the agent working the order, empty until assigned.
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`
	// Priority orders pending work; higher runs first.
	Priority int `json:"priority"`
	// CreatedAt is when the order was submitted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the order was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// ActorSystem is the actor recorded for orchestrator-driven transitions.
const ActorSystem = "SYSTEM"

// StatusHistoryEntry is one append-only audit record of an order transition.
type StatusHistoryEntry struct {
	ID         string      `json:"id"`
	OrderID    string      `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	Reason     string      `json:"reason"`
	Actor      string      `json:"actor"`
	CreatedAt  time.Time   `json:"created_at"`
}

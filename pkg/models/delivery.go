package models

import "time"

// DeliveryType is the shape of artifact handed to the client.
type DeliveryType string

const (
	DeliveryTypeWebsiteURL   DeliveryType = "WEBSITE_URL"
	DeliveryTypeChatbotEmbed DeliveryType = "CHATBOT_EMBED"
	DeliveryTypePhoneNumber  DeliveryType = "PHONE_NUMBER"
	DeliveryTypeDocument     DeliveryType = "DOCUMENT"
)

// DeliveryTypeFor returns the delivery type produced for a category.
func DeliveryTypeFor(c Category) DeliveryType {
	switch c {
	case CategoryWebsite:
		return DeliveryTypeWebsiteURL
	case CategoryChatbot:
		return DeliveryTypeChatbotEmbed
	case CategoryPhoneAssistant:
		return DeliveryTypePhoneNumber
	case CategoryTaxPrep:
		return DeliveryTypeDocument
	default:
		return DeliveryTypeDocument
	}
}

// DeliveryStatus represents the state of a delivery record.
type DeliveryStatus string

const (
	// DeliveryStatusDelivered is the current delivery for an order.
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	// DeliveryStatusSuperseded marks a delivery replaced by a newer one.
	DeliveryStatusSuperseded DeliveryStatus = "SUPERSEDED"
)

// DeliveryTaskResult is one task's contribution to a delivery.
type DeliveryTaskResult struct {
	Type        TaskType `json:"type"`
	Description string   `json:"description"`
	Result      string   `json:"result"`
}

// DeliveryContent is the structured body of a delivery.
type DeliveryContent struct {
	Summary string               `json:"summary"`
	Tasks   []DeliveryTaskResult `json:"tasks"`
}

// Delivery is the client-facing output bundle for a completed order.
type Delivery struct {
	// ID is the unique identifier for this delivery.
	ID string `json:"id"`
	// OrderID is the order the delivery fulfills.
	OrderID string `json:"order_id"`
	// Type is derived from the order category.
	Type DeliveryType `json:"type"`
	// Title is a short client-facing heading.
	Title string `json:"title"`
	// Description is a client-facing sentence about the delivery.
	Description string `json:"description"`
	// Content holds the summary and per-task results.
	Content DeliveryContent `json:"content"`
	// Status is DELIVERED or SUPERSEDED.
	Status DeliveryStatus `json:"status"`
	// DeliveredAt is when the delivery was created.
	DeliveredAt time.Time `json:"delivered_at"`
}

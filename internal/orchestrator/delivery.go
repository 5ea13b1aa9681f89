package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

type deliveryCopy struct {
	title       string
	description string
}

var deliveryCopies = map[models.Category]deliveryCopy{
	models.CategoryWebsite: {
		title:       "Your website is ready",
		description: "Your property website has been generated and deployed.",
	},
	models.CategoryChatbot: {
		title:       "Your chatbot is ready",
		description: "Your tenant-support chatbot is ready to embed on your site.",
	},
	models.CategoryPhoneAssistant: {
		title:       "Your phone assistant is ready",
		description: "Your AI phone assistant is configured and answering calls.",
	},
	models.CategoryTaxPrep: {
		title:       "Your tax documents are ready",
		description: "Your tax preparation package is ready for review.",
	},
}

var defaultDeliveryCopy = deliveryCopy{
	title:       "Your order is ready",
	description: "Your order has been fulfilled.",
}

// DeliveryAssembler turns completed task output into a delivery.
type DeliveryAssembler struct {
	now func() time.Time
}

// NewDeliveryAssembler creates a DeliveryAssembler.
func NewDeliveryAssembler() *DeliveryAssembler {
	return &DeliveryAssembler{now: time.Now}
}

// Build assembles the delivery for order. Every task must be COMPLETED;
// task outputs are carried verbatim in plan order.
func (a *DeliveryAssembler) Build(order *models.Order, tasks []*models.Task) (*models.Delivery, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("build delivery for order %s: no tasks: %w", order.ID, ErrTasksIncomplete)
	}

	results := make([]models.DeliveryTaskResult, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != models.TaskStatusCompleted {
			return nil, fmt.Errorf("build delivery for order %s: task %s is %s: %w",
				order.ID, t.ID, t.Status, ErrTasksIncomplete)
		}
		results = append(results, models.DeliveryTaskResult{
			Type:        t.Type,
			Description: t.Description,
			Result:      t.OutputText(),
		})
	}

	text, ok := deliveryCopies[order.Category]
	if !ok {
		text = defaultDeliveryCopy
	}

	return &models.Delivery{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		Type:        models.DeliveryTypeFor(order.Category),
		Title:       text.title,
		Description: text.description,
		Content: models.DeliveryContent{
			Summary: fmt.Sprintf("Completed %d tasks for %s order %s", len(tasks), order.Category, order.ID),
			Tasks:   results,
		},
		Status:      models.DeliveryStatusDelivered,
		DeliveredAt: a.now().UTC(),
	}, nil
}

package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// TaskSpec is one planned step before it is bound to an agent.
type TaskSpec struct {
	Type        models.TaskType
	Description string
	Input       json.RawMessage
}

type step struct {
	typ         models.TaskType
	description string
}

var (
	websitePlan = []step{
		{models.TaskTypeAnalyze, "Analyze property details and target audience"},
		{models.TaskTypeDesign, "Design website layout and visual identity"},
		{models.TaskTypeCode, "Generate website pages and copy"},
		{models.TaskTypeDeploy, "Deploy website to hosting"},
		{models.TaskTypeTest, "Verify pages render and links resolve"},
	}
	chatbotPlan = []step{
		{models.TaskTypeAnalyze, "Analyze tenant questions and support requirements"},
		{models.TaskTypeDesign, "Design conversation flows and escalation paths"},
		{models.TaskTypeCode, "Build chatbot knowledge base and responses"},
		{models.TaskTypeTest, "Test chatbot against common tenant questions"},
		{models.TaskTypeDeploy, "Generate chatbot embed code"},
	}
	phoneAssistantPlan = []step{
		{models.TaskTypeAnalyze, "Analyze call handling requirements"},
		{models.TaskTypeDesign, "Design call scripts and routing rules"},
		{models.TaskTypeCode, "Configure voice assistant responses"},
		{models.TaskTypeTest, "Test common call scenarios"},
		{models.TaskTypeDeploy, "Provision phone number and activate assistant"},
	}
	taxPrepPlan = []step{
		{models.TaskTypeAnalyze, "Analyze financial records and deductions"},
		{models.TaskTypeCode, "Prepare tax forms and schedules"},
		{models.TaskTypeReview, "Review filings for accuracy and compliance"},
		{models.TaskTypeDeploy, "Assemble final tax document package"},
	}
)

// Plan returns the ordered task specs for a category. Every task carries
// the full requirements payload. Unknown categories get an empty plan.
func Plan(category models.Category, requirements json.RawMessage) []TaskSpec {
	var steps []step
	switch category {
	case models.CategoryWebsite:
		steps = websitePlan
	case models.CategoryChatbot:
		steps = chatbotPlan
	case models.CategoryPhoneAssistant:
		steps = phoneAssistantPlan
	case models.CategoryTaxPrep:
		steps = taxPrepPlan
	default:
		return nil
	}

	specs := make([]TaskSpec, len(steps))
	for i, s := range steps {
		specs[i] = TaskSpec{
			Type:        s.typ,
			Description: s.description,
			Input:       cloneRaw(requirements),
		}
	}
	return specs
}

// newTasks binds specs to an order and agent as PENDING task records.
func newTasks(order *models.Order, agent *models.Agent, specs []TaskSpec, maxRetries int, now time.Time) []*models.Task {
	tasks := make([]*models.Task, len(specs))
	for i, spec := range specs {
		tasks[i] = &models.Task{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			AgentID:     agent.ID,
			Sequence:    i,
			Type:        spec.Type,
			Description: spec.Description,
			Input:       spec.Input,
			Status:      models.TaskStatusPending,
			MaxRetries:  maxRetries,
			CreatedAt:   now,
		}
	}
	return tasks
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

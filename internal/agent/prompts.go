package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// DefaultSystemPrompt frames every task prompt.
const DefaultSystemPrompt = `You are an AI fulfillment agent for a property management services company.
You complete one step of a client's order at a time. Earlier steps of the same
order have already been completed; build on them rather than starting over.
Respond with the work product for this step only, ready to hand to the next step.`

// Instructions holds the system prompt and per-category instruction templates
// the executor folds into each task prompt.
type Instructions struct {
	System     string                     `yaml:"system"`
	Categories map[models.Category]string `yaml:"categories"`
}

// DefaultInstructions returns the built-in instruction set.
func DefaultInstructions() *Instructions {
	return &Instructions{
		System: DefaultSystemPrompt,
		Categories: map[models.Category]string{
			models.CategoryWebsite: `Build a responsive marketing website for the client's property or business.
Use the requirements for branding, pages and listings. Output production-ready
HTML, CSS and copy, and note the hosting configuration needed to publish it.`,
			models.CategoryChatbot: `Create a tenant-support chatbot that can be embedded on the client's site.
Cover maintenance requests, rent questions and property FAQs from the requirements.
Output the conversation design, knowledge base entries and the embed snippet.`,
			models.CategoryPhoneAssistant: `Configure an AI phone assistant that answers calls for the client's properties.
Cover greetings, call routing, after-hours handling and the FAQ answers in the
requirements. Output the call flow, voice script and number provisioning notes.`,
			models.CategoryTaxPrep: `Prepare the client's property tax package from the supplied records.
Categorize income and expenses, compute depreciation and flag missing documents.
Output a clear summary suitable for review by a licensed preparer.`,
		},
	}
}

// LoadInstructions reads an instruction file and overlays it on the defaults.
// Categories missing from the file keep their built-in template.
func LoadInstructions(path string) (*Instructions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}

	var file Instructions
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse instructions: %w", err)
	}

	inst := DefaultInstructions()
	if strings.TrimSpace(file.System) != "" {
		inst.System = file.System
	}
	for category, text := range file.Categories {
		inst.Categories[category] = text
	}
	return inst, nil
}

// ForCategory returns the instruction template for a category, or an empty
// string if none is defined.
func (i *Instructions) ForCategory(c models.Category) string {
	if i == nil {
		return ""
	}
	return i.Categories[c]
}

// SystemPrompt returns the system prompt, falling back to the default.
func (i *Instructions) SystemPrompt() string {
	if i == nil || i.System == "" {
		return DefaultSystemPrompt
	}
	return i.System
}

// BuildTaskPrompt builds the user prompt for one task attempt from its
// description, type, category instructions and serialized input.
func BuildTaskPrompt(order *models.Order, task *models.Task, inst *Instructions) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Task: %s\n\n", task.Type))
	sb.WriteString(task.Description)
	sb.WriteString("\n\n")

	if text := inst.ForCategory(order.Category); text != "" {
		sb.WriteString("## Instructions\n\n")
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Requirements\n\n```json\n")
	sb.WriteString(formatInput(task.Input))
	sb.WriteString("\n```\n")

	return sb.String()
}

// formatInput pretty-prints a JSON payload, passing through anything that
// isn't valid JSON unchanged.
func formatInput(input json.RawMessage) string {
	if len(input) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return string(input)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(input)
	}
	return string(pretty)
}

package models

// AgentType is the kind of work an agent is provisioned for.
type AgentType string

const (
	AgentTypeWebsiteBuilder AgentType = "WEBSITE_BUILDER"
	AgentTypeChatbotCreator AgentType = "CHATBOT_CREATOR"
	AgentTypePhoneAI        AgentType = "PHONE_AI"
	AgentTypeTaxSpecialist  AgentType = "TAX_SPECIALIST"
	AgentTypeGeneral        AgentType = "GENERAL"
)

// Valid returns true if the type is a known value.
func (t AgentType) Valid() bool {
	switch t {
	case AgentTypeWebsiteBuilder, AgentTypeChatbotCreator, AgentTypePhoneAI,
		AgentTypeTaxSpecialist, AgentTypeGeneral:
		return true
	default:
		return false
	}
}

// RequiredAgentType returns the agent type that fulfills orders of the category.
// Unmapped categories fall back to GENERAL.
func RequiredAgentType(c Category) AgentType {
	switch c {
	case CategoryWebsite:
		return AgentTypeWebsiteBuilder
	case CategoryChatbot:
		return AgentTypeChatbotCreator
	case CategoryPhoneAssistant:
		return AgentTypePhoneAI
	case CategoryTaxPrep:
		return AgentTypeTaxSpecialist
	default:
		return AgentTypeGeneral
	}
}

// AgentStatus represents whether an agent can take more work.
type AgentStatus string

const (
	// AgentStatusAvailable indicates the agent has spare capacity.
	AgentStatusAvailable AgentStatus = "AVAILABLE"
	// AgentStatusBusy indicates the agent is at max load.
	AgentStatusBusy AgentStatus = "BUSY"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusAvailable, AgentStatusBusy:
		return true
	default:
		return false
	}
}

// Agent represents a pre-provisioned worker with bounded concurrent capacity.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id" yaml:"id"`
	// Name is a display name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Type must match the type required by an order's category.
	Type AgentType `json:"type" yaml:"type"`
	// Status is AVAILABLE or BUSY.
	Status AgentStatus `json:"status" yaml:"status,omitempty"`
	// CurrentLoad is the number of orders currently assigned.
	CurrentLoad int `json:"current_load" yaml:"current_load,omitempty"`
	// MaxLoad is the number of orders the agent may hold at once.
	MaxLoad int `json:"max_load" yaml:"max_load"`
	// Model is the completion model the agent runs on.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Config is opaque provider configuration passed through on every call.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// Active gates whether the agent may receive new assignments.
	Active bool `json:"active" yaml:"active"`
}

// HasCapacity reports whether the agent may be selected for a new assignment.
func (a *Agent) HasCapacity() bool {
	return a.Active && a.CurrentLoad < a.MaxLoad
}

// StatusForLoad returns the status implied by a load value.
func (a *Agent) StatusForLoad(load int) AgentStatus {
	if load >= a.MaxLoad {
		return AgentStatusBusy
	}
	return AgentStatusAvailable
}

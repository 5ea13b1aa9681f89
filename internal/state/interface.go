package state

import (
	"io"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// OrderStore handles order persistence.
// Reads of missing orders return (nil, nil).
type OrderStore interface {
	CreateOrder(o *models.Order) error
	GetOrder(id string) (*models.Order, error)
	ListOrders(status *models.OrderStatus) ([]models.Order, error)
	AssignOrderAgent(orderID, agentID string) error
}

// HistoryStore handles order status transitions and their audit log.
type HistoryStore interface {
	// TransitionOrder moves an order from one status to another and appends
	// the history entry in the same transaction. It returns ErrStaleStatus
	// when the stored status is not from.
	TransitionOrder(orderID string, from, to models.OrderStatus, entry *models.StatusHistoryEntry) error
	ListStatusHistory(orderID string) ([]models.StatusHistoryEntry, error)
}

// AgentFilter narrows ListAgents results. Zero values match everything.
type AgentFilter struct {
	Type       models.AgentType
	ActiveOnly bool
}

// AgentStore handles agent persistence and load accounting.
type AgentStore interface {
	CreateAgent(a *models.Agent) error
	GetAgent(id string) (*models.Agent, error)
	UpdateAgent(a *models.Agent) error
	ListAgents(filter AgentFilter) ([]models.Agent, error)
	BindClientAgent(clientID string, agentType models.AgentType, agentID string) error
	GetClientAgent(clientID string, agentType models.AgentType) (*models.Agent, error)
	// IncrementAgentLoad adds one to the agent's load if it is active and
	// below max load, returning the updated agent or ErrAgentAtCapacity.
	IncrementAgentLoad(id string) (*models.Agent, error)
	// DecrementAgentLoad removes one from the agent's load, never below zero.
	DecrementAgentLoad(id string) (*models.Agent, error)
}

// TaskStore handles task persistence.
type TaskStore interface {
	CreateTasks(tasks []*models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(t *models.Task) error
	ListTasksByOrder(orderID string) ([]models.Task, error)
}

// DeliveryStore handles delivery persistence.
type DeliveryStore interface {
	// CreateDelivery stores d and supersedes any earlier delivery for the order.
	CreateDelivery(d *models.Delivery) error
	// GetDelivery returns the current delivery for an order.
	GetDelivery(orderID string) (*models.Delivery, error)
}

// NotificationStore records notification intents.
type NotificationStore interface {
	RecordNotification(n *NotificationRecord) error
	ListNotifications(orderID string) ([]NotificationRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the full record store the orchestrator depends on.
// It composes focused sub-interfaces so components can ask for only
// what they use.
type Store interface {
	io.Closer
	Migrator
	OrderStore
	HistoryStore
	AgentStore
	TaskStore
	DeliveryStore
	NotificationStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store             = (*DB)(nil)
	_ OrderStore        = (*DB)(nil)
	_ HistoryStore      = (*DB)(nil)
	_ AgentStore        = (*DB)(nil)
	_ TaskStore         = (*DB)(nil)
	_ DeliveryStore     = (*DB)(nil)
	_ NotificationStore = (*DB)(nil)
)

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// RegistryStore is the persistence the AgentRegistry needs.
type RegistryStore interface {
	state.AgentStore
	AssignOrderAgent(orderID, agentID string) error
}

// AgentRegistry hands out agent capacity to orders.
//
// Selection and the load increment happen under one mutex, and the store
// increment is itself conditional on spare capacity, so concurrent Assign
// calls never push an agent past MaxLoad. Load held by a process that dies
// between Assign and Release is not reclaimed.
type AgentRegistry struct {
	store RegistryStore
	mu    sync.Mutex
}

// NewAgentRegistry creates a registry over store.
func NewAgentRegistry(store RegistryStore) *AgentRegistry {
	return &AgentRegistry{store: store}
}

// Assign reserves one unit of capacity on an agent able to fulfill order
// and records the assignment on the order.
//
// The client's bound agent for the required type is preferred when it is
// active and has spare capacity. Otherwise the active agent of that type
// with the lowest load wins, ties broken by ID. When nothing qualifies a
// *NoAgentAvailableError is returned and no load changes.
func (r *AgentRegistry) Assign(ctx context.Context, order *models.Order) (*models.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assign agent: %w", err)
	}

	required := models.RequiredAgentType(order.Category)

	r.mu.Lock()
	defer r.mu.Unlock()

	assigned, err := r.reserve(order.ClientID, required)
	if err != nil {
		return nil, err
	}

	if err := r.store.AssignOrderAgent(order.ID, assigned.ID); err != nil {
		if _, undoErr := r.store.DecrementAgentLoad(assigned.ID); undoErr != nil {
			log.Printf("[registry] failed to undo load on agent %s: %v", assigned.ID, undoErr)
		}
		return nil, fmt.Errorf("record assignment: %w", err)
	}
	order.AssignedAgentID = assigned.ID

	debugLog("[registry] assigned order %s to agent %s (load %d/%d)",
		order.ID, assigned.ID, assigned.CurrentLoad, assigned.MaxLoad)
	return assigned, nil
}

// reserve picks an agent and increments its load. Caller holds r.mu.
func (r *AgentRegistry) reserve(clientID string, required models.AgentType) (*models.Agent, error) {
	if clientID != "" {
		bound, err := r.store.GetClientAgent(clientID, required)
		if err != nil {
			return nil, fmt.Errorf("load client agent: %w", err)
		}
		if bound != nil && bound.Type == required && bound.HasCapacity() {
			a, err := r.store.IncrementAgentLoad(bound.ID)
			if err == nil {
				return a, nil
			}
			if !errors.Is(err, state.ErrAgentAtCapacity) {
				return nil, fmt.Errorf("reserve agent %s: %w", bound.ID, err)
			}
		}
	}

	candidates, err := r.store.ListAgents(state.AgentFilter{Type: required, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CurrentLoad != candidates[j].CurrentLoad {
			return candidates[i].CurrentLoad < candidates[j].CurrentLoad
		}
		return candidates[i].ID < candidates[j].ID
	})

	for i := range candidates {
		if !candidates[i].HasCapacity() {
			continue
		}
		a, err := r.store.IncrementAgentLoad(candidates[i].ID)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, state.ErrAgentAtCapacity) {
			return nil, fmt.Errorf("reserve agent %s: %w", candidates[i].ID, err)
		}
	}

	return nil, &NoAgentAvailableError{AgentType: required}
}

// Release returns one unit of capacity to the agent. Load never drops
// below zero.
func (r *AgentRegistry) Release(_ context.Context, a *models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, err := r.store.DecrementAgentLoad(a.ID)
	if err != nil {
		return fmt.Errorf("release agent %s: %w", a.ID, err)
	}
	debugLog("[registry] released agent %s (load %d/%d)", updated.ID, updated.CurrentLoad, updated.MaxLoad)
	return nil
}

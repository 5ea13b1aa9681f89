package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/fulfiller/internal/state"
	"github.com/ShayCichocki/fulfiller/pkg/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage the agent fleet",
	Long: `List, load and bind the pre-provisioned agents orders are assigned to.

Agents are never created on demand: an order whose required agent type has
no agent with spare capacity fails.`,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents and their load",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, _, err := openProjectStore()
		if err != nil {
			return err
		}
		defer db.Close()

		agents, err := db.ListAgents(state.AgentFilter{Type: models.AgentType(strings.ToUpper(agentsListType))})
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Println("No agents registered.")
			return nil
		}
		fmt.Println(renderTable([]string{"ID", "TYPE", "STATUS", "LOAD", "ACTIVE"}, agentRows(agents), 2))
		return nil
	},
}

var agentsLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Create or update agents from a YAML fleet file",
	Long: `Load agents from a YAML file of the form:

  agents:
    - id: web-1
      name: Website Builder
      type: WEBSITE_BUILDER
      max_load: 3
      model: claude-sonnet-4-20250514
      config: {temperature: 0.2}
      active: true

Existing agents keep their current load; the other fields are replaced.
Agents that are missing from the file are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runAgentsLoad,
}

var agentsBindCmd = &cobra.Command{
	Use:   "bind <client-id> <agent-id>",
	Short: "Prefer an agent for a client's orders",
	Long: `Bind a client to a dedicated agent. Orders from the client whose
category requires the agent's type go to that agent while it has capacity,
and fall back to the least-loaded agent of the type otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, _, err := openProjectStore()
		if err != nil {
			return err
		}
		defer db.Close()

		a, err := db.GetAgent(args[1])
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("agent %s not found", args[1])
		}
		if err := db.BindClientAgent(args[0], a.Type, a.ID); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Bound client %s to %s for %s orders", args[0], a.ID, a.Type), color.FgGreen)
		return nil
	},
}

var agentsListType string

func init() {
	agentsListCmd.Flags().StringVar(&agentsListType, "type", "", "Only list agents of this type")

	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsLoadCmd)
	agentsCmd.AddCommand(agentsBindCmd)
}

// fleetFile is the YAML layout accepted by agents load.
type fleetFile struct {
	Agents []fleetEntry `yaml:"agents"`
}

type fleetEntry struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	MaxLoad int            `yaml:"max_load"`
	Model   string         `yaml:"model"`
	Config  map[string]any `yaml:"config"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active"`
}

// parseFleet decodes and validates a fleet file.
func parseFleet(data []byte) ([]models.Agent, error) {
	var file fleetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fleet: %w", err)
	}

	seen := make(map[string]bool)
	agents := make([]models.Agent, 0, len(file.Agents))
	for i, e := range file.Agents {
		if e.ID == "" {
			return nil, fmt.Errorf("agent %d: id is required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("agent %s: duplicate id", e.ID)
		}
		seen[e.ID] = true

		typ := models.AgentType(strings.ToUpper(e.Type))
		if !typ.Valid() {
			return nil, fmt.Errorf("agent %s: unknown type %q", e.ID, e.Type)
		}
		if e.MaxLoad < 1 {
			return nil, fmt.Errorf("agent %s: max_load must be at least 1", e.ID)
		}

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		agents = append(agents, models.Agent{
			ID:      e.ID,
			Name:    e.Name,
			Type:    typ,
			MaxLoad: e.MaxLoad,
			Model:   e.Model,
			Config:  e.Config,
			Active:  active,
		})
	}
	return agents, nil
}

func runAgentsLoad(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read fleet: %w", err)
	}
	agents, err := parseFleet(data)
	if err != nil {
		return err
	}

	db, _, _, err := openProjectStore()
	if err != nil {
		return err
	}
	defer db.Close()

	created, updated, err := upsertAgents(db, agents)
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Loaded %d agents (%d new, %d updated)", len(agents), created, updated), color.FgGreen)
	return nil
}

// upsertAgents creates unknown agents and updates known ones.
func upsertAgents(store state.AgentStore, agents []models.Agent) (created, updated int, err error) {
	for i := range agents {
		a := &agents[i]
		existing, err := store.GetAgent(a.ID)
		if err != nil {
			return created, updated, err
		}
		if existing == nil {
			if err := store.CreateAgent(a); err != nil {
				return created, updated, err
			}
			created++
			continue
		}
		if err := store.UpdateAgent(a); err != nil {
			return created, updated, err
		}
		updated++
	}
	return created, updated, nil
}

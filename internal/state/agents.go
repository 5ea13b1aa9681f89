package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

const agentColumns = `id, name, type, status, current_load, max_load, model, config, active`

// CreateAgent creates a new agent. Status is derived from the load.
func (db *DB) CreateAgent(a *models.Agent) error {
	config, err := encodeAgentConfig(a.Config)
	if err != nil {
		return err
	}
	a.Status = a.StatusForLoad(a.CurrentLoad)

	_, err = db.Exec(`
		INSERT INTO agents (`+agentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, string(a.Type), string(a.Status), a.CurrentLoad, a.MaxLoad,
		a.Model, config, boolToInt(a.Active))
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (db *DB) GetAgent(id string) (*models.Agent, error) {
	row := db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)

	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// UpdateAgent updates the editable fields of an agent.
// Load is owned by IncrementAgentLoad and DecrementAgentLoad and is not
// written here; status is recomputed against the new max load. Lowering
// max load below the current load fails with ErrAgentAtCapacity.
func (db *DB) UpdateAgent(a *models.Agent) error {
	config, err := encodeAgentConfig(a.Config)
	if err != nil {
		return err
	}

	res, err := db.Exec(`
		UPDATE agents SET
			name = ?, type = ?, max_load = ?, model = ?, config = ?, active = ?,
			status = CASE WHEN current_load >= ? THEN 'BUSY' ELSE 'AVAILABLE' END
		WHERE id = ? AND current_load <= ?
	`, a.Name, string(a.Type), a.MaxLoad, a.Model, config, boolToInt(a.Active), a.MaxLoad, a.ID, a.MaxLoad)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	found, err := db.exists("agents", a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if !found {
		return fmt.Errorf("update agent %s: %w", a.ID, ErrNotFound)
	}
	return fmt.Errorf("update agent %s: max load %d is below current load: %w", a.ID, a.MaxLoad, ErrAgentAtCapacity)
}

// ListAgents lists agents matching the filter, ordered by ID.
func (db *DB) ListAgents(filter AgentFilter) ([]models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.ActiveOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// BindClientAgent binds agentID to a client for the given agent type.
// An existing binding for the same client and type is replaced.
func (db *DB) BindClientAgent(clientID string, agentType models.AgentType, agentID string) error {
	_, err := db.Exec(`
		INSERT INTO client_agents (client_id, agent_type, agent_id)
		VALUES (?, ?, ?)
		ON CONFLICT(client_id, agent_type) DO UPDATE SET agent_id = excluded.agent_id
	`, clientID, string(agentType), agentID)
	if err != nil {
		return fmt.Errorf("bind client agent: %w", err)
	}
	return nil
}

// GetClientAgent returns the agent bound to a client for the given type,
// or nil if there is no binding.
func (db *DB) GetClientAgent(clientID string, agentType models.AgentType) (*models.Agent, error) {
	row := db.QueryRow(`
		SELECT a.id, a.name, a.type, a.status, a.current_load, a.max_load, a.model, a.config, a.active
		FROM client_agents c JOIN agents a ON a.id = c.agent_id
		WHERE c.client_id = ? AND c.agent_type = ?
	`, clientID, string(agentType))

	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client agent: %w", err)
	}
	return a, nil
}

// IncrementAgentLoad adds one to an agent's load. The update is conditional
// on the agent being active and below max load, so concurrent callers can
// never push the load past capacity.
func (db *DB) IncrementAgentLoad(id string) (*models.Agent, error) {
	var agent *models.Agent
	err := db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE agents SET
				current_load = current_load + 1,
				status = CASE WHEN current_load + 1 >= max_load THEN 'BUSY' ELSE 'AVAILABLE' END
			WHERE id = ? AND active = 1 AND current_load < max_load
		`, id)
		if err != nil {
			return fmt.Errorf("increment agent load: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("increment agent %s: %w", id, ErrAgentAtCapacity)
		}

		agent, err = scanAgent(tx.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("reload agent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// DecrementAgentLoad removes one from an agent's load, flooring at zero.
func (db *DB) DecrementAgentLoad(id string) (*models.Agent, error) {
	var agent *models.Agent
	err := db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE agents SET
				current_load = MAX(current_load - 1, 0),
				status = CASE WHEN MAX(current_load - 1, 0) >= max_load THEN 'BUSY' ELSE 'AVAILABLE' END
			WHERE id = ?
		`, id)
		if err != nil {
			return fmt.Errorf("decrement agent load: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("decrement agent %s: %w", id, ErrNotFound)
		}

		agent, err = scanAgent(tx.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("reload agent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agent, nil
}

func scanAgent(r rowScanner) (*models.Agent, error) {
	var a models.Agent
	var config sql.NullString
	var active int
	if err := r.Scan(&a.ID, &a.Name, &a.Type, &a.Status, &a.CurrentLoad, &a.MaxLoad,
		&a.Model, &config, &active); err != nil {
		return nil, err
	}
	a.Active = active != 0
	if config.Valid && config.String != "" {
		if err := json.Unmarshal([]byte(config.String), &a.Config); err != nil {
			return nil, fmt.Errorf("decode agent config: %w", err)
		}
	}
	return &a, nil
}

func encodeAgentConfig(config map[string]any) (*string, error) {
	if len(config) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode agent config: %w", err)
	}
	s := string(data)
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

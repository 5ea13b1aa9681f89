package state

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

const taskColumns = `id, order_id, agent_id, sequence, type, description, input, status, output, error,
	retry_count, max_retries, duration_seconds, started_at, completed_at, created_at`

// CreateTasks persists a plan. All tasks are inserted in one transaction.
func (db *DB) CreateTasks(tasks []*models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO tasks (` + taskColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare task insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range tasks {
			if _, err := stmt.Exec(taskArgs(t)...); err != nil {
				return fmt.Errorf("create task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes the mutable execution fields of a task.
// A task that is already COMPLETED or FAILED is never rewritten; such
// writes fail with ErrTaskFinal.
func (db *DB) UpdateTask(t *models.Task) error {
	res, err := db.Exec(`
		UPDATE tasks SET
			status = ?, output = ?, error = ?, retry_count = ?, max_retries = ?,
			duration_seconds = ?, started_at = ?, completed_at = ?
		WHERE id = ? AND status NOT IN ('COMPLETED', 'FAILED')
	`, string(t.Status), t.Output, t.Error, t.RetryCount, t.MaxRetries,
		t.DurationSeconds, nullableTime(t.StartedAt), nullableTime(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	found, err := db.exists("tasks", t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if !found {
		return fmt.Errorf("update task %s: %w", t.ID, ErrNotFound)
	}
	return fmt.Errorf("update task %s: %w", t.ID, ErrTaskFinal)
}

// ListTasksByOrder returns an order's tasks in plan order.
func (db *DB) ListTasksByOrder(orderID string) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks WHERE order_id = ? ORDER BY sequence ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func taskArgs(t *models.Task) []any {
	var input *string
	if len(t.Input) > 0 {
		s := string(t.Input)
		input = &s
	}
	return []any{
		t.ID, t.OrderID, t.AgentID, t.Sequence, string(t.Type), t.Description, input,
		string(t.Status), t.Output, t.Error, t.RetryCount, t.MaxRetries, t.DurationSeconds,
		nullableTime(t.StartedAt), nullableTime(t.CompletedAt), formatTime(t.CreatedAt),
	}
}

func scanTask(r rowScanner) (*models.Task, error) {
	var t models.Task
	var input, output, errText, startedAt, completedAt sql.NullString
	var createdAt string
	if err := r.Scan(&t.ID, &t.OrderID, &t.AgentID, &t.Sequence, &t.Type, &t.Description,
		&input, &t.Status, &output, &errText, &t.RetryCount, &t.MaxRetries,
		&t.DurationSeconds, &startedAt, &completedAt, &createdAt); err != nil {
		return nil, err
	}
	if input.Valid {
		t.Input = []byte(input.String)
	}
	if output.Valid {
		s := output.String
		t.Output = &s
	}
	if errText.Valid {
		s := errText.String
		t.Error = &s
	}
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	t.CreatedAt, _ = parseTime(createdAt)
	return &t, nil
}

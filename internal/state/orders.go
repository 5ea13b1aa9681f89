package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

const orderColumns = `id, client_id, category, requirements, status, assigned_agent_id, priority, created_at, updated_at`

// CreateOrder creates a new order.
func (db *DB) CreateOrder(o *models.Order) error {
	var requirements *string
	if len(o.Requirements) > 0 {
		s := string(o.Requirements)
		requirements = &s
	}

	_, err := db.Exec(`
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.ClientID, string(o.Category), requirements, string(o.Status),
		nullableString(o.AssignedAgentID), o.Priority, formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (db *DB) GetOrder(id string) (*models.Order, error) {
	row := db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders lists orders, optionally filtered by status.
// Results are ordered by priority (highest first), then submission time.
func (db *DB) ListOrders(status *models.OrderStatus) ([]models.Order, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT `+orderColumns+` FROM orders WHERE status = ?
			ORDER BY priority DESC, created_at ASC
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT ` + orderColumns + ` FROM orders
			ORDER BY priority DESC, created_at ASC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// AssignOrderAgent records the agent assigned to an order.
func (db *DB) AssignOrderAgent(orderID, agentID string) error {
	res, err := db.Exec(`
		UPDATE orders SET assigned_agent_id = ?, updated_at = ? WHERE id = ?
	`, agentID, formatTime(time.Now()), orderID)
	if err != nil {
		return fmt.Errorf("assign order agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assign order agent %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// TransitionOrder performs a compare-and-set on the order status and appends
// the history entry. Both writes commit together or not at all.
func (db *DB) TransitionOrder(orderID string, from, to models.OrderStatus, entry *models.StatusHistoryEntry) error {
	return db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?
		`, string(to), formatTime(entry.CreatedAt), orderID, string(from))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("transition order %s from %s: %w", orderID, from, ErrStaleStatus)
		}

		_, err = tx.Exec(`
			INSERT INTO status_history (id, order_id, from_status, to_status, reason, actor, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, entry.ID, orderID, string(from), string(to), entry.Reason, entry.Actor, formatTime(entry.CreatedAt))
		if err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
		return nil
	})
}

// ListStatusHistory returns the history entries of an order in the order
// they were appended.
func (db *DB) ListStatusHistory(orderID string) ([]models.StatusHistoryEntry, error) {
	rows, err := db.Query(`
		SELECT id, order_id, from_status, to_status, reason, actor, created_at
		FROM status_history WHERE order_id = ? ORDER BY seq ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var entries []models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.Reason, &e.Actor, &createdAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		e.CreatedAt, _ = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*models.Order, error) {
	var o models.Order
	var requirements, assignedAgent sql.NullString
	var createdAt, updatedAt string
	if err := r.Scan(&o.ID, &o.ClientID, &o.Category, &requirements, &o.Status,
		&assignedAgent, &o.Priority, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if requirements.Valid {
		o.Requirements = []byte(requirements.String)
	}
	if assignedAgent.Valid {
		o.AssignedAgentID = assignedAgent.String
	}
	o.CreatedAt, _ = parseTime(createdAt)
	o.UpdatedAt, _ = parseTime(updatedAt)
	return &o, nil
}

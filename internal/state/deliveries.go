package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/fulfiller/pkg/models"
)

// CreateDelivery stores a delivery. Earlier deliveries for the same order
// are marked SUPERSEDED in the same transaction so at most one is current.
func (db *DB) CreateDelivery(d *models.Delivery) error {
	content, err := json.Marshal(d.Content)
	if err != nil {
		return fmt.Errorf("encode delivery content: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE deliveries SET status = ? WHERE order_id = ? AND status = ?
		`, string(models.DeliveryStatusSuperseded), d.OrderID, string(models.DeliveryStatusDelivered))
		if err != nil {
			return fmt.Errorf("supersede deliveries: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO deliveries (id, order_id, type, title, description, content, status, delivered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, d.ID, d.OrderID, string(d.Type), d.Title, d.Description, string(content),
			string(d.Status), formatTime(d.DeliveredAt))
		if err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		return nil
	})
}

// GetDelivery returns the current delivery for an order, or nil if none.
func (db *DB) GetDelivery(orderID string) (*models.Delivery, error) {
	row := db.QueryRow(`
		SELECT id, order_id, type, title, description, content, status, delivered_at
		FROM deliveries WHERE order_id = ? AND status = ?
		ORDER BY delivered_at DESC LIMIT 1
	`, orderID, string(models.DeliveryStatusDelivered))

	var d models.Delivery
	var content, deliveredAt string
	err := row.Scan(&d.ID, &d.OrderID, &d.Type, &d.Title, &d.Description, &content, &d.Status, &deliveredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &d.Content); err != nil {
		return nil, fmt.Errorf("decode delivery content: %w", err)
	}
	d.DeliveredAt, _ = parseTime(deliveredAt)
	return &d, nil
}

// NotificationRecord is a persisted notification intent.
type NotificationRecord struct {
	ID        string
	OrderID   string
	ClientID  string
	Kind      string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// RecordNotification persists a notification intent.
func (db *DB) RecordNotification(n *NotificationRecord) error {
	_, err := db.Exec(`
		INSERT INTO notifications (id, order_id, client_id, kind, subject, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.OrderID, n.ClientID, n.Kind, n.Subject, n.Body, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// ListNotifications returns the notifications recorded for an order, oldest first.
func (db *DB) ListNotifications(orderID string) ([]NotificationRecord, error) {
	rows, err := db.Query(`
		SELECT id, order_id, client_id, kind, subject, body, created_at
		FROM notifications WHERE order_id = ? ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []NotificationRecord
	for rows.Next() {
		var n NotificationRecord
		var createdAt string
		if err := rows.Scan(&n.ID, &n.OrderID, &n.ClientID, &n.Kind, &n.Subject, &n.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt, _ = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

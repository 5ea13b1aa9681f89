// Package notify delivers client notifications about order outcomes.
//
// Notifications are fire-and-forget from the orchestrator's point of view:
// a sink failure is logged by the caller and never changes an order's status.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/fulfiller/internal/state"
)

// Kind names the event a notification reports.
type Kind string

const (
	KindOrderCompleted Kind = "order_completed"
	KindOrderFailed    Kind = "order_failed"
)

// Notification is one message addressed to a client about an order.
type Notification struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ensureIdentity fills in ID and CreatedAt when the caller left them empty.
func (n *Notification) ensureIdentity() {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
}

// Notifier accepts notifications for delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// MemorySink stores notifications in memory for inspection and tests.
type MemorySink struct {
	mu   sync.Mutex
	sent []Notification
}

// NewMemorySink constructs an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Notify records the notification.
func (m *MemorySink) Notify(_ context.Context, n Notification) error {
	n.ensureIdentity()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns a copy of notifications seen so far.
func (m *MemorySink) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// StoreSink records notification intents in the state store.
type StoreSink struct {
	store state.NotificationStore
}

// NewStoreSink creates a sink backed by store.
func NewStoreSink(store state.NotificationStore) *StoreSink {
	return &StoreSink{store: store}
}

// Notify persists the notification.
func (s *StoreSink) Notify(_ context.Context, n Notification) error {
	n.ensureIdentity()
	rec := &state.NotificationRecord{
		ID:        n.ID,
		OrderID:   n.OrderID,
		ClientID:  n.ClientID,
		Kind:      string(n.Kind),
		Subject:   n.Subject,
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	}
	if err := s.store.RecordNotification(rec); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// Multi fans a notification out to several sinks. Every sink is tried;
// the returned error joins all sink failures.
type Multi []Notifier

// Notify delivers n to every sink.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	n.ensureIdentity()
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every notification.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(context.Context, Notification) error { return nil }

package notify

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// OrderData is the template context for order notifications.
type OrderData struct {
	OrderID       string
	ClientID      string
	Category      string
	DeliveryTitle string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// TemplateStore compiles and renders the subject and body of each kind.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[Kind]messageTemplate
}

// NewTemplateStore seeds the store with the default order templates.
// The failure body deliberately carries no internal error detail.
func NewTemplateStore() *TemplateStore {
	store := &TemplateStore{
		templates: make(map[Kind]messageTemplate),
	}
	_ = store.Register(KindOrderCompleted,
		"Your order {{.OrderID}} is complete",
		"Good news! Your {{.Category}} order {{.OrderID}} has been completed.{{if .DeliveryTitle}} {{.DeliveryTitle}}.{{end}} "+
			"You can view your delivery in your dashboard.")
	_ = store.Register(KindOrderFailed,
		"There was a problem with your order {{.OrderID}}",
		"We encountered an issue processing your {{.Category}} order {{.OrderID}}. "+
			"Our team has been notified and will follow up with you shortly.")
	return store
}

// Register adds or replaces the templates for a kind.
func (s *TemplateStore) Register(kind Kind, subject, body string) error {
	subj, err := template.New(string(kind) + "_subject").Parse(subject)
	if err != nil {
		return fmt.Errorf("parse subject template %s: %w", kind, err)
	}
	b, err := template.New(string(kind) + "_body").Parse(body)
	if err != nil {
		return fmt.Errorf("parse body template %s: %w", kind, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[kind] = messageTemplate{subject: subj, body: b}
	return nil
}

// Render builds a notification of the given kind from data.
func (s *TemplateStore) Render(kind Kind, data OrderData) (Notification, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[kind]
	s.mu.RUnlock()
	if !ok {
		return Notification{}, fmt.Errorf("template %s not found", kind)
	}

	var subject, body strings.Builder
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Notification{}, fmt.Errorf("render subject %s: %w", kind, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Notification{}, fmt.Errorf("render body %s: %w", kind, err)
	}

	return Notification{
		OrderID:  data.OrderID,
		ClientID: data.ClientID,
		Kind:     kind,
		Subject:  subject.String(),
		Body:     body.String(),
	}, nil
}

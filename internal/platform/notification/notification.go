// Package notification sends appointment text messages to patients. It
// renders templates, delivers through an SMSSender with a timeout, and keeps
// a bounded log of recent deliveries that admins can inspect and retry.
package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Template IDs for appointment messages.
const (
	TemplateAppointmentRequested = "appointment-requested"
	TemplateAppointmentScheduled = "appointment-scheduled"
	TemplateAppointmentCancelled = "appointment-cancelled"
)

// Notification represents a single outbound text message.
type Notification struct {
	ID           string            `json:"id"`
	Recipient    string            `json:"recipient"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"templateId,omitempty"`
	TemplateData map[string]string `json:"templateData,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"createdAt"`
	SentAt       *time.Time        `json:"sentAt,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template is a message body with {{key}} placeholders.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the appointment templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:   TemplateAppointmentRequested,
			Name: "Appointment Requested",
			Body: "Greetings from CarePulse. We received your appointment request for {{date}} with {{doctor}}. We will confirm it shortly.",
		},
		{
			ID:   TemplateAppointmentScheduled,
			Name: "Appointment Scheduled",
			Body: "Greetings from CarePulse. Your appointment is confirmed for {{date}} with {{doctor}}.",
		},
		{
			ID:   TemplateAppointmentCancelled,
			Name: "Appointment Cancelled",
			Body: "We regret to inform that your appointment for {{date}} is cancelled. Reason: {{reason}}.",
		},
	} {
		e.RegisterTemplate(t)
	}
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} replacement on the template body. Keys present in
// the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}

	body := t.Body
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body, nil
}

// DefaultHistorySize is how many notifications the manager remembers.
const DefaultHistorySize = 500

// Manager renders, sends and records notifications. Each delivery attempt is
// bounded by the configured timeout.
type Manager struct {
	sender    SMSSender
	templates *TemplateEngine
	timeout   time.Duration
	limit     int

	mu    sync.RWMutex
	byID  map[string]*Notification
	order []string
}

// NewManager constructs a Manager. A zero timeout means attempts are bounded
// only by the caller's context.
func NewManager(sender SMSSender, tpl *TemplateEngine, timeout time.Duration) *Manager {
	return &Manager{
		sender:    sender,
		templates: tpl,
		timeout:   timeout,
		limit:     DefaultHistorySize,
		byID:      make(map[string]*Notification),
	}
}

// SendFromTemplate renders templateID and sends it to recipient. The returned
// notification is recorded even when delivery fails; the error then wraps
// apperr.ErrNotification.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("%w: render template: %v", apperr.ErrNotification, err)
	}

	n := &Notification{
		ID:           uuid.New().String(),
		Recipient:    recipient,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	m.record(n)

	err = m.deliver(ctx, n)
	return m.snapshot(n), err
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.byID[id]
	var status string
	if ok {
		status = n.Status
	}
	m.mu.RUnlock()

	if !ok {
		return nil, apperr.NotFound("notification", id)
	}
	if status != StatusFailed {
		return nil, apperr.Invalid("status", fmt.Sprintf("notification is %s, only failed notifications can be retried", status))
	}

	err := m.deliver(ctx, n)
	return m.snapshot(n), err
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.RLock()
	to, body := n.Recipient, n.Body
	m.mu.RUnlock()

	sendErr := m.sender.SendSMS(ctx, to, body)

	m.mu.Lock()
	defer m.mu.Unlock()
	n.Attempts++
	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
		return fmt.Errorf("%w: %v", apperr.ErrNotification, sendErr)
	}
	n.Status = StatusSent
	n.Error = ""
	sentAt := time.Now().UTC()
	n.SentAt = &sentAt
	return nil
}

func (m *Manager) record(n *Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[n.ID] = n
	m.order = append(m.order, n.ID)
	if len(m.order) > m.limit {
		drop := len(m.order) - m.limit
		for _, id := range m.order[:drop] {
			delete(m.byID, id)
		}
		m.order = append([]string(nil), m.order[drop:]...)
	}
}

func (m *Manager) snapshot(n *Notification) *Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := *n
	return &out
}

// Get retrieves a notification by ID.
func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("notification", id)
	}
	return m.snapshot(n), nil
}

// List returns the most recent notifications first, optionally filtered by
// recipient and status, up to limit.
func (m *Manager) List(_ context.Context, recipient, status string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Notification
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.byID[m.order[i]]
		if recipient != "" && n.Recipient != recipient {
			continue
		}
		if status != "" && n.Status != status {
			continue
		}
		out := *n
		result = append(result, &out)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// Stats returns counts of remembered notifications grouped by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]int{StatusSent: 0, StatusFailed: 0}
	for _, n := range m.byID {
		stats[n.Status]++
	}
	return stats
}

// Templates lists the registered templates sorted by ID.
func (e *TemplateEngine) Templates() []Template {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Template, 0, len(e.templates))
	for _, t := range e.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

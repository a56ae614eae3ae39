package scheduling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/platform/websocket"
)

// Messenger sends templated text messages. *notification.Manager satisfies it.
type Messenger interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// Event types published on TopicAppointments.
const (
	TopicAppointments       = "appointments"
	EventAppointmentCreated = "appointment.created"
	EventAppointmentUpdated = "appointment.updated"
)

// ScheduleLayout formats appointment times in patient messages.
const ScheduleLayout = "Jan 2, 2006, 3:04 PM"

// Notifier tells the patient about appointment changes by SMS and feeds the
// admin live view. Failures are logged and never returned.
type Notifier struct {
	messenger Messenger
	publisher websocket.EventPublisher
	loc       *time.Location
	logger    zerolog.Logger
}

// NewNotifier builds a Notifier. Either collaborator may be nil.
func NewNotifier(m Messenger, p websocket.EventPublisher, loc *time.Location, logger zerolog.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		messenger: m,
		publisher: p,
		loc:       loc,
		logger:    logger.With().Str("component", "appointment-notifier").Logger(),
	}
}

// templateFor picks the message for an appointment that is now in a's
// status. Same-state edits of a pending appointment send nothing.
func templateFor(a *Appointment, created bool) string {
	switch a.Status {
	case StatusCancelled:
		return notification.TemplateAppointmentCancelled
	case StatusScheduled:
		return notification.TemplateAppointmentScheduled
	case StatusPending:
		if created {
			return notification.TemplateAppointmentRequested
		}
	}
	return ""
}

// AppointmentChanged sends the SMS for a and publishes the feed event. phone
// may be empty when the patient could not be resolved.
func (n *Notifier) AppointmentChanged(ctx context.Context, a *Appointment, created bool, phone string) {
	if n == nil {
		return
	}
	n.sendSMS(ctx, a, created, phone)
	n.publish(ctx, a, created)
}

func (n *Notifier) sendSMS(ctx context.Context, a *Appointment, created bool, phone string) {
	tpl := templateFor(a, created)
	if n.messenger == nil || tpl == "" {
		return
	}
	log := n.logger.With().Str("appointment_id", a.ID.String()).Str("template", tpl).Logger()
	if phone == "" {
		log.Warn().Msg("no phone number for appointment notification")
		return
	}

	data := map[string]string{
		"date":   a.Schedule.In(n.loc).Format(ScheduleLayout),
		"doctor": "Dr. " + a.PrimaryPhysician,
	}
	if a.CancellationReason != nil {
		data["reason"] = *a.CancellationReason
	}

	if _, err := n.messenger.SendFromTemplate(ctx, tpl, data, phone); err != nil {
		log.Warn().Err(err).Msg("appointment notification failed")
		return
	}
	log.Debug().Msg("appointment notification sent")
}

func (n *Notifier) publish(ctx context.Context, a *Appointment, created bool) {
	if n.publisher == nil {
		return
	}
	payload, err := json.Marshal(a)
	if err != nil {
		n.logger.Warn().Err(err).Msg("encode appointment event")
		return
	}
	typ := EventAppointmentUpdated
	if created {
		typ = EventAppointmentCreated
	}
	event := websocket.Event{
		Type:         typ,
		Topic:        TopicAppointments,
		ResourceType: "Appointment",
		ResourceID:   a.ID.String(),
		Timestamp:    time.Now().UTC(),
		Data:         payload,
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("publish appointment event")
	}
}

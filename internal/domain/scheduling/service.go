// Package scheduling implements the appointment lifecycle: booking, the
// pending/scheduled/cancelled state machine, and the admin dashboard listing.
package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/domain/intake"
	"github.com/carepulse/carepulse/internal/platform/apperr"
)

// RecentPageSize is the page size of the dashboard's recent list.
const RecentPageSize = 10

type Service struct {
	appointments AppointmentRepository
	tx           TxRunner
	patients     PatientDirectory
	validator    *intake.Validator
	notifier     *Notifier
	logger       zerolog.Logger
}

// NewService wires the service. notifier may be nil.
func NewService(appts AppointmentRepository, tx TxRunner, patients PatientDirectory,
	v *intake.Validator, notifier *Notifier, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appts,
		tx:           tx,
		patients:     patients,
		validator:    v,
		notifier:     notifier,
		logger:       logger.With().Str("component", "scheduling").Logger(),
	}
}

// CreateAppointment books an appointment for a patient owned by the form's
// user.
func (s *Service) CreateAppointment(ctx context.Context, f intake.CreateAppointmentForm) (*Appointment, error) {
	req, err := s.validator.CreateAppointment(f)
	if err != nil {
		return nil, err
	}

	ref, err := s.patients.Patient(ctx, req.PatientID)
	if err != nil {
		return nil, apperr.Persistence("get patient", err)
	}
	if ref.UserID != req.UserID {
		return nil, apperr.Invalid("patientId", "Patient does not belong to this user")
	}

	a := &Appointment{
		UserID:           req.UserID,
		PatientID:        req.PatientID,
		PrimaryPhysician: req.PrimaryPhysician,
		Reason:           req.Reason,
		Schedule:         req.Schedule,
		Status:           Status(req.Status),
		Note:             req.Note,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, apperr.Persistence("create appointment", err)
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("status", string(a.Status)).
		Msg("appointment booked")
	s.notifier.AppointmentChanged(ctx, a, true, ref.Phone)
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("get appointment", err)
	}
	return a, nil
}

// UpdateAppointment applies p to the appointment. The status transition is
// checked first, then the patch is validated with the form of the target
// state: cancelling requires a reason and any other target forbids one.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, p Patch) (*Appointment, error) {
	var updated *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cur, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return apperr.Persistence("get appointment", err)
		}

		target := cur.Status
		if p.Status != nil {
			if target, err = ParseStatus(*p.Status); err != nil {
				return apperr.Invalid("status", "Status must be pending, scheduled or cancelled")
			}
		}
		if err := CheckTransition(cur.Status, target); err != nil {
			return err
		}

		next, err := s.apply(*cur, target, p)
		if err != nil {
			return err
		}
		if err := s.appointments.Update(ctx, next); err != nil {
			return apperr.Persistence("update appointment", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("update appointment", err)
	}

	s.logger.Info().
		Str("appointment_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Msg("appointment updated")
	s.notifier.AppointmentChanged(ctx, updated, false, s.patientPhone(ctx, updated.PatientID))
	return updated, nil
}

func (s *Service) apply(a Appointment, target Status, p Patch) (*Appointment, error) {
	if target == StatusCancelled {
		if ve := cancelOnly(p); ve != nil {
			return nil, ve
		}
		c, err := s.validator.CancelAppointment(intake.CancelAppointmentForm{
			CancellationReason: deref(p.CancellationReason),
		})
		if err != nil {
			return nil, err
		}
		a.Status = StatusCancelled
		a.CancellationReason = &c.Reason
		return &a, nil
	}

	if p.CancellationReason != nil && strings.TrimSpace(*p.CancellationReason) != "" {
		return nil, apperr.Invalid("cancellationReason", "Cancellation reason is only allowed when cancelling")
	}

	form := intake.ScheduleAppointmentForm{
		PrimaryPhysician: a.PrimaryPhysician,
		Schedule:         a.Schedule.UTC().Format(time.RFC3339),
		Reason:           p.Reason,
		Note:             p.Note,
	}
	if p.PrimaryPhysician != nil {
		form.PrimaryPhysician = *p.PrimaryPhysician
	}
	if p.Schedule != nil {
		form.Schedule = *p.Schedule
	}
	r, err := s.validator.ScheduleAppointment(form)
	if err != nil {
		return nil, err
	}

	a.Status = target
	a.PrimaryPhysician = r.PrimaryPhysician
	a.Schedule = r.Schedule
	if r.Reason != nil {
		a.Reason = *r.Reason
	}
	if p.Note != nil {
		a.Note = r.Note
	}
	a.CancellationReason = nil
	return &a, nil
}

// cancelOnly reports the fields of p that a cancellation cannot change.
func cancelOnly(p Patch) error {
	ve := &apperr.ValidationError{}
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"primaryPhysician", p.PrimaryPhysician},
		{"schedule", p.Schedule},
		{"reason", p.Reason},
		{"note", p.Note},
	} {
		if f.v != nil && strings.TrimSpace(*f.v) != "" {
			ve.Add(f.name, "Cannot be changed when cancelling")
		}
	}
	return ve.OrNil()
}

// ScheduleAppointment confirms an appointment, optionally changing its
// doctor, time, reason or note. Blank form fields keep the current values.
func (s *Service) ScheduleAppointment(ctx context.Context, id uuid.UUID, f intake.ScheduleAppointmentForm) (*Appointment, error) {
	status := string(StatusScheduled)
	p := Patch{Status: &status, Reason: f.Reason, Note: f.Note}
	if v := strings.TrimSpace(f.PrimaryPhysician); v != "" {
		p.PrimaryPhysician = &v
	}
	if v := strings.TrimSpace(f.Schedule); v != "" {
		p.Schedule = &v
	}
	return s.UpdateAppointment(ctx, id, p)
}

// CancelAppointment cancels an appointment with the given reason.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, f intake.CancelAppointmentForm) (*Appointment, error) {
	status := string(StatusCancelled)
	return s.UpdateAppointment(ctx, id, Patch{Status: &status, CancellationReason: &f.CancellationReason})
}

// ListAppointments returns a page of appointments, newest schedule first,
// with per-status counts over the non-status criteria of f.
func (s *Service) ListAppointments(ctx context.Context, f Filter) (*Listing, error) {
	items, total, err := s.appointments.Search(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list appointments", err)
	}
	counts, err := s.appointments.CountByStatus(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("count appointments", err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return &Listing{Appointments: items, Total: total, Counts: counts}, nil
}

// RecentAppointments is the dashboard view: the latest appointments and the
// counts over all of them.
func (s *Service) RecentAppointments(ctx context.Context) (*Listing, error) {
	return s.ListAppointments(ctx, Filter{Limit: RecentPageSize})
}

// ResolvePatient returns the patient owned by userID.
func (s *Service) ResolvePatient(ctx context.Context, userID uuid.UUID) (*PatientRef, error) {
	ref, err := s.patients.PatientByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("get patient by user", err)
	}
	return ref, nil
}

func (s *Service) patientPhone(ctx context.Context, patientID uuid.UUID) string {
	ref, err := s.patients.Patient(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("resolve patient for notification")
		return ""
	}
	return ref.Phone
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/domain/intake"
	"github.com/carepulse/carepulse/internal/domain/roster"
	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/platform/validation"
	"github.com/carepulse/carepulse/internal/platform/websocket"
	"github.com/carepulse/carepulse/internal/testutil/fixtures"
)

// fakeDirectory resolves patients from a map.
type fakeDirectory struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*PatientRef
}

func (d *fakeDirectory) add(ref *PatientRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patients[ref.ID] = ref
}

func (d *fakeDirectory) Patient(_ context.Context, id uuid.UUID) (*PatientRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.patients[id]; ok {
		return p, nil
	}
	return nil, apperr.NotFound("patient", id.String())
}

func (d *fakeDirectory) PatientByUser(_ context.Context, userID uuid.UUID) (*PatientRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, apperr.NotFound("patient", "user "+userID.String())
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []websocket.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]websocket.Event(nil), p.events...)
}

type testEnv struct {
	svc       *Service
	repo      *MemoryAppointmentRepo
	dir       *fakeDirectory
	sms       *notification.MockSMSSender
	manager   *notification.Manager
	published *recordingPublisher
	patient   *PatientRef
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:      NewMemoryAppointmentRepo(),
		dir:       &fakeDirectory{patients: make(map[uuid.UUID]*PatientRef)},
		sms:       &notification.MockSMSSender{},
		published: &recordingPublisher{},
	}
	env.patient = &PatientRef{ID: uuid.New(), UserID: uuid.New(), Name: "Jane Smith", Phone: "+1987654321"}
	env.dir.add(env.patient)

	env.manager = notification.NewManager(env.sms, notification.NewTemplateEngine(), time.Second)
	n := NewNotifier(env.manager, env.published, time.UTC, zerolog.Nop())
	v := intake.NewValidator(roster.Default(), validation.WithClock(fixtures.Now))
	env.svc = NewService(env.repo, &LockingTx{}, env.dir, v, n, zerolog.Nop())
	return env
}

func (env *testEnv) book(t *testing.T, sample fixtures.Appointment) *Appointment {
	t.Helper()
	f := fixtures.CreateAppointment(sample, env.patient.UserID, env.patient.ID, fixtures.Clock)
	a, err := env.svc.CreateAppointment(context.Background(), f)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	return a
}

func strPtr(s string) *string { return &s }

// -- Create --

func TestCreateAppointment(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	if a.ID == uuid.Nil {
		t.Error("expected an id to be assigned")
	}
	if a.Status != StatusPending {
		t.Errorf("expected pending, got %s", a.Status)
	}
	if a.PrimaryPhysician != "Leila Cameron" {
		t.Errorf("expected roster name, got %q", a.PrimaryPhysician)
	}
	if a.CancellationReason != nil {
		t.Error("expected no cancellation reason")
	}

	stored, err := env.svc.GetAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if stored.Reason != "Follow-up consultation" {
		t.Errorf("unexpected reason %q", stored.Reason)
	}
}

func TestCreateAppointment_DefaultsToPending(t *testing.T) {
	env := newTestEnv()
	f := fixtures.CreateAppointment(fixtures.ValidAppointment, env.patient.UserID, env.patient.ID, fixtures.Clock)
	f.Status = ""

	a, err := env.svc.CreateAppointment(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusPending {
		t.Errorf("expected pending, got %s", a.Status)
	}
}

func TestCreateAppointment_SendsRequestedSMS(t *testing.T) {
	env := newTestEnv()
	env.book(t, fixtures.PendingAppointment)

	calls := env.sms.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 sms, got %d", len(calls))
	}
	if calls[0].To != env.patient.Phone {
		t.Errorf("expected sms to %s, got %s", env.patient.Phone, calls[0].To)
	}
	if !strings.Contains(calls[0].Body, "Dr. Leila Cameron") {
		t.Errorf("expected doctor in body, got %q", calls[0].Body)
	}

	events := env.published.Events()
	if len(events) != 1 || events[0].Type != EventAppointmentCreated || events[0].Topic != TopicAppointments {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestCreateAppointment_ValidationError(t *testing.T) {
	env := newTestEnv()
	f := fixtures.CreateAppointment(fixtures.ValidAppointment, env.patient.UserID, env.patient.ID, fixtures.Clock)
	f.PrimaryPhysician = "Dr. Nobody"
	f.Schedule = fixtures.Clock.Add(-time.Hour).Format(time.RFC3339)
	f.Reason = ""

	_, err := env.svc.CreateAppointment(context.Background(), f)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"primaryPhysician", "schedule", "reason"} {
		if !ve.Has(field) {
			t.Errorf("expected error on %s, got %v", field, ve)
		}
	}
	if total, _ := env.repo.CountByStatus(context.Background(), Filter{}); total.Total != 0 {
		t.Error("expected nothing to be stored")
	}
}

func TestCreateAppointment_UnknownPatient(t *testing.T) {
	env := newTestEnv()
	f := fixtures.CreateAppointment(fixtures.ValidAppointment, env.patient.UserID, uuid.New(), fixtures.Clock)

	_, err := env.svc.CreateAppointment(context.Background(), f)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAppointment_PatientOfAnotherUser(t *testing.T) {
	env := newTestEnv()
	f := fixtures.CreateAppointment(fixtures.ValidAppointment, uuid.New(), env.patient.ID, fixtures.Clock)

	_, err := env.svc.CreateAppointment(context.Background(), f)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !ve.Has("patientId") {
		t.Fatalf("expected patientId validation error, got %v", err)
	}
}

func TestCreateAppointment_NotificationFailureDoesNotFail(t *testing.T) {
	env := newTestEnv()
	env.sms.SetFailing(true)

	a := env.book(t, fixtures.ValidAppointment)
	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", a.Status)
	}
	stats := env.manager.Stats(context.Background())
	if stats[notification.StatusFailed] != 1 {
		t.Errorf("expected a failed notification, got %v", stats)
	}
}

// -- Update --

func TestScheduleAppointment(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	newTime := fixtures.Clock.Add(20 * 24 * time.Hour).Truncate(time.Minute)
	got, err := env.svc.ScheduleAppointment(context.Background(), a.ID, intake.ScheduleAppointmentForm{
		PrimaryPhysician: "Dr. Green",
		Schedule:         newTime.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", got.Status)
	}
	if got.PrimaryPhysician != "John Green" {
		t.Errorf("expected John Green, got %q", got.PrimaryPhysician)
	}
	if !got.Schedule.Equal(newTime) {
		t.Errorf("expected schedule %v, got %v", newTime, got.Schedule)
	}
	if got.Reason != a.Reason {
		t.Errorf("expected reason to be kept, got %q", got.Reason)
	}

	calls := env.sms.Calls()
	last := calls[len(calls)-1]
	if !strings.Contains(last.Body, "confirmed") || !strings.Contains(last.Body, "Dr. John Green") {
		t.Errorf("unexpected confirmation sms %q", last.Body)
	}
}

func TestScheduleAppointment_KeepsCurrentValues(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	got, err := env.svc.ScheduleAppointment(context.Background(), a.ID, intake.ScheduleAppointmentForm{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PrimaryPhysician != a.PrimaryPhysician || !got.Schedule.Equal(a.Schedule) {
		t.Errorf("expected doctor and time to be kept, got %+v", got)
	}
}

func TestScheduleAppointment_AllowsPastTime(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	_, err := env.svc.ScheduleAppointment(context.Background(), a.ID, intake.ScheduleAppointmentForm{
		PrimaryPhysician: "Dr. Green",
		Schedule:         fixtures.Clock.Add(-48 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("expected rescheduling into the past to be allowed, got %v", err)
	}
}

func TestCancelAppointment(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.CancelledAppointment)

	got, err := env.svc.CancelAppointment(context.Background(), a.ID, intake.CancelAppointmentForm{
		CancellationReason: fixtures.CancellationReason(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.CancellationReason == nil || *got.CancellationReason != "Patient has flu symptoms" {
		t.Errorf("unexpected reason %v", got.CancellationReason)
	}

	calls := env.sms.Calls()
	last := calls[len(calls)-1]
	if !strings.Contains(last.Body, "cancelled") || !strings.Contains(last.Body, "Patient has flu symptoms") {
		t.Errorf("unexpected cancellation sms %q", last.Body)
	}
}

func TestCancelAppointment_RequiresReason(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	_, err := env.svc.CancelAppointment(context.Background(), a.ID, intake.CancelAppointmentForm{})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !ve.Has("cancellationReason") {
		t.Fatalf("expected cancellationReason error, got %v", err)
	}

	stored, _ := env.svc.GetAppointment(context.Background(), a.ID)
	if stored.Status != StatusPending {
		t.Errorf("expected appointment to stay pending, got %s", stored.Status)
	}
}

func TestUpdateAppointment_CancelledIsTerminal(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.CancelledAppointment)
	ctx := context.Background()
	if _, err := env.svc.CancelAppointment(ctx, a.ID, intake.CancelAppointmentForm{CancellationReason: "Sick"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, status := range []string{"scheduled", "pending", "cancelled"} {
		_, err := env.svc.UpdateAppointment(ctx, a.ID, Patch{Status: strPtr(status), CancellationReason: strPtr("Again")})
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestUpdateAppointment_ScheduledToPendingRejected(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.ValidAppointment)

	_, err := env.svc.UpdateAppointment(context.Background(), a.ID, Patch{Status: strPtr("pending")})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateAppointment_ReasonOnlyWhenCancelling(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	_, err := env.svc.UpdateAppointment(context.Background(), a.ID, Patch{
		Status:             strPtr("scheduled"),
		CancellationReason: strPtr("No reason"),
	})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !ve.Has("cancellationReason") {
		t.Fatalf("expected cancellationReason error, got %v", err)
	}
}

func TestUpdateAppointment_BadStatus(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	_, err := env.svc.UpdateAppointment(context.Background(), a.ID, Patch{Status: strPtr("booked")})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !ve.Has("status") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestUpdateAppointment_PendingEditSendsNoSMS(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)
	before := len(env.sms.Calls())

	got, err := env.svc.UpdateAppointment(context.Background(), a.ID, Patch{Note: strPtr("Bring previous results")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusPending || got.Note == nil || *got.Note != "Bring previous results" {
		t.Errorf("unexpected appointment %+v", got)
	}
	if len(env.sms.Calls()) != before {
		t.Error("expected no sms for a pending edit")
	}
	if n := len(env.published.Events()); n != 2 {
		t.Errorf("expected create and update events, got %d", n)
	}
}

// failingTx fails before the unit of work runs, like a pool that cannot
// begin a transaction.
type failingTx struct{ err error }

func (f failingTx) InTx(context.Context, func(context.Context) error) error {
	return fmt.Errorf("begin transaction: %w", f.err)
}

func TestUpdateAppointment_StoreUnavailable(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	v := intake.NewValidator(roster.Default(), validation.WithClock(fixtures.Now))
	svc := NewService(env.repo, failingTx{err: errors.New("connection refused")}, env.dir, v, nil, zerolog.Nop())

	_, err := svc.CancelAppointment(context.Background(), a.ID, intake.CancelAppointmentForm{CancellationReason: "Sick"})
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if status, _ := apperr.Status(err); status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", status)
	}
}

func TestUpdateAppointment_CancelRejectsOtherFields(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.ValidAppointment)

	_, err := env.svc.UpdateAppointment(context.Background(), a.ID, Patch{
		Status:             strPtr("cancelled"),
		CancellationReason: strPtr("Doctor unavailable"),
		PrimaryPhysician:   strPtr("Alex Ramirez"),
		Note:               strPtr("Call first"),
	})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !ve.Has("primaryPhysician") || !ve.Has("note") {
		t.Fatalf("expected primaryPhysician and note errors, got %v", err)
	}

	got, err := env.svc.GetAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Status != a.Status || got.PrimaryPhysician != a.PrimaryPhysician {
		t.Errorf("expected the appointment unchanged, got %+v", got)
	}
}

func TestUpdateAppointment_NotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.UpdateAppointment(context.Background(), uuid.New(), Patch{Status: strPtr("scheduled")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAppointment_ConcurrentCancels(t *testing.T) {
	env := newTestEnv()
	a := env.book(t, fixtures.PendingAppointment)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CancelAppointment(context.Background(), a.ID, intake.CancelAppointmentForm{CancellationReason: "Sick"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("expected exactly one cancel to succeed, got %d", succeeded)
	}
}

// -- Listing --

func TestListAppointments_CountsIgnoreStatusFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.book(t, fixtures.ValidAppointment)
	env.book(t, fixtures.PendingAppointment)
	c := env.book(t, fixtures.CancelledAppointment)
	if _, err := env.svc.CancelAppointment(ctx, c.ID, intake.CancelAppointmentForm{CancellationReason: "Sick"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	l, err := env.svc.ListAppointments(ctx, Filter{Status: StatusPending, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Total != 1 || len(l.Appointments) != 1 {
		t.Errorf("expected one pending appointment, got total=%d len=%d", l.Total, len(l.Appointments))
	}
	want := Counts{Scheduled: 1, Pending: 1, Cancelled: 1, Total: 3}
	if l.Counts != want {
		t.Errorf("got counts %+v, want %+v", l.Counts, want)
	}
}

func TestRecentAppointments_OrderAndLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	for i := 0; i < RecentPageSize+2; i++ {
		f := fixtures.CreateAppointment(fixtures.PendingAppointment, env.patient.UserID, env.patient.ID,
			fixtures.Clock.Add(time.Duration(i)*time.Hour))
		if _, err := env.svc.CreateAppointment(ctx, f); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	l, err := env.svc.RecentAppointments(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l.Appointments) != RecentPageSize {
		t.Fatalf("expected %d appointments, got %d", RecentPageSize, len(l.Appointments))
	}
	if l.Total != RecentPageSize+2 || l.Counts.Pending != RecentPageSize+2 {
		t.Errorf("unexpected totals: total=%d counts=%+v", l.Total, l.Counts)
	}
	for i := 1; i < len(l.Appointments); i++ {
		if l.Appointments[i].Schedule.After(l.Appointments[i-1].Schedule) {
			t.Fatal("expected newest schedule first")
		}
	}
}

func TestListAppointments_Empty(t *testing.T) {
	env := newTestEnv()
	l, err := env.svc.ListAppointments(context.Background(), Filter{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Appointments == nil || len(l.Appointments) != 0 || l.Counts.Total != 0 {
		t.Errorf("expected an empty listing, got %+v", l)
	}
}

func TestNotifier_NilIsSafe(t *testing.T) {
	var n *Notifier
	n.AppointmentChanged(context.Background(), &Appointment{}, true, "+1987654321")
}

func TestTemplateFor(t *testing.T) {
	tests := []struct {
		status  Status
		created bool
		want    string
	}{
		{StatusPending, true, notification.TemplateAppointmentRequested},
		{StatusPending, false, ""},
		{StatusScheduled, true, notification.TemplateAppointmentScheduled},
		{StatusScheduled, false, notification.TemplateAppointmentScheduled},
		{StatusCancelled, false, notification.TemplateAppointmentCancelled},
	}
	for _, tt := range tests {
		if got := templateFor(&Appointment{Status: tt.status}, tt.created); got != tt.want {
			t.Errorf("templateFor(%s, %v) = %q, want %q", tt.status, tt.created, got, tt.want)
		}
	}
}

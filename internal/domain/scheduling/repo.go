package scheduling

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AppointmentRepository stores appointments. Lookups and updates of a
// missing row report apperr.ErrNotFound.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// Search returns a page ordered by schedule descending and the number of
	// rows matching f.
	Search(ctx context.Context, f Filter) ([]*Appointment, int, error)
	// CountByStatus tallies the rows matching f, ignoring f.Status and paging.
	CountByStatus(ctx context.Context, f Filter) (Counts, error)
}

// TxRunner runs a read-modify-write unit of work atomically.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LockingTx serializes units of work with a mutex. It stands in for a
// database transaction when appointments live in memory.
type LockingTx struct {
	mu sync.Mutex
}

func (t *LockingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// PatientRef is what scheduling needs to know about a patient.
type PatientRef struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
	Phone  string
}

// PatientDirectory resolves patients owned by the patient domain.
type PatientDirectory interface {
	Patient(ctx context.Context, id uuid.UUID) (*PatientRef, error)
	PatientByUser(ctx context.Context, userID uuid.UUID) (*PatientRef, error)
}

package scheduling

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

// MemoryAppointmentRepo is an AppointmentRepository kept in process memory.
type MemoryAppointmentRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Appointment
}

func NewMemoryAppointmentRepo() *MemoryAppointmentRepo {
	return &MemoryAppointmentRepo{items: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	a.ID = uuid.New()
	a.CreatedAt, a.UpdatedAt = now, now
	r.items[a.ID] = *a
	return nil
}

func (r *MemoryAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("appointment", id.String())
	}
	return &a, nil
}

func (r *MemoryAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID]; !ok {
		return apperr.NotFound("appointment", a.ID.String())
	}
	a.UpdatedAt = time.Now().UTC()
	r.items[a.ID] = *a
	return nil
}

func matches(a Appointment, f Filter, withStatus bool) bool {
	if withStatus && f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.UserID != nil && a.UserID != *f.UserID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.Physician != "" && !strings.EqualFold(a.PrimaryPhysician, f.Physician) {
		return false
	}
	return true
}

func (r *MemoryAppointmentRepo) Search(_ context.Context, f Filter) ([]*Appointment, int, error) {
	r.mu.RLock()
	var all []*Appointment
	for _, a := range r.items {
		if matches(a, f, true) {
			a := a
			all = append(all, &a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Schedule.Equal(all[j].Schedule) {
			return all[i].Schedule.After(all[j].Schedule)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return all[f.Offset:end], total, nil
}

func (r *MemoryAppointmentRepo) CountByStatus(_ context.Context, f Filter) (Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var counts Counts
	for _, a := range r.items {
		if matches(a, f, false) {
			counts.add(a.Status, 1)
		}
	}
	return counts, nil
}

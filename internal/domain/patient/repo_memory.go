package patient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

// MemoryUserRepo is a UserRepository kept in process memory. It enforces the
// same uniqueness as the user_account indexes.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[uuid.UUID]User)}
}

func (r *MemoryUserRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Phone == u.Phone {
			return fmt.Errorf("user %s: %w", u.Email, apperr.ErrDuplicateIdentity)
		}
	}
	now := time.Now().UTC()
	u.ID = uuid.New()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id.String())
	}
	return &u, nil
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	return r.find("user", email, func(u User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryUserRepo) FindByPhone(_ context.Context, phone string) (*User, error) {
	return r.find("user", phone, func(u User) bool { return u.Phone == phone })
}

func (r *MemoryUserRepo) find(kind, key string, match func(User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, apperr.NotFound(kind, key)
}

// MemoryPatientRepo is a PatientRepository kept in process memory.
type MemoryPatientRepo struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]Patient
	byUser   map[uuid.UUID]uuid.UUID
}

func NewMemoryPatientRepo() *MemoryPatientRepo {
	return &MemoryPatientRepo{
		patients: make(map[uuid.UUID]Patient),
		byUser:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *MemoryPatientRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[p.UserID]; ok {
		return fmt.Errorf("patient for user %s: %w", p.UserID, apperr.ErrConflict)
	}
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	r.patients[p.ID] = *p
	r.byUser[p.UserID] = p.ID
	return nil
}

func (r *MemoryPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id.String())
	}
	return &p, nil
}

func (r *MemoryPatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, apperr.NotFound("patient for user", userID.String())
	}
	p := r.patients[id]
	return &p, nil
}

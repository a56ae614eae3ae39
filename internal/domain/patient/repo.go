package patient

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository stores identities. Create reports apperr.ErrDuplicateIdentity
// when the email or phone is already taken; lookups report apperr.ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
}

// PatientRepository stores patient records, at most one per user. Create
// reports apperr.ErrConflict when the user already has one.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
}

package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/internal/platform/db"
)

// -- User Repository --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, name, email, phone, created_at, updated_at`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO user_account (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.Phone,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, apperr.ErrDuplicateIdentity)
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "user", id.String(), `SELECT `+userCols+` FROM user_account WHERE id = $1`, id)
}

func (r *userRepoPG) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "user", email, `SELECT `+userCols+` FROM user_account WHERE lower(email) = lower($1)`, email)
}

func (r *userRepoPG) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getOne(ctx, "user", phone, `SELECT `+userCols+` FROM user_account WHERE phone = $1`, phone)
}

func (r *userRepoPG) getOne(ctx context.Context, kind, key, query string, arg interface{}) (*User, error) {
	var u User
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(kind, key)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, user_id, name, email, phone, birth_date, gender, address, occupation,
	emergency_contact_name, emergency_contact_number, primary_physician,
	insurance_provider, insurance_policy_number,
	allergies, current_medication, family_medical_history, past_medical_history,
	identification_type, identification_number, identification_document_id, identification_document_url,
	treatment_consent, disclosure_consent, privacy_consent,
	created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (
			id, user_id, name, email, phone, birth_date, gender, address, occupation,
			emergency_contact_name, emergency_contact_number, primary_physician,
			insurance_provider, insurance_policy_number,
			allergies, current_medication, family_medical_history, past_medical_history,
			identification_type, identification_number, identification_document_id, identification_document_url,
			treatment_consent, disclosure_consent, privacy_consent
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,
			$10,$11,$12,
			$13,$14,
			$15,$16,$17,$18,
			$19,$20,$21,$22,
			$23,$24,$25
		)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Name, p.Email, p.Phone, p.BirthDate, p.Gender, p.Address, p.Occupation,
		p.EmergencyContactName, p.EmergencyContactNumber, p.PrimaryPhysician,
		p.InsuranceProvider, p.InsurancePolicyNumber,
		p.Allergies, p.CurrentMedication, p.FamilyMedicalHistory, p.PastMedicalHistory,
		p.IdentificationType, p.IdentificationNumber, p.IdentificationDocumentID, p.IdentificationDocumentURL,
		p.TreatmentConsent, p.DisclosureConsent, p.PrivacyConsent,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("patient for user %s: %w", p.UserID, apperr.ErrConflict)
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", id.String())
	}
	return p, err
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient for user", userID.String())
	}
	return p, err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Email, &p.Phone, &p.BirthDate, &p.Gender, &p.Address, &p.Occupation,
		&p.EmergencyContactName, &p.EmergencyContactNumber, &p.PrimaryPhysician,
		&p.InsuranceProvider, &p.InsurancePolicyNumber,
		&p.Allergies, &p.CurrentMedication, &p.FamilyMedicalHistory, &p.PastMedicalHistory,
		&p.IdentificationType, &p.IdentificationNumber, &p.IdentificationDocumentID, &p.IdentificationDocumentURL,
		&p.TreatmentConsent, &p.DisclosureConsent, &p.PrivacyConsent,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

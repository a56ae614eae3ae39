// Package patient implements the identity and registration steps of the
// intake flow: creating or finding a user, then registering that user as a
// patient with an optional identification document.
package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/domain/intake"
	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/internal/platform/blobstore"
)

type Service struct {
	users     UserRepository
	patients  PatientRepository
	blobs     blobstore.BlobStore
	validator *intake.Validator
	baseURL   string
	logger    zerolog.Logger
}

// NewService wires the service. baseURL is used to build the download URL
// stored with an identification document.
func NewService(users UserRepository, patients PatientRepository, blobs blobstore.BlobStore,
	v *intake.Validator, baseURL string, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		patients:  patients,
		blobs:     blobs,
		validator: v,
		baseURL:   baseURL,
		logger:    logger.With().Str("component", "patient").Logger(),
	}
}

// -- User --

// CreateUser returns the identity matching the form's email or phone,
// creating it when none exists.
func (s *Service) CreateUser(ctx context.Context, f intake.UserForm) (*User, error) {
	u, _, err := s.EnsureUser(ctx, f)
	return u, err
}

// EnsureUser is CreateUser that also reports whether a new identity was
// created.
func (s *Service) EnsureUser(ctx context.Context, f intake.UserForm) (*User, bool, error) {
	in, err := s.validator.User(f)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.findUser(ctx, in)
	if err != nil || existing != nil {
		return existing, false, err
	}

	u := &User{Name: in.Name, Email: in.Email, Phone: in.Phone}
	err = s.users.Create(ctx, u)
	if errors.Is(err, apperr.ErrDuplicateIdentity) {
		// Lost a race with a concurrent create of the same identity.
		winner, ferr := s.findUser(ctx, in)
		if ferr != nil {
			return nil, false, ferr
		}
		if winner != nil {
			return winner, false, nil
		}
		return nil, false, apperr.Persistence("create user", err)
	}
	if err != nil {
		return nil, false, apperr.Persistence("create user", err)
	}
	return u, true, nil
}

func (s *Service) findUser(ctx context.Context, in intake.User) (*User, error) {
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Persistence("find user by email", err)
	}

	u, err = s.users.FindByPhone(ctx, in.Phone)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Persistence("find user by phone", err)
	}
	return nil, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("get user", err)
	}
	return u, nil
}

// -- Patient --

// RegisterPatient validates the form, stores the identification document if
// one is given, and creates the patient record for userID. The document is
// removed again when the record cannot be written.
func (s *Service) RegisterPatient(ctx context.Context, userID uuid.UUID, f intake.PatientForm, doc *Upload) (*Patient, error) {
	reg, err := s.validator.Patient(f)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	_, err = s.patients.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("patient for user %s: %w", userID, apperr.ErrConflict)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.Persistence("get patient by user", err)
	}

	p := &Patient{
		UserID:                 userID,
		Name:                   reg.Name,
		Email:                  reg.Email,
		Phone:                  reg.Phone,
		BirthDate:              reg.BirthDate,
		Gender:                 reg.Gender,
		Address:                reg.Address,
		Occupation:             reg.Occupation,
		EmergencyContactName:   reg.EmergencyContactName,
		EmergencyContactNumber: reg.EmergencyContactNumber,
		PrimaryPhysician:       reg.PrimaryPhysician,
		InsuranceProvider:      reg.InsuranceProvider,
		InsurancePolicyNumber:  reg.InsurancePolicyNumber,
		Allergies:              reg.Allergies,
		CurrentMedication:      reg.CurrentMedication,
		FamilyMedicalHistory:   reg.FamilyMedicalHistory,
		PastMedicalHistory:     reg.PastMedicalHistory,
		IdentificationType:     reg.IdentificationType,
		IdentificationNumber:   reg.IdentificationNumber,
		TreatmentConsent:       reg.TreatmentConsent,
		DisclosureConsent:      reg.DisclosureConsent,
		PrivacyConsent:         reg.PrivacyConsent,
	}

	var blob *blobstore.BlobMetadata
	if doc != nil {
		blob, err = s.blobs.Upload(ctx, blobstore.BlobMetadata{
			FileName:    doc.FileName,
			ContentType: doc.ContentType,
			OwnerID:     userID.String(),
		}, doc.Content)
		if err != nil {
			return nil, uploadError(err)
		}
		url := blobstore.URLFor(s.baseURL, blob.ID)
		p.IdentificationDocumentID = &blob.ID
		p.IdentificationDocumentURL = &url
	}

	if err := s.patients.Create(ctx, p); err != nil {
		if blob != nil {
			s.discardUpload(blob.ID)
		}
		return nil, apperr.Persistence("create patient", err)
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("user_id", userID.String()).
		Bool("document", blob != nil).
		Msg("patient registered")
	return p, nil
}

// discardUpload deletes an orphaned document. It runs on a fresh context so
// a cancelled request still cleans up.
func (s *Service) discardUpload(id string) {
	if err := s.blobs.Delete(context.Background(), id); err != nil {
		s.logger.Warn().Err(err).Str("blob_id", id).Msg("failed to delete orphaned identification document")
		return
	}
	s.logger.Info().Str("blob_id", id).Msg("deleted orphaned identification document")
}

func uploadError(err error) error {
	const field = "identificationDocument"
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return apperr.Invalid(field, "File must be at most 5 MB")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return apperr.Invalid(field, "File must be a PDF, PNG or JPEG document")
	case errors.Is(err, blobstore.ErrEmptyFile):
		return apperr.Invalid(field, "File is empty")
	case errors.Is(err, blobstore.ErrMissingFileName):
		return apperr.Invalid(field, "File name is required")
	default:
		return apperr.Persistence("upload identification document", err)
	}
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("get patient", err)
	}
	return p, nil
}

// GetPatientByUser returns the patient record owned by userID.
func (s *Service) GetPatientByUser(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("get patient by user", err)
	}
	return p, nil
}

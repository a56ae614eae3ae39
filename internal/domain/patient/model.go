package patient

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// User maps to the user_account table. It is created once and never edited.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Patient maps to the patient table.
type Patient struct {
	ID                        uuid.UUID `db:"id" json:"id"`
	UserID                    uuid.UUID `db:"user_id" json:"userId"`
	Name                      string    `db:"name" json:"name"`
	Email                     string    `db:"email" json:"email"`
	Phone                     string    `db:"phone" json:"phone"`
	BirthDate                 time.Time `db:"birth_date" json:"birthDate"`
	Gender                    string    `db:"gender" json:"gender"`
	Address                   string    `db:"address" json:"address"`
	Occupation                string    `db:"occupation" json:"occupation"`
	EmergencyContactName      string    `db:"emergency_contact_name" json:"emergencyContactName"`
	EmergencyContactNumber    string    `db:"emergency_contact_number" json:"emergencyContactNumber"`
	PrimaryPhysician          string    `db:"primary_physician" json:"primaryPhysician"`
	InsuranceProvider         string    `db:"insurance_provider" json:"insuranceProvider"`
	InsurancePolicyNumber     string    `db:"insurance_policy_number" json:"insurancePolicyNumber"`
	Allergies                 *string   `db:"allergies" json:"allergies,omitempty"`
	CurrentMedication         *string   `db:"current_medication" json:"currentMedication,omitempty"`
	FamilyMedicalHistory      *string   `db:"family_medical_history" json:"familyMedicalHistory,omitempty"`
	PastMedicalHistory        *string   `db:"past_medical_history" json:"pastMedicalHistory,omitempty"`
	IdentificationType        *string   `db:"identification_type" json:"identificationType,omitempty"`
	IdentificationNumber      *string   `db:"identification_number" json:"identificationNumber,omitempty"`
	IdentificationDocumentID  *string   `db:"identification_document_id" json:"identificationDocumentId,omitempty"`
	IdentificationDocumentURL *string   `db:"identification_document_url" json:"identificationDocumentUrl,omitempty"`
	TreatmentConsent          bool      `db:"treatment_consent" json:"treatmentConsent"`
	DisclosureConsent         bool      `db:"disclosure_consent" json:"disclosureConsent"`
	PrivacyConsent            bool      `db:"privacy_consent" json:"privacyConsent"`
	CreatedAt                 time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updatedAt"`
}

// Upload is an identification document submitted with a registration.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

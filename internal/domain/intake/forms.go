// Package intake holds the request shapes accepted by the patient intake
// flow and validates them into normalized values.
package intake

import "fmt"

// Kind names one member of the Form union.
type Kind string

const (
	KindUser                Kind = "user"
	KindPatient             Kind = "patient"
	KindCreateAppointment   Kind = "create"
	KindScheduleAppointment Kind = "schedule"
	KindCancelAppointment   Kind = "cancel"
)

// Form is implemented by every request shape. The unexported method keeps
// the set closed to this package.
type Form interface {
	Kind() Kind
	normalize()
}

// UserForm is the basic-information step that creates or finds an identity.
type UserForm struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Email string `json:"email" validate:"required,max=255,email_addr"`
	Phone string `json:"phone" validate:"required,phone"`
}

// PatientForm is the full registration step.
type PatientForm struct {
	Name                   string  `json:"name" validate:"required,min=2,max=50"`
	Email                  string  `json:"email" validate:"required,max=255,email_addr"`
	Phone                  string  `json:"phone" validate:"required,phone"`
	BirthDate              string  `json:"birthDate" validate:"required,date,notfuture"`
	Gender                 string  `json:"gender" validate:"required,oneof=Male Female Other"`
	Address                string  `json:"address" validate:"required,min=5,max=500"`
	Occupation             string  `json:"occupation" validate:"required,min=2,max=500"`
	EmergencyContactName   string  `json:"emergencyContactName" validate:"required,min=2,max=50"`
	EmergencyContactNumber string  `json:"emergencyContactNumber" validate:"required,phone"`
	PrimaryPhysician       string  `json:"primaryPhysician" validate:"required,doctor"`
	InsuranceProvider      string  `json:"insuranceProvider" validate:"required,min=2,max=50"`
	InsurancePolicyNumber  string  `json:"insurancePolicyNumber" validate:"required,min=2,max=50"`
	Allergies              *string `json:"allergies,omitempty"`
	CurrentMedication      *string `json:"currentMedication,omitempty"`
	FamilyMedicalHistory   *string `json:"familyMedicalHistory,omitempty"`
	PastMedicalHistory     *string `json:"pastMedicalHistory,omitempty"`
	IdentificationType     *string `json:"identificationType,omitempty" validate:"omitempty,idtype"`
	IdentificationNumber   *string `json:"identificationNumber,omitempty" validate:"omitempty,max=64"`
	TreatmentConsent       bool    `json:"treatmentConsent" validate:"eq=true"`
	DisclosureConsent      bool    `json:"disclosureConsent" validate:"eq=true"`
	PrivacyConsent         bool    `json:"privacyConsent" validate:"eq=true"`
}

// CreateAppointmentForm books a new appointment. Status defaults to pending.
type CreateAppointmentForm struct {
	UserID           string  `json:"userId" validate:"required,uuid"`
	PatientID        string  `json:"patientId" validate:"required,uuid"`
	PrimaryPhysician string  `json:"primaryPhysician" validate:"required,doctor"`
	Schedule         string  `json:"schedule" validate:"required,timestamp,notpast"`
	Reason           string  `json:"reason" validate:"required,min=2,max=500"`
	Note             *string `json:"note,omitempty"`
	Status           string  `json:"status,omitempty" validate:"omitempty,oneof=pending scheduled"`
}

// ScheduleAppointmentForm confirms or edits a non-cancelled appointment.
type ScheduleAppointmentForm struct {
	PrimaryPhysician string  `json:"primaryPhysician" validate:"required,doctor"`
	Schedule         string  `json:"schedule" validate:"required,timestamp"`
	Reason           *string `json:"reason,omitempty" validate:"omitempty,min=2,max=500"`
	Note             *string `json:"note,omitempty"`
}

// CancelAppointmentForm cancels an appointment.
type CancelAppointmentForm struct {
	CancellationReason string `json:"cancellationReason" validate:"required,min=2,max=500"`
}

func (UserForm) Kind() Kind                { return KindUser }
func (PatientForm) Kind() Kind             { return KindPatient }
func (CreateAppointmentForm) Kind() Kind   { return KindCreateAppointment }
func (ScheduleAppointmentForm) Kind() Kind { return KindScheduleAppointment }
func (CancelAppointmentForm) Kind() Kind   { return KindCancelAppointment }

// AppointmentFormFor returns an empty appointment form of the given kind,
// ready to be decoded into.
func AppointmentFormFor(kind Kind) (Form, error) {
	switch kind {
	case KindCreateAppointment:
		return &CreateAppointmentForm{}, nil
	case KindScheduleAppointment:
		return &ScheduleAppointmentForm{}, nil
	case KindCancelAppointment:
		return &CancelAppointmentForm{}, nil
	default:
		return nil, fmt.Errorf("unknown appointment form %q", kind)
	}
}

// IdentificationTypes are the accepted identification documents.
var IdentificationTypes = []string{
	"Birth Certificate",
	"Driver's License",
	"Medical Insurance Card/Policy",
	"Military ID Card",
	"National Identity Card",
	"Passport",
	"Resident Alien Card (Green Card)",
	"Social Security Card",
	"State ID Card",
	"Student ID Card",
	"Voter ID Card",
}

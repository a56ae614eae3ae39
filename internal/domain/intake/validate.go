package intake

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/domain/roster"
	"github.com/carepulse/carepulse/internal/platform/validation"
)

// User is a validated UserForm. Email is lower-cased.
type User struct {
	Name  string
	Email string
	Phone string
}

// Registration is a validated PatientForm. PrimaryPhysician holds the
// roster name of the selected doctor and blank optional text is nil.
type Registration struct {
	User
	BirthDate              time.Time
	Gender                 string
	Address                string
	Occupation             string
	EmergencyContactName   string
	EmergencyContactNumber string
	PrimaryPhysician       string
	InsuranceProvider      string
	InsurancePolicyNumber  string
	Allergies              *string
	CurrentMedication      *string
	FamilyMedicalHistory   *string
	PastMedicalHistory     *string
	IdentificationType     *string
	IdentificationNumber   *string
	TreatmentConsent       bool
	DisclosureConsent      bool
	PrivacyConsent         bool
}

// AppointmentRequest is a validated CreateAppointmentForm.
type AppointmentRequest struct {
	UserID           uuid.UUID
	PatientID        uuid.UUID
	PrimaryPhysician string
	Schedule         time.Time
	Reason           string
	Note             *string
	Status           string
}

// Reschedule is a validated ScheduleAppointmentForm.
type Reschedule struct {
	PrimaryPhysician string
	Schedule         time.Time
	Reason           *string
	Note             *string
}

// Cancellation is a validated CancelAppointmentForm.
type Cancellation struct {
	Reason string
}

// Validator checks forms against the field rules and the doctor roster.
type Validator struct {
	engine *validation.Engine
	roster *roster.Roster
}

// NewValidator builds a Validator. Pass validation.WithClock to pin "now"
// for the birth date and schedule rules.
func NewValidator(r *roster.Roster, opts ...validation.Option) *Validator {
	engine := validation.New(opts...)
	if err := engine.RegisterRule("doctor", r.Contains); err != nil {
		panic(fmt.Sprintf("intake: register doctor rule: %v", err))
	}
	if err := engine.RegisterRule("idtype", isIdentificationType); err != nil {
		panic(fmt.Sprintf("intake: register idtype rule: %v", err))
	}
	return &Validator{engine: engine, roster: r}
}

// Validate dispatches on the form's kind and returns the matching normalized
// value: User, Registration, AppointmentRequest, Reschedule or Cancellation.
func (v *Validator) Validate(f Form) (any, error) {
	switch form := f.(type) {
	case *UserForm:
		return v.User(*form)
	case *PatientForm:
		return v.Patient(*form)
	case *CreateAppointmentForm:
		return v.CreateAppointment(*form)
	case *ScheduleAppointmentForm:
		return v.ScheduleAppointment(*form)
	case *CancelAppointmentForm:
		return v.CancelAppointment(*form)
	default:
		return nil, fmt.Errorf("intake: unsupported form %T", f)
	}
}

func (v *Validator) User(f UserForm) (User, error) {
	f.normalize()
	if err := v.engine.Struct(&f, userMessages); err != nil {
		return User{}, err
	}
	return User{Name: f.Name, Email: f.Email, Phone: f.Phone}, nil
}

func (v *Validator) Patient(f PatientForm) (Registration, error) {
	f.normalize()
	if err := v.engine.Struct(&f, patientMessages); err != nil {
		return Registration{}, err
	}

	birth, _ := validation.ParseDate(f.BirthDate)
	return Registration{
		User:                   User{Name: f.Name, Email: f.Email, Phone: f.Phone},
		BirthDate:              birth,
		Gender:                 f.Gender,
		Address:                f.Address,
		Occupation:             f.Occupation,
		EmergencyContactName:   f.EmergencyContactName,
		EmergencyContactNumber: f.EmergencyContactNumber,
		PrimaryPhysician:       v.doctorName(f.PrimaryPhysician),
		InsuranceProvider:      f.InsuranceProvider,
		InsurancePolicyNumber:  f.InsurancePolicyNumber,
		Allergies:              f.Allergies,
		CurrentMedication:      f.CurrentMedication,
		FamilyMedicalHistory:   f.FamilyMedicalHistory,
		PastMedicalHistory:     f.PastMedicalHistory,
		IdentificationType:     canonicalIDType(f.IdentificationType),
		IdentificationNumber:   f.IdentificationNumber,
		TreatmentConsent:       f.TreatmentConsent,
		DisclosureConsent:      f.DisclosureConsent,
		PrivacyConsent:         f.PrivacyConsent,
	}, nil
}

func (v *Validator) CreateAppointment(f CreateAppointmentForm) (AppointmentRequest, error) {
	f.normalize()
	if err := v.engine.Struct(&f, appointmentMessages); err != nil {
		return AppointmentRequest{}, err
	}

	schedule, _ := validation.ParseTimestamp(f.Schedule)
	status := f.Status
	if status == "" {
		status = "pending"
	}
	return AppointmentRequest{
		UserID:           uuid.MustParse(f.UserID),
		PatientID:        uuid.MustParse(f.PatientID),
		PrimaryPhysician: v.doctorName(f.PrimaryPhysician),
		Schedule:         schedule,
		Reason:           f.Reason,
		Note:             f.Note,
		Status:           status,
	}, nil
}

func (v *Validator) ScheduleAppointment(f ScheduleAppointmentForm) (Reschedule, error) {
	f.normalize()
	if err := v.engine.Struct(&f, appointmentMessages); err != nil {
		return Reschedule{}, err
	}

	schedule, _ := validation.ParseTimestamp(f.Schedule)
	return Reschedule{
		PrimaryPhysician: v.doctorName(f.PrimaryPhysician),
		Schedule:         schedule,
		Reason:           f.Reason,
		Note:             f.Note,
	}, nil
}

func (v *Validator) CancelAppointment(f CancelAppointmentForm) (Cancellation, error) {
	f.normalize()
	if err := v.engine.Struct(&f, appointmentMessages); err != nil {
		return Cancellation{}, err
	}
	return Cancellation{Reason: f.CancellationReason}, nil
}

// Now is the validator's clock.
func (v *Validator) Now() time.Time {
	return v.engine.Now()
}

func (v *Validator) doctorName(ref string) string {
	if d, ok := v.roster.Lookup(ref); ok {
		return d.Name
	}
	return ref
}

func isIdentificationType(s string) bool {
	return canonicalIDType(&s) != nil
}

func canonicalIDType(s *string) *string {
	if s == nil {
		return nil
	}
	for _, t := range IdentificationTypes {
		if strings.EqualFold(t, *s) {
			return &t
		}
	}
	return nil
}

func (f *UserForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
}

func (f *PatientForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	f.BirthDate = strings.TrimSpace(f.BirthDate)
	f.Gender = strings.TrimSpace(f.Gender)
	f.Address = strings.TrimSpace(f.Address)
	f.Occupation = strings.TrimSpace(f.Occupation)
	f.EmergencyContactName = strings.TrimSpace(f.EmergencyContactName)
	f.EmergencyContactNumber = strings.TrimSpace(f.EmergencyContactNumber)
	f.PrimaryPhysician = strings.TrimSpace(f.PrimaryPhysician)
	f.InsuranceProvider = strings.TrimSpace(f.InsuranceProvider)
	f.InsurancePolicyNumber = strings.TrimSpace(f.InsurancePolicyNumber)
	f.Allergies = validation.Optional(f.Allergies)
	f.CurrentMedication = validation.Optional(f.CurrentMedication)
	f.FamilyMedicalHistory = validation.Optional(f.FamilyMedicalHistory)
	f.PastMedicalHistory = validation.Optional(f.PastMedicalHistory)
	f.IdentificationType = validation.Optional(f.IdentificationType)
	f.IdentificationNumber = validation.Optional(f.IdentificationNumber)
}

func (f *CreateAppointmentForm) normalize() {
	f.UserID = strings.TrimSpace(f.UserID)
	f.PatientID = strings.TrimSpace(f.PatientID)
	f.PrimaryPhysician = strings.TrimSpace(f.PrimaryPhysician)
	f.Schedule = strings.TrimSpace(f.Schedule)
	f.Reason = strings.TrimSpace(f.Reason)
	f.Note = validation.Optional(f.Note)
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
}

func (f *ScheduleAppointmentForm) normalize() {
	f.PrimaryPhysician = strings.TrimSpace(f.PrimaryPhysician)
	f.Schedule = strings.TrimSpace(f.Schedule)
	f.Reason = validation.Optional(f.Reason)
	f.Note = validation.Optional(f.Note)
}

func (f *CancelAppointmentForm) normalize() {
	f.CancellationReason = strings.TrimSpace(f.CancellationReason)
}

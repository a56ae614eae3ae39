// Package fixtures holds the sample intake data shared by unit, end-to-end
// and integration tests. Every function returns a fresh value so tests may
// modify what they get.
package fixtures

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/domain/intake"
)

// AdminPasskey is the passkey test servers are configured with.
const AdminPasskey = "123456"

// Clock is the fixed "now" used by tests that pin the validator clock.
var Clock = time.Date(2030, time.March, 1, 9, 0, 0, 0, time.UTC)

// Now returns Clock; pass it to validation.WithClock.
func Now() time.Time { return Clock }

func ptr(s string) *string { return &s }

// BasicUser is the first step of the intake flow.
func BasicUser() intake.UserForm {
	return intake.UserForm{
		Name:  "John Doe",
		Email: "john.doe@example.com",
		Phone: "+1234567890",
	}
}

// InvalidUser fails every user rule.
func InvalidUser() intake.UserForm {
	return intake.UserForm{
		Name:  "A",
		Email: "invalid-email",
		Phone: "123",
	}
}

// PatientRegistration is a complete, valid registration.
func PatientRegistration() intake.PatientForm {
	return intake.PatientForm{
		Name:                   "Jane Smith",
		Email:                  "jane.smith@example.com",
		Phone:                  "+1987654321",
		BirthDate:              "1990-01-15",
		Gender:                 "Female",
		Address:                "123 Main St, Anytown, ST 12345",
		Occupation:             "Software Engineer",
		EmergencyContactName:   "John Smith",
		EmergencyContactNumber: "+1555666777",
		PrimaryPhysician:       "Dr. Green",
		InsuranceProvider:      "HealthCare Plus",
		InsurancePolicyNumber:  "HC123456789",
		Allergies:              ptr("Penicillin, Peanuts"),
		CurrentMedication:      ptr("Lisinopril 10mg daily"),
		FamilyMedicalHistory:   ptr("Diabetes (father), Hypertension (mother)"),
		PastMedicalHistory:     ptr("Appendectomy 2015, Broken arm 2010"),
		IdentificationType:     ptr("Driver's License"),
		IdentificationNumber:   ptr("DL123456789"),
		TreatmentConsent:       true,
		DisclosureConsent:      true,
		PrivacyConsent:         true,
	}
}

// InvalidPatient fails every required patient rule.
func InvalidPatient() intake.PatientForm {
	return intake.PatientForm{
		Name:                   "A",
		Email:                  "invalid-email",
		Phone:                  "123",
		BirthDate:              "2050-01-01",
		Gender:                 "Invalid",
		Address:                "123",
		Occupation:             "A",
		EmergencyContactName:   "A",
		EmergencyContactNumber: "123",
		PrimaryPhysician:       "",
		InsuranceProvider:      "A",
		InsurancePolicyNumber:  "A",
	}
}

// Appointment names one of the sample bookings.
type Appointment int

const (
	ValidAppointment Appointment = iota
	PendingAppointment
	CancelledAppointment
)

type appointmentSample struct {
	physician string
	reason    string
	offset    time.Duration
	status    string
	note      string
	cancel    string
}

var appointmentSamples = map[Appointment]appointmentSample{
	ValidAppointment: {
		physician: "Dr. Green",
		reason:    "Annual checkup",
		offset:    14 * 24 * time.Hour,
		status:    "scheduled",
		note:      "Patient requested morning appointment",
	},
	PendingAppointment: {
		physician: "Dr. Cameron",
		reason:    "Follow-up consultation",
		offset:    15*24*time.Hour + 5*time.Hour,
		status:    "pending",
		note:      "Waiting for insurance approval",
	},
	CancelledAppointment: {
		physician: "Dr. Lee",
		reason:    "Emergency consultation",
		offset:    12*24*time.Hour + 7*time.Hour,
		status:    "pending",
		note:      "Patient cancelled due to illness",
		cancel:    "Patient has flu symptoms",
	},
}

// CreateAppointment builds a booking form for the sample, scheduled relative
// to now so that it is always in the future. The cancelled sample is booked
// as pending; cancel it with CancellationReason.
func CreateAppointment(a Appointment, userID, patientID uuid.UUID, now time.Time) intake.CreateAppointmentForm {
	s := appointmentSamples[a]
	return intake.CreateAppointmentForm{
		UserID:           userID.String(),
		PatientID:        patientID.String(),
		PrimaryPhysician: s.physician,
		Schedule:         now.Add(s.offset).UTC().Format(time.RFC3339),
		Reason:           s.reason,
		Note:             ptr(s.note),
		Status:           s.status,
	}
}

// CancellationReason is the reason used by the cancelled sample.
func CancellationReason() string {
	return appointmentSamples[CancelledAppointment].cancel
}

// PDFDocument is a minimal but well-formed identification document.
func PDFDocument() (name, contentType string, content []byte) {
	return "test-document.pdf", "application/pdf",
		[]byte("%PDF-1.4\n1 0 obj <<>> endobj\ntrailer <<>>\n%%EOF\n")
}

// ExecutableDocument is rejected by the file store.
func ExecutableDocument() (name, contentType string, content []byte) {
	return "test-image.exe", "application/x-executable",
		[]byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff\x00\x00")
}

// LargeDocument exceeds the 5 MiB upload limit.
func LargeDocument() (name, contentType string, content []byte) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	buf.Write(make([]byte, 10*1024*1024))
	return "large-file.pdf", "application/pdf", buf.Bytes()
}

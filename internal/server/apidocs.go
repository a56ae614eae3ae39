package server

import (
	"net/http"
	"time"

	"github.com/carepulse/carepulse/internal/domain/intake"
	"github.com/carepulse/carepulse/internal/domain/patient"
	"github.com/carepulse/carepulse/internal/domain/roster"
	"github.com/carepulse/carepulse/internal/domain/scheduling"
	"github.com/carepulse/carepulse/internal/platform/blobstore"
	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/platform/openapi"
	"github.com/carepulse/carepulse/pkg/pagination"
)

// Version is reported in the API document. Release builds set it with
// -ldflags "-X github.com/carepulse/carepulse/internal/server.Version=...".
var Version = "dev"

const apiPrefix = "/api/v1"

type (
	userStep struct {
		User *patient.User `json:"user"`
		Next string        `json:"next"`
	}
	patientStep struct {
		Patient *patient.Patient `json:"patient"`
		Next    string           `json:"next"`
	}
	booked struct {
		Appointment *scheduling.Appointment `json:"appointment"`
		Message     string                  `json:"message"`
	}
	appointmentPage struct {
		Data    []*scheduling.Appointment `json:"data"`
		Total   int                       `json:"total"`
		Limit   int                       `json:"limit"`
		Offset  int                       `json:"offset"`
		HasMore bool                      `json:"hasMore"`
		Links   []pagination.Link         `json:"links,omitempty"`
		Counts  scheduling.Counts         `json:"counts"`
	}
	doctorList struct {
		Data []roster.Doctor `json:"data"`
	}
	sessionRequest struct {
		Passkey string `json:"passkey" validate:"required"`
	}
	session struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
)

var (
	idParam     = []openapi.Param{{Name: "id", Description: "Doctor id or name"}}
	statusQuery = openapi.Param{Name: "status", Enum: []string{"pending", "scheduled", "cancelled"}}
	pageQuery   = []openapi.Param{
		{Name: "limit", Type: "integer", Description: "Page size"},
		{Name: "offset", Type: "integer", Description: "Rows to skip"},
	}
)

// apiDocs describes the routes mounted by New.
func apiDocs(baseURL string) *openapi.Generator {
	g := openapi.NewGenerator("CarePulse API", Version, baseURL, apiPrefix, adminPrefix).
		Schema("Doctor", roster.Doctor{}).
		Schema("DoctorList", doctorList{}).
		Schema("User", patient.User{}).
		Schema("Patient", patient.Patient{}).
		Schema("Appointment", scheduling.Appointment{}).
		Schema("Counts", scheduling.Counts{}).
		Schema("Listing", scheduling.Listing{}).
		Schema("AppointmentPage", appointmentPage{}).
		Schema("AppointmentPatch", scheduling.Patch{}).
		Schema("UserForm", intake.UserForm{}).
		Schema("PatientForm", intake.PatientForm{}).
		Schema("CreateAppointmentForm", intake.CreateAppointmentForm{}).
		Schema("ScheduleAppointmentForm", intake.ScheduleAppointmentForm{}).
		Schema("CancelAppointmentForm", intake.CancelAppointmentForm{}).
		Schema("UserStep", userStep{}).
		Schema("PatientStep", patientStep{}).
		Schema("Booked", booked{}).
		Schema("SessionRequest", sessionRequest{}).
		Schema("Session", session{}).
		Schema("FileMetadata", blobstore.BlobMetadata{}).
		Schema("Notification", notification.Notification{})

	get, post := http.MethodGet, http.MethodPost
	p := apiPrefix
	a := adminPrefix

	g.Describe(get, p+"/doctors", openapi.Operation{Summary: "List the doctors a patient can choose", Response: "DoctorList"}).
		Describe(get, p+"/doctors/:id", openapi.Operation{Summary: "Get a doctor", Response: "Doctor", Path: idParam}).
		Describe(post, p+"/users", openapi.Operation{
			Summary: "Create or find the identity for a name, email and phone",
			Request: "UserForm", Response: "UserStep", Status: http.StatusCreated,
		}).
		Describe(get, p+"/users/:id", openapi.Operation{Summary: "Get a user", Response: "User"}).
		Describe(post, p+"/patients/:userId/register", openapi.Operation{
			Summary: "Register the patient record for a user", Request: "PatientForm", Upload: true,
			Response: "PatientStep", Status: http.StatusCreated,
		}).
		Describe(get, p+"/patients/:userId", openapi.Operation{Summary: "Get the patient owned by a user", Response: "Patient"}).
		Describe(post, p+"/patients/:userId/appointments", openapi.Operation{
			Summary: "Book an appointment", Request: "CreateAppointmentForm", Response: "Booked", Status: http.StatusCreated,
		}).
		Describe(get, p+"/appointments/:id", openapi.Operation{Summary: "Get an appointment", Response: "Appointment"}).
		Describe(get, p+"/files/:id", openapi.Operation{Summary: "Download an identification document", Tag: "files"}).
		Describe(get, p+"/files/:id/metadata", openapi.Operation{Summary: "Describe an identification document", Response: "FileMetadata"}).
		Describe(post, a+"/session", openapi.Operation{
			Summary: "Exchange the admin passkey for a session token", Request: "SessionRequest",
			Response: "Session", Status: http.StatusCreated, Public: true,
		}).
		Describe(get, a+"/session", openapi.Operation{Summary: "Describe the current admin session"}).
		Describe(http.MethodDelete, a+"/session", openapi.Operation{Summary: "Sign the admin session out", Status: http.StatusNoContent}).
		Describe(get, a+"/dashboard", openapi.Operation{Summary: "Recent appointments with per-status counts", Response: "Listing"}).
		Describe(get, a+"/appointments", openapi.Operation{
			Summary: "Search appointments", Response: "AppointmentPage",
			Query: append([]openapi.Param{
				statusQuery,
				{Name: "userId", Format: "uuid"},
				{Name: "patientId", Format: "uuid"},
				{Name: "physician", Description: "Roster name of the primary physician"},
			}, pageQuery...),
		}).
		Describe(get, a+"/appointments/:id", openapi.Operation{Summary: "Get an appointment", Response: "Appointment"}).
		Describe(http.MethodPatch, a+"/appointments/:id", openapi.Operation{
			Summary: "Update an appointment", Request: "AppointmentPatch", Response: "Appointment",
		}).
		Describe(post, a+"/appointments/:id/schedule", openapi.Operation{
			Summary: "Schedule an appointment", Request: "ScheduleAppointmentForm", Response: "Appointment",
		}).
		Describe(post, a+"/appointments/:id/cancel", openapi.Operation{
			Summary: "Cancel an appointment", Request: "CancelAppointmentForm", Response: "Appointment",
		}).
		Describe(get, a+"/notifications", openapi.Operation{Summary: "List sent messages"}).
		Describe(get, a+"/notifications/stats", openapi.Operation{Summary: "Count messages per status"}).
		Describe(get, a+"/notifications/templates", openapi.Operation{Summary: "List message templates"}).
		Describe(get, a+"/notifications/:id", openapi.Operation{
			Summary: "Get a message", Response: "Notification", Path: []openapi.Param{{Name: "id"}},
		}).
		Describe(post, a+"/notifications/:id/retry", openapi.Operation{
			Summary: "Resend a failed message", Response: "Notification", Path: []openapi.Param{{Name: "id"}},
		}).
		Describe(get, a+"/ws", openapi.Operation{Summary: "Live appointment feed (WebSocket upgrade)", Tag: "live"}).
		Describe(get, p+"/openapi.json", openapi.Operation{Summary: "This document", Tag: "docs"}).
		Describe(get, p+"/docs", openapi.Operation{Summary: "Interactive API documentation", Tag: "docs"})
	return g
}

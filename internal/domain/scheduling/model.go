package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// transitions lists the allowed target states per state. Same-state edits
// of pending and scheduled appointments are allowed; cancelled is terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPending, StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusScheduled, StatusCancelled},
	StatusCancelled: nil,
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return st, nil
}

// CanTransition reports whether an appointment in s may move to to.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a *apperr.TransitionError when from -> to is not
// allowed.
func CheckTransition(from, to Status) error {
	if from.CanTransition(to) {
		return nil
	}
	return &apperr.TransitionError{From: string(from), To: string(to)}
}

// Appointment maps to the appointment table. CancellationReason is set iff
// Status is cancelled.
type Appointment struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	UserID             uuid.UUID `db:"user_id" json:"userId"`
	PatientID          uuid.UUID `db:"patient_id" json:"patientId"`
	PrimaryPhysician   string    `db:"primary_physician" json:"primaryPhysician"`
	Reason             string    `db:"reason" json:"reason"`
	Schedule           time.Time `db:"schedule" json:"schedule"`
	Status             Status    `db:"status" json:"status"`
	Note               *string   `db:"note" json:"note,omitempty"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// Patch is a partial update. Nil fields keep their current value. A patch
// that cancels may carry only Status and CancellationReason.
type Patch struct {
	Status             *string `json:"status,omitempty"`
	PrimaryPhysician   *string `json:"primaryPhysician,omitempty"`
	Schedule           *string `json:"schedule,omitempty"`
	Reason             *string `json:"reason,omitempty"`
	Note               *string `json:"note,omitempty"`
	CancellationReason *string `json:"cancellationReason,omitempty"`
}

// Filter selects appointments for listing. Zero values match everything.
type Filter struct {
	Status    Status
	UserID    *uuid.UUID
	PatientID *uuid.UUID
	Physician string
	Limit     int
	Offset    int
}

// Counts tallies appointments per status.
type Counts struct {
	Scheduled int `json:"scheduledCount"`
	Pending   int `json:"pendingCount"`
	Cancelled int `json:"cancelledCount"`
	Total     int `json:"totalCount"`
}

func (c *Counts) add(s Status, n int) {
	switch s {
	case StatusScheduled:
		c.Scheduled += n
	case StatusPending:
		c.Pending += n
	case StatusCancelled:
		c.Cancelled += n
	}
	c.Total += n
}

// Listing is one page of appointments. Total counts the rows matching the
// whole filter; Counts ignores the status criterion.
type Listing struct {
	Appointments []*Appointment `json:"appointments"`
	Total        int            `json:"total"`
	Counts       Counts         `json:"counts"`
}

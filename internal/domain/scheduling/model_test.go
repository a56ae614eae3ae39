package scheduling

import (
	"errors"
	"testing"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"pending", StatusPending, false},
		{"Scheduled", StatusScheduled, false},
		{" CANCELLED ", StatusCancelled, false},
		{"booked", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusScheduled, true},
		{StatusPending, StatusCancelled, true},
		{StatusScheduled, StatusScheduled, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusPending, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StatusPending, StatusScheduled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := CheckTransition(StatusCancelled, StatusScheduled)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *apperr.TransitionError
	if !errors.As(err, &te) || te.From != "cancelled" || te.To != "scheduled" {
		t.Errorf("unexpected transition error: %#v", err)
	}
}

func TestCounts_Add(t *testing.T) {
	var c Counts
	c.add(StatusScheduled, 2)
	c.add(StatusPending, 1)
	c.add(StatusCancelled, 3)

	want := Counts{Scheduled: 2, Pending: 1, Cancelled: 3, Total: 6}
	if c != want {
		t.Errorf("got %+v, want %+v", c, want)
	}
}

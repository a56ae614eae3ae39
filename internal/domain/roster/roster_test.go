package roster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRoster_Lookup(t *testing.T) {
	r := Default()

	tests := []struct {
		ref    string
		wantID string
		found  bool
	}{
		{"Dr. Green", "john-green", true},
		{"dr. cameron", "leila-cameron", true},
		{"Dr. Lee", "peter-lee", true},
		{"John Green", "john-green", true},
		{"  leila   cameron ", "leila-cameron", true},
		{"hardik-sharma", "hardik-sharma", true},
		{"Dr Peter", "evan-peter", true},
		{"Dr.Powell", "jane-powell", true},
		{"", "", false},
		{"Dr. House", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			d, ok := r.Lookup(tt.ref)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.ref, ok, tt.found)
			}
			if ok && d.ID != tt.wantID {
				t.Errorf("Lookup(%q) = %s, want %s", tt.ref, d.ID, tt.wantID)
			}
		})
	}
}

func TestRoster_SharedSurnameIsAmbiguous(t *testing.T) {
	r := New([]Doctor{
		{ID: "peter-lee", Name: "Peter Lee"},
		{ID: "jasmine-lee", Name: "Jasmine Lee"},
	})
	if r.Contains("Dr. Lee") {
		t.Error("shared surname should not resolve")
	}
	if !r.Contains("Dr. Jasmine Lee") {
		t.Error("full name should still resolve")
	}
}

func TestDoctor_DisplayName(t *testing.T) {
	d, _ := Default().Lookup("Dr. Green")
	if got := d.DisplayName(); got != "Dr. John Green" {
		t.Errorf("DisplayName() = %q", got)
	}
}

type fakeRepo struct {
	doctors []Doctor
	err     error
}

func (f *fakeRepo) List(context.Context) ([]Doctor, error) { return f.doctors, f.err }

func TestLoad(t *testing.T) {
	r, err := Load(context.Background(), &fakeRepo{doctors: DefaultDoctors[:2]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.All()) != 2 {
		t.Errorf("expected 2 doctors, got %d", len(r.All()))
	}

	if _, err := Load(context.Background(), &fakeRepo{}); err == nil {
		t.Error("expected error for empty roster")
	}
	if _, err := Load(context.Background(), &fakeRepo{err: errors.New("down")}); err == nil {
		t.Error("expected error when repo fails")
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/doctors", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHandler(Default())
	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nobody")

	h := NewHandler(Default())
	err := h.GetDoctor(c)
	if err == nil {
		t.Fatal("expected error for unknown doctor")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

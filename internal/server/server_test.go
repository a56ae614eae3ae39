package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/internal/platform/blobstore"
	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/testutil/fixtures"
)

func newTestServer(t *testing.T) (*Server, *notification.MockSMSSender) {
	t.Helper()
	sms := &notification.MockSMSSender{}
	s, err := New(context.Background(), fixtures.MemoryConfig(), Deps{
		Blobs: blobstore.NewInMemoryBlobStore("identification"),
		SMS:   sms,
		Now:   fixtures.Now,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, sms
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresPoolForPostgres(t *testing.T) {
	cfg := fixtures.MemoryConfig()
	cfg.StoreDriver = "postgres"
	if _, err := New(context.Background(), cfg, Deps{}, zerolog.Nop()); err == nil {
		t.Fatal("expected an error without a pool")
	}
}

func TestNew_ProductionNeedsTokenSecret(t *testing.T) {
	cfg := fixtures.MemoryConfig()
	cfg.Env = "production"
	cfg.AdminTokenSecret = ""
	_, err := New(context.Background(), cfg, Deps{Blobs: blobstore.NewInMemoryBlobStore("b")}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error without ADMIN_TOKEN_SECRET")
	}
}

func TestNew_DevelopmentGeneratesTokenSecret(t *testing.T) {
	cfg := fixtures.MemoryConfig()
	cfg.Env = "development"
	cfg.AdminTokenSecret = ""
	s, err := New(context.Background(), cfg, Deps{Blobs: blobstore.NewInMemoryBlobStore("b")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Shutdown(context.Background())

	token, _, err := s.Issuer.Issue()
	if err != nil || token == "" {
		t.Fatalf("expected a usable issuer, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/health", "/health/db"} {
		rec := do(s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if rec := do(s, http.MethodGet, "/health/db", ""); !strings.Contains(rec.Body.String(), `"store":"memory"`) {
		t.Errorf("expected the memory store to be reported, got %s", rec.Body.String())
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/api/v1/doctors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{
		"/api/v1/admin/dashboard",
		"/api/v1/admin/appointments",
		"/api/v1/admin/notifications",
		"/api/v1/admin/session",
		"/api/v1/admin/ws",
	} {
		if rec := do(s, http.MethodGet, path, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestAdminSessionUnlocksDashboard(t *testing.T) {
	s, _ := newTestServer(t)

	token, _, err := s.Issuer.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPatientDirectory(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	user, err := s.Patients.CreateUser(ctx, fixtures.BasicUser())
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	p, err := s.Patients.RegisterPatient(ctx, user.ID, fixtures.PatientRegistration(), nil)
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}

	dir := NewPatientDirectory(s.Patients)
	ref, err := dir.PatientByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("PatientByUser: %v", err)
	}
	if ref.ID != p.ID || ref.UserID != user.ID || ref.Phone != p.Phone || ref.Name != p.Name {
		t.Errorf("unexpected ref %+v", ref)
	}

	if _, err := dir.Patient(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewSMSSender(t *testing.T) {
	cfg := fixtures.MemoryConfig()
	if _, ok := NewSMSSender(cfg, zerolog.Nop()).(*notification.LogSMSSender); !ok {
		t.Error("expected the log sender without a gateway")
	}
	cfg.SMSGatewayURL = "http://sms.local/send"
	if _, ok := NewSMSSender(cfg, zerolog.Nop()).(*notification.WebhookSMSSender); !ok {
		t.Error("expected the webhook sender with a gateway")
	}
}

func TestRateLimitConfig_FallsBackToDefaults(t *testing.T) {
	cfg := fixtures.MemoryConfig()
	cfg.RateLimitRPS = 0
	cfg.RateLimitBurst = 0
	rl := rateLimitConfig(cfg)
	if rl.RequestsPerSecond != 20 || rl.BurstSize != 40 {
		t.Errorf("unexpected config %+v", rl)
	}
}

func TestAPIDocs(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/v1/openapi.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc struct {
		Paths      map[string]map[string]map[string]interface{} `json:"paths"`
		Components struct {
			Schemas map[string]interface{} `json:"schemas"`
		} `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for path, method := range map[string]string{
		"/api/v1/users":                          "post",
		"/api/v1/patients/{userId}/register":     "post",
		"/api/v1/patients/{userId}/appointments": "post",
		"/api/v1/admin/appointments/{id}/cancel": "post",
		"/api/v1/admin/appointments/{id}":        "patch",
		"/api/v1/admin/session":                  "delete",
	} {
		if _, ok := doc.Paths[path][method]; !ok {
			t.Errorf("expected %s %s in the document", method, path)
		}
	}
	if _, ok := doc.Paths["/api/v1/admin/dashboard"]["get"]["security"]; !ok {
		t.Error("expected the dashboard to require a bearer token")
	}
	if _, ok := doc.Paths["/api/v1/admin/session"]["post"]["security"]; ok {
		t.Error("signing in must not require a bearer token")
	}
	for _, name := range []string{"PatientForm", "Appointment", "Listing", "Error"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("expected schema %s", name)
		}
	}
}

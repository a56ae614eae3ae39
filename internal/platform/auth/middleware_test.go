package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

var testSecret = []byte("test-secret-key-for-unit-tests-only-0123")

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	i, err := NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return i
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestNewTokenIssuer_Rejects(t *testing.T) {
	if _, err := NewTokenIssuer([]byte("short"), time.Hour); err == nil {
		t.Error("expected short secret to be rejected")
	}
	if _, err := NewTokenIssuer(testSecret, 0); err == nil {
		t.Error("expected zero ttl to be rejected")
	}
}

func TestRandomSecret(t *testing.T) {
	a, err := RandomSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := RandomSecret()
	if len(a) != 32 || string(a) == string(b) {
		t.Error("expected distinct 32-byte secrets")
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	i := newTestIssuer(t)
	token, issued, err := i.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := i.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.ID != issued.ID || claims.Role != RoleAdmin {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	i := newTestIssuer(t)
	start := time.Now()
	i.now = func() time.Time { return start }
	token, _, err := i.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	i.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := i.Parse(token); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTokenIssuer_WrongSecretOrRole(t *testing.T) {
	i := newTestIssuer(t)

	other, _ := NewTokenIssuer([]byte("another-secret-key-for-unit-tests-999"), time.Hour)
	foreign, _, _ := other.Issue()
	if _, err := i.Parse(foreign); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected foreign token to be rejected, got %v", err)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "patient",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := i.Parse(token); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected non-admin token to be rejected, got %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := i.Parse(none); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unsigned token to be rejected, got %v", err)
	}
}

func TestRequireAdmin_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := RequireAdmin(newTestIssuer(t), nil)(okHandler)(c)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRequireAdmin_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireAdmin(newTestIssuer(t), nil)(okHandler)(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", httpErr.Code)
			}
		})
	}
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	i := newTestIssuer(t)
	token, issued, _ := i.Issue()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *Claims
	h := RequireAdmin(i, nil)(func(c echo.Context) error {
		seen, _ = SessionFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen == nil || seen.ID != issued.ID {
		t.Errorf("expected session in context, got %+v", seen)
	}
	if c.Get(string(AdminSessionKey)) == nil {
		t.Error("expected session on echo context")
	}
}

func TestRequireAdmin_QueryToken(t *testing.T) {
	i := newTestIssuer(t)
	token, _, _ := i.Issue()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequireAdmin(i, nil)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireAdmin_RevokedToken(t *testing.T) {
	i := newTestIssuer(t)
	token, claims, _ := i.Issue()
	store := NewRevocationStore(time.Minute)
	defer store.Close()
	store.Revoke(claims.ID, claims.ExpiresAt.Time)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := RequireAdmin(i, store)(okHandler)(c); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

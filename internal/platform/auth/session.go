package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

// Passkey checks admin passkeys against a bcrypt hash.
type Passkey struct {
	hash []byte
}

func NewPasskey(hash []byte) *Passkey {
	return &Passkey{hash: hash}
}

// Verify returns an error wrapping apperr.ErrUnauthorized when passkey does
// not match.
func (p *Passkey) Verify(passkey string) error {
	if strings.TrimSpace(passkey) == "" {
		return fmt.Errorf("%w: passkey is required", apperr.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(p.hash, []byte(passkey)); err != nil {
		return fmt.Errorf("%w: invalid passkey", apperr.ErrUnauthorized)
	}
	return nil
}

type sessionRequest struct {
	Passkey string `json:"passkey"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionHandler exchanges the admin passkey for a token and signs admin
// sessions out.
type SessionHandler struct {
	passkey *Passkey
	issuer  *TokenIssuer
	revoked *RevocationStore
	logger  zerolog.Logger
}

func NewSessionHandler(p *Passkey, issuer *TokenIssuer, revoked *RevocationStore, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		passkey: p,
		issuer:  issuer,
		revoked: revoked,
		logger:  logger.With().Str("component", "admin-session").Logger(),
	}
}

// RegisterRoutes mounts POST /admin/session on the public group and the
// session inspection and sign-out routes on the protected admin group.
func (h *SessionHandler) RegisterRoutes(api, admin *echo.Group) {
	api.POST("/admin/session", h.Create)
	admin.GET("/session", h.Get)
	admin.DELETE("/session", h.Delete)
}

func (h *SessionHandler) Create(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.passkey.Verify(req.Passkey); err != nil {
		h.logger.Warn().Str("remote_ip", c.RealIP()).Msg("admin passkey rejected")
		return err
	}

	token, claims, err := h.issuer.Issue()
	if err != nil {
		return err
	}
	h.logger.Info().Str("session_id", claims.ID).Str("remote_ip", c.RealIP()).Msg("admin session started")
	return c.JSON(http.StatusCreated, sessionResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time})
}

func (h *SessionHandler) Get(c echo.Context) error {
	claims, ok := SessionFromContext(c.Request().Context())
	if !ok {
		return apperr.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId": claims.ID,
		"role":      claims.Role,
		"expiresAt": claims.ExpiresAt.Time,
	})
}

func (h *SessionHandler) Delete(c echo.Context) error {
	claims, ok := SessionFromContext(c.Request().Context())
	if !ok {
		return apperr.ErrUnauthorized
	}
	if h.revoked != nil {
		h.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	}
	h.logger.Info().Str("session_id", claims.ID).Msg("admin session ended")
	return c.NoContent(http.StatusNoContent)
}

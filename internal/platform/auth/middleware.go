// Package auth guards the admin surface: a passkey is exchanged for a
// short-lived HS256 token that RequireAdmin checks on every admin request.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

type contextKey string

const (
	AdminSessionKey contextKey = "admin_session"

	// RoleAdmin is the only role tokens are issued for.
	RoleAdmin = "admin"
	// TokenQueryParam carries the token for clients that cannot set headers,
	// such as browser WebSocket connections.
	TokenQueryParam = "token"

	issuer = "carepulse"
)

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenIssuer signs and verifies admin tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer for secret. The secret must be at least 32
// bytes.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes, got %d", len(secret))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// RandomSecret returns 32 random bytes for development servers that run
// without a configured secret. Tokens signed with it die with the process.
func RandomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate token secret: %w", err)
	}
	return b, nil
}

// Issue signs a new admin token.
func (i *TokenIssuer) Issue() (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			Subject:   RoleAdmin,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign admin token: %w", err)
	}
	return token, claims, nil
}

// Parse verifies tokenStr and returns its claims. Every failure wraps
// apperr.ErrUnauthorized.
func (i *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: token is not an admin token", apperr.ErrUnauthorized)
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid, unrevoked admin token. The
// token is read from the Authorization header, or from the "token" query
// parameter when the header is absent. revoked may be nil.
func RequireAdmin(issuer *TokenIssuer, revoked *RevocationStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}
			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				return err
			}
			if revoked != nil && revoked.IsRevoked(claims.ID) {
				return fmt.Errorf("%w: session has ended", apperr.ErrUnauthorized)
			}

			c.Set(string(AdminSessionKey), claims)
			ctx := context.WithValue(c.Request().Context(), AdminSessionKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if q := c.QueryParam(TokenQueryParam); q != "" {
			return q, nil
		}
		return "", fmt.Errorf("%w: missing authorization header", apperr.ErrUnauthorized)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// SessionFromContext returns the admin claims set by RequireAdmin.
func SessionFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(AdminSessionKey).(*Claims)
	return claims, ok
}

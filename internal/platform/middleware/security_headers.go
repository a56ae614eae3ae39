package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// docsCSP lets the API documentation page load Swagger UI from unpkg.
	docsCSP = "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; " +
		"style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data:; frame-ancestors 'none'"
)

// SecurityHeadersConfig selects the per-deployment parts of SecurityHeaders.
type SecurityHeadersConfig struct {
	// HSTS sends Strict-Transport-Security. Enable it only where the service
	// is reached over TLS.
	HSTS bool
	// DocsPath is served with a content policy that allows the documentation
	// page's scripts and styles.
	DocsPath string
}

// SecurityHeaders sets hardening headers on every response. Responses may
// carry patient data, so nothing is cached.
func SecurityHeaders(cfg SecurityHeadersConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Cache-Control", "no-store")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			if cfg.DocsPath != "" && strings.TrimSuffix(c.Request().URL.Path, "/") == cfg.DocsPath {
				h.Set("Content-Security-Policy", docsCSP)
			} else {
				h.Set("Content-Security-Policy", apiCSP)
			}

			return next(c)
		}
	}
}

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/internal/platform/auth"
)

// AuditEntry records one admin mutation: who changed which resource, how,
// and with what outcome.
type AuditEntry struct {
	SessionID  string
	Action     string // create, update, delete
	Resource   string
	ResourceID string
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every state-changing request under prefix, typically the admin
// API root. Reads are not audited. The optional recorder receives each entry
// as well.
func Audit(logger zerolog.Logger, prefix string, recorders ...AuditRecorder) echo.MiddlewareFunc {
	prefix = strings.TrimSuffix(prefix, "/") + "/"

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, prefix) || !isMutation(req.Method) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Method:     req.Method,
				Path:       path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				RequestID:  requestID(c),
				Action:     httpMethodToAction(req.Method),
				StatusCode: c.Response().Status,
			}
			if err != nil {
				entry.StatusCode, _ = apperr.Status(err)
			}
			entry.Resource, entry.ResourceID = splitResource(strings.TrimPrefix(path, prefix))
			if claims, ok := auth.SessionFromContext(c.Request().Context()); ok {
				entry.SessionID = claims.ID
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "admin_audit").
				Str("request_id", entry.RequestID).
				Str("session_id", entry.SessionID).
				Str("action", entry.Action).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("admin_change")

			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResource reads "appointments/<id>/cancel" as ("appointments", id).
func splitResource(rest string) (string, string) {
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			return segments[0], segments[1]
		}
	}
	return segments[0], ""
}

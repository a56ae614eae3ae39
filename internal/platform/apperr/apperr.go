// Package apperr defines the error taxonomy shared by the intake domains and
// the HTTP error handler that renders it.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrPersistence       = errors.New("backing store unavailable")
	ErrNotification      = errors.New("notification failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("already exists")
)

// FieldError is a single (field, message) pair produced by validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every failing field of one request.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Has reports whether field has at least one error.
func (e *ValidationError) Has(field string) bool {
	return e.Message(field) != ""
}

// Message returns the first message recorded for field, or "".
func (e *ValidationError) Message(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// NotFound wraps ErrNotFound with the kind and id of the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// TransitionError reports a disallowed appointment status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("appointment is already %s and cannot be changed", e.From)
	}
	return fmt.Sprintf("cannot change appointment status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PersistenceError wraps a store failure. The cause is logged, never rendered.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persistence wraps err as a PersistenceError unless it already carries a
// taxonomy error that callers need to see.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	for _, kept := range []error{ErrNotFound, ErrInvalidTransition, ErrDuplicateIdentity, ErrConflict, ErrUnauthorized, ErrPersistence} {
		if errors.Is(err, kept) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

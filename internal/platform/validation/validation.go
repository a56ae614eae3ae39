// Package validation runs go-playground/validator rules over request structs
// and converts failures into an aggregate apperr.ValidationError whose field
// names follow the JSON tags and whose messages come from a per-form table.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

var (
	phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@.]+(\.[^\s@.]+)+$`)
)

// ScheduleSkew is how far in the past a "notpast" timestamp may be and still
// count as present.
const ScheduleSkew = time.Minute

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, time.RFC3339}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Messages maps "field.tag" (or just "field" as a fallback for every tag on
// that field) to the user-facing message.
type Messages map[string]string

func (m Messages) lookup(field, tag string) (string, bool) {
	if msg, ok := m[field+"."+tag]; ok {
		return msg, true
	}
	msg, ok := m[field]
	return msg, ok
}

// Engine wraps a configured validator.Validate.
type Engine struct {
	validate *validator.Validate
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used by the date rules.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine with the built-in string rules registered:
//
//	phone      optional "+" then 10-15 digits
//	email_addr local@domain with at least one dot in the domain
//	date       calendar date (YYYY-MM-DD or RFC 3339)
//	timestamp  date-time in RFC 3339 or a datetime-local layout
//	notfuture  date not after today
//	notpast    timestamp not before now (minus ScheduleSkew)
func New(opts ...Option) *Engine {
	e := &Engine{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	e.mustRegister("phone", phonePattern.MatchString)
	e.mustRegister("email_addr", emailPattern.MatchString)
	e.mustRegister("date", func(s string) bool {
		_, err := ParseDate(s)
		return err == nil
	})
	e.mustRegister("timestamp", func(s string) bool {
		_, err := ParseTimestamp(s)
		return err == nil
	})
	e.mustRegister("notfuture", func(s string) bool {
		d, err := ParseDate(s)
		if err != nil {
			return false
		}
		return !d.After(e.now())
	})
	e.mustRegister("notpast", func(s string) bool {
		ts, err := ParseTimestamp(s)
		if err != nil {
			return false
		}
		return !ts.Before(e.now().Add(-ScheduleSkew))
	})

	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// RegisterRule adds a rule over string fields (or string pointers) under tag.
func (e *Engine) RegisterRule(tag string, fn func(string) bool) error {
	return e.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return fn(field.String())
	})
}

func (e *Engine) mustRegister(tag string, fn func(string) bool) {
	if err := e.RegisterRule(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Struct validates s and returns nil or an *apperr.ValidationError listing
// every failing field in declaration order. Messages come from msgs, falling
// back to a generic text per tag.
func (e *Engine) Struct(s any, msgs Messages) error {
	err := e.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	out := &apperr.ValidationError{}
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := msgs.lookup(field, fe.Tag())
		if !ok {
			msg = defaultMessage(fe)
		}
		out.Add(field, msg)
	}
	return out
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "eq":
		return fmt.Sprintf("%s must be %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// ParseDate parses a calendar date, accepting a bare date or a full RFC 3339
// timestamp whose date part is used.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseTimestamp parses a date-time. Layouts without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Optional trims s and returns nil when nothing is left.
func Optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

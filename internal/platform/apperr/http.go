package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"errors,omitempty"`
}

// Status maps a taxonomy error to an HTTP status and a user-facing body.
func Status(err error) (int, ErrorBody) {
	var ve *ValidationError
	var te *TransitionError
	var he *echo.HTTPError

	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ErrorBody{Error: "validation failed", Fields: ve.Fields}
	case errors.As(err, &te):
		return http.StatusConflict, ErrorBody{Error: te.Error()}
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, ErrorBody{Error: err.Error()}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, ErrorBody{Error: err.Error()}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: err.Error()}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ErrorBody{Error: "unauthorized"}
	case errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable, ErrorBody{Error: "something went wrong, please try again"}
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, ErrorBody{Error: msg}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal server error"}
	}
}

// HTTPErrorHandler renders handler errors as JSON. Persistence failures and
// unclassified errors are logged with their cause.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, body := Status(err)
		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Int("status", code).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bcrant/mlrun/pkg/domain"
)

type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	Cause  error  `json:"-"`
}

func (em *ErrorMessage) UnmarshalJSON(bytes []byte) error {
	f := new(struct {
		Reason *string `json:"reason"`
		Advice *string `json:"advice,omitempty"`
	})
	if err := json.Unmarshal(bytes, f); err != nil {
		return err
	}

	if f.Reason == nil {
		return fmt.Errorf(`required field missing: "reason"`)
	}
	em.Reason = *f.Reason

	if f.Advice != nil {
		em.Advice = *f.Advice
	}

	return nil
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func BadRequest(reason string, err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusBadRequest, reason, WithError(err))
}

func NotFound() *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found")
}

func Forbidden(err error) *echo.HTTPError {
	return NewErrorMessage(http.StatusForbidden, "forbidden", WithError(err))
}

func Conflict(reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(http.StatusConflict, reason, opts...)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError, "unexpected error",
		WithError(err),
	)
}

// FromError translates domain sentinel errors into the HTTP error taxonomy.
//
// Unrecognized errors land on 500.
func FromError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return BadRequest(err.Error(), err)
	case errors.Is(err, domain.ErrMissing):
		return NotFound()
	case errors.Is(err, domain.ErrAlreadyExists):
		return Conflict(err.Error(), WithError(err))
	case errors.Is(err, domain.ErrForbidden):
		return Forbidden(err)
	default:
		return InternalServerError(err)
	}
}

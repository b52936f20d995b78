/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a user-facing message and the HTTP status used to report it.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sixmarket/internal/pkg/logx"
)

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the standard HTTP status code corresponding to this error.
	Status int
}

// Error implements the standard Go error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Is reports whether target is a CustomError with the same business code,
// so errors.Is(err, errs.NewError(errs.ErrListingNotFound)) works on wrapped errors.
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError constructs a *CustomError from a predefined error code.
// Details are applied printf-style when the message template has placeholders;
// for ErrUnknown the first detail may be the underlying error, which is logged.
// Unknown codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusInternalServerError
	}

	hasVerb := strings.Contains(customErr.Message, "%")

	switch {
	case code == ErrUnknown && len(details) > 0:
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
		}
	case len(details) > 0 && hasVerb:
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	case len(details) > 0:
		logx.Warn("Details provided for error, but message template has no formatting placeholders. Details ignored.",
			"code", code)
	case hasVerb:
		// "Invalid listing: %s" without details reads as "Invalid listing."
		head, _, _ := strings.Cut(customErr.Message, ":")
		customErr.Message = head + "."
	}

	return &customErr
}

// StatusOf returns the HTTP status for a business code, or 500 when the code is unknown.
func StatusOf(code int) int {
	if e, ok := errorMap[code]; ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

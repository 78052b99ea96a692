package apierror

import (
	"fmt"
	"net/http"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel the error was built from, if any.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Validation builds a 400 for a single offending field.
func Validation(field string, message string, cause error) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		Details:    field,
		HTTPStatus: http.StatusBadRequest,
		cause:      cause,
	}
}

// Conflict builds a 409 that still matches cause with errors.Is.
func Conflict(code string, message string, cause error) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: http.StatusConflict, cause: cause}
}

package utils

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

// AppError is the application-level error taxonomy. Every error that crosses
// a package boundary is one of these kinds; the HTTP layer maps kinds to
// status codes and callers branch on kind via errors.As.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindConflict   ErrorKind = "conflict"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindUpstream   ErrorKind = "upstream"
	ErrorKindInternal   ErrorKind = "internal"
)

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	switch e.Kind {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindConflict:
		return http.StatusConflict
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError carries remediation detail (e.g. existing_id, can_overwrite)
// so the caller knows whether a retry with overwrite can succeed.
func NewConflictError(message string, details map[string]any) *AppError {
	return &AppError{Kind: ErrorKindConflict, Message: message, Details: details}
}

func NewNotFoundError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindUpstream, Message: message, Err: err}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindInternal, Message: message, Err: err}
}

// AsAppError classifies err; anything that is not already an AppError is
// treated as a persistence-layer internal error.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return NewNotFoundError("%s", err.Error())
	}
	return &AppError{Kind: ErrorKindInternal, Message: "internal error", Err: err}
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by every service. Use errors.Is against these.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyReviewed = errors.New("already reviewed this year")
	ErrServiceUnavail  = errors.New("service unavailable")
)

// Error codes surfaced to API clients.
const (
	CodeNotFound                = "NOT_FOUND"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeNotAuthorized           = "NOT_AUTHORIZED"
	CodeConflict                = "CONFLICT"
	CodeAlreadyReviewedThisYear = "ALREADY_REVIEWED_THIS_YEAR"
	CodeStoreUnavailable        = "STORE_UNAVAILABLE"
	CodeIdempotencyKeyMismatch  = "IDEMPOTENCY_KEY_MISMATCH"
	CodeInternal                = "INTERNAL_ERROR"
)

// AppError is a structured application error carrying a client-facing code
// and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error for missing or invalid credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// NotAuthorized creates a 403 error for an authenticated caller acting on a
// resource it does not own.
func NotAuthorized(message string) *AppError {
	return &AppError{
		Code:    CodeNotAuthorized,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrNotAuthorized,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// AlreadyReviewedThisYear creates the 409 error returned when a user already
// reviewed the same target within the rolling window.
func AlreadyReviewedThisYear() *AppError {
	return &AppError{
		Code:    CodeAlreadyReviewedThisYear,
		Message: "you have already reviewed this within the last year",
		Status:  http.StatusConflict,
		Err:     ErrAlreadyReviewed,
	}
}

// StoreUnavailable creates a 503 error wrapping a transient storage failure.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Code:    CodeStoreUnavailable,
		Message: "storage is temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrServiceUnavail, err),
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyReviewed), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the client-facing code for the given error.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyReviewed):
		return CodeAlreadyReviewedThisYear
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrNotAuthorized):
		return CodeNotAuthorized
	case errors.Is(err, ErrServiceUnavail):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}

package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeDuplicateUsername = "DUPLICATE_USERNAME"
	ErrCodeActiveSession     = "ACTIVE_SESSION"
	ErrCodePersistence       = "PERSISTENCE_ERROR"
	ErrCodeRoundConflict     = "ROUND_CONFLICT"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string // Error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  404,
	}
}

// NewValidationError creates a new VALIDATION_ERROR. These are user input
// problems: nothing was persisted and retrying the same input will fail again.
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  400,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  500,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  400,
	}
}

// NewDuplicateUsernameError reports a username that already finished its game.
func NewDuplicateUsernameError(username string) *AppError {
	return &AppError{
		Code:    ErrCodeDuplicateUsername,
		Message: fmt.Sprintf("username %q has already played, choose a different username", username),
		Status:  409,
	}
}

// NewActiveSessionError reports that a session is already registered for the
// username. cause carries the typed error holding the existing session.
func NewActiveSessionError(username string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeActiveSession,
		Message: fmt.Sprintf("an active session already exists for %s", username),
		Status:  409,
		Err:     cause,
	}
}

// NewPersistenceError reports a failed write or read against the player store.
func NewPersistenceError(op string, err error) *AppError {
	return &AppError{
		Code:    ErrCodePersistence,
		Message: fmt.Sprintf("failed to %s player record", op),
		Status:  503,
		Err:     err,
	}
}

// NewRoundConflictError reports a submission that raced another one for the
// same round. Nothing was saved.
func NewRoundConflictError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRoundConflict,
		Message: message,
		Status:  409,
	}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

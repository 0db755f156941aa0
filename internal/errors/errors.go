package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"

	// ErrCodeCredential covers every credential-store rejection: bad email or
	// password, email already in use, weak password, unknown email for reset.
	// The user-facing message is deliberately generic so sign-in failures do
	// not reveal whether an account exists.
	ErrCodeCredential ErrorCode = "credential_error"
	// ErrCodeOrphanedIdentity marks a sign-up where profile creation failed
	// after the identity was already created. The user now has a usable login
	// with no profile; the next interactive sign-in synthesizes one.
	ErrCodeOrphanedIdentity ErrorCode = "orphaned_identity"
	// ErrCodeProfileInconsistency marks an authenticated identity with no
	// profile observed outside interactive sign-in. It is never shown to the
	// user; the auth context fails closed with a forced sign-out.
	ErrCodeProfileInconsistency ErrorCode = "profile_inconsistency"
)

// AppError represents a structured application error with a code, message, and
// optional cause. It supports errors.Is and errors.As through Unwrap.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Credential creates a credential error carrying the generic user-facing
// message. Pass the provider's real rejection as cause so logs keep the
// detail the user must not see.
func Credential(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeCredential, Message: message, Cause: cause}
}

// OrphanedIdentity creates the distinct error for a sign-up that created an
// identity but failed to create its profile.
func OrphanedIdentity(identityID string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeOrphanedIdentity,
		Message: fmt.Sprintf("account %s was created but its profile could not be saved; sign in to finish setup", identityID),
		Cause:   cause,
	}
}

// ProfileInconsistency creates the internal error for an authenticated
// identity observed without a profile.
func ProfileInconsistency(identityID string) *AppError {
	return &AppError{
		Code:    ErrCodeProfileInconsistency,
		Message: fmt.Sprintf("identity %s has no profile", identityID),
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsCredential checks if an error is a credential error.
func IsCredential(err error) bool { return isCode(err, ErrCodeCredential) }

// IsOrphanedIdentity checks if an error marks an orphaned identity.
func IsOrphanedIdentity(err error) bool { return isCode(err, ErrCodeOrphanedIdentity) }

// IsProfileInconsistency checks if an error marks a missing profile for an
// authenticated identity.
func IsProfileInconsistency(err error) bool { return isCode(err, ErrCodeProfileInconsistency) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

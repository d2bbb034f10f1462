package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Connection lifecycle
	ErrCodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	ErrCodeNetworkTimeout    ErrorCode = "NETWORK_TIMEOUT"
	ErrCodeNotConnected      ErrorCode = "NOT_CONNECTED"

	// Send path
	ErrCodeNetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"
	ErrCodeUssdTimeout        ErrorCode = "USSD_TIMEOUT"
	ErrCodeRetriesExhausted   ErrorCode = "RETRIES_EXHAUSTED"

	// USSD sessions
	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionWrongState ErrorCode = "SESSION_WRONG_STATE"

	// Verification
	ErrCodeCodeNotFound ErrorCode = "CODE_NOT_FOUND"
	ErrCodeCodeExpired  ErrorCode = "CODE_EXPIRED"
	ErrCodeCodeMismatch ErrorCode = "CODE_MISMATCH"
	ErrCodeTokenInvalid ErrorCode = "TOKEN_INVALID"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func DeviceUnavailable(cause error) *AppError {
	return Wrap(ErrCodeDeviceUnavailable, "Modem device unavailable", cause)
}

func NetworkTimeout() *AppError {
	return New(ErrCodeNetworkTimeout, "Timed out waiting for network registration")
}

func NotConnected() *AppError {
	return New(ErrCodeNotConnected, "Modem not connected")
}

func NetworkUnavailable(status string) *AppError {
	return New(ErrCodeNetworkUnavailable, fmt.Sprintf("Network not available: %s", status))
}

func UssdTimeout(code string) *AppError {
	return New(ErrCodeUssdTimeout, fmt.Sprintf("USSD request timed out: %s", code))
}

func RetriesExhausted(attempts int, cause error) *AppError {
	return Wrap(ErrCodeRetriesExhausted, fmt.Sprintf("Send failed after %d attempts", attempts), cause)
}

func SessionNotFound(id string) *AppError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("USSD session %s not found", id))
}

func SessionWrongState(id, state string) *AppError {
	return New(ErrCodeSessionWrongState, fmt.Sprintf("USSD session %s is %s and accepts no input", id, state))
}

func CodeNotFound() *AppError {
	return New(ErrCodeCodeNotFound, "No verification code pending for this number")
}

func CodeExpired() *AppError {
	return New(ErrCodeCodeExpired, "Verification code has expired")
}

func CodeMismatch() *AppError {
	return New(ErrCodeCodeMismatch, "Verification code does not match")
}

func TokenInvalid(cause error) *AppError {
	return Wrap(ErrCodeTokenInvalid, "Token is invalid", cause)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func NotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

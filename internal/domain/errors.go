package domain

import "fmt"

// ErrorType classifies a domain error for transport mapping.
type ErrorType string

const (
	// ValidationError represents malformed or missing input
	ValidationError ErrorType = "VALIDATION_ERROR"
	// NotFoundError represents a missing resource
	NotFoundError ErrorType = "NOT_FOUND_ERROR"
	// ConflictError represents illegal state transitions and stale resources
	ConflictError ErrorType = "CONFLICT_ERROR"
	// AdmissionError represents tier-limit denials
	AdmissionError ErrorType = "ADMISSION_ERROR"
	// ChallengeError represents failed MFA or verification submissions
	ChallengeError ErrorType = "CHALLENGE_ERROR"
	// ExpiredError represents sessions or challenges past their deadline
	ExpiredError ErrorType = "EXPIRED_ERROR"
	// ExternalServiceError represents provider adapter failures
	ExternalServiceError ErrorType = "EXTERNAL_SERVICE_ERROR"
	// InternalError represents storage and infrastructure failures
	InternalError ErrorType = "INTERNAL_ERROR"
)

// Stable error codes returned to callers. Messages may change; codes must not.
const (
	CodeAdmissionDenied       = "ADMISSION_DENIED"
	CodeProviderUnavailable   = "EXTERNAL_PROVIDER_UNAVAILABLE"
	CodeProviderRejected      = "EXTERNAL_PROVIDER_REJECTED"
	CodeIllegalTransition     = "ILLEGAL_STATE_TRANSITION"
	CodeMfaIncorrect          = "MFA_INCORRECT"
	CodeMfaExhausted          = "MFA_EXHAUSTED"
	CodeMfaExpired            = "MFA_EXPIRED"
	CodeVerificationIncorrect = "VERIFICATION_INCORRECT"
	CodeVerificationExhausted = "VERIFICATION_EXHAUSTED"
	CodeVerificationExpired   = "VERIFICATION_EXPIRED"
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeSessionExpired        = "SESSION_EXPIRED"
	CodePersistenceFailed     = "PERSISTENCE_FAILED"
)

// Error is a domain error carrying a stable code and optional detail map.
// Detail values must never contain provider credentials.
type Error struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a detail key/value and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HasCode reports whether err is a domain Error with the given code.
func HasCode(err error, code string) bool {
	domainErr, ok := err.(*Error)
	return ok && domainErr.Code == code
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string, details map[string]interface{}) *Error {
	return &Error{Type: ValidationError, Code: code, Message: message, Details: details}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *Error {
	return &Error{Type: NotFoundError, Code: code, Message: message}
}

// NewConflictError creates a conflict error.
func NewConflictError(code, message string) *Error {
	return &Error{Type: ConflictError, Code: code, Message: message}
}

// NewAdmissionError creates a tier-admission denial carrying the deny reason.
func NewAdmissionError(reason DenyReason, message string) *Error {
	return &Error{
		Type:    AdmissionError,
		Code:    CodeAdmissionDenied,
		Message: message,
		Details: map[string]interface{}{"reason": string(reason)},
	}
}

// NewChallengeError creates an incorrect-submission error for a sub-flow.
func NewChallengeError(code, message string, attemptsRemaining int) *Error {
	return &Error{
		Type:    ChallengeError,
		Code:    code,
		Message: message,
		Details: map[string]interface{}{"attempts_remaining": attemptsRemaining},
	}
}

// NewExpiredError creates an expiry error for sessions and challenges.
func NewExpiredError(code, message string) *Error {
	return &Error{Type: ExpiredError, Code: code, Message: message}
}

// NewExternalServiceError creates a provider failure error. The retryable
// flag tells callers whether re-invoking the same operation is safe.
func NewExternalServiceError(code, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:    ExternalServiceError,
		Code:    code,
		Message: message,
		Details: map[string]interface{}{"retryable": retryable},
		Cause:   cause,
	}
}

// NewInternalError creates an internal error wrapping its cause.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{Type: InternalError, Code: code, Message: message, Cause: cause}
}

// IsRetryable reports whether err is an external-service error marked
// retryable. Retryable failures leave the session in its prior state.
func IsRetryable(err error) bool {
	domainErr, ok := err.(*Error)
	if !ok || domainErr.Type != ExternalServiceError {
		return false
	}
	retryable, ok := domainErr.Details["retryable"].(bool)
	return ok && retryable
}

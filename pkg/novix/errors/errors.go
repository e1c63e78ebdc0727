package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code. Sentinels
// below carry only a code, so errors.Is(err, ErrSessionNotFound) matches
// any session-not-found error regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the outermost AppError in err's chain, or an
// empty string when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// MessageOf returns the user-facing message of the outermost AppError in
// err's chain, falling back to err.Error().
func MessageOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Error codes
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeSessionBusy       = "SESSION_BUSY"
	ErrCodeAgentInit         = "AGENT_INIT_FAILED"
	ErrCodeInteraction       = "INTERACTION_FAILED"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeAgentConfig       = "AGENT_CONFIG_INVALID"
	ErrCodeToolExecution     = "TOOL_EXECUTION_FAILED"
	ErrCodeCatalog           = "CATALOG_FAILED"
	ErrCodeListingNotFound   = "LISTING_NOT_FOUND"
)

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput      = &AppError{Code: ErrCodeInvalidInput}
	ErrSessionNotFound   = &AppError{Code: ErrCodeSessionNotFound}
	ErrSessionBusy       = &AppError{Code: ErrCodeSessionBusy}
	ErrAgentInit         = &AppError{Code: ErrCodeAgentInit}
	ErrInteraction       = &AppError{Code: ErrCodeInteraction}
	ErrInvalidCredential = &AppError{Code: ErrCodeInvalidCredential}
	ErrListingNotFound   = &AppError{Code: ErrCodeListingNotFound}
)

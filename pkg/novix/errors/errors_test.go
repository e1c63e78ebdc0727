package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeToolExecution, "tool failed", nil)

	assert.NotNil(t, err)
	assert.Equal(t, ErrCodeToolExecution, err.Code)
	assert.Equal(t, "tool failed", err.Message)
	assert.Nil(t, err.Cause)
}

func TestAppError_Error_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeAgentInit, "unable to set up the session", cause)
	errorString := err.Error()

	assert.Contains(t, errorString, ErrCodeAgentInit)
	assert.Contains(t, errorString, "unable to set up the session")
	assert.Contains(t, errorString, "underlying error")
}

func TestAppError_NilCause(t *testing.T) {
	err := New(ErrCodeSessionNotFound, "session not found", nil)
	errorString := err.Error()

	assert.NotEmpty(t, errorString)
	assert.NotContains(t, errorString, "nil")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(ErrCodeInteraction, "interaction failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("lookup: %w", New(ErrCodeSessionNotFound, "session abc not found", nil))

	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.False(t, errors.Is(err, ErrSessionBusy))
	assert.False(t, errors.Is(errors.New("plain"), ErrSessionNotFound))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"direct", New(ErrCodeInvalidCredential, "bad key", nil), ErrCodeInvalidCredential},
		{"wrapped", fmt.Errorf("outer: %w", New(ErrCodeSessionBusy, "busy", nil)), ErrCodeSessionBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "", MessageOf(nil))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
	assert.Equal(t, "Message is required", MessageOf(New(ErrCodeInvalidInput, "Message is required", nil)))
}

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrCodeInvalidInput,
		ErrCodeSessionNotFound,
		ErrCodeSessionBusy,
		ErrCodeAgentInit,
		ErrCodeInteraction,
		ErrCodeInvalidCredential,
		ErrCodeAgentConfig,
		ErrCodeToolExecution,
		ErrCodeCatalog,
		ErrCodeListingNotFound,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code)
		assert.False(t, seen[code], "duplicate error code: %s", code)
		seen[code] = true
	}
}

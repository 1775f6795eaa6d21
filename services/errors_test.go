package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeExternal, "provider failed", baseErr)

	assert.Equal(t, ErrorTypeExternal, domainErr.Type)
	assert.Equal(t, "provider failed", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeUnavailable,
				Message: "no provider",
				Err:     errors.New("no provider candidates"),
			},
			wantMsg: "unavailable: no provider (no provider candidates)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeExternal, "groq and gemini failed", nil),
			target: ErrProvidersExhausted,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrNoProviderCandidates,
			want:   false,
		},
		{
			name:   "non domain target",
			err:    NewDomainError(ErrorTypeInternal, "internal", nil),
			target: errors.New("plain"),
			want:   false,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("ask: %w", NewDomainError(ErrorTypeUnavailable, "x", nil)),
			target: ErrAuditDisabled,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := WrapError(ErrorTypeExternal, "provider error", baseErr)

	assert.ErrorIs(t, domainErr, baseErr)
}

func TestDomainError_WithDetail(t *testing.T) {
	err := WrapError(ErrorTypeExternal, "exhausted", nil).
		WithDetail("last_provider", "gemini").
		WithDetail("last_kind", "transient")

	assert.Equal(t, "gemini", err.Details["last_provider"])
	assert.Equal(t, "transient", GetErrorDetails(err)["last_kind"])

	bare := &DomainError{Type: ErrorTypeInternal}
	bare.WithDetail("k", 1)
	assert.Equal(t, 1, bare.Details["k"])
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", ErrInvalidProvider, IsValidationError},
		{"unauthorized", ErrInvalidToken, IsUnauthorizedError},
		{"unavailable", ErrNoProviderCandidates, IsUnavailableError},
		{"internal", WrapInternal("db", errors.New("down")), IsInternalError},
		{"external", ErrProvidersExhausted, IsExternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("wrapped: %w", tt.err)))
			assert.False(t, tt.check(errors.New("plain")))
		})
	}

	assert.Equal(t, ErrorTypeExternal, GetErrorType(ErrProvidersExhausted))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}

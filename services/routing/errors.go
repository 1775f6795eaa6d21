package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/upb/qna-gateway/services/providers"
)

var (
	// ErrNoCandidates is returned when policy resolution leaves nothing to try
	ErrNoCandidates = errors.New("no provider candidates")

	// ErrAllProvidersExhausted is matched by every *ExhaustedError
	ErrAllProvidersExhausted = errors.New("all providers exhausted")

	// ErrEmptyAnswer is recorded when a provider returns blank text
	ErrEmptyAnswer = errors.New("provider returned an empty answer")
)

// ErrorKind is the classification of a provider failure
type ErrorKind int

const (
	// KindFatal failures skip the provider without a cooldown
	KindFatal ErrorKind = iota

	// KindTransient failures skip the provider and start a cooldown
	KindTransient

	// KindCredentialMissing means the provider was never called
	KindCredentialMissing
)

// String returns the label used in logs, metrics and API responses
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindCredentialMissing:
		return "credential_missing"
	default:
		return "fatal"
	}
}

// FailureRecord describes one failed candidate within an Ask call
type FailureRecord struct {
	Provider providers.ProviderID
	Kind     ErrorKind
	Cause    error
	At       time.Time
}

// Error renders the record as "<provider> (<kind>): <cause>"
func (f FailureRecord) Error() string {
	if f.Cause == nil {
		return fmt.Sprintf("%s (%s)", f.Provider, f.Kind)
	}
	return fmt.Sprintf("%s (%s): %v", f.Provider, f.Kind, f.Cause)
}

// ExhaustedError is returned when every candidate failed.
// Last is the most recent failure; Attempts holds all of them in order.
type ExhaustedError struct {
	Last     FailureRecord
	Attempts []FailureRecord

	// ctxErr is set when the caller's context ended the loop early
	ctxErr error
}

// Error implements the error interface
func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("%s after %d attempt(s): last failure %s", ErrAllProvidersExhausted, len(e.Attempts), e.Last.Error())
	if e.ctxErr != nil {
		msg += ": " + e.ctxErr.Error()
	}
	return msg
}

// Is matches ErrAllProvidersExhausted
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Unwrap exposes the last cause and, when set, the caller's context error
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Last.Cause != nil {
		errs = append(errs, e.Last.Cause)
	}
	if e.ctxErr != nil {
		errs = append(errs, e.ctxErr)
	}
	return errs
}

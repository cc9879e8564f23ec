package provider

import (
	"errors"
	"fmt"
)

// FailureClass is the failure taxonomy for provider calls. Transient classes
// are retried inside the client; fatal classes surface immediately.
type FailureClass string

const (
	// FailureRateLimit: the provider rejected the call (429) or the local
	// token bucket timed out. Transient, retryable.
	FailureRateLimit FailureClass = "rate_limit_exceeded"

	// FailureUpstreamUnavailable: 5xx, connection error or timeout.
	// Transient, retryable, counts toward the circuit breaker.
	FailureUpstreamUnavailable FailureClass = "upstream_unavailable"

	// FailureAuth: 401/403. Fatal for the provider, never retried.
	FailureAuth FailureClass = "auth_error"

	// FailureMalformed: the payload does not match the provider contract.
	// Fatal for the call; does not count toward the breaker since it signals
	// a contract change, not an outage.
	FailureMalformed FailureClass = "malformed_response"

	// FailureCircuitOpen: the breaker is open; no network attempt was made.
	FailureCircuitOpen FailureClass = "circuit_open"
)

// Transient reports whether the class is worth retrying.
func (c FailureClass) Transient() bool {
	return c == FailureRateLimit || c == FailureUpstreamUnavailable
}

// Error is a classified provider failure.
type Error struct {
	Class      FailureClass
	Provider   string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Class, e.Provider, e.Endpoint)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ClassOf extracts the failure class from err, or "" if err is not a
// provider error.
func ClassOf(err error) FailureClass {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ""
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	return ClassOf(err).Transient()
}

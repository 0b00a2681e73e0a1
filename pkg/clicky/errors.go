package clicky

import (
	"errors"
	"fmt"
)

// ValidationError is returned before any request is sent when a query
// violates provider constraints.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// UpstreamError represents a failed provider request. StatusCode is zero
// when the request never produced a response (network error, timeout).
type UpstreamError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("clicky request failed: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("clicky API error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("clicky API error %d: %s", e.StatusCode, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when a provider payload cannot be
// decoded into the shape an operation expects.
type MalformedResponseError struct {
	Field string
	Value string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed clicky response: %v", e.Err)
	}
	return fmt.Sprintf("malformed clicky response: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsUpstreamError checks if an error is an upstream error
func IsUpstreamError(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsMalformedResponseError checks if an error is a malformed response error
func IsMalformedResponseError(err error) bool {
	var target *MalformedResponseError
	return errors.As(err, &target)
}

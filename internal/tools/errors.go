package tools

import (
	"errors"
	"fmt"
)

// UnknownOperationError is returned when a call names no registered operation.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("Unknown tool: %s", e.Name)
}

// ArgumentError is returned when call arguments do not fit the declared shape.
type ArgumentError struct {
	Field string
	Err   error
}

func (e *ArgumentError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid arguments: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid arguments: %v", e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

var errMissing = errors.New("required argument is missing")

// IsUnknownOperationError checks if an error is an unknown operation error
func IsUnknownOperationError(err error) bool {
	var target *UnknownOperationError
	return errors.As(err, &target)
}

// IsArgumentError checks if an error is an argument error
func IsArgumentError(err error) bool {
	var target *ArgumentError
	return errors.As(err, &target)
}

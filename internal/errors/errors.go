// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recorder's failure taxonomy.
var (
	ErrInvalidType        = errors.New("invalid type")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrEmpty              = errors.New("queue is empty")
	ErrOutOfRange         = errors.New("index out of range")
	ErrAllocationFailure  = errors.New("allocation failure")
	ErrIOFailure          = errors.New("i/o failure")
	ErrConfigParseFailure = errors.New("config parse failure")
	ErrRecordSize         = errors.New("record size mismatch")
	ErrInvalidRecord      = errors.New("invalid record")
)

// TypeError reports a failed operation on one registry entry.
type TypeError struct {
	Op   string
	Type string
	Err  error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Type, e.Err)
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// IOError represents a filesystem operation failure during a dump.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

// Unwrap exposes both ErrIOFailure and the underlying cause.
func (e *IOError) Unwrap() []error {
	return []error{ErrIOFailure, e.Err}
}

// IsRetryable determines if an IOError is retryable based on the operation type.
func (e *IOError) IsRetryable() bool {
	// A later dump creates a fresh file, so open/write/close failures may clear.
	return e.Operation == "open" || e.Operation == "write" || e.Operation == "close" || e.Operation == "mkdir"
}

// ValidationError represents a record whose fields fall outside their
// enumerations.
type ValidationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: type=%s field=%s: %s",
		e.Type, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}

// ConfigError represents a malformed or unrecognized configuration entry.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: field=%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config error: field=%s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfigParseFailure, e.Err}
	}
	return []error{ErrConfigParseFailure}
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return errors.Is(err, ErrIOFailure)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrNameRequired is returned when a record has no name.
	ErrNameRequired = errors.New("flow name is required")

	// ErrInvalidIdentifiers is returned when a record lacks a valid trace or span id.
	ErrInvalidIdentifiers = errors.New("flow identifiers are invalid")

	// ErrServiceIDMissing is returned when neither the record nor its resource carry a service id.
	ErrServiceIDMissing = errors.New("service id is required")

	// ErrServiceIDConflict is returned when the top-level service id and the resource service.id differ.
	ErrServiceIDConflict = errors.New("service id conflicts with resource service.id")

	// ErrInvalidConfig is returned when the engine configuration is inconsistent.
	ErrInvalidConfig = errors.New("invalid flow configuration")
)

// ConfigError reports an engine configuration problem found at construction.
type ConfigError struct {
	Field   string // Field that failed validation
	Message string // Human readable reason
	Err     error  // Underlying sentinel
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("flow config error in %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("flow config error in %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PanicError is the failure recorded for a unit of work that panicked.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousWildcard is returned when a component declares more than one
	// blank-wildcard FAILURE handler for a lifecycle.
	ErrAmbiguousWildcard = errors.New("ambiguous wildcard failure handlers")

	// ErrAmbiguousErrorType is returned when two FAILURE handlers share lifecycle,
	// flow name and error type.
	ErrAmbiguousErrorType = errors.New("ambiguous error type handlers")

	// ErrErrorTypeNotAllowed is returned when a handler that is not a FAILURE handler declares an error type.
	ErrErrorTypeNotAllowed = errors.New("error type is only allowed on failure handlers")

	// ErrNotMatchedFilter is returned when a not-matched hook declares a flow
	// name or an outcome. Those hooks fire for whatever the component missed.
	ErrNotMatchedFilter = errors.New("not-matched hooks take no flow or outcome filter")

	// ErrAmbiguousMatch is returned by Classify when a failure matches several
	// declared types of the same depth.
	ErrAmbiguousMatch = errors.New("failure matches several error types of equal depth")

	// ErrUnknownErrorType is returned when an error type was never declared.
	ErrUnknownErrorType = errors.New("unknown error type")

	// ErrInvalidErrorType is returned when an error type declaration is malformed.
	ErrInvalidErrorType = errors.New("invalid error type")

	// ErrErrorTypesFrozen is returned when declaring after a registry was built.
	ErrErrorTypesFrozen = errors.New("error types are frozen")

	// ErrInvalidComponent is returned for an unnamed component.
	ErrInvalidComponent = errors.New("invalid component")

	// ErrInvalidHandler is returned for a handler without a function.
	ErrInvalidHandler = errors.New("invalid handler")

	// ErrDuplicateComponent is returned when two components share a name.
	ErrDuplicateComponent = errors.New("duplicate component")

	// ErrMultipleFallbacks is returned when more than one component is the global fallback.
	ErrMultipleFallbacks = errors.New("more than one fallback component")

	// ErrDuplicateNotMatched is returned when a component declares two not-matched hooks for a lifecycle.
	ErrDuplicateNotMatched = errors.New("duplicate not-matched hook")

	// ErrBindingMissing is returned when a required binding has no value.
	ErrBindingMissing = errors.New("required binding has no value")
)

// ConfigError reports a rejected handler declaration.
type ConfigError struct {
	Component string // Component that declared the handler
	Rule      string // Validation rule that failed
	Message   string // Details, including the offending methods
	Err       error  // Underlying sentinel
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("dispatch config error in component %q, rule %s: %s", e.Component, e.Rule, e.Message)
}

// Unwrap returns the underlying sentinel.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// HandlerError is a failure returned or raised by one handler.
type HandlerError struct {
	Component string
	Method    string
	Panicked  bool
	Err       error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("handler %s.%s panicked: %v", e.Component, e.Method, e.Err)
	}
	return fmt.Sprintf("handler %s.%s failed: %v", e.Component, e.Method, e.Err)
}

// Unwrap returns the handler's error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// BindingError is a required binding that could not be resolved. The handler
// is skipped; its siblings still run.
type BindingError struct {
	Component string
	Method    string
	Param     string
	Key       string
}

// Error implements the error interface.
func (e *BindingError) Error() string {
	return fmt.Sprintf("handler %s.%s: parameter %q (key %q): %v", e.Component, e.Method, e.Param, e.Key, ErrBindingMissing)
}

// Unwrap returns ErrBindingMissing.
func (e *BindingError) Unwrap() error {
	return ErrBindingMissing
}

// AmbiguousError reports a failure classified into several sibling types.
// Dispatch continues with Resolved, the nearest type every candidate
// descends from.
type AmbiguousError struct {
	Candidates []string
	Resolved   string
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%v: %s (dispatched as %q)", ErrAmbiguousMatch, strings.Join(e.Candidates, ", "), e.Resolved)
}

// Unwrap returns ErrAmbiguousMatch.
func (e *AmbiguousError) Unwrap() error {
	return ErrAmbiguousMatch
}

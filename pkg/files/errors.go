package files

import (
	"errors"
	"fmt"
)

var (
	// ErrPatchRejected is returned by Apply when the patch holds nothing but
	// nulls. It marks a no-op, not a failure.
	ErrPatchRejected = errors.New("patch is empty after pruning nulls")

	// ErrPersistence matches every PersistenceError through errors.Is.
	ErrPersistence = errors.New("config persistence failed")

	// ErrNotFound is returned by backends for a scope that was never saved.
	ErrNotFound = errors.New("config document not found")

	ErrInvalidScope = errors.New("invalid config scope")
)

// ConfigError describes a failed configuration operation on a path or scope.
type ConfigError struct {
	Operation string
	Path      string
	Cause     error
}

func (e ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config %s failed for %s: %v", e.Operation, e.Path, e.Cause)
	}
	return fmt.Sprintf("config %s failed for %s", e.Operation, e.Path)
}

func (e ConfigError) Unwrap() error {
	return e.Cause
}

func NewConfigError(operation, path string, cause error) ConfigError {
	return ConfigError{Operation: operation, Path: path, Cause: cause}
}

// PersistenceError reports that a backend write failed. The committed
// document for Scope is unchanged when this is returned.
type PersistenceError struct {
	Scope   string
	Backend string
	Cause   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist config for %s via %s: %v", e.Scope, e.Backend, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// ValidationError represents a rejected field value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field string, value any, message string) ValidationError {
	return ValidationError{Field: field, Value: value, Message: message}
}

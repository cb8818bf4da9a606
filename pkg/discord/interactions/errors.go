package interactions

import (
	"errors"
	"fmt"

	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/panel"
)

// ErrRoutingMiss is returned when no route accepts an interaction.
var ErrRoutingMiss = errors.New("no route for interaction")

// HandlerError wraps a handler failure or panic with the route that raised it.
type HandlerError struct {
	Route string
	Panic any
	Err   error
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("route %s panicked: %v", e.Route, e.Panic)
	}
	return fmt.Sprintf("route %s: %v", e.Route, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// UserError is a failure caused by user input. Its message is shown to the
// user as is.
type UserError struct {
	Message string
	Cause   error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Cause }

func NewUserError(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// ErrorClass buckets handler outcomes for notices, logging and stats.
type ErrorClass uint8

const (
	ClassNone ErrorClass = iota
	ClassDuplicate
	ClassRoutingMiss
	ClassSessionConflict
	ClassSessionExpired
	ClassPatchRejected
	ClassInvalidInput
	ClassPersistence
	ClassHandler
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "ok"
	case ClassDuplicate:
		return "duplicate"
	case ClassRoutingMiss:
		return "routing_miss"
	case ClassSessionConflict:
		return "session_conflict"
	case ClassSessionExpired:
		return "session_expired"
	case ClassPatchRejected:
		return "patch_rejected"
	case ClassInvalidInput:
		return "invalid_input"
	case ClassPersistence:
		return "persistence_failure"
	default:
		return "handler_exception"
	}
}

// Routine reports whether the class is an expected outcome that is not
// worth error-level logging.
func (c ErrorClass) Routine() bool {
	return c != ClassPersistence && c != ClassHandler
}

// Classify maps an error returned through the router to its class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	var he *HandlerError
	if errors.As(err, &he) && he.Panic != nil {
		return ClassHandler
	}
	var ue *UserError
	switch {
	case errors.Is(err, ErrRoutingMiss):
		return ClassRoutingMiss
	case errors.Is(err, panel.ErrSessionConflict):
		return ClassSessionConflict
	case errors.Is(err, panel.ErrSessionExpired):
		return ClassSessionExpired
	case errors.Is(err, files.ErrPatchRejected):
		return ClassPatchRejected
	case errors.As(err, &ue):
		return ClassInvalidInput
	case errors.Is(err, files.ErrPersistence):
		return ClassPersistence
	default:
		return ClassHandler
	}
}

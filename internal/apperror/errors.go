// Package apperror defines the error kinds shared by the report store, the
// lifecycle engine and the HTTP layer.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed or missing input fields.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a duplicate active report or a rejected state change.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates the referenced report does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermission indicates the caller is not entitled to perform the action.
	ErrPermission = errors.New("permission denied")
	// ErrTransient indicates the store was unreachable or timed out.
	ErrTransient = errors.New("store unavailable")
	// ErrInvalidTransition indicates a status change outside the lifecycle table.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDuplicateReport indicates an existing report blocks a new submission.
	ErrDuplicateReport = errors.New("duplicate")
)

// Validation wraps err as a validation failure.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Validationf builds a validation failure from a message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Transient wraps err as a transient store failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Conflict wraps err as a conflict.
func Conflict(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConflict, err)
}

// NotFound wraps err as a missing record.
func NotFound(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

// TransitionError reports a status change that the lifecycle table does not allow.
// It matches both ErrInvalidTransition and ErrConflict.
type TransitionError struct {
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	from := e.From
	if from == "" {
		from = "none"
	}
	return fmt.Sprintf("invalid transition: cannot %s a report in status %s", e.Event, from)
}

// Is allows errors.Is(err, ErrInvalidTransition) and errors.Is(err, ErrConflict).
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == ErrConflict
}

// DuplicateError reports the existing report that blocks a submission.
// It matches both ErrDuplicateReport and ErrConflict.
type DuplicateError struct {
	ExistingID  string
	CanResubmit bool
}

func (e *DuplicateError) Error() string {
	if e.CanResubmit {
		return fmt.Sprintf("duplicate: rejected report %s exists and can be resubmitted", e.ExistingID)
	}
	return fmt.Sprintf("duplicate: report %s already exists for this period", e.ExistingID)
}

// Is allows errors.Is(err, ErrDuplicateReport) and errors.Is(err, ErrConflict).
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateReport || target == ErrConflict
}

// Kind names the error kind of err for logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateReport):
		return "duplicate"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}

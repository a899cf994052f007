package edit

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned by operations on an aborted view.
	ErrAborted = errors.New("edit: view is aborted")
	// ErrCommitted is returned by operations on an already committed view.
	ErrCommitted = errors.New("edit: view is already committed")
)

// TransformationConflictError reports a staged edit that no longer applies
// against the current source state.
type TransformationConflictError struct {
	Transformation string
	Reason         string
	Err            error
}

func (e *TransformationConflictError) Error() string {
	msg := fmt.Sprintf("transformation %q conflicts: %s", e.Transformation, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransformationConflictError) Unwrap() error { return e.Err }

// Conflict builds a TransformationConflictError for t.
func Conflict(t fmt.Stringer, reason string, err error) *TransformationConflictError {
	name := "<nil>"
	if t != nil {
		name = t.String()
	}
	return &TransformationConflictError{Transformation: name, Reason: reason, Err: err}
}

// UnsupportedEditError reports an operation a TransformProvider does not implement.
type UnsupportedEditError struct {
	Operation string
	Provider  string
}

func (e *UnsupportedEditError) Error() string {
	return fmt.Sprintf("edit operation %s is not supported by %s", e.Operation, e.Provider)
}

package machine

import (
	"fmt"

	"github.com/podhmo/go-analyzing/object"
)

// RunError is the error of an aborted analysis run. It carries the method and
// position of the failing instruction; errors.As reaches the cause.
type RunError struct {
	Method      object.MethodID
	Position    string
	Instruction string
	Err         error
}

func (e *RunError) Error() string {
	where := string(e.Method)
	if e.Position != "" {
		where += " (" + e.Position + ")"
	}
	if e.Instruction != "" {
		return fmt.Sprintf("%s: %q: %v", where, e.Instruction, e.Err)
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// LimitError reports an interpreted program exceeding a configured guard.
type LimitError struct {
	Limit string // "call depth" or "steps"
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit of %d exceeded", e.Limit, e.Max)
}

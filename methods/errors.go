package methods

import (
	"fmt"
	"strings"

	"github.com/podhmo/go-analyzing/object"
)

// MethodResolutionError reports a dynamic or generic dispatch with zero or
// several matching implementations.
type MethodResolutionError struct {
	Method     object.MethodID
	Dynamic    object.TypeDescriptor
	Candidates []object.MethodID
	Reason     string
}

func (e *MethodResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve %s on %s: %s", e.Method, e.Dynamic, e.Reason)
	if len(e.Candidates) > 0 {
		names := make([]string, len(e.Candidates))
		for i, c := range e.Candidates {
			names[i] = c.String()
		}
		msg += " (" + strings.Join(names, ", ") + ")"
	}
	return msg
}

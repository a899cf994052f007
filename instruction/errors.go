package instruction

import (
	"fmt"
	"strings"

	"github.com/podhmo/go-analyzing/object"
)

// RecursiveGenerationError is returned when a generator is asked to
// materialize itself while it is already being materialized.
type RecursiveGenerationError struct {
	Name  object.VersionedName
	Chain []object.VersionedName
}

func (e *RecursiveGenerationError) Error() string {
	names := make([]string, len(e.Chain))
	for i, n := range e.Chain {
		names[i] = n.String()
	}
	return fmt.Sprintf("recursive generation of %s: %s", e.Name, strings.Join(names, " -> "))
}

package scope

import (
	"fmt"
	"sort"

	"github.com/podhmo/go-analyzing/object"
)

// UnboundVariableError is returned when a variable is read before it is set.
type UnboundVariableError struct {
	Name object.VariableName
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("variable %s is not bound", e.Name)
}

// Variables holds the bindings of one call frame (or the shared slots of a run).
// There is no outer chain: frames never see each other's bindings.
type Variables struct {
	store map[object.VariableName]*object.Instance
}

// New creates an empty variable store.
func New() *Variables {
	return &Variables{store: make(map[object.VariableName]*object.Instance)}
}

// Get returns the bound instance or an *UnboundVariableError.
func (v *Variables) Get(name object.VariableName) (*object.Instance, error) {
	inst, ok := v.store[name]
	if !ok {
		return nil, &UnboundVariableError{Name: name}
	}
	return inst, nil
}

// Set binds name to inst.
func (v *Variables) Set(name object.VariableName, inst *object.Instance) *object.Instance {
	v.store[name] = inst
	return inst
}

// Contains reports whether name is bound.
func (v *Variables) Contains(name object.VariableName) bool {
	_, ok := v.store[name]
	return ok
}

// Len returns the number of bindings.
func (v *Variables) Len() int { return len(v.store) }

// Names returns the bound names in a stable order.
func (v *Variables) Names() []object.VariableName {
	names := make([]object.VariableName, 0, len(v.store))
	for name := range v.store {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Name != names[j].Name {
			return names[i].Name < names[j].Name
		}
		return names[i].Scope < names[j].Scope
	})
	return names
}

// Find returns the first non-temporary name bound to inst, in Names order.
func (v *Variables) Find(inst *object.Instance) (object.VariableName, bool) {
	for _, name := range v.Names() {
		if name.IsTemporary() {
			continue
		}
		if v.store[name] == inst {
			return name, true
		}
	}
	return object.VariableName{}, false
}

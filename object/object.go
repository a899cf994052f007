package object

import (
	"fmt"
	"sort"
	"strings"
)

// TypeDescriptor names the runtime type of an Instance.
// Args holds generic arguments; a descriptor without Args is a plain type.
type TypeDescriptor struct {
	Name string
	Args []TypeDescriptor
}

// TypeOf is a shorthand for building a TypeDescriptor.
func TypeOf(name string, args ...TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{Name: name, Args: args}
}

// IsZero reports whether the descriptor names no type at all.
func (t TypeDescriptor) IsZero() bool { return t.Name == "" && len(t.Args) == 0 }

// IsGeneric reports whether the descriptor carries generic arguments.
func (t TypeDescriptor) IsGeneric() bool { return len(t.Args) > 0 }

// Equal compares two descriptors structurally.
func (t TypeDescriptor) Equal(o TypeDescriptor) bool {
	if t.Name != o.Name || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// String renders the descriptor as Name[Arg1,Arg2].
func (t TypeDescriptor) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return t.Name + "[" + strings.Join(args, ",") + "]"
}

// Substitute replaces generic parameter names (descriptors without args whose
// name is a key of params) by their bound descriptors.
func (t TypeDescriptor) Substitute(params map[string]TypeDescriptor) TypeDescriptor {
	if len(params) == 0 {
		return t
	}
	if len(t.Args) == 0 {
		if bound, ok := params[t.Name]; ok {
			return bound
		}
		return t
	}
	args := make([]TypeDescriptor, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.Substitute(params)
	}
	return TypeDescriptor{Name: t.Name, Args: args}
}

// NothingType is the type of the designated Nothing instance.
var NothingType = TypeOf("<nothing>")

// InstanceID is the stable identity of an Instance inside one Table.
type InstanceID int

// Instance is an interpreted runtime value.
type Instance struct {
	id        InstanceID
	typ       TypeDescriptor
	direct    any
	hasDirect bool
	fields    map[string]*Instance
}

// ID returns the stable identity of the instance.
func (i *Instance) ID() InstanceID { return i.id }

// Type returns the type descriptor of the instance.
func (i *Instance) Type() TypeDescriptor { return i.typ }

// DirectValue returns the wrapped native value, if any.
func (i *Instance) DirectValue() (any, bool) { return i.direct, i.hasDirect }

// IsNothing reports whether the instance is the designated Nothing value.
func (i *Instance) IsNothing() bool { return i.id == 0 && i.typ.Equal(NothingType) }

// Field returns the value stored in the named field.
func (i *Instance) Field(name string) (*Instance, bool) {
	v, ok := i.fields[name]
	return v, ok
}

// SetField stores a value in the named field.
func (i *Instance) SetField(name string, v *Instance) {
	if i.fields == nil {
		i.fields = make(map[string]*Instance)
	}
	i.fields[name] = v
}

// FieldNames returns the names of the populated fields, sorted.
func (i *Instance) FieldNames() []string {
	names := make([]string, 0, len(i.fields))
	for name := range i.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Inspect returns a short human readable form.
func (i *Instance) Inspect() string {
	if i.IsNothing() {
		return "<nothing>"
	}
	if i.hasDirect {
		if s, ok := i.direct.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", i.direct)
	}
	return fmt.Sprintf("%s#%d", i.typ, i.id)
}

// Literal is a pre-built constant emitted by a generator.
// The machine materializes it into a direct Instance once per run.
type Literal struct {
	Type  TypeDescriptor
	Value any
}

// LiteralOf builds a literal, deriving the type from the Go value.
func LiteralOf(v any) Literal {
	return Literal{Type: DirectType(v), Value: v}
}

func (l Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

// DirectType maps a native Go value to the descriptor used for direct instances.
func DirectType(v any) TypeDescriptor {
	switch v.(type) {
	case nil:
		return TypeOf("nil")
	case bool:
		return TypeOf("bool")
	case int, int8, int16, int32, int64:
		return TypeOf("int")
	case uint, uint8, uint16, uint32, uint64:
		return TypeOf("uint")
	case float32, float64:
		return TypeOf("float64")
	case string:
		return TypeOf("string")
	default:
		return TypeOf(fmt.Sprintf("%T", v))
	}
}

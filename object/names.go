package object

import (
	"fmt"
	"strings"
)

// SharedScope marks a VariableName that addresses a process-wide shared slot
// (static field, package-level variable) instead of a frame-local variable.
const SharedScope = -1

// VariableName is a frame-local handle.
// Scope 0 is a user variable, Scope > 0 a generator temporary.
type VariableName struct {
	Name  string
	Scope int
}

// Var returns a user variable name.
func Var(name string) VariableName { return VariableName{Name: name} }

// Shared returns the name of a shared slot.
func Shared(name string) VariableName { return VariableName{Name: name, Scope: SharedScope} }

// IsShared reports whether the name addresses a shared slot.
func (v VariableName) IsShared() bool { return v.Scope == SharedScope }

// IsTemporary reports whether the name was minted by a generator.
func (v VariableName) IsTemporary() bool { return v.Scope > 0 }

func (v VariableName) String() string {
	switch {
	case v.Scope == SharedScope:
		return "@" + v.Name
	case v.Scope > 0:
		return fmt.Sprintf("%s$%d", v.Name, v.Scope)
	default:
		return v.Name
	}
}

// MethodID is the stable identity of a method: a dotted path whose last
// segment is the method name, e.g. "example.com/app.Service.Run".
// Generic arguments of the declaring type are kept in brackets:
// "example.com/app.Box[int].Get".
type MethodID string

// NewMethodID joins a declaring type and a method name.
func NewMethodID(declaring TypeDescriptor, name string) MethodID {
	if declaring.IsZero() {
		return MethodID(name)
	}
	return MethodID(declaring.String() + "." + name)
}

func (m MethodID) String() string { return string(m) }

// Name returns the last path segment.
func (m MethodID) Name() string {
	segs := splitPath(string(m))
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// DeclaringType returns the path before the method name, generic args included.
func (m MethodID) DeclaringType() string {
	segs := splitPath(string(m))
	if len(segs) < 2 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], ".")
}

// TypeArgs returns the generic arguments carried by the declaring type segment.
func (m MethodID) TypeArgs() []string {
	segs := splitPath(string(m))
	if len(segs) < 2 {
		return nil
	}
	last := segs[len(segs)-2]
	open := strings.IndexByte(last, '[')
	if open < 0 || !strings.HasSuffix(last, "]") {
		return nil
	}
	return splitTop(last[open+1:len(last)-1], ',')
}

// Definition erases generic arguments: "a.Box[int].Get" -> "a.Box.Get".
func (m MethodID) Definition() MethodID {
	return MethodID(strings.Join(m.Segments(), "."))
}

// Segments splits the erased path on dots; dots inside brackets do not split.
func (m MethodID) Segments() []string {
	segs := splitPath(string(m))
	for i, s := range segs {
		if open := strings.IndexByte(s, '['); open >= 0 {
			segs[i] = s[:open]
		}
	}
	return segs
}

// SplitPath splits a dotted prefix the same way MethodID.Segments does.
func SplitPath(path string) []string {
	return MethodID(path).Segments()
}

func splitPath(s string) []string {
	if s == "" {
		return nil
	}
	return splitTop(s, '.')
}

// splitTop splits on sep outside of brackets.
func splitTop(s string, sep byte) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// VersionedName is a generator's identity plus version. The version changes
// whenever the source producing the generator changes.
type VersionedName struct {
	Name    string
	Version uint64
}

// Versioned builds a VersionedName.
func Versioned(name string, version uint64) VersionedName {
	return VersionedName{Name: name, Version: version}
}

func (v VersionedName) String() string {
	return fmt.Sprintf("%s@%d", v.Name, v.Version)
}

package edit

import "fmt"

// ValueProvider produces the source text of a value to insert, evaluated
// against the view the transformation is applied in.
type ValueProvider func(view *ExecutionView) (string, error)

// Literal returns a ValueProvider yielding fixed source text.
func Literal(text string) ValueProvider {
	return func(*ExecutionView) (string, error) { return text, nil }
}

// Navigation locates the source of an editable element.
type Navigation struct {
	Document string
	Offset   int
	Line     int
	Column   int
}

func (n Navigation) String() string {
	return fmt.Sprintf("%s:%d:%d", n.Document, n.Line, n.Column)
}

// TransformProvider is attached to the origin of an instruction (an
// assignment, a call site) and produces transformations for it.
// Operations a provider cannot perform return *UnsupportedEditError.
type TransformProvider interface {
	Remove() (Transformation, error)
	RewriteArgument(index int, value ValueProvider) (Transformation, error)
	AppendArgument(value ValueProvider) (Transformation, error)
	// RemoveArgument drops the argument at index. With keepSideEffect, a
	// side-effecting argument is retained as a separate statement; without
	// it, removing such an argument is a conflict.
	RemoveArgument(index int, keepSideEffect bool) (Transformation, error)
	// SetOptionalArgument leaves the argument at index (and any after it)
	// unsupplied, so the callee observes it as optional.
	SetOptionalArgument(index int) (Transformation, error)
	Navigation() (Navigation, error)
}

// NoopProvider is attached to synthetic instructions; it supports nothing.
type NoopProvider struct{}

var _ TransformProvider = NoopProvider{}

func (NoopProvider) unsupported(op string) error {
	return &UnsupportedEditError{Operation: op, Provider: "noop provider"}
}

func (p NoopProvider) Remove() (Transformation, error) { return nil, p.unsupported("Remove") }

func (p NoopProvider) RewriteArgument(int, ValueProvider) (Transformation, error) {
	return nil, p.unsupported("RewriteArgument")
}

func (p NoopProvider) AppendArgument(ValueProvider) (Transformation, error) {
	return nil, p.unsupported("AppendArgument")
}

func (p NoopProvider) RemoveArgument(int, bool) (Transformation, error) {
	return nil, p.unsupported("RemoveArgument")
}

func (p NoopProvider) SetOptionalArgument(int) (Transformation, error) {
	return nil, p.unsupported("SetOptionalArgument")
}

func (p NoopProvider) Navigation() (Navigation, error) {
	return Navigation{}, p.unsupported("Navigation")
}

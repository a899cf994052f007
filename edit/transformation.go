package edit

import "strings"

// Transformation is a speculative mutation staged inside an ExecutionView.
type Transformation interface {
	// Apply stages the mutation. It may apply further transformations in the same view.
	Apply(view *ExecutionView) error
	// Check reports whether the staged mutation still applies against the
	// view's current state. It is re-run at commit time.
	Check(view *ExecutionView) error
	String() string
}

// Edit is a user-visible operation offered on an analysis result.
type Edit struct {
	Name           string
	Transformation Transformation
}

func (e *Edit) String() string { return e.Name }

// Sequence composes transformations; they are applied in order in the same view.
func Sequence(name string, ts ...Transformation) Transformation {
	return &sequence{name: name, items: ts}
}

type sequence struct {
	name  string
	items []Transformation
}

func (s *sequence) Apply(view *ExecutionView) error {
	for _, t := range s.items {
		if err := view.Apply(t); err != nil {
			return err
		}
	}
	return nil
}

// Check is a no-op: the items are logged in the view and checked on their own.
func (s *sequence) Check(*ExecutionView) error { return nil }

func (s *sequence) String() string {
	if s.name != "" {
		return s.name
	}
	names := make([]string, len(s.items))
	for i, t := range s.items {
		names[i] = t.String()
	}
	return strings.Join(names, "; ")
}

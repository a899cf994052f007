package gofront_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/gofront"
	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/object"
)

const useSource = `package main

func Use(a, b int) int { return a }

func Main() int {
	x := 1
	y := 2
	return Use(x, y)
}
`

func TestRemoveArgument(t *testing.T) {
	prog := load(t, useSource)
	res := run(t, prog, "Main")
	y := variable(t, res.Entry, "y")
	tr := editNamed(t, res, y, "remove argument 1 of "+modulePath+".Use")

	got := applyOne(t, useSource, tr)
	want := `package main

func Use(a, b int) int { return a }

func Main() int {
	x := 1
	return Use(x)
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("edited source mismatch (-want +got):\n%s", diff)
	}
}

func TestAbortLeavesSourceUnchanged(t *testing.T) {
	const variadicSource = `package main

func Sum(xs ...int) int { return 0 }

func Main() int {
	return Sum(1, 2, 3)
}
`
	const methodSource = `package main

type T struct{}

func (t *T) M(a int) {}

func Main() int {
	v := T{}
	v.M(1)
	return 0
}
`
	const redeclareSource = `package main

func Main() int {
	x := 1
	x = 2
	return x
}
`
	const sideEffectSource = `package main

func Next() int { return 1 }

func Main() int {
	x := Next()
	return x
}
`
	const allocSource = `package main

type Point struct{ X int }

func Main() int {
	p := Point{X: 1}
	_ = p
	return 0
}
`
	cases := []struct {
		name  string
		src   string
		match func(instruction.Instruction) bool
		make  func(edit.TransformProvider) (edit.Transformation, error)
	}{
		{
			name:  "remove argument",
			src:   useSource,
			match: callOf("Use"),
			make: func(p edit.TransformProvider) (edit.Transformation, error) {
				return p.RemoveArgument(0, false)
			},
		},
		{
			name:  "remove side-effecting argument kept as a statement",
			src:   logSource,
			match: callOf("Log"),
			make: func(p edit.TransformProvider) (edit.Transformation, error) {
				return p.RemoveArgument(1, true)
			},
		},
		{
			name:  "rewrite argument",
			src:   useSource,
			match: callOf("Use"),
			make: func(p edit.TransformProvider) (edit.Transformation, error) {
				return p.RewriteArgument(0, edit.Literal("9"))
			},
		},
		{
			name:  "append argument",
			src:   variadicSource,
			match: callOf("Sum"),
			make: func(p edit.TransformProvider) (edit.Transformation, error) {
				return p.AppendArgument(edit.Literal("4"))
			},
		},
		{
			name:  "set optional argument",
			src:   variadicSource,
			match: callOf("Sum"),
			make: func(p edit.TransformProvider) (edit.Transformation, error) {
				return p.SetOptionalArgument(1)
			},
		},
		{
			name:  "remove call statement",
			src:   methodSource,
			match: callOf("T.M"),
			make:  edit.TransformProvider.Remove,
		},
		{
			name:  "remove assignment with redeclaration",
			src:   redeclareSource,
			match: assignTo("x"),
			make:  edit.TransformProvider.Remove,
		},
		{
			name:  "remove assignment keeping its side effect",
			src:   sideEffectSource,
			match: assignTo("x"),
			make:  edit.TransformProvider.Remove,
		},
		{
			name:  "remove allocation",
			src:   allocSource,
			match: assignTo("p"),
			make:  edit.TransformProvider.Remove,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := run(t, load(t, tc.src), "Main")
			tr, err := tc.make(providerOf(t, res, tc.match))
			if err != nil {
				t.Fatalf("building the transformation failed: %v", err)
			}

			ws := edit.NewWorkspace(map[string]string{"main.go": tc.src}, nil)
			v := ws.NewView()
			if err := v.Apply(tr); err != nil {
				t.Fatalf("Apply() failed: %v", err)
			}
			if staged, _ := v.Text("main.go"); staged == tc.src {
				t.Fatalf("%s staged no change", tr)
			}
			v.Abort(nil)

			if got, _ := ws.Text("main.go"); got != tc.src {
				t.Errorf("workspace changed after abort:\n%s", got)
			}
			if got := ws.Version("main.go"); got != 1 {
				t.Errorf("version = %d, want 1", got)
			}
			if err := v.Commit(); err == nil {
				t.Error("an aborted view must not commit")
			}
		})
	}
}

func TestCommit(t *testing.T) {
	prog := load(t, useSource)
	res := run(t, prog, "Main")
	tr := editNamed(t, res, variable(t, res.Entry, "y"), "remove argument 1 of "+modulePath+".Use")

	ws := edit.NewWorkspace(map[string]string{"main.go": useSource}, nil)
	v := ws.NewView()
	if err := v.Apply(tr); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if err := v.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if got := ws.Version("main.go"); got != 2 {
		t.Errorf("version = %d, want 2", got)
	}

	// a provider built from the old text no longer applies
	v2 := ws.NewView()
	err := v2.Apply(tr)
	var conflict *edit.TransformationConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, but got %v", err)
	}
}

const logSource = `package main

var n int

func Next() int {
	n++
	return n
}

func Log(level int, v int) int { return v }

func Main() int {
	return Log(1, Next())
}
`

func TestRemoveSideEffectingArgument(t *testing.T) {
	prog := load(t, logSource)
	res := run(t, prog, "Main")
	p := providerOf(t, res, callOf("Log"))

	t.Run("conflict without keep", func(t *testing.T) {
		tr, err := p.RemoveArgument(1, false)
		if err != nil {
			t.Fatalf("RemoveArgument() failed: %v", err)
		}
		ws := edit.NewWorkspace(map[string]string{"main.go": logSource}, nil)
		v := ws.NewView()
		err = v.Apply(tr)
		var conflict *edit.TransformationConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected a conflict, but got %v", err)
		}
		if !v.IsAborted() {
			t.Error("view should be aborted after a conflict")
		}
		if got, _ := ws.Text("main.go"); got != logSource {
			t.Errorf("workspace changed after a conflict:\n%s", got)
		}
	})

	t.Run("kept as a statement", func(t *testing.T) {
		tr, err := p.RemoveArgument(1, true)
		if err != nil {
			t.Fatalf("RemoveArgument() failed: %v", err)
		}
		got := applyOne(t, logSource, tr)
		want := `package main

var n int

func Next() int {
	n++
	return n
}

func Log(level int, v int) int { return v }

func Main() int {
	Next()
	return Log(1)
}
`
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("edited source mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("rewrite is a conflict", func(t *testing.T) {
		tr, err := p.RewriteArgument(1, edit.Literal("0"))
		if err != nil {
			t.Fatalf("RewriteArgument() failed: %v", err)
		}
		v := edit.NewWorkspace(map[string]string{"main.go": logSource}, nil).NewView()
		var conflict *edit.TransformationConflictError
		if err := v.Apply(tr); !errors.As(err, &conflict) {
			t.Fatalf("expected a conflict, but got %v", err)
		}
	})
}

func TestRemoveArgumentTwice(t *testing.T) {
	prog := load(t, useSource)
	res := run(t, prog, "Main")
	p := providerOf(t, res, callOf("Use"))
	first, _ := p.RemoveArgument(1, false)
	second, _ := p.RemoveArgument(1, false)

	v := edit.NewWorkspace(map[string]string{"main.go": useSource}, nil).NewView()
	if err := v.Apply(first); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	var conflict *edit.TransformationConflictError
	if err := v.Apply(second); !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, but got %v", err)
	}
}

func TestRewriteAndAppendArgument(t *testing.T) {
	src := `package main

func Sum(xs ...int) int { return 0 }

func Main() int {
	x := 1
	y := 2
	return Sum(x, y)
}
`
	prog := load(t, src)
	res := run(t, prog, "Main")
	p := providerOf(t, res, callOf("Sum"))

	value, err := res.ValueFor(variable(t, res.Entry, "y"), res.Entry)
	if err != nil {
		t.Fatalf("ValueFor() failed: %v", err)
	}
	rewrite, err := p.RewriteArgument(0, value)
	if err != nil {
		t.Fatalf("RewriteArgument() failed: %v", err)
	}
	appendArg, err := p.AppendArgument(edit.Literal("7"))
	if err != nil {
		t.Fatalf("AppendArgument() failed: %v", err)
	}

	got := applyOne(t, src, edit.Sequence("rewrite and append", rewrite, appendArg))
	want := `package main

func Sum(xs ...int) int { return 0 }

func Main() int {
	y := 2
	return Sum(y, y, 7)
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("edited source mismatch (-want +got):\n%s", diff)
	}
}

func TestSetOptionalArgument(t *testing.T) {
	src := `package main

func Greet(names ...string) int { return len(names) }

func Main() int {
	return Greet("a", "b", "c")
}
`
	prog := load(t, src)
	res := run(t, prog, "Main")
	p := providerOf(t, res, callOf("Greet"))
	tr, err := p.SetOptionalArgument(1)
	if err != nil {
		t.Fatalf("SetOptionalArgument() failed: %v", err)
	}
	got := applyOne(t, src, tr)
	want := `package main

func Greet(names ...string) int { return len(names) }

func Main() int {
	return Greet("a")
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("edited source mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsupportedEdits(t *testing.T) {
	src := `package main

type T struct{}

func (t *T) M(a int) {}

func Main() int {
	v := T{}
	v.M(1)
	return len("x")
}
`
	prog := load(t, src)
	res := run(t, prog, "Main")
	p := providerOf(t, res, callOf("T.M"))

	var unsupported *edit.UnsupportedEditError
	if _, err := p.RemoveArgument(0, false); !errors.As(err, &unsupported) {
		t.Errorf("RemoveArgument(receiver): expected UnsupportedEditError, but got %v", err)
	}
	if _, err := p.RemoveArgument(5, false); err == nil {
		t.Error("RemoveArgument(5): expected an out of range error")
	}
	if _, err := p.RemoveArgument(1, false); err != nil {
		t.Errorf("RemoveArgument(1) failed: %v", err)
	}

	// a call statement can be removed as a whole
	tr, err := p.Remove()
	if err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	got := applyOne(t, src, tr)
	want := `package main

type T struct{}

func (t *T) M(a int) {}

func Main() int {
	return len("x")
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("edited source mismatch (-want +got):\n%s", diff)
	}

	a := providerOf(t, res, assignTo("v"))
	if _, err := a.RewriteArgument(0, edit.Literal("1")); !errors.As(err, &unsupported) {
		t.Errorf("RewriteArgument on an assignment: expected UnsupportedEditError, but got %v", err)
	}
}

func TestNavigation(t *testing.T) {
	prog := load(t, useSource)
	res := run(t, prog, "Main")
	nav, err := providerOf(t, res, callOf("Use")).Navigation()
	if err != nil {
		t.Fatalf("Navigation() failed: %v", err)
	}
	want := edit.Navigation{Document: "main.go", Offset: 93, Line: 8, Column: 9}
	if diff := cmp.Diff(want, nav); diff != "" {
		t.Errorf("navigation mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveAssignment(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "define becomes the next assignment",
			src: `package main

func Main() int {
	x := 1
	x = 2
	return x
}
`,
			want: `package main

func Main() int {
	x := 2
	return x
}
`,
		},
		{
			name: "typed var keeps its type",
			src: `package main

func Main() float64 {
	var x float64 = 1
	x = 2
	return x
}
`,
			want: `package main

func Main() float64 {
	var x float64 = 2
	return x
}
`,
		},
		{
			name: "side effect is kept and the variable redeclared",
			src: `package main

func Next() int { return 1 }

func Main() int {
	x := Next()
	return x
}
`,
			want: `package main

func Next() int { return 1 }

func Main() int {
	Next()
	var x int
	return x
}
`,
		},
		{
			name: "unused inputs are removed too",
			src: `package main

func Main() int {
	a := 1
	x := a
	_ = 0
	return 0
}
`,
			want: `package main

func Main() int {
	_ = 0
	return 0
}
`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog := load(t, tc.src)
			res := run(t, prog, "Main")
			p := providerOf(t, res, assignTo("x"))
			tr, err := p.Remove()
			if err != nil {
				t.Fatalf("Remove() failed: %v", err)
			}
			got := applyOne(t, tc.src, tr)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("edited source mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRemoveAllocation(t *testing.T) {
	src := `package main

type Point struct{ X int }

func Main() int {
	p := Point{X: 1}
	_ = p
	return 0
}
`
	prog := load(t, src)
	res := run(t, prog, "Main")
	p := variable(t, res.Entry, "p")
	if got, want := p.Type(), object.TypeOf(modulePath+".Point"); !got.Equal(want) {
		t.Fatalf("type of p = %s, want %s", got, want)
	}
	got := applyOne(t, src, editNamed(t, res, p, "remove"))
	want := `package main

type Point struct{ X int }

func Main() int {
	var p Point
	_ = p
	return 0
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("edited source mismatch (-want +got):\n%s", diff)
	}
}

func TestStaleDocumentConflict(t *testing.T) {
	prog := load(t, useSource)
	res := run(t, prog, "Main")
	tr, err := providerOf(t, res, callOf("Use")).RemoveArgument(1, false)
	if err != nil {
		t.Fatalf("RemoveArgument() failed: %v", err)
	}
	v := edit.NewWorkspace(map[string]string{"main.go": "// changed\n" + useSource}, nil).NewView()
	err = v.Apply(tr)
	var conflict *edit.TransformationConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, but got %v", err)
	}
	var serr *gofront.SyntaxError
	if errors.As(err, &serr) {
		t.Errorf("unexpected syntax error in the conflict chain: %v", serr)
	}
}

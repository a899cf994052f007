package gofront

import (
	"go/ast"
	"testing"

	"github.com/podhmo/go-analyzing/object"
)

func TestStaticType(t *testing.T) {
	text := `package main

type Point struct{ X int }

func origin() *Point { return nil }

func F(n int, s string) {
	a := 1
	var b float64
	p := &Point{}
	q := origin()
	_, _, _, _ = a, b, p, q
	_ = n + 1
	_ = s
	_ = len(s)
	_ = n < 2
	_ = Point(Point{})
	_ = int64(n)
	_ = make([]int, 0)
	_ = new(Point)
	_ = nil
	_ = g()
}
`
	prog, err := Load("example.com/app", map[string]string{"main.go": text})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	src := prog.funcs["example.com/app.F"].src
	fn := findFunc(src.file, funcKey{name: "F"})

	cases := []struct {
		expr string
		want string
	}{
		{"a", "int"},
		{"b", "float64"},
		{"p", "*Point"},
		{"q", "*Point"},
		{"n + 1", "int"},
		{"s", "string"},
		{"len(s)", "int"},
		{"n < 2", "bool"},
		{"Point(Point{})", "Point"},
		{"int64(n)", "int64"},
		{"make([]int, 0)", "[]int"},
		{"new(Point)", "*Point"},
		{"nil", ""},
		{"g()", ""},
	}

	// the right-hand sides of "_ = e" statements, in order
	var exprs []ast.Expr
	for _, st := range fn.Body.List {
		if as, ok := st.(*ast.AssignStmt); ok && len(as.Lhs) == 1 {
			if id, ok := as.Lhs[0].(*ast.Ident); ok && id.Name == "_" {
				exprs = append(exprs, as.Rhs[0])
			}
		}
	}
	got := map[string]string{}
	for _, e := range exprs {
		got[src.slice(e)] = staticType(e, fn, src.file)
	}
	got["a"] = staticType(ast.NewIdent("a"), fn, src.file)
	got["b"] = staticType(ast.NewIdent("b"), fn, src.file)
	got["p"] = staticType(ast.NewIdent("p"), fn, src.file)
	got["q"] = staticType(ast.NewIdent("q"), fn, src.file)

	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			typ, ok := got[tc.expr]
			if !ok {
				t.Fatalf("expression %s not found", tc.expr)
			}
			if typ != tc.want {
				t.Errorf("staticType(%s) = %q, want %q", tc.expr, typ, tc.want)
			}
		})
	}
}

func TestChains(t *testing.T) {
	text := `package main

import "io"

type Base struct{}

func (b *Base) Name() string { return "" }

type Box[T any] struct {
	Base
	v T
}

func (b *Box[T]) Get() T { return b.v }

type RW interface {
	io.Reader
	Close() error
}

type Alias = Base
`
	prog, err := Load("example.com/app", map[string]string{"main.go": text})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	types := prog.Types()

	box, ok := types.Chain(object.TypeOf("example.com/app.Box", object.TypeOf("T")))
	if !ok {
		t.Fatal("no chain for Box")
	}
	if got, want := box.Methods["Get"], object.MethodID("example.com/app.Box.Get"); got != want {
		t.Errorf("Box.Get = %q, want %q", got, want)
	}
	if len(box.Bases) != 1 || box.Bases[0].String() != "example.com/app.Base" {
		t.Errorf("Box bases = %v", box.Bases)
	}

	rw, ok := types.Chain(object.TypeOf("example.com/app.RW"))
	if !ok {
		t.Fatal("no chain for RW")
	}
	if len(rw.Bases) != 1 || rw.Bases[0].String() != "io.Reader" {
		t.Errorf("RW bases = %v", rw.Bases)
	}

	alias, ok := types.Chain(object.TypeOf("example.com/app.Alias"))
	if !ok {
		t.Fatal("no chain for Alias")
	}
	if len(alias.Bases) != 1 || alias.Bases[0].String() != "example.com/app.Base" {
		t.Errorf("Alias bases = %v", alias.Bases)
	}
}

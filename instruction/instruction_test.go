package instruction

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/object"
)

func gen(name string, fn func(e Emitter) error) Generator {
	return &GeneratorFunc{ID: object.Versioned(name, 1), Fn: fn}
}

func TestBuild_Listing(t *testing.T) {
	x := object.Var("x")
	g := gen("pkg.F", func(e Emitter) error {
		end := e.NewLabel()
		tmp := e.Temporary("cond")
		e.Emit(&AssignArgument{Target: x, Index: 0})
		e.Emit(&AssignLiteral{Target: tmp, Literal: object.LiteralOf(true)})
		e.Emit(&ConditionalJump{Condition: tmp, Target: end})
		e.Emit(&PreCall{Args: []object.VariableName{x, tmp}})
		e.Emit(&Call{Method: "pkg.T.M", Dynamic: true})
		e.Emit(&DirectCall{Method: intrinsics.Operator("+")})
		e.Emit(&AssignReturnValue{Target: x}).Origin = "f.go:3:1"
		e.MarkLabel(end)
		e.Emit(&Return{Source: x})
		return nil
	})

	p, err := Build(g)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	want := strings.Join([]string{
		"0000 arg x, 0",
		"0001 lit cond$1, bool true",
		"0002 jmpif cond$1, L1",
		"0003 precall x, cond$1",
		"0004 callvirt pkg.T.M",
		"0005 directcall op+",
		"0006 retval x",
		"L1:",
		"0007 ret x",
		"",
	}, "\n")
	if diff := cmp.Diff(want, p.Listing()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
	if pos, ok := p.Target(Label{n: 1}); !ok || pos != 7 {
		t.Errorf("Target(L1) = %d, %v", pos, ok)
	}
	if got := p.Infos[6].Origin; got != "f.go:3:1" {
		t.Errorf("origin = %q", got)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	g := gen("pkg.F", func(e Emitter) error {
		loop := e.NewLabel()
		e.MarkLabel(loop)
		e.Emit(&Nop{})
		e.Emit(&Jump{Target: loop})
		return nil
	})
	p1, err := Build(g)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := Build(g)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(p1.Listing(), p2.Listing()); diff != "" {
		t.Errorf("rebuild differs (-first +second):\n%s", diff)
	}
}

func TestBuild_LabelErrors(t *testing.T) {
	cases := []struct {
		name string
		fn   func(e Emitter) error
		want string
	}{
		{
			name: "unmarked",
			fn: func(e Emitter) error {
				e.Emit(&Jump{Target: e.NewLabel()})
				return nil
			},
			want: "unmarked label",
		},
		{
			name: "marked twice",
			fn: func(e Emitter) error {
				l := e.NewLabel()
				e.MarkLabel(l)
				e.MarkLabel(l)
				return nil
			},
			want: "marked twice",
		},
		{
			name: "foreign label",
			fn: func(e Emitter) error {
				e.MarkLabel(Label{n: 5})
				return nil
			},
			want: "not created by this emitter",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(gen("pkg.F", tc.fn))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Build() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestBuild_Include(t *testing.T) {
	prologue := gen("pkg.prologue", func(e Emitter) error {
		e.Emit(&AssignLiteral{Target: e.Temporary("p"), Literal: object.LiteralOf(1)})
		return nil
	})
	g := gen("pkg.F", func(e Emitter) error {
		if err := e.Include(prologue); err != nil {
			return err
		}
		if err := e.Include(prologue); err != nil {
			return err
		}
		e.Emit(&Return{})
		return nil
	})
	p, err := Build(g)
	if err != nil {
		t.Fatal(err)
	}
	want := "0000 lit p$1, int 1\n0001 lit p$2, int 1\n0002 ret\n"
	if diff := cmp.Diff(want, p.Listing()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_RecursiveInclude(t *testing.T) {
	var a, b Generator
	a = gen("pkg.A", func(e Emitter) error { return e.Include(b) })
	b = gen("pkg.B", func(e Emitter) error { return e.Include(a) })

	_, err := Build(a)
	var rerr *RecursiveGenerationError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RecursiveGenerationError, got %v", err)
	}
	want := []object.VersionedName{object.Versioned("pkg.A", 1), object.Versioned("pkg.B", 1), object.Versioned("pkg.A", 1)}
	if diff := cmp.Diff(want, rerr.Chain); diff != "" {
		t.Errorf("chain mismatch (-want +got):\n%s", diff)
	}
}

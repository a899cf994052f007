package asm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/go-analyzing/analyzingtest"
	"github.com/podhmo/go-analyzing/asm"
	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/machine"
	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
)

func parse(t *testing.T, text string) *asm.Assembly {
	t.Helper()
	a, err := asm.Parse("test.asm", text)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	return a
}

func run(t *testing.T, a *asm.Assembly, entry string) *machine.Result {
	t.Helper()
	m := machine.New(nil, a.Provide,
		machine.WithResolver(methods.NewResolver(a.Types())),
		machine.WithDirectMethods(a.DirectMethods()),
	)
	res, err := m.RunMethod(context.Background(), object.MethodID(entry))
	if err != nil {
		t.Fatalf("RunMethod(%s) failed: %v", entry, err)
	}
	return res
}

func TestLiteralReturn(t *testing.T) {
	a := parse(t, `
method m.Main {
	lit x, 5
	ret x
}
`)
	res := run(t, a, "m.Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, int64(5))
}

func TestArgumentPassthrough(t *testing.T) {
	a := parse(t, `
# returns its argument unchanged
method m.Id {
	arg a, 0
	ret a
}

method m.Main {
	new o, m.T
	precall o
	call m.Id
	retval r
	ret r
}
`)
	res := run(t, a, "m.Main")
	o, err := res.Entry.Variables.Get(object.Var("o"))
	if err != nil {
		t.Fatalf("Get(o) failed: %v", err)
	}
	if res.ReturnValue != o {
		t.Errorf("return value = %s, want the same instance as o (%s)", res.ReturnValue.Inspect(), o.Inspect())
	}
}

func TestDynamicDispatch(t *testing.T) {
	a := parse(t, `
type m.Base {
	Name = m.Base.Name
}

type m.Derived : m.Base {
}

method m.Base.Name {
	lit s, "base"
	ret s
}

method m.Main {
	new d, m.Derived
	precall d
	callvirt m.Derived.Name
	retval r
	ret r
}
`)
	res := run(t, a, "m.Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, "base")
}

func TestLoop(t *testing.T) {
	a := parse(t, `
method m.Sum version 2 {
	arg n, 0
	lit total, 0
	lit i, 0
	lit one, 1
	label loop
	precall i, n
	directcall op<
	retval $c
	jmpif $c, body
	ret total
	label body
	precall total, i; directcall op+; retval total
	precall i, one; directcall op+; retval i
	jmp loop
}

method m.Main {
	lit n, 4
	precall n
	call m.Sum
	retval r
	ret r
}
`)
	res := run(t, a, "m.Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, int64(6))

	sum := res.Call(res.Entry.Children[0])
	if got, want := sum.Name, object.Versioned("m.Sum", 2); got != want {
		t.Errorf("generator name = %s, want %s", got, want)
	}
}

func TestLazyInitialization(t *testing.T) {
	a := parse(t, `
method m.init.counter {
	new c, m.Counter
	ret c
}

method m.Get {
	ensure @counter, m.init.counter
	lateinit @counter
	ret @counter
}

method m.Main {
	precall
	call m.Get
	retval a
	precall
	call m.Get
	retval b
	ret
}
`)
	res := run(t, a, "m.Main")
	n := 0
	for _, c := range res.Calls() {
		if c.Method == "m.init.counter" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("initializer ran %d times, want 1", n)
	}
	va, _ := res.Entry.Variables.Get(object.Var("a"))
	vb, _ := res.Entry.Variables.Get(object.Var("b"))
	if va == nil || va != vb {
		t.Errorf("a and b should be the same instance: %v, %v", va, vb)
	}
	analyzingtest.AssertNothing(t, res.ReturnValue)
}

func TestDirectInvoke(t *testing.T) {
	a := parse(t, `
method m.Len {
	direct builtin.len
	ret
}

method m.Main {
	lit s, "hello"
	precall s
	call m.Len
	retval r
	ret r
}
`)
	res := run(t, a, "m.Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, int64(5))
}

func TestIncludeAndFields(t *testing.T) {
	a := parse(t, `
method m.setup {
	new p, m.Point
	lit v, 42
	precall p, v
	directcall set.X
}

method m.Main {
	include m.setup
	precall p
	directcall get.X
	retval x
	ret x
}
`)
	res := run(t, a, "m.Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, int64(42))
}

func TestGenericMethodRef(t *testing.T) {
	a := parse(t, `
type m.Box[T] {
	Get = m.Box.Get
}

method m.Box.Get {
	lit x, "box"
	ret x
}

method m.Main {
	new b, m.Box[int]
	precall b
	callvirt m.Box[int].Get
	retval r
	ret r
}
`)
	gen, ok := a.Generator("m.Main")
	if !ok {
		t.Fatal("no generator for m.Main")
	}
	prog, err := instruction.Build(gen)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	var got []string
	for _, ins := range prog.Instructions {
		got = append(got, ins.String())
	}
	want := []string{
		"new b, m.Box[int]",
		"precall b",
		"callvirt m.Box[int].Get",
		"retval r",
		"ret r",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}
	if got, want := prog.Infos[2].Origin, "test.asm:14:2"; got != want {
		t.Errorf("origin = %q, want %q", got, want)
	}

	res := run(t, a, "m.Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, "box")
}

func TestIdenticalListings(t *testing.T) {
	text := `
method m.Main {
	lit x, 1
	lit y, 2.5
	lit z, true
	lit w, nil
	jmp end
	nop
	label end
	ret x
}
`
	build := func() []string {
		gen, _ := parse(t, text).Generator("m.Main")
		prog, err := instruction.Build(gen)
		if err != nil {
			t.Fatalf("Build() failed: %v", err)
		}
		var out []string
		for _, ins := range prog.Instructions {
			out = append(out, ins.String())
		}
		return out
	}
	if diff := cmp.Diff(build(), build()); diff != "" {
		t.Errorf("identical listings built different programs (-first +second):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		line int
		msg  string
	}{
		{
			name: "unknown direct method",
			text: "method m.Main {\n\tdirectcall nosuch\n}\n",
			line: 2,
			msg:  "unknown direct method nosuch",
		},
		{
			name: "undefined label",
			text: "method m.Main {\n\tjmp nowhere\n}\n",
			line: 2,
			msg:  "undefined label nowhere",
		},
		{
			name: "label marked twice",
			text: "method m.Main {\n\tlabel a\n\tlabel a\n}\n",
			line: 3,
			msg:  "marked twice",
		},
		{
			name: "redeclared method",
			text: "method m.Main {\n}\nmethod m.Main {\n}\n",
			line: 3,
			msg:  "redeclared",
		},
		{
			name: "undeclared include",
			text: "method m.Main {\n\tinclude m.other\n}\n",
			line: 2,
			msg:  "undeclared method m.other",
		},
		{
			name: "syntax",
			text: "method m.Main {\n\tlit x 5\n}\n",
			line: 2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := asm.Parse("bad.asm", tc.text)
			var aerr *asm.Error
			if !errors.As(err, &aerr) {
				t.Fatalf("expected *asm.Error, but got %v", err)
			}
			if aerr.Pos.Line != tc.line {
				t.Errorf("error line = %d, want %d (%v)", aerr.Pos.Line, tc.line, err)
			}
			if !strings.Contains(aerr.Msg, tc.msg) {
				t.Errorf("message %q does not mention %q", aerr.Msg, tc.msg)
			}
		})
	}
}

func TestProvideUnknown(t *testing.T) {
	a := parse(t, "method m.Main {\n\tret\n}\n")
	if _, _, err := a.Provide(context.Background(), "m.Other"); err == nil {
		t.Error("expected an error for an undeclared method")
	}
	_, ref, err := a.Provide(context.Background(), "m.Main")
	if err != nil {
		t.Fatalf("Provide() failed: %v", err)
	}
	if ref != "test.asm" {
		t.Errorf("assembly = %q, want %q", ref, "test.asm")
	}
}

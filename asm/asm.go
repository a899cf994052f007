// Package asm reads instruction listings: a textual front end that spells
// the instruction set directly.
//
// A listing holds type blocks, which describe inheritance for dynamic
// dispatch, and method blocks, one statement per line:
//
//	type example.Derived : example.Base {
//		Name = example.Derived.Name
//	}
//
//	method example.Main version 1 {
//		lit x, 5
//		precall x
//		call example.Id
//		retval r
//		ret r
//	}
//
// Shared slots are spelled "@name" and generation-local temporaries "$name".
// Direct methods are looked up by name: "op+" and the other operators,
// "get.F" and "set.F" field accessors, then the configured registry.
package asm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
)

// Error is a listing error with its position.
type Error struct {
	Pos lexer.Position
	Msg string
}

func (e *Error) Error() string { return e.Pos.String() + ": " + e.Msg }

// Assembly is a parsed listing. It provides generators and type services.
type Assembly struct {
	Name string

	logger  *slog.Logger
	direct  *intrinsics.Registry
	methods map[object.MethodID]*generator
	types   methods.TypeTable
}

// Option configures Parse.
type Option func(*Assembly)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembly) { a.logger = logger }
}

// WithDirectMethods sets the registry "direct" and "directcall" names are
// looked up in. The default is intrinsics.Builtins().
func WithDirectMethods(r *intrinsics.Registry) Option {
	return func(a *Assembly) { a.direct = r }
}

// Parse reads a listing. name is used in positions and as the assembly ref.
func Parse(name, text string, opts ...Option) (*Assembly, error) {
	a := &Assembly{
		Name:    name,
		methods: map[object.MethodID]*generator{},
		types:   methods.TypeTable{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	if a.direct == nil {
		a.direct = intrinsics.Builtins()
	}

	l, err := parser.ParseString(name, text)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, &Error{Pos: perr.Position(), Msg: perr.Message()}
		}
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	for _, d := range l.Decls {
		switch {
		case d.Type != nil:
			if err := a.addType(d.Type); err != nil {
				return nil, err
			}
		case d.Method != nil:
			if err := a.addMethod(d.Method); err != nil {
				return nil, err
			}
		}
	}
	for _, g := range a.methods {
		if err := g.check(); err != nil {
			return nil, err
		}
	}
	a.logger.Debug("parsed listing", "name", name, "methods", len(a.methods), "types", len(a.types))
	return a, nil
}

func (a *Assembly) addType(d *typeDecl) error {
	t := d.Type.descriptor()
	if _, dup := a.types[t.Name]; dup {
		return &Error{Pos: d.Pos, Msg: "type " + t.Name + " redeclared"}
	}
	chain := &methods.InheritanceChain{Type: t, Methods: map[string]object.MethodID{}}
	for _, p := range d.Type.Args {
		if len(p.Args) > 0 {
			return &Error{Pos: d.Pos, Msg: "type parameter " + p.descriptor().String() + " must be a plain name"}
		}
		chain.Params = append(chain.Params, p.Name)
	}
	for _, b := range d.Bases {
		chain.Bases = append(chain.Bases, b.descriptor())
	}
	for _, m := range d.Methods {
		chain.Methods[m.Name] = m.Method.id()
	}
	a.types.Add(chain)
	return nil
}

func (a *Assembly) addMethod(d *methodDecl) error {
	id := d.ID.id()
	if _, dup := a.methods[id]; dup {
		return &Error{Pos: d.Pos, Msg: "method " + string(id) + " redeclared"}
	}
	version := uint64(1)
	if d.Version != nil {
		version = *d.Version
	}
	a.methods[id] = &generator{asm: a, decl: d, id: id, version: version}
	return nil
}

// Methods returns the declared method IDs, sorted.
func (a *Assembly) Methods() []object.MethodID {
	ids := make([]object.MethodID, 0, len(a.methods))
	for id := range a.methods {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Types returns the type services of the listing.
func (a *Assembly) Types() methods.TypeTable { return a.types }

// Generator returns the generator of a declared method.
func (a *Assembly) Generator(id object.MethodID) (instruction.Generator, bool) {
	g, ok := a.methods[id]
	if !ok {
		return nil, false
	}
	return g, true
}

// Provide implements methods.Provider.
func (a *Assembly) Provide(ctx context.Context, m object.MethodID) (instruction.Generator, methods.AssemblyRef, error) {
	g, ok := a.methods[m]
	if !ok {
		g, ok = a.methods[m.Definition()]
	}
	if !ok {
		return nil, "", fmt.Errorf("%s: no method %s", a.Name, m)
	}
	return g, methods.AssemblyRef(a.Name), nil
}

// DirectMethods returns the registry the listing resolves direct names in.
func (a *Assembly) DirectMethods() *intrinsics.Registry { return a.direct }

// lookupDirect resolves a direct method name.
func (a *Assembly) lookupDirect(name string) (intrinsics.DirectMethod, bool) {
	switch {
	case strings.HasPrefix(name, "op"):
		if m := intrinsics.Operator(strings.TrimPrefix(name, "op")); m != nil {
			return m, true
		}
	case strings.HasPrefix(name, "get."):
		return &intrinsics.FieldGetter{Field: strings.TrimPrefix(name, "get.")}, true
	case strings.HasPrefix(name, "set."):
		return &intrinsics.FieldSetter{Field: strings.TrimPrefix(name, "set.")}, true
	}
	return a.direct.Get(name)
}

// generator emits the statements of one method block.
type generator struct {
	asm     *Assembly
	decl    *methodDecl
	id      object.MethodID
	version uint64
}

func (g *generator) Name() object.VersionedName { return object.Versioned(string(g.id), g.version) }

// check reports references that can never resolve: unknown direct methods,
// includes of undeclared methods and jumps to labels never marked.
func (g *generator) check() error {
	labels := map[string]bool{}
	for _, s := range g.decl.Body {
		if s.Label != nil {
			if labels[*s.Label] {
				return &Error{Pos: s.Pos, Msg: "label " + *s.Label + " marked twice"}
			}
			labels[*s.Label] = true
		}
	}
	for _, s := range g.decl.Body {
		switch {
		case s.Direct != nil:
			if _, ok := g.asm.lookupDirect(*s.Direct); !ok {
				return &Error{Pos: s.Pos, Msg: "unknown direct method " + *s.Direct}
			}
		case s.DirectCall != nil:
			if _, ok := g.asm.lookupDirect(*s.DirectCall); !ok {
				return &Error{Pos: s.Pos, Msg: "unknown direct method " + *s.DirectCall}
			}
		case s.Include != nil:
			if _, ok := g.asm.methods[s.Include.id()]; !ok {
				return &Error{Pos: s.Pos, Msg: "include of undeclared method " + string(s.Include.id())}
			}
		case s.Jmp != nil && !labels[*s.Jmp]:
			return &Error{Pos: s.Pos, Msg: "jump to undefined label " + *s.Jmp}
		case s.JmpIf != nil && !labels[s.JmpIf.Label]:
			return &Error{Pos: s.Pos, Msg: "jump to undefined label " + s.JmpIf.Label}
		}
	}
	return nil
}

// emission is the state of one Generate call.
type emission struct {
	e      instruction.Emitter
	labels map[string]instruction.Label
	temps  map[string]object.VariableName
}

func (em *emission) label(name string) instruction.Label {
	if l, ok := em.labels[name]; ok {
		return l
	}
	l := em.e.NewLabel()
	em.labels[name] = l
	return l
}

func (em *emission) variable(v *varRef) object.VariableName {
	switch {
	case v == nil:
		return object.VariableName{}
	case v.Shared != "":
		return object.Shared(strings.TrimPrefix(v.Shared, "@"))
	case v.Temp != "":
		if t, ok := em.temps[v.Temp]; ok {
			return t
		}
		t := em.e.Temporary(strings.TrimPrefix(v.Temp, "$"))
		em.temps[v.Temp] = t
		return t
	}
	return object.Var(v.Name)
}

func (g *generator) Generate(e instruction.Emitter) error {
	em := &emission{e: e, labels: map[string]instruction.Label{}, temps: map[string]object.VariableName{}}
	for _, s := range g.decl.Body {
		if s.Label != nil {
			e.MarkLabel(em.label(*s.Label))
			continue
		}
		if s.Include != nil {
			inc, ok := g.asm.methods[s.Include.id()]
			if !ok {
				return &Error{Pos: s.Pos, Msg: "include of undeclared method " + string(s.Include.id())}
			}
			if err := e.Include(inc); err != nil {
				return err
			}
			continue
		}
		ins, err := g.instruction(em, s)
		if err != nil {
			return err
		}
		info := e.Emit(ins)
		info.Origin = s.Pos.String()
	}
	return nil
}

func (g *generator) instruction(em *emission, s *stmt) (instruction.Instruction, error) {
	switch {
	case s.Assign != nil:
		return &instruction.Assign{Target: em.variable(s.Assign.Target), Source: em.variable(s.Assign.Source)}, nil
	case s.Arg != nil:
		return &instruction.AssignArgument{Target: em.variable(s.Arg.Target), Index: s.Arg.Index}, nil
	case s.Lit != nil:
		return &instruction.AssignLiteral{Target: em.variable(s.Lit.Target), Literal: s.Lit.Value.literal()}, nil
	case s.New != nil:
		return &instruction.AssignNewObject{Target: em.variable(s.New.Target), Type: s.New.Type.descriptor()}, nil
	case s.RetVal != nil:
		return &instruction.AssignReturnValue{Target: em.variable(s.RetVal)}, nil
	case s.PreCall != nil:
		args := make([]object.VariableName, len(s.PreCall.Args))
		for i, a := range s.PreCall.Args {
			args[i] = em.variable(a)
		}
		return &instruction.PreCall{Args: args}, nil
	case s.Call != nil:
		return &instruction.Call{Method: s.Call.id()}, nil
	case s.CallVirt != nil:
		return &instruction.Call{Method: s.CallVirt.id(), Dynamic: true}, nil
	case s.JmpIf != nil:
		return &instruction.ConditionalJump{Condition: em.variable(s.JmpIf.Condition), Target: em.label(s.JmpIf.Label)}, nil
	case s.Jmp != nil:
		return &instruction.Jump{Target: em.label(*s.Jmp)}, nil
	case s.Ret != nil:
		return &instruction.Return{Source: em.variable(s.Ret.Source)}, nil
	case s.Ensure != nil:
		return &instruction.EnsureInitialized{Target: em.variable(s.Ensure.Target), Initializer: s.Ensure.Initializer.id()}, nil
	case s.LateInit != nil:
		return &instruction.LateReturnInitialization{Target: em.variable(s.LateInit)}, nil
	case s.Direct != nil:
		m, ok := g.asm.lookupDirect(*s.Direct)
		if !ok {
			return nil, &Error{Pos: s.Pos, Msg: "unknown direct method " + *s.Direct}
		}
		return &instruction.DirectInvoke{Method: m}, nil
	case s.DirectCall != nil:
		m, ok := g.asm.lookupDirect(*s.DirectCall)
		if !ok {
			return nil, &Error{Pos: s.Pos, Msg: "unknown direct method " + *s.DirectCall}
		}
		return &instruction.DirectCall{Method: m}, nil
	case s.Nop:
		return &instruction.Nop{}, nil
	}
	return nil, &Error{Pos: s.Pos, Msg: "empty statement"}
}

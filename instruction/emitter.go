package instruction

import (
	"fmt"

	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/object"
)

// Info is attached to every emitted instruction.
type Info struct {
	// Origin is a human-readable source position, e.g. "main.go:12:3".
	Origin string
	// Provider produces transformations for the syntactic element the
	// instruction came from. It may be nil.
	Provider edit.TransformProvider
}

// Emitter is the sink a Generator writes its instructions into.
type Emitter interface {
	// Emit appends ins and returns its Info for the caller to fill in.
	Emit(ins Instruction) *Info
	NewLabel() Label
	// MarkLabel binds l to the position of the next emitted instruction.
	MarkLabel(l Label)
	// Temporary mints a variable name no user variable can collide with.
	Temporary(hint string) object.VariableName
	// Include splices the instructions of another generator at the current position.
	Include(gen Generator) error
}

// Generator lazily produces the instruction sequence of one method version.
// Generate must produce the same sequence every time it is called.
type Generator interface {
	Name() object.VersionedName
	Generate(e Emitter) error
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc struct {
	ID object.VersionedName
	Fn func(e Emitter) error
}

func (g *GeneratorFunc) Name() object.VersionedName { return g.ID }

func (g *GeneratorFunc) Generate(e Emitter) error { return g.Fn(e) }

type builder struct {
	instructions []Instruction
	infos        []*Info
	labels       []int // label n-1 -> position, -1 while unmarked
	temporaries  int

	inProgress map[object.VersionedName]bool
	chain      []object.VersionedName
	err        error
}

// Build runs gen against a fresh emitter and returns the resulting program.
func Build(gen Generator) (*Program, error) {
	b := &builder{inProgress: make(map[object.VersionedName]bool)}
	if err := b.Include(gen); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, fmt.Errorf("generate %s: %w", gen.Name(), b.err)
	}
	for _, ins := range b.instructions {
		var target Label
		switch ins := ins.(type) {
		case *Jump:
			target = ins.Target
		case *ConditionalJump:
			target = ins.Target
		default:
			continue
		}
		if target.n < 1 || target.n > len(b.labels) || b.labels[target.n-1] < 0 {
			return nil, fmt.Errorf("generate %s: %q jumps to unmarked label %s", gen.Name(), ins, target)
		}
	}

	p := &Program{
		Name:         gen.Name(),
		Instructions: b.instructions,
		Infos:        make([]Info, len(b.infos)),
		labels:       b.labels,
	}
	for i, info := range b.infos {
		p.Infos[i] = *info
	}
	return p, nil
}

func (b *builder) Emit(ins Instruction) *Info {
	info := &Info{}
	b.instructions = append(b.instructions, ins)
	b.infos = append(b.infos, info)
	return info
}

func (b *builder) NewLabel() Label {
	b.labels = append(b.labels, -1)
	return Label{n: len(b.labels)}
}

func (b *builder) MarkLabel(l Label) {
	if l.n < 1 || l.n > len(b.labels) {
		b.fail(fmt.Errorf("label %s was not created by this emitter", l))
		return
	}
	if b.labels[l.n-1] >= 0 {
		b.fail(fmt.Errorf("label %s is marked twice", l))
		return
	}
	b.labels[l.n-1] = len(b.instructions)
}

func (b *builder) Temporary(hint string) object.VariableName {
	b.temporaries++
	return object.VariableName{Name: hint, Scope: b.temporaries}
}

func (b *builder) Include(gen Generator) error {
	name := gen.Name()
	if b.inProgress[name] {
		chain := append(append([]object.VersionedName(nil), b.chain...), name)
		return &RecursiveGenerationError{Name: name, Chain: chain}
	}
	b.inProgress[name] = true
	b.chain = append(b.chain, name)
	defer func() {
		delete(b.inProgress, name)
		b.chain = b.chain[:len(b.chain)-1]
	}()

	if err := gen.Generate(b); err != nil {
		return fmt.Errorf("generate %s: %w", name, err)
	}
	return nil
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

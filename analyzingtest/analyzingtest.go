// Package analyzingtest provides helpers for testing generators, front ends
// and machine runs.
package analyzingtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
)

var versions atomic.Uint64

// Gen builds a generator from a function. Every generator gets a fresh
// version, so two generators sharing a name never share a cached program.
func Gen(name string, fn func(e instruction.Emitter) error) instruction.Generator {
	return GenVersion(name, versions.Add(1), fn)
}

// GenVersion builds a generator from a function at a fixed version.
func GenVersion(name string, version uint64, fn func(e instruction.Emitter) error) instruction.Generator {
	return &instruction.GeneratorFunc{ID: object.Versioned(name, version), Fn: fn}
}

// Seq builds a generator emitting a fixed list of instructions.
func Seq(name string, instrs ...instruction.Instruction) instruction.Generator {
	return Gen(name, func(e instruction.Emitter) error {
		for _, ins := range instrs {
			e.Emit(ins)
		}
		return nil
	})
}

// Generators is a loader backed by a map. The assembly of a method is the
// first segment of its path.
type Generators map[object.MethodID]instruction.Generator

// Add registers gen under its own name.
func (g Generators) Add(gens ...instruction.Generator) Generators {
	for _, gen := range gens {
		g[object.MethodID(gen.Name().Name)] = gen
	}
	return g
}

// Provide implements methods.Provider.
func (g Generators) Provide(ctx context.Context, m object.MethodID) (instruction.Generator, methods.AssemblyRef, error) {
	gen, ok := g[m]
	if !ok {
		gen, ok = g[m.Definition()]
	}
	if !ok {
		return nil, "", fmt.Errorf("no generator for %s", m)
	}
	return gen, methods.AssemblyRef(m.Segments()[0]), nil
}

// AssertDirect fails the test unless inst wraps want.
func AssertDirect(t *testing.T, inst *object.Instance, want any) {
	t.Helper()
	if inst == nil {
		t.Fatalf("expected an instance wrapping %v, but got nil", want)
	}
	got, ok := inst.DirectValue()
	if !ok {
		t.Fatalf("expected an instance wrapping %v, but got %s", want, inst.Inspect())
	}
	if got != want {
		t.Errorf("direct value = %#v, want %#v", got, want)
	}
}

// AssertNothing fails the test unless inst is the Nothing instance.
func AssertNothing(t *testing.T, inst *object.Instance) {
	t.Helper()
	if inst == nil || !inst.IsNothing() {
		t.Errorf("expected nothing, but got %v", inst)
	}
}

// WriteFiles creates a temporary directory and populates it with files.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll(%q): %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile(%q): %v", path, err)
		}
	}
	return dir
}

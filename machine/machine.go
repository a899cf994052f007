// Package machine interprets generator programs over a method-call graph.
//
// A Machine is single-threaded per run: nested calls are plain recursive
// procedure calls and there is no suspension point. Several runs may share
// one methods.Cache concurrently.
package machine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
	"github.com/podhmo/go-analyzing/scope"
)

const (
	DefaultMaxCallDepth = 256
	DefaultMaxSteps     = 1_000_000
)

// Machine runs entry generators. It holds no per-run state.
type Machine struct {
	cache    *methods.Cache
	loader   methods.Provider
	resolver *methods.Resolver
	direct   *intrinsics.Registry
	logger   *slog.Logger

	maxCallDepth int
	maxSteps     int
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithResolver sets the resolver used by dynamic calls.
func WithResolver(r *methods.Resolver) Option {
	return func(m *Machine) { m.resolver = r }
}

// WithDirectMethods sets the registry consulted before the loader on every call.
func WithDirectMethods(r *intrinsics.Registry) Option {
	return func(m *Machine) { m.direct = r }
}

// WithMaxCallDepth bounds the depth of nested calls.
func WithMaxCallDepth(n int) Option {
	return func(m *Machine) { m.maxCallDepth = n }
}

// WithMaxSteps bounds the number of instructions one run may execute.
func WithMaxSteps(n int) Option {
	return func(m *Machine) { m.maxSteps = n }
}

// New creates a machine. loader is invoked by the cache on misses; it may be
// nil when every called method is a direct method.
func New(cache *methods.Cache, loader methods.Provider, opts ...Option) *Machine {
	m := &Machine{
		cache:        cache,
		loader:       loader,
		maxCallDepth: DefaultMaxCallDepth,
		maxSteps:     DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	if m.cache == nil {
		m.cache = methods.NewCache(m.logger)
	}
	if m.direct == nil {
		m.direct = intrinsics.Builtins()
	}
	return m
}

// Cache returns the methods cache the machine reads through.
func (m *Machine) Cache() *methods.Cache { return m.cache }

// Run interprets entry with no arguments and returns the analysis result.
// The program of entry is memoized in the cache under its VersionedName, so
// a different instruction sequence under the same name needs a new version.
func (m *Machine) Run(ctx context.Context, entry instruction.Generator) (*Result, error) {
	return m.run(ctx, object.MethodID(entry.Name().Name), entry)
}

// RunMethod loads method through the cache and runs it as the entry.
func (m *Machine) RunMethod(ctx context.Context, method object.MethodID) (*Result, error) {
	if m.loader == nil {
		return nil, fmt.Errorf("run %s: no loader configured", method)
	}
	gen, err := m.cache.GetCachedGenerator(ctx, method, m.loader)
	if err != nil {
		return nil, &RunError{Method: method, Err: err}
	}
	return m.run(ctx, method, gen)
}

func (m *Machine) run(ctx context.Context, method object.MethodID, entry instruction.Generator) (*Result, error) {
	r := &run{
		m:            m,
		table:        object.NewTable(),
		shared:       scope.New(),
		initializing: make(map[initKey]bool),
		literals:     make(map[*instruction.AssignLiteral]*object.Instance),
		edits:        make(map[object.InstanceID][]*edit.Edit),
		editNames:    make(map[editKey]bool),
	}
	r.logc(ctx, slog.LevelDebug, "run", "entry", entry.Name().String())

	ret, err := r.call(ctx, method, entry, nil, "", -1)
	if err != nil {
		return nil, err
	}
	return &Result{
		Entry:       r.calls[0],
		ReturnValue: ret,
		Instances:   r.table,
		Steps:       r.steps,
		calls:       r.calls,
		shared:      r.shared,
		edits:       r.edits,
	}, nil
}

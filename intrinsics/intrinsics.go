package intrinsics

import (
	"context"

	"github.com/podhmo/go-analyzing/object"
)

// Context is the view of the running frame offered to host functions.
type Context interface {
	// Arguments returns the arguments of the current call (DirectInvoke)
	// or the staged arguments (DirectCall).
	Arguments() []*object.Instance
	// Return sets the value observed by the caller.
	Return(v *object.Instance)
	CreateInstance(typ object.TypeDescriptor) *object.Instance
	CreateDirect(v any) *object.Instance
	Nothing() *object.Instance
}

// DirectMethod is an engine-native function spliced into the interpreted graph.
type DirectMethod interface {
	Name() string
	Invoke(ctx context.Context, dc Context) error
}

// Func adapts a plain function to DirectMethod.
type Func struct {
	Key string
	Fn  func(ctx context.Context, dc Context) error
}

func (f *Func) Name() string { return f.Key }

func (f *Func) Invoke(ctx context.Context, dc Context) error { return f.Fn(ctx, dc) }

// Registry holds direct methods keyed by method path in a layered stack.
// Temporary layers can be pushed for a specific analysis and popped afterwards.
type Registry struct {
	layers []map[string]DirectMethod
}

// New creates a new, empty registry with a single base layer.
func New() *Registry {
	return &Registry{
		layers: []map[string]DirectMethod{make(map[string]DirectMethod)},
	}
}

// Register adds a direct method to the top-most layer.
func (r *Registry) Register(key string, m DirectMethod) {
	topLayer := r.layers[len(r.layers)-1]
	topLayer[key] = m
}

// RegisterFunc is a shorthand for Register with a Func adapter.
func (r *Registry) RegisterFunc(key string, fn func(ctx context.Context, dc Context) error) {
	r.Register(key, &Func{Key: key, Fn: fn})
}

// Get searches from the top-most layer down to the base layer.
func (r *Registry) Get(key string) (DirectMethod, bool) {
	if r == nil {
		return nil, false
	}
	for i := len(r.layers) - 1; i >= 0; i-- {
		if m, ok := r.layers[i][key]; ok {
			return m, true
		}
	}
	return nil, false
}

// Push adds a new, empty layer.
func (r *Registry) Push() {
	r.layers = append(r.layers, make(map[string]DirectMethod))
}

// Pop removes the top-most layer. The base layer is never removed.
func (r *Registry) Pop() {
	if len(r.layers) > 1 {
		r.layers = r.layers[:len(r.layers)-1]
	}
}

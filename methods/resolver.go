package methods

import (
	"fmt"

	"github.com/podhmo/go-analyzing/object"
)

// InheritanceChain describes one type for dispatch: the methods it declares
// and the types it inherits from (embedded types, base classes).
type InheritanceChain struct {
	// Type is the definition, e.g. "pkg.Box" with Params ["T"].
	Type   object.TypeDescriptor
	Params []string
	// Methods maps a method name to the declared method ID.
	Methods map[string]object.MethodID
	// Bases may refer to Params, e.g. "pkg.Inner[T]".
	Bases []object.TypeDescriptor
}

// TypeServices is the type query surface a front end provides.
type TypeServices interface {
	// Chain looks a type up by name; generic args of typ are ignored.
	Chain(typ object.TypeDescriptor) (*InheritanceChain, bool)
}

// TypeTable is a TypeServices backed by a map keyed by type name.
type TypeTable map[string]*InheritanceChain

func (t TypeTable) Chain(typ object.TypeDescriptor) (*InheritanceChain, bool) {
	c, ok := t[typ.Name]
	return c, ok
}

// Add registers a chain under its type name.
func (t TypeTable) Add(c *InheritanceChain) { t[c.Type.Name] = c }

// Resolver maps a static method reference plus a dynamic type to the one
// implementing method.
type Resolver struct {
	types TypeServices
}

// NewResolver creates a resolver over the given type services.
func NewResolver(types TypeServices) *Resolver {
	return &Resolver{types: types}
}

// Knows reports whether the type services describe typ at all.
func (r *Resolver) Knows(typ object.TypeDescriptor) bool {
	if r == nil || r.types == nil {
		return false
	}
	_, ok := r.types.Chain(typ)
	return ok
}

// Resolve walks the inheritance chain of dynamic breadth-first, binding
// generic parameters along the path. The nearest depth declaring a method
// named like static wins; zero matches, or several distinct matches at that
// depth, are a *MethodResolutionError.
func (r *Resolver) Resolve(static object.MethodID, dynamic object.TypeDescriptor) (object.MethodID, error) {
	name := static.Name()
	if r == nil || r.types == nil {
		return "", &MethodResolutionError{Method: static, Dynamic: dynamic, Reason: "no type services"}
	}

	level := []object.TypeDescriptor{dynamic}
	seen := map[string]bool{dynamic.String(): true}
	for depth := 0; len(level) > 0; depth++ {
		found := map[object.MethodID]bool{}
		var next []object.TypeDescriptor
		for _, typ := range level {
			chain, ok := r.types.Chain(typ)
			if !ok {
				continue
			}
			if m, ok := chain.Methods[name]; ok {
				found[instantiate(m, chain, typ)] = true
			}
			bindings := bind(chain.Params, typ.Args)
			for _, base := range chain.Bases {
				b := base.Substitute(bindings)
				if key := b.String(); !seen[key] {
					seen[key] = true
					next = append(next, b)
				}
			}
		}

		switch len(found) {
		case 0:
			level = next
			continue
		case 1:
			for m := range found {
				return m, nil
			}
		}
		candidates := make([]object.MethodID, 0, len(found))
		for m := range found {
			candidates = append(candidates, m)
		}
		sortIDs(candidates)
		return "", &MethodResolutionError{
			Method:     static,
			Dynamic:    dynamic,
			Candidates: candidates,
			Reason:     fmt.Sprintf("ambiguous at depth %d", depth),
		}
	}
	return "", &MethodResolutionError{Method: static, Dynamic: dynamic, Reason: "no implementation"}
}

func bind(params []string, args []object.TypeDescriptor) map[string]object.TypeDescriptor {
	if len(params) == 0 || len(params) != len(args) {
		return nil
	}
	m := make(map[string]object.TypeDescriptor, len(params))
	for i, p := range params {
		m[p] = args[i]
	}
	return m
}

// instantiate carries the generic args of typ onto a method declared by it.
func instantiate(m object.MethodID, chain *InheritanceChain, typ object.TypeDescriptor) object.MethodID {
	if !typ.IsGeneric() || m.Definition().DeclaringType() != chain.Type.Name {
		return m
	}
	return object.NewMethodID(typ, m.Name())
}

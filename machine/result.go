package machine

import (
	"fmt"
	"strconv"

	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/object"
	"github.com/podhmo/go-analyzing/scope"
)

// Result is the read-only outcome of one run.
type Result struct {
	Entry       *CallContext
	ReturnValue *object.Instance
	Instances   *object.Table
	Steps       int

	calls  []*CallContext
	shared *scope.Variables
	edits  map[object.InstanceID][]*edit.Edit
}

// Calls returns every call context in creation order; the entry is first.
func (r *Result) Calls() []*CallContext { return r.calls }

// Call returns the call context at index i of the arena.
func (r *Result) Call(i int) *CallContext {
	if i < 0 || i >= len(r.calls) {
		return nil
	}
	return r.calls[i]
}

// Children returns the calls made by c, in order.
func (r *Result) Children(c *CallContext) []*CallContext {
	out := make([]*CallContext, len(c.Children))
	for i, idx := range c.Children {
		out[i] = r.calls[idx]
	}
	return out
}

// Walk visits the call tree depth-first, pre-order.
func (r *Result) Walk(fn func(c *CallContext, depth int) bool) {
	var walk func(c *CallContext, depth int)
	walk = func(c *CallContext, depth int) {
		if !fn(c, depth) {
			return
		}
		for _, idx := range c.Children {
			walk(r.calls[idx], depth+1)
		}
	}
	walk(r.Entry, 0)
}

// Shared returns the shared slots initialized during the run.
func (r *Result) Shared() *scope.Variables { return r.shared }

// Edits returns the edits attached to inst during the run.
func (r *Result) Edits(inst *object.Instance) []*edit.Edit {
	return r.edits[inst.ID()]
}

// VariableFor returns the user variable of call bound to inst.
func (r *Result) VariableFor(inst *object.Instance, call *CallContext) (object.VariableName, bool) {
	if call == nil {
		return object.VariableName{}, false
	}
	return call.Variables.Find(inst)
}

// ValueFor returns a value provider rendering inst as source text in the
// scope of call: the name of a variable bound to it, or its literal value.
func (r *Result) ValueFor(inst *object.Instance, call *CallContext) (edit.ValueProvider, error) {
	if name, ok := r.VariableFor(inst, call); ok {
		return edit.Literal(name.Name), nil
	}
	if v, ok := inst.DirectValue(); ok {
		switch v := v.(type) {
		case string:
			return edit.Literal(strconv.Quote(v)), nil
		case nil:
			return edit.Literal("nil"), nil
		default:
			return edit.Literal(fmt.Sprint(v)), nil
		}
	}
	return nil, fmt.Errorf("instance %s has no source form", inst.Inspect())
}

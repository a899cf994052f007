package machine

import (
	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/object"
	"github.com/podhmo/go-analyzing/scope"
)

// Block is a run of consecutively executed instructions, [Start, End).
type Block struct {
	Start, End int
}

// CallContext is one activation record. Call contexts live in the run's
// arena and refer to each other by index.
type CallContext struct {
	Index  int
	Parent int // -1 for the entry
	Method object.MethodID
	// Name is the versioned name of the generator; zero for opaque and direct calls.
	Name      object.VersionedName
	Args      []*object.Instance
	Variables *scope.Variables
	Blocks    []Block
	Children  []int
	// ReturnValue is nil until the frame returns.
	ReturnValue *object.Instance
	// Origin is the position of the call site in the caller.
	Origin string
	// Direct is set for calls served by a direct method.
	Direct bool
	// Opaque is set for dynamic calls on receivers the type services do not describe.
	Opaque bool

	program *instruction.Program
}

// Program returns the instructions the frame executed; nil for direct and opaque calls.
func (c *CallContext) Program() *instruction.Program { return c.program }

type initKey struct {
	frame int // -1 for shared slots
	name  object.VariableName
}

type editKey struct {
	inst object.InstanceID
	name string
}

// run is the state of one Machine.Run.
type run struct {
	m      *Machine
	table  *object.Table
	calls  []*CallContext
	stack  []int
	shared *scope.Variables
	steps  int

	initializing map[initKey]bool
	literals     map[*instruction.AssignLiteral]*object.Instance
	edits        map[object.InstanceID][]*edit.Edit
	editNames    map[editKey]bool
}

func (r *run) attachEdit(inst *object.Instance, name string, t edit.Transformation) {
	key := editKey{inst: inst.ID(), name: name}
	if r.editNames[key] {
		return
	}
	r.editNames[key] = true
	r.edits[inst.ID()] = append(r.edits[inst.ID()], &edit.Edit{Name: name, Transformation: t})
}

// AnalyzingContext is the execution state of one frame: its variables, the
// arguments staged by PreCall and the return value of the last completed call.
type AnalyzingContext struct {
	run        *run
	frame      *CallContext
	staged     []*object.Instance
	lastReturn *object.Instance
	// shared slots whose initializer this frame started
	pending map[object.VariableName]bool
}

var _ intrinsics.Context = (*AnalyzingContext)(nil)

// Frame returns the call context being executed.
func (ac *AnalyzingContext) Frame() *CallContext { return ac.frame }

// CreateInstance allocates and registers a new instance.
func (ac *AnalyzingContext) CreateInstance(typ object.TypeDescriptor) *object.Instance {
	return ac.run.table.Create(typ)
}

// CreateDirect allocates an instance wrapping a native value.
func (ac *AnalyzingContext) CreateDirect(v any) *object.Instance {
	return ac.run.table.CreateDirect(object.DirectType(v), v)
}

// Nothing returns the designated "no value" instance.
func (ac *AnalyzingContext) Nothing() *object.Instance { return ac.run.table.Nothing() }

// Arguments returns the arguments of the frame.
func (ac *AnalyzingContext) Arguments() []*object.Instance { return ac.frame.Args }

// Return sets the frame's return value without unwinding it.
func (ac *AnalyzingContext) Return(v *object.Instance) { ac.frame.ReturnValue = v }

func (ac *AnalyzingContext) store(name object.VariableName) *scope.Variables {
	if name.IsShared() {
		return ac.run.shared
	}
	return ac.frame.Variables
}

// GetValue reads a variable. A shared slot whose initializer is still
// running reads as Nothing.
func (ac *AnalyzingContext) GetValue(name object.VariableName) (*object.Instance, error) {
	s := ac.store(name)
	if !s.Contains(name) && name.IsShared() && ac.run.initializing[initKey{frame: -1, name: name}] {
		return ac.Nothing(), nil
	}
	return s.Get(name)
}

// SetValue binds a variable.
func (ac *AnalyzingContext) SetValue(name object.VariableName, v *object.Instance) {
	ac.store(name).Set(name, v)
}

// Contains reports whether a variable is bound.
func (ac *AnalyzingContext) Contains(name object.VariableName) bool {
	return ac.store(name).Contains(name)
}

func (ac *AnalyzingContext) initKey(name object.VariableName) initKey {
	if name.IsShared() {
		return initKey{frame: -1, name: name}
	}
	return initKey{frame: ac.frame.Index, name: name}
}

// directContext serves a DirectCall: it sees the staged arguments and its
// result goes to the caller's last return value.
type directContext struct {
	*AnalyzingContext
	args []*object.Instance
	ret  *object.Instance
}

func (dc *directContext) Arguments() []*object.Instance { return dc.args }

func (dc *directContext) Return(v *object.Instance) { dc.ret = v }

func (dc *directContext) result() *object.Instance {
	if dc.ret == nil {
		return dc.Nothing()
	}
	return dc.ret
}

func truthy(v *object.Instance) bool {
	if v == nil || v.IsNothing() {
		return false
	}
	d, ok := v.DirectValue()
	if !ok {
		return true
	}
	switch x := d.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0
	}
	return true
}

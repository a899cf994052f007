// Package instruction defines the closed instruction set executed by the
// machine and the emitter through which generators produce it.
package instruction

import (
	"fmt"
	"strings"

	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/object"
)

// Instruction is one operation over a single frame.
// The set is closed; the machine dispatches with a type switch.
type Instruction interface {
	isInstruction()
	String() string
}

// Label is an opaque jump target, valid only inside the program that created it.
type Label struct {
	n int
}

// IsZero reports whether the label was never created by an emitter.
func (l Label) IsZero() bool { return l.n == 0 }

func (l Label) String() string { return fmt.Sprintf("L%d", l.n) }

// --- Assignments ---

// Assign copies the instance bound to Source into Target.
type Assign struct {
	Target object.VariableName
	Source object.VariableName
}

func (*Assign) isInstruction() {}

func (i *Assign) String() string { return fmt.Sprintf("assign %s, %s", i.Target, i.Source) }

// AssignArgument binds Target to the Index-th argument of the current call,
// or to Nothing when the call has no arguments.
type AssignArgument struct {
	Target object.VariableName
	Index  int
}

func (*AssignArgument) isInstruction() {}

func (i *AssignArgument) String() string { return fmt.Sprintf("arg %s, %d", i.Target, i.Index) }

// AssignLiteral binds Target to a pre-built literal instance.
type AssignLiteral struct {
	Target  object.VariableName
	Literal object.Literal
}

func (*AssignLiteral) isInstruction() {}

func (i *AssignLiteral) String() string {
	return fmt.Sprintf("lit %s, %s %s", i.Target, i.Literal.Type, i.Literal)
}

// AssignNewObject allocates an instance of Type and binds it to Target.
type AssignNewObject struct {
	Target object.VariableName
	Type   object.TypeDescriptor
}

func (*AssignNewObject) isInstruction() {}

func (i *AssignNewObject) String() string { return fmt.Sprintf("new %s, %s", i.Target, i.Type) }

// AssignReturnValue binds Target to the return value of the last completed call.
type AssignReturnValue struct {
	Target object.VariableName
}

func (*AssignReturnValue) isInstruction() {}

func (i *AssignReturnValue) String() string { return fmt.Sprintf("retval %s", i.Target) }

// --- Calls ---

// PreCall stages the instances bound to Args as the next call's arguments.
type PreCall struct {
	Args []object.VariableName
}

func (*PreCall) isInstruction() {}

func (i *PreCall) String() string {
	names := make([]string, len(i.Args))
	for j, a := range i.Args {
		names[j] = a.String()
	}
	return "precall " + strings.Join(names, ", ")
}

// Call invokes Method with the staged arguments. A Dynamic call resolves
// Method against the runtime type of the first staged argument.
type Call struct {
	Method  object.MethodID
	Dynamic bool
}

func (*Call) isInstruction() {}

func (i *Call) String() string {
	if i.Dynamic {
		return "callvirt " + i.Method.String()
	}
	return "call " + i.Method.String()
}

// DirectInvoke runs a host method against the current frame: its arguments
// are the frame's arguments and its result becomes the frame's return value.
type DirectInvoke struct {
	Method intrinsics.DirectMethod
}

func (*DirectInvoke) isInstruction() {}

func (i *DirectInvoke) String() string { return "direct " + i.Method.Name() }

// DirectCall runs a host method with the staged arguments without pushing a
// frame. Its result is read with AssignReturnValue.
type DirectCall struct {
	Method intrinsics.DirectMethod
}

func (*DirectCall) isInstruction() {}

func (i *DirectCall) String() string { return "directcall " + i.Method.Name() }

// --- Control flow ---

// ConditionalJump jumps to Target when the instance bound to Condition is truthy.
type ConditionalJump struct {
	Condition object.VariableName
	Target    Label
}

func (*ConditionalJump) isInstruction() {}

func (i *ConditionalJump) String() string {
	return fmt.Sprintf("jmpif %s, %s", i.Condition, i.Target)
}

// Jump continues at Target.
type Jump struct {
	Target Label
}

func (*Jump) isInstruction() {}

func (i *Jump) String() string { return "jmp " + i.Target.String() }

// Return sets the frame's return value and unwinds it. A zero Source keeps
// a value set by DirectInvoke and otherwise returns Nothing.
type Return struct {
	Source object.VariableName
}

func (*Return) isInstruction() {}

func (i *Return) String() string {
	if i.Source == (object.VariableName{}) {
		return "ret"
	}
	return "ret " + i.Source.String()
}

// --- Lazy initialization ---

// EnsureInitialized runs Initializer once when Target is still unset.
// The initializer's return value is bound by the LateReturnInitialization
// that follows.
type EnsureInitialized struct {
	Target      object.VariableName
	Initializer object.MethodID
}

func (*EnsureInitialized) isInstruction() {}

func (i *EnsureInitialized) String() string {
	return fmt.Sprintf("ensure %s, %s", i.Target, i.Initializer)
}

// LateReturnInitialization binds Target from the last return value when it is still unset.
type LateReturnInitialization struct {
	Target object.VariableName
}

func (*LateReturnInitialization) isInstruction() {}

func (i *LateReturnInitialization) String() string { return "lateinit " + i.Target.String() }

// Nop does nothing.
type Nop struct{}

func (*Nop) isInstruction() {}

func (*Nop) String() string { return "nop" }

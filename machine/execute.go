package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/object"
	"github.com/podhmo/go-analyzing/scope"
)

// call pushes a frame for gen and executes it until it returns.
func (r *run) call(ctx context.Context, method object.MethodID, gen instruction.Generator, args []*object.Instance, origin string, parent int) (*object.Instance, error) {
	if len(r.stack) >= r.m.maxCallDepth {
		return nil, &LimitError{Limit: "call depth", Max: r.m.maxCallDepth}
	}
	prog, err := r.m.cache.Program(gen)
	if err != nil {
		return nil, &RunError{Method: method, Err: err}
	}

	frame := r.push(method, args, origin, parent)
	frame.Name = gen.Name()
	frame.program = prog
	defer r.pop()
	r.logc(ctx, slog.LevelDebug, "enter", "generator", frame.Name.String(), "args", len(args))

	ac := &AnalyzingContext{run: r, frame: frame}
	start := 0
	pc := 0
	for pc < prog.Len() {
		r.steps++
		if r.steps > r.m.maxSteps {
			return nil, r.wrap(ctx, frame, prog, pc, &LimitError{Limit: "steps", Max: r.m.maxSteps})
		}
		next, done, err := ac.execute(ctx, prog, pc)
		if err != nil {
			frame.Blocks = append(frame.Blocks, Block{Start: start, End: pc + 1})
			return nil, r.wrap(ctx, frame, prog, pc, err)
		}
		if done {
			pc++
			break
		}
		if next != pc+1 {
			frame.Blocks = append(frame.Blocks, Block{Start: start, End: pc + 1})
			start = next
		}
		pc = next
	}
	if start < pc {
		frame.Blocks = append(frame.Blocks, Block{Start: start, End: pc})
	}
	if frame.ReturnValue == nil {
		frame.ReturnValue = r.table.Nothing()
	}
	r.logc(ctx, slog.LevelDebug, "leave", "return", frame.ReturnValue.Inspect())
	return frame.ReturnValue, nil
}

func (r *run) push(method object.MethodID, args []*object.Instance, origin string, parent int) *CallContext {
	frame := &CallContext{
		Index:     len(r.calls),
		Parent:    parent,
		Method:    method,
		Args:      args,
		Variables: scope.New(),
		Origin:    origin,
	}
	r.calls = append(r.calls, frame)
	if parent >= 0 {
		r.calls[parent].Children = append(r.calls[parent].Children, frame.Index)
	}
	r.stack = append(r.stack, frame.Index)
	return frame
}

func (r *run) pop() { r.stack = r.stack[:len(r.stack)-1] }

// wrap attaches the failing frame and instruction unless a nested frame
// already did.
func (r *run) wrap(ctx context.Context, frame *CallContext, prog *instruction.Program, pc int, err error) error {
	var rerr *RunError
	if errors.As(err, &rerr) {
		return err
	}
	r.logc(ctx, slog.LevelError, "run failed", "pc", pc, "error", err)
	return &RunError{
		Method:      frame.Method,
		Position:    prog.Infos[pc].Origin,
		Instruction: prog.Instructions[pc].String(),
		Err:         err,
	}
}

// execute runs the instruction at pc and returns the next pc, or done when
// the frame returned.
func (ac *AnalyzingContext) execute(ctx context.Context, prog *instruction.Program, pc int) (next int, done bool, err error) {
	r := ac.run
	info := prog.Infos[pc]
	next = pc + 1

	switch ins := prog.Instructions[pc].(type) {
	case *instruction.Assign:
		v, err := ac.GetValue(ins.Source)
		if err != nil {
			return 0, false, err
		}
		ac.SetValue(ins.Target, v)

	case *instruction.AssignArgument:
		args := ac.frame.Args
		switch {
		case len(args) == 0:
			ac.SetValue(ins.Target, ac.Nothing())
		case ins.Index < 0 || ins.Index >= len(args):
			return 0, false, fmt.Errorf("argument index %d out of range (%d arguments)", ins.Index, len(args))
		default:
			ac.SetValue(ins.Target, args[ins.Index])
		}

	case *instruction.AssignLiteral:
		inst, ok := r.literals[ins]
		if !ok {
			inst = r.table.CreateDirect(ins.Literal.Type, ins.Literal.Value)
			r.literals[ins] = inst
		}
		ac.SetValue(ins.Target, inst)

	case *instruction.AssignNewObject:
		inst := ac.CreateInstance(ins.Type)
		ac.SetValue(ins.Target, inst)
		if info.Provider != nil {
			if t, err := info.Provider.Remove(); err == nil {
				r.attachEdit(inst, "remove", t)
			}
		}

	case *instruction.AssignReturnValue:
		if ac.lastReturn == nil {
			return 0, false, fmt.Errorf("no completed call to take a return value from")
		}
		ac.SetValue(ins.Target, ac.lastReturn)

	case *instruction.PreCall:
		staged := make([]*object.Instance, len(ins.Args))
		for i, name := range ins.Args {
			v, err := ac.GetValue(name)
			if err != nil {
				return 0, false, err
			}
			staged[i] = v
		}
		ac.staged = staged

	case *instruction.Call:
		args := ac.staged
		ac.staged = nil
		if info.Provider != nil {
			for i, a := range args {
				if a.IsNothing() {
					continue
				}
				if t, err := info.Provider.RemoveArgument(i, true); err == nil {
					r.attachEdit(a, fmt.Sprintf("remove argument %d of %s", i, ins.Method), t)
				}
			}
		}
		ret, err := ac.invoke(ctx, ins, args, info.Origin)
		if err != nil {
			return 0, false, err
		}
		ac.lastReturn = ret

	case *instruction.DirectCall:
		dc := &directContext{AnalyzingContext: ac, args: ac.staged}
		ac.staged = nil
		if err := ins.Method.Invoke(ctx, dc); err != nil {
			return 0, false, err
		}
		ac.lastReturn = dc.result()

	case *instruction.DirectInvoke:
		if err := ins.Method.Invoke(ctx, ac); err != nil {
			return 0, false, err
		}

	case *instruction.ConditionalJump:
		v, err := ac.GetValue(ins.Condition)
		if err != nil {
			return 0, false, err
		}
		if truthy(v) {
			return ac.target(prog, ins.Target)
		}

	case *instruction.Jump:
		return ac.target(prog, ins.Target)

	case *instruction.Return:
		if ins.Source != (object.VariableName{}) {
			v, err := ac.GetValue(ins.Source)
			if err != nil {
				return 0, false, err
			}
			ac.frame.ReturnValue = v
		}
		return next, true, nil

	case *instruction.EnsureInitialized:
		key := ac.initKey(ins.Target)
		if ac.Contains(ins.Target) || r.initializing[key] {
			r.logc(ctx, slog.LevelDebug, "skip initializer", "target", ins.Target.String())
			break
		}
		r.initializing[key] = true
		if ac.pending == nil {
			ac.pending = make(map[object.VariableName]bool)
		}
		ac.pending[ins.Target] = true
		ret, err := ac.callMethod(ctx, ins.Initializer, nil, info.Origin)
		if err != nil {
			return 0, false, err
		}
		ac.lastReturn = ret

	case *instruction.LateReturnInitialization:
		key := ac.initKey(ins.Target)
		switch {
		case ac.pending[ins.Target]:
			delete(ac.pending, ins.Target)
			delete(r.initializing, key)
			if !ac.Contains(ins.Target) {
				ac.SetValue(ins.Target, ac.lastReturn)
			}
		case ac.Contains(ins.Target) || r.initializing[key]:
			// bound already, or an initializer further up the stack owns the slot
		default:
			if ac.lastReturn == nil {
				return 0, false, fmt.Errorf("no completed call to initialize %s from", ins.Target)
			}
			ac.SetValue(ins.Target, ac.lastReturn)
		}

	case *instruction.Nop:

	default:
		return 0, false, fmt.Errorf("unsupported instruction %T", ins)
	}
	return next, false, nil
}

func (ac *AnalyzingContext) target(prog *instruction.Program, l instruction.Label) (int, bool, error) {
	pos, ok := prog.Target(l)
	if !ok {
		return 0, false, fmt.Errorf("unknown label %s", l)
	}
	return pos, false, nil
}

// invoke resolves a Call and runs the callee.
func (ac *AnalyzingContext) invoke(ctx context.Context, ins *instruction.Call, args []*object.Instance, origin string) (*object.Instance, error) {
	r := ac.run
	method := ins.Method
	if ins.Dynamic {
		if len(args) == 0 {
			return nil, fmt.Errorf("dynamic call of %s without a receiver", method)
		}
		recv := args[0]
		if recv.IsNothing() || !r.m.resolver.Knows(recv.Type()) {
			return ac.opaque(ctx, method, args, origin), nil
		}
		resolved, err := r.m.resolver.Resolve(method, recv.Type())
		if err != nil {
			return nil, err
		}
		r.logc(ctx, slog.LevelDebug, "dispatch", "static", string(method), "resolved", string(resolved))
		method = resolved
	}
	return ac.callMethod(ctx, method, args, origin)
}

// callMethod runs method: a direct method when the registry has one,
// otherwise the generator loaded through the cache.
func (ac *AnalyzingContext) callMethod(ctx context.Context, method object.MethodID, args []*object.Instance, origin string) (*object.Instance, error) {
	r := ac.run
	if dm, ok := r.direct(method); ok {
		frame := r.push(method, args, origin, ac.frame.Index)
		frame.Direct = true
		defer r.pop()
		dc := &directContext{AnalyzingContext: &AnalyzingContext{run: r, frame: frame}, args: args}
		if err := dm.Invoke(ctx, dc); err != nil {
			return nil, err
		}
		frame.ReturnValue = dc.result()
		return frame.ReturnValue, nil
	}

	if r.m.loader == nil {
		return nil, fmt.Errorf("no loader for %s", method)
	}
	gen, err := r.m.cache.GetCachedGenerator(ctx, method, r.m.loader)
	if err != nil {
		return nil, err
	}
	return r.call(ctx, method, gen, args, origin, ac.frame.Index)
}

func (r *run) direct(method object.MethodID) (intrinsics.DirectMethod, bool) {
	if dm, ok := r.m.direct.Get(string(method)); ok {
		return dm, true
	}
	if def := method.Definition(); def != method {
		return r.m.direct.Get(string(def))
	}
	return nil, false
}

// opaque records a call whose receiver cannot be dispatched and returns a
// value of unknown content.
func (ac *AnalyzingContext) opaque(ctx context.Context, method object.MethodID, args []*object.Instance, origin string) *object.Instance {
	r := ac.run
	frame := r.push(method, args, origin, ac.frame.Index)
	defer r.pop()
	frame.Opaque = true
	frame.ReturnValue = r.table.Create(intrinsics.UnknownType)
	r.logc(ctx, slog.LevelInfo, "opaque call", "receiver", args[0].Type().String())
	return frame.ReturnValue
}

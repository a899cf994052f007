package gofront

import (
	"fmt"
	"go/ast"
	"strings"

	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/strips"
)

// callSite is the transform provider of one call expression. Argument
// indices are those of the Call instruction: with a receiver, index 0 is the
// receiver and source argument i is index i+1.
type callSite struct {
	src    *source
	fn     *ast.FuncDecl
	call   *ast.CallExpr
	recv   bool
	callee string

	funStart       int
	lparen, rparen int
	args           []string // original argument text; the last one keeps a trailing "..."

	stmt      ast.Stmt // enclosing statement in a statement list, nil outside bodies
	stmtStart int
	stmtEnd   int
	indent    string
}

var _ edit.TransformProvider = (*callSite)(nil)

func newCallSite(src *source, fn *ast.FuncDecl, call *ast.CallExpr, recv bool, callee string) *callSite {
	cs := &callSite{
		src:      src,
		fn:       fn,
		call:     call,
		recv:     recv,
		callee:   callee,
		funStart: src.offset(call.Fun.Pos()),
		lparen:   src.offset(call.Lparen),
		rparen:   src.offset(call.Rparen),
	}
	for i, a := range call.Args {
		start, end := src.span(a)
		if i == len(call.Args)-1 && call.Ellipsis.IsValid() {
			end = src.offset(call.Ellipsis) + len("...")
		}
		cs.args = append(cs.args, src.text[start:end])
	}
	if fn != nil {
		if st, _, _ := src.statementOf(call); st != nil {
			cs.stmt = st
			cs.stmtStart, cs.stmtEnd = src.span(st)
			cs.indent = src.indent(cs.stmtStart)
		}
	}
	return cs
}

func (cs *callSite) String() string {
	return fmt.Sprintf("call of %s at %s", cs.callee, cs.src.origin(cs.call.Pos()))
}

func (cs *callSite) sourceIndex(index int) (int, error) {
	if cs.recv {
		if index == 0 {
			return 0, &edit.UnsupportedEditError{Operation: "edit of the receiver", Provider: cs.String()}
		}
		index--
	}
	if index < 0 || index >= len(cs.args) {
		return 0, fmt.Errorf("argument %d out of range for %s", index, cs)
	}
	return index, nil
}

func (cs *callSite) Remove() (edit.Transformation, error) {
	if !cs.isStatement() {
		return nil, &edit.UnsupportedEditError{Operation: "Remove of a call used as a value", Provider: cs.String()}
	}
	return &callEdit{site: cs, op: opRemoveCall, keep: true}, nil
}

func (cs *callSite) RewriteArgument(index int, value edit.ValueProvider) (edit.Transformation, error) {
	i, err := cs.sourceIndex(index)
	if err != nil {
		return nil, err
	}
	return &callEdit{site: cs, op: opRewrite, index: i, value: value}, nil
}

func (cs *callSite) AppendArgument(value edit.ValueProvider) (edit.Transformation, error) {
	if cs.call.Ellipsis.IsValid() {
		return nil, &edit.UnsupportedEditError{Operation: "AppendArgument after a spread argument", Provider: cs.String()}
	}
	return &callEdit{site: cs, op: opAppend, value: value}, nil
}

func (cs *callSite) RemoveArgument(index int, keepSideEffect bool) (edit.Transformation, error) {
	i, err := cs.sourceIndex(index)
	if err != nil {
		return nil, err
	}
	return &callEdit{site: cs, op: opRemove, index: i, keep: keepSideEffect}, nil
}

func (cs *callSite) SetOptionalArgument(index int) (edit.Transformation, error) {
	i, err := cs.sourceIndex(index)
	if err != nil {
		return nil, err
	}
	return &callEdit{site: cs, op: opOptional, index: i}, nil
}

func (cs *callSite) Navigation() (edit.Navigation, error) {
	pos := cs.src.position(cs.call.Pos())
	return edit.Navigation{Document: cs.src.name, Offset: pos.Offset, Line: pos.Line, Column: pos.Column}, nil
}

// isStatement reports whether the call is a whole statement of its own.
func (cs *callSite) isStatement() bool {
	switch st := cs.stmt.(type) {
	case *ast.ExprStmt:
		return unparen(st.X) == cs.call
	case *ast.GoStmt:
		return st.Call == cs.call
	case *ast.DeferStmt:
		return st.Call == cs.call
	}
	return false
}

// argSlot is the state of one argument within a view.
type argSlot struct {
	orig    int // index in the original argument list, -1 when appended
	text    string
	removed bool
}

// argList is the per-view state of one call's arguments.
type argList struct {
	slots []argSlot
}

func (a *argList) Clone() any {
	return &argList{slots: append([]argSlot(nil), a.slots...)}
}

type argListKey struct {
	doc    string
	lparen int
}

func (cs *callSite) state(view *edit.ExecutionView) *argList {
	key := argListKey{doc: cs.src.name, lparen: cs.lparen}
	if v, ok := view.Data(key); ok {
		return v.(*argList)
	}
	st := &argList{}
	for i, text := range cs.args {
		st.slots = append(st.slots, argSlot{orig: i, text: text})
	}
	view.SetData(key, st)
	return st
}

func (cs *callSite) render(buf *strips.Buffer, st *argList) error {
	var parts []string
	for _, s := range st.slots {
		if !s.removed {
			parts = append(parts, s.text)
		}
	}
	return buf.Set(cs.lparen+1, cs.rparen, strings.Join(parts, ", "))
}

type callOp int

const (
	opRemove callOp = iota
	opRewrite
	opAppend
	opOptional
	opRemoveCall
)

// callEdit is a staged edit of a call site.
type callEdit struct {
	site  *callSite
	op    callOp
	index int // source argument index
	keep  bool
	value edit.ValueProvider
}

func (t *callEdit) String() string {
	cs := t.site
	switch t.op {
	case opRemove:
		return fmt.Sprintf("remove argument %d of %s", t.index, cs)
	case opRewrite:
		return fmt.Sprintf("rewrite argument %d of %s", t.index, cs)
	case opAppend:
		return fmt.Sprintf("append argument to %s", cs)
	case opOptional:
		return fmt.Sprintf("leave out arguments from %d of %s", t.index, cs)
	default:
		return fmt.Sprintf("remove %s", cs)
	}
}

func (t *callEdit) Apply(view *edit.ExecutionView) error {
	cs := t.site
	buf, err := document(view, cs.src, t)
	if err != nil {
		return err
	}
	st := cs.state(view)

	var dropped []string
	switch t.op {
	case opRemove:
		slot, err := t.slot(st)
		if err != nil {
			return err
		}
		names, err := t.drop(buf, slot)
		if err != nil {
			return err
		}
		dropped = names
	case opOptional:
		for i := range st.slots {
			s := &st.slots[i]
			if s.removed || (s.orig >= 0 && s.orig < t.index) {
				continue
			}
			names, err := t.drop(buf, s)
			if err != nil {
				return err
			}
			dropped = append(dropped, names...)
		}
	case opRewrite:
		slot, err := t.slot(st)
		if err != nil {
			return err
		}
		if _, side := sideEffectOf(slot.text); side {
			return edit.Conflict(t, fmt.Sprintf("rewriting argument %d would drop its side effect", t.index), nil)
		}
		text, err := t.value(view)
		if err != nil {
			return edit.Conflict(t, "value", err)
		}
		if e, _ := sideEffectOf(slot.text); e != nil {
			dropped = identNames(e)
		}
		slot.text = text
	case opAppend:
		text, err := t.value(view)
		if err != nil {
			return edit.Conflict(t, "value", err)
		}
		st.slots = append(st.slots, argSlot{orig: -1, text: text})
	case opRemoveCall:
		return t.removeCall(view, buf, st)
	}

	if err := cs.render(buf, st); err != nil {
		return edit.Conflict(t, "argument list was rewritten", err)
	}
	return reconcile(buf, t, cs.src, cs.fn, dropped)
}

func (t *callEdit) slot(st *argList) (*argSlot, error) {
	for i := range st.slots {
		if s := &st.slots[i]; s.orig == t.index {
			if s.removed {
				break
			}
			return s, nil
		}
	}
	return nil, edit.Conflict(t, fmt.Sprintf("argument %d is no longer present", t.index), nil)
}

// drop removes an argument, retaining a side effect as a statement before
// the enclosing statement when the edit allows it. It returns the names the
// dropped text referred to.
func (t *callEdit) drop(buf *strips.Buffer, s *argSlot) ([]string, error) {
	cs := t.site
	e, side := sideEffectOf(s.text)
	if s.orig >= 0 && side {
		if !t.keep {
			return nil, edit.Conflict(t, fmt.Sprintf("argument %d has a side effect", s.orig), nil)
		}
		if cs.stmt == nil || e == nil {
			return nil, edit.Conflict(t, fmt.Sprintf("argument %d has a side effect and no statement to keep it in", s.orig), nil)
		}
		if err := buf.Insert(cs.stmtStart, keepStatement(e, s.text)+"\n"+cs.indent); err != nil {
			return nil, edit.Conflict(t, "statement was rewritten", err)
		}
		s.removed = true
		return nil, nil
	}
	s.removed = true
	return identNames(e), nil
}

func (t *callEdit) removeCall(view *edit.ExecutionView, buf *strips.Buffer, st *argList) error {
	cs := t.site
	var kept, dropped []string
	if sel, ok := unparen(cs.call.Fun).(*ast.SelectorExpr); ok && cs.recv {
		dropped = identNames(sel.X)
	}
	for _, s := range st.slots {
		if s.removed {
			continue
		}
		e, side := sideEffectOf(s.text)
		if s.orig >= 0 && side && e != nil {
			kept = append(kept, keepStatement(e, s.text))
			continue
		}
		dropped = append(dropped, identNames(e)...)
	}
	var err error
	if len(kept) > 0 {
		err = buf.Replace(cs.stmtStart, cs.stmtEnd, strings.Join(kept, "\n"+cs.indent))
	} else {
		start, end := cs.src.stmtRegion(cs.stmtStart, cs.stmtEnd)
		err = buf.Remove(start, end)
	}
	if err != nil {
		return edit.Conflict(t, "statement was already edited", err)
	}
	return reconcile(buf, t, cs.src, cs.fn, dropped)
}

// Check verifies that the callee and the parentheses are still in place.
func (t *callEdit) Check(view *edit.ExecutionView) error {
	cs := t.site
	buf, err := document(view, cs.src, t)
	if err != nil {
		return err
	}
	if t.op == opRemoveCall {
		return nil
	}
	if !buf.Intact(cs.funStart, cs.lparen+1) || !buf.Intact(cs.rparen, cs.rparen+1) {
		return edit.Conflict(t, "call expression was rewritten", nil)
	}
	return nil
}

// document returns the view's buffer of src, failing when the committed text
// is no longer the one the provider was built from.
func document(view *edit.ExecutionView, src *source, t fmt.Stringer) (*strips.Buffer, error) {
	buf, err := view.Document(src.name)
	if err != nil {
		return nil, edit.Conflict(t, "document", err)
	}
	if buf.Original() != src.text {
		return nil, edit.Conflict(t, "document changed since analysis", nil)
	}
	return buf, nil
}

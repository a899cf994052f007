package gofront

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/object"
)

// funcGen generates the instructions of one function or method declaration.
type funcGen struct {
	src     *source
	decl    *ast.FuncDecl
	id      object.MethodID
	version uint64
}

func (g *funcGen) Name() object.VersionedName { return object.Versioned(string(g.id), g.version) }

func (g *funcGen) Generate(e instruction.Emitter) error {
	c := newCompiler(e, g.src, g.decl)
	idx := 0
	if recv := g.decl.Recv; recv != nil {
		for _, f := range recv.List {
			c.param(f, &idx)
			c.receiverTypeParams(f.Type)
		}
	}
	for _, n := range typeParamNames(g.decl.Type.TypeParams) {
		c.typeParams[n] = true
	}
	params := g.decl.Type.Params.List
	for i, f := range params {
		if ell, ok := f.Type.(*ast.Ellipsis); ok && i == len(params)-1 {
			// variadic arguments may be left out; the parameter is a fresh slice
			for _, n := range f.Names {
				if n.Name == "_" {
					continue
				}
				typ := object.TypeOf("[]" + c.src.typeOf(ell.Elt, c.typeParams).String())
				c.declare(n.Name, typ)
				c.emit(&instruction.AssignNewObject{Target: object.Var(n.Name), Type: typ}, n.Pos(), nil)
			}
			continue
		}
		c.param(f, &idx)
	}
	if err := c.block(g.decl.Body.List); err != nil {
		return err
	}
	c.emit(&instruction.Return{}, g.decl.Body.Rbrace, nil)
	return nil
}

// varInit generates the initializer of one package-level variable or constant.
type varInit struct {
	src     *source
	spec    *ast.ValueSpec
	index   int
	id      object.MethodID
	slot    object.VariableName
	version uint64
}

func (v *varInit) Name() object.VersionedName { return object.Versioned(string(v.id), v.version) }

func (v *varInit) Generate(e instruction.Emitter) error {
	c := newCompiler(e, v.src, nil)
	name := v.spec.Names[v.index]
	r := c.tmp("init")
	switch {
	case len(v.spec.Values) == len(v.spec.Names):
		if err := c.into(r, v.spec.Values[v.index], name.Pos(), nil); err != nil {
			return err
		}
	case len(v.spec.Values) == 0:
		c.zero(r, v.spec.Type, name.Pos(), nil)
	default:
		val, err := c.expr(v.spec.Values[0])
		if err != nil {
			return err
		}
		if v.index == 0 {
			r = val
		} else {
			r = c.unknown(name.Pos())
		}
	}
	c.emit(&instruction.Return{Source: r}, name.Pos(), nil)
	return nil
}

type compiler struct {
	e          instruction.Emitter
	src        *source
	fn         *ast.FuncDecl // nil for package variable initializers
	locals     map[string]object.TypeDescriptor
	typeParams map[string]bool
	breaks     []instruction.Label
	continues  []instruction.Label
}

func newCompiler(e instruction.Emitter, src *source, fn *ast.FuncDecl) *compiler {
	return &compiler{
		e:          e,
		src:        src,
		fn:         fn,
		locals:     map[string]object.TypeDescriptor{},
		typeParams: map[string]bool{},
	}
}

func (c *compiler) emit(ins instruction.Instruction, pos token.Pos, p edit.TransformProvider) {
	info := c.e.Emit(ins)
	info.Origin = c.src.origin(pos)
	info.Provider = p
}

func (c *compiler) unsupported(n ast.Node, what string) error {
	return &SyntaxError{Position: c.src.position(n.Pos()), Msg: "unsupported " + what}
}

func (c *compiler) tmp(hint string) object.VariableName { return c.e.Temporary(hint) }

func (c *compiler) declare(name string, typ object.TypeDescriptor) { c.locals[name] = typ }

func (c *compiler) isLocal(name string) bool {
	_, ok := c.locals[name]
	return ok
}

func (c *compiler) param(f *ast.Field, idx *int) {
	if len(f.Names) == 0 {
		*idx++
		return
	}
	for _, n := range f.Names {
		if n.Name != "_" {
			c.declare(n.Name, c.src.typeOf(f.Type, c.typeParams))
			c.emit(&instruction.AssignArgument{Target: object.Var(n.Name), Index: *idx}, n.Pos(), nil)
		}
		*idx++
	}
}

func (c *compiler) receiverTypeParams(t ast.Expr) {
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	var idents []ast.Expr
	switch x := t.(type) {
	case *ast.IndexExpr:
		idents = []ast.Expr{x.Index}
	case *ast.IndexListExpr:
		idents = x.Indices
	}
	for _, e := range idents {
		if id, ok := e.(*ast.Ident); ok {
			c.typeParams[id.Name] = true
		}
	}
}

func (c *compiler) literal(target object.VariableName, v any, pos token.Pos, p edit.TransformProvider) {
	c.emit(&instruction.AssignLiteral{Target: target, Literal: object.LiteralOf(v)}, pos, p)
}

func (c *compiler) lit(v any, pos token.Pos) object.VariableName {
	t := c.tmp("lit")
	c.literal(t, v, pos, nil)
	return t
}

func (c *compiler) newObj(typ object.TypeDescriptor, pos token.Pos) object.VariableName {
	t := c.tmp("obj")
	c.emit(&instruction.AssignNewObject{Target: t, Type: typ}, pos, nil)
	return t
}

func (c *compiler) unknown(pos token.Pos) object.VariableName {
	return c.newObj(intrinsics.UnknownType, pos)
}

// direct runs a host method over args and returns its result.
func (c *compiler) direct(m intrinsics.DirectMethod, pos token.Pos, args ...object.VariableName) object.VariableName {
	c.emit(&instruction.PreCall{Args: args}, pos, nil)
	c.emit(&instruction.DirectCall{Method: m}, pos, nil)
	t := c.tmp("r")
	c.emit(&instruction.AssignReturnValue{Target: t}, pos, nil)
	return t
}

func (c *compiler) operator(op string, pos token.Pos, args ...object.VariableName) object.VariableName {
	m := intrinsics.Operator(op)
	if m == nil {
		return c.unknown(pos)
	}
	return c.direct(m, pos, args...)
}

func (c *compiler) setField(obj object.VariableName, field string, v object.VariableName, pos token.Pos) {
	c.emit(&instruction.PreCall{Args: []object.VariableName{obj, v}}, pos, nil)
	c.emit(&instruction.DirectCall{Method: &intrinsics.FieldSetter{Field: field}}, pos, nil)
}

// sharedRead makes sure a package variable is initialized and returns its slot.
func (c *compiler) sharedRead(v *varInit, pos token.Pos) object.VariableName {
	c.emit(&instruction.EnsureInitialized{Target: v.slot, Initializer: v.id}, pos, nil)
	c.emit(&instruction.LateReturnInitialization{Target: v.slot}, pos, nil)
	return v.slot
}

// --- statements ---

func (c *compiler) block(list []ast.Stmt) error {
	for _, s := range list {
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.ExprStmt:
		_, err := c.expr(s.X)
		return err
	case *ast.AssignStmt:
		return c.assign(s)
	case *ast.IncDecStmt:
		v, err := c.expr(s.X)
		if err != nil {
			return err
		}
		op := "+"
		if s.Tok == token.DEC {
			op = "-"
		}
		r := c.operator(op, s.TokPos, v, c.lit(int64(1), s.TokPos))
		return c.store(s.X, r, s.TokPos, nil)
	case *ast.DeclStmt:
		return c.decl(s)
	case *ast.ReturnStmt:
		if len(s.Results) == 0 {
			c.emit(&instruction.Return{}, s.Pos(), nil)
			return nil
		}
		v, err := c.expr(s.Results[0])
		if err != nil {
			return err
		}
		for _, r := range s.Results[1:] {
			if _, err := c.expr(r); err != nil {
				return err
			}
		}
		c.emit(&instruction.Return{Source: v}, s.Pos(), nil)
		return nil
	case *ast.IfStmt:
		return c.ifStmt(s)
	case *ast.ForStmt:
		return c.forStmt(s)
	case *ast.RangeStmt:
		return c.rangeStmt(s)
	case *ast.SwitchStmt:
		return c.switchStmt(s)
	case *ast.BranchStmt:
		return c.branch(s)
	case *ast.BlockStmt:
		return c.block(s.List)
	case *ast.LabeledStmt:
		return c.stmt(s.Stmt)
	case *ast.GoStmt:
		_, err := c.expr(s.Call)
		return err
	case *ast.DeferStmt:
		_, err := c.expr(s.Call)
		return err
	case *ast.SendStmt:
		if _, err := c.expr(s.Chan); err != nil {
			return err
		}
		_, err := c.expr(s.Value)
		return err
	case *ast.EmptyStmt:
		return nil
	}
	return c.unsupported(s, fmt.Sprintf("statement %T", s))
}

func (c *compiler) assign(s *ast.AssignStmt) error {
	if s.Tok != token.DEFINE && s.Tok != token.ASSIGN {
		if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
			return c.unsupported(s, "multi-value "+s.Tok.String())
		}
		l, err := c.expr(s.Lhs[0])
		if err != nil {
			return err
		}
		r, err := c.expr(s.Rhs[0])
		if err != nil {
			return err
		}
		v := c.operator(strings.TrimSuffix(s.Tok.String(), "="), s.TokPos, l, r)
		return c.store(s.Lhs[0], v, s.TokPos, nil)
	}

	define := s.Tok == token.DEFINE
	if len(s.Lhs) == 1 && len(s.Rhs) == 1 {
		id, ok := s.Lhs[0].(*ast.Ident)
		if !ok {
			v, err := c.expr(s.Rhs[0])
			if err != nil {
				return err
			}
			return c.store(s.Lhs[0], v, s.TokPos, nil)
		}
		if id.Name == "_" {
			_, err := c.expr(s.Rhs[0])
			return err
		}
		var p edit.TransformProvider
		if c.fn != nil {
			p = newAssignment(c.src, c.fn, s, id.Name, s.Rhs[0], nil, define)
		}
		if define {
			c.declare(id.Name, c.exprType(s.Rhs[0]))
		}
		target, err := c.lvalue(id)
		if err != nil {
			return err
		}
		return c.into(target, s.Rhs[0], id.Pos(), p)
	}

	var vals []object.VariableName
	switch {
	case len(s.Lhs) == len(s.Rhs):
		for _, r := range s.Rhs {
			v, err := c.expr(r)
			if err != nil {
				return err
			}
			t := c.tmp("t")
			c.emit(&instruction.Assign{Target: t, Source: v}, r.Pos(), nil)
			vals = append(vals, t)
		}
	case len(s.Rhs) == 1:
		v, err := c.expr(s.Rhs[0])
		if err != nil {
			return err
		}
		vals = append(vals, v)
		for _, l := range s.Lhs[1:] {
			vals = append(vals, c.unknown(l.Pos()))
		}
	default:
		return c.unsupported(s, "assignment count mismatch")
	}
	for i, l := range s.Lhs {
		if id, ok := l.(*ast.Ident); ok && define && id.Name != "_" {
			c.declare(id.Name, object.TypeDescriptor{})
		}
		if err := c.store(l, vals[i], l.Pos(), nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) lvalue(id *ast.Ident) (object.VariableName, error) {
	if c.isLocal(id.Name) {
		return object.Var(id.Name), nil
	}
	if v, ok := c.src.pkg.vars[id.Name]; ok {
		return v.slot, nil
	}
	return object.VariableName{}, &SyntaxError{Position: c.src.position(id.Pos()), Msg: "undefined: " + id.Name}
}

// store assigns an evaluated value to an assignable expression.
func (c *compiler) store(lhs ast.Expr, v object.VariableName, pos token.Pos, p edit.TransformProvider) error {
	switch l := lhs.(type) {
	case *ast.Ident:
		if l.Name == "_" {
			return nil
		}
		target, err := c.lvalue(l)
		if err != nil {
			return err
		}
		c.emit(&instruction.Assign{Target: target, Source: v}, pos, p)
		return nil
	case *ast.ParenExpr:
		return c.store(l.X, v, pos, p)
	case *ast.SelectorExpr:
		if id, ok := l.X.(*ast.Ident); ok && !c.isLocal(id.Name) {
			if path, ok := c.src.imports[id.Name]; ok {
				if pkg, ok := c.src.pkg.prog.packages[path]; ok {
					if pv, ok := pkg.vars[l.Sel.Name]; ok {
						c.emit(&instruction.Assign{Target: pv.slot, Source: v}, pos, p)
					}
				}
				return nil
			}
		}
		obj, err := c.expr(l.X)
		if err != nil {
			return err
		}
		c.setField(obj, l.Sel.Name, v, pos)
		return nil
	case *ast.IndexExpr:
		if _, err := c.expr(l.X); err != nil {
			return err
		}
		_, err := c.expr(l.Index)
		return err
	case *ast.StarExpr:
		_, err := c.expr(l.X)
		return err
	}
	return c.unsupported(lhs, fmt.Sprintf("assignment to %T", lhs))
}

// into evaluates rhs into target; allocations bind target directly so the
// provider reaches the created instance.
func (c *compiler) into(target object.VariableName, rhs ast.Expr, pos token.Pos, p edit.TransformProvider) error {
	if lit := compositeOf(rhs); lit != nil {
		return c.composite(target, lit, p)
	}
	if call, ok := unparen(rhs).(*ast.CallExpr); ok && c.isBuiltin(call, "new") && len(call.Args) == 1 {
		c.emit(&instruction.AssignNewObject{Target: target, Type: c.src.typeOf(call.Args[0], c.typeParams)}, call.Pos(), p)
		return nil
	}
	v, err := c.expr(rhs)
	if err != nil {
		return err
	}
	c.emit(&instruction.Assign{Target: target, Source: v}, pos, p)
	return nil
}

func compositeOf(e ast.Expr) *ast.CompositeLit {
	e = unparen(e)
	if u, ok := e.(*ast.UnaryExpr); ok && u.Op == token.AND {
		e = unparen(u.X)
	}
	lit, _ := e.(*ast.CompositeLit)
	return lit
}

// exprType is the descriptor of allocations, used to name dynamic call sites.
func (c *compiler) exprType(e ast.Expr) object.TypeDescriptor {
	if lit := compositeOf(e); lit != nil && lit.Type != nil {
		return c.src.typeOf(lit.Type, c.typeParams)
	}
	if call, ok := unparen(e).(*ast.CallExpr); ok && c.isBuiltin(call, "new") && len(call.Args) == 1 {
		return c.src.typeOf(call.Args[0], c.typeParams)
	}
	if id, ok := unparen(e).(*ast.Ident); ok {
		return c.locals[id.Name]
	}
	return object.TypeDescriptor{}
}

func (c *compiler) decl(s *ast.DeclStmt) error {
	gd, ok := s.Decl.(*ast.GenDecl)
	if !ok {
		return c.unsupported(s, "declaration")
	}
	if gd.Tok == token.TYPE || gd.Tok == token.IMPORT {
		return nil
	}
	for _, spec := range gd.Specs {
		vs := spec.(*ast.ValueSpec)
		single := len(gd.Specs) == 1 && len(vs.Names) == 1
		var typ object.TypeDescriptor
		if vs.Type != nil {
			typ = c.src.typeOf(vs.Type, c.typeParams)
		}
		switch {
		case len(vs.Values) == len(vs.Names):
			for i, n := range vs.Names {
				if n.Name == "_" {
					if _, err := c.expr(vs.Values[i]); err != nil {
						return err
					}
					continue
				}
				var p edit.TransformProvider
				if single {
					p = newAssignment(c.src, c.fn, s, n.Name, vs.Values[i], vs.Type, true)
				}
				t := typ
				if vs.Type == nil {
					t = c.exprType(vs.Values[i])
				}
				c.declare(n.Name, t)
				if err := c.into(object.Var(n.Name), vs.Values[i], n.Pos(), p); err != nil {
					return err
				}
			}
		case len(vs.Values) == 0:
			for _, n := range vs.Names {
				if n.Name == "_" {
					continue
				}
				var p edit.TransformProvider
				if single {
					p = newAssignment(c.src, c.fn, s, n.Name, nil, vs.Type, true)
				}
				c.declare(n.Name, typ)
				c.zero(object.Var(n.Name), vs.Type, n.Pos(), p)
			}
		default:
			v, err := c.expr(vs.Values[0])
			if err != nil {
				return err
			}
			for i, n := range vs.Names {
				if n.Name == "_" {
					continue
				}
				c.declare(n.Name, typ)
				src := v
				if i > 0 {
					src = c.unknown(n.Pos())
				}
				c.emit(&instruction.Assign{Target: object.Var(n.Name), Source: src}, n.Pos(), nil)
			}
		}
	}
	return nil
}

// zero binds target to the zero value of a declared type.
func (c *compiler) zero(target object.VariableName, typ ast.Expr, pos token.Pos, p edit.TransformProvider) {
	switch t := typ.(type) {
	case nil:
		c.emit(&instruction.AssignNewObject{Target: target, Type: intrinsics.UnknownType}, pos, p)
		return
	case *ast.Ident:
		if _, local := c.src.pkg.typeSpecs[t.Name]; !local && !c.typeParams[t.Name] {
			if z, ok := basicZero[t.Name]; ok {
				c.literal(target, z, pos, p)
			} else {
				c.literal(target, nil, pos, p)
			}
			return
		}
	case *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr:
	case *ast.ArrayType:
		if t.Len == nil {
			c.literal(target, nil, pos, p)
			return
		}
	default:
		c.literal(target, nil, pos, p)
		return
	}
	c.emit(&instruction.AssignNewObject{Target: target, Type: c.src.typeOf(typ, c.typeParams)}, pos, p)
}

func (c *compiler) ifStmt(s *ast.IfStmt) error {
	if s.Init != nil {
		if err := c.stmt(s.Init); err != nil {
			return err
		}
	}
	cond, err := c.expr(s.Cond)
	if err != nil {
		return err
	}
	then, end := c.e.NewLabel(), c.e.NewLabel()
	c.emit(&instruction.ConditionalJump{Condition: cond, Target: then}, s.If, nil)
	if s.Else != nil {
		if err := c.stmt(s.Else); err != nil {
			return err
		}
	}
	c.emit(&instruction.Jump{Target: end}, s.If, nil)
	c.e.MarkLabel(then)
	if err := c.block(s.Body.List); err != nil {
		return err
	}
	c.e.MarkLabel(end)
	return nil
}

func (c *compiler) forStmt(s *ast.ForStmt) error {
	if s.Init != nil {
		if err := c.stmt(s.Init); err != nil {
			return err
		}
	}
	head, body, post, end := c.e.NewLabel(), c.e.NewLabel(), c.e.NewLabel(), c.e.NewLabel()
	c.e.MarkLabel(head)
	if s.Cond != nil {
		cond, err := c.expr(s.Cond)
		if err != nil {
			return err
		}
		c.emit(&instruction.ConditionalJump{Condition: cond, Target: body}, s.For, nil)
		c.emit(&instruction.Jump{Target: end}, s.For, nil)
	}
	c.e.MarkLabel(body)
	if err := c.loopBody(s.Body.List, end, post); err != nil {
		return err
	}
	c.e.MarkLabel(post)
	if s.Post != nil {
		if err := c.stmt(s.Post); err != nil {
			return err
		}
	}
	c.emit(&instruction.Jump{Target: head}, s.For, nil)
	c.e.MarkLabel(end)
	return nil
}

func (c *compiler) loopBody(list []ast.Stmt, brk, cont instruction.Label) error {
	c.breaks = append(c.breaks, brk)
	c.continues = append(c.continues, cont)
	defer func() {
		c.breaks = c.breaks[:len(c.breaks)-1]
		c.continues = c.continues[:len(c.continues)-1]
	}()
	return c.block(list)
}

// rangeStmt interprets the body once, with the key and value unknown.
func (c *compiler) rangeStmt(s *ast.RangeStmt) error {
	if _, err := c.expr(s.X); err != nil {
		return err
	}
	for _, e := range []ast.Expr{s.Key, s.Value} {
		if e == nil {
			continue
		}
		if id, ok := e.(*ast.Ident); ok && s.Tok == token.DEFINE && id.Name != "_" {
			c.declare(id.Name, object.TypeDescriptor{})
		}
		if err := c.store(e, c.unknown(e.Pos()), e.Pos(), nil); err != nil {
			return err
		}
	}
	end := c.e.NewLabel()
	if err := c.loopBody(s.Body.List, end, end); err != nil {
		return err
	}
	c.e.MarkLabel(end)
	return nil
}

func (c *compiler) switchStmt(s *ast.SwitchStmt) error {
	if s.Init != nil {
		if err := c.stmt(s.Init); err != nil {
			return err
		}
	}
	var tag object.VariableName
	if s.Tag != nil {
		v, err := c.expr(s.Tag)
		if err != nil {
			return err
		}
		tag = v
	}
	end := c.e.NewLabel()
	clauses := s.Body.List
	bodies := make([]instruction.Label, len(clauses))
	def := -1
	for i, cl := range clauses {
		cc := cl.(*ast.CaseClause)
		bodies[i] = c.e.NewLabel()
		if cc.List == nil {
			def = i
			continue
		}
		for _, e := range cc.List {
			v, err := c.expr(e)
			if err != nil {
				return err
			}
			if s.Tag != nil {
				v = c.operator("==", e.Pos(), tag, v)
			}
			c.emit(&instruction.ConditionalJump{Condition: v, Target: bodies[i]}, e.Pos(), nil)
		}
	}
	if def >= 0 {
		c.emit(&instruction.Jump{Target: bodies[def]}, s.Switch, nil)
	} else {
		c.emit(&instruction.Jump{Target: end}, s.Switch, nil)
	}

	c.breaks = append(c.breaks, end)
	defer func() { c.breaks = c.breaks[:len(c.breaks)-1] }()
	for i, cl := range clauses {
		cc := cl.(*ast.CaseClause)
		c.e.MarkLabel(bodies[i])
		body := cc.Body
		fall := false
		if n := len(body); n > 0 {
			if br, ok := body[n-1].(*ast.BranchStmt); ok && br.Tok == token.FALLTHROUGH {
				fall, body = true, body[:n-1]
			}
		}
		if err := c.block(body); err != nil {
			return err
		}
		next := end
		if fall && i+1 < len(bodies) {
			next = bodies[i+1]
		}
		c.emit(&instruction.Jump{Target: next}, cc.Colon, nil)
	}
	c.e.MarkLabel(end)
	return nil
}

func (c *compiler) branch(s *ast.BranchStmt) error {
	if s.Label != nil {
		return c.unsupported(s, "labeled "+s.Tok.String())
	}
	var stack []instruction.Label
	switch s.Tok {
	case token.BREAK:
		stack = c.breaks
	case token.CONTINUE:
		stack = c.continues
	default:
		return c.unsupported(s, s.Tok.String())
	}
	if len(stack) == 0 {
		return c.unsupported(s, s.Tok.String()+" outside a loop")
	}
	c.emit(&instruction.Jump{Target: stack[len(stack)-1]}, s.Pos(), nil)
	return nil
}

// --- expressions ---

func (c *compiler) expr(e ast.Expr) (object.VariableName, error) {
	switch x := e.(type) {
	case *ast.BasicLit:
		return c.basicLit(x)
	case *ast.Ident:
		return c.ident(x)
	case *ast.ParenExpr:
		return c.expr(x.X)
	case *ast.BinaryExpr:
		l, err := c.expr(x.X)
		if err != nil {
			return l, err
		}
		r, err := c.expr(x.Y)
		if err != nil {
			return r, err
		}
		return c.operator(x.Op.String(), x.OpPos, l, r), nil
	case *ast.UnaryExpr:
		if x.Op == token.AND {
			if lit := compositeOf(x.X); lit != nil {
				t := c.tmp("obj")
				return t, c.composite(t, lit, nil)
			}
			return c.expr(x.X)
		}
		v, err := c.expr(x.X)
		if err != nil {
			return v, err
		}
		switch x.Op {
		case token.ADD:
			return v, nil
		case token.SUB:
			return c.operator("neg", x.OpPos, v), nil
		case token.NOT:
			return c.operator("!", x.OpPos, v), nil
		}
		return c.unknown(x.OpPos), nil
	case *ast.StarExpr:
		return c.expr(x.X)
	case *ast.CallExpr:
		return c.call(x)
	case *ast.SelectorExpr:
		return c.selector(x)
	case *ast.CompositeLit:
		t := c.tmp("obj")
		return t, c.composite(t, x, nil)
	case *ast.IndexExpr:
		if _, err := c.expr(x.X); err != nil {
			return object.VariableName{}, err
		}
		if _, err := c.expr(x.Index); err != nil {
			return object.VariableName{}, err
		}
		return c.unknown(x.Lbrack), nil
	case *ast.SliceExpr:
		v, err := c.expr(x.X)
		if err != nil {
			return v, err
		}
		for _, i := range []ast.Expr{x.Low, x.High, x.Max} {
			if i == nil {
				continue
			}
			if _, err := c.expr(i); err != nil {
				return v, err
			}
		}
		return v, nil
	case *ast.TypeAssertExpr:
		return c.expr(x.X)
	case *ast.FuncLit:
		return object.VariableName{}, c.unsupported(x, "function literal")
	}
	return object.VariableName{}, c.unsupported(e, fmt.Sprintf("expression %T", e))
}

func (c *compiler) basicLit(x *ast.BasicLit) (object.VariableName, error) {
	var v any
	var err error
	switch x.Kind {
	case token.INT:
		v, err = strconv.ParseInt(x.Value, 0, 64)
	case token.FLOAT:
		v, err = strconv.ParseFloat(strings.ReplaceAll(x.Value, "_", ""), 64)
	case token.STRING:
		v, err = strconv.Unquote(x.Value)
	case token.CHAR:
		var r rune
		r, _, _, err = strconv.UnquoteChar(x.Value[1:len(x.Value)-1], '\'')
		v = int64(r)
	default:
		return object.VariableName{}, c.unsupported(x, x.Kind.String()+" literal")
	}
	if err != nil {
		return object.VariableName{}, &SyntaxError{Position: c.src.position(x.Pos()), Msg: err.Error()}
	}
	return c.lit(v, x.Pos()), nil
}

func (c *compiler) ident(x *ast.Ident) (object.VariableName, error) {
	if c.isLocal(x.Name) {
		return object.Var(x.Name), nil
	}
	switch x.Name {
	case "true":
		return c.lit(true, x.Pos()), nil
	case "false":
		return c.lit(false, x.Pos()), nil
	case "nil":
		return c.lit(nil, x.Pos()), nil
	case "iota":
		return c.unknown(x.Pos()), nil
	}
	if v, ok := c.src.pkg.vars[x.Name]; ok {
		return c.sharedRead(v, x.Pos()), nil
	}
	if id, ok := c.src.pkg.funcs[x.Name]; ok {
		return c.newObj(object.TypeOf("func:"+string(id)), x.Pos()), nil
	}
	return object.VariableName{}, &SyntaxError{Position: c.src.position(x.Pos()), Msg: "undefined: " + x.Name}
}

func (c *compiler) selector(x *ast.SelectorExpr) (object.VariableName, error) {
	if id, ok := x.X.(*ast.Ident); ok && !c.isLocal(id.Name) {
		if path, ok := c.src.imports[id.Name]; ok {
			if pkg, ok := c.src.pkg.prog.packages[path]; ok {
				if v, ok := pkg.vars[x.Sel.Name]; ok {
					return c.sharedRead(v, x.Pos()), nil
				}
			}
			return c.newObj(object.TypeOf("external:"+path+"."+x.Sel.Name), x.Pos()), nil
		}
	}
	obj, err := c.expr(x.X)
	if err != nil {
		return obj, err
	}
	return c.direct(&intrinsics.FieldGetter{Field: x.Sel.Name}, x.Sel.Pos(), obj), nil
}

func (c *compiler) composite(target object.VariableName, lit *ast.CompositeLit, p edit.TransformProvider) error {
	c.emit(&instruction.AssignNewObject{Target: target, Type: c.src.typeOf(lit.Type, c.typeParams)}, lit.Pos(), p)

	collection := false
	var fields []string
	switch t := lit.Type.(type) {
	case *ast.ArrayType, *ast.MapType:
		collection = true
	case *ast.Ident:
		fields, _ = c.src.pkg.structFields(t.Name)
	case *ast.IndexExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			fields, _ = c.src.pkg.structFields(id.Name)
		}
	case *ast.IndexListExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			fields, _ = c.src.pkg.structFields(id.Name)
		}
	}

	for i, elt := range lit.Elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			key, isIdent := kv.Key.(*ast.Ident)
			if !isIdent || collection {
				if _, err := c.expr(kv.Key); err != nil {
					return err
				}
			}
			v, err := c.expr(kv.Value)
			if err != nil {
				return err
			}
			if isIdent && !collection {
				c.setField(target, key.Name, v, kv.Colon)
			}
			continue
		}
		v, err := c.expr(elt)
		if err != nil {
			return err
		}
		if !collection && i < len(fields) {
			c.setField(target, fields[i], v, elt.Pos())
		}
	}
	return nil
}

// isBuiltin reports whether call invokes the predeclared function name.
func (c *compiler) isBuiltin(call *ast.CallExpr, name string) bool {
	id, ok := unparen(call.Fun).(*ast.Ident)
	return ok && id.Name == name && !c.shadowed(name)
}

func (c *compiler) shadowed(name string) bool {
	if c.isLocal(name) {
		return true
	}
	p := c.src.pkg
	_, isFunc := p.funcs[name]
	_, isVar := p.vars[name]
	_, isType := p.typeSpecs[name]
	return isFunc || isVar || isType
}

func (c *compiler) call(x *ast.CallExpr) (object.VariableName, error) {
	fun := unparen(x.Fun)
	switch f := fun.(type) {
	case *ast.IndexExpr:
		if !c.isValue(f.X) {
			fun = f.X
		}
	case *ast.IndexListExpr:
		fun = f.X
	}

	switch f := fun.(type) {
	case *ast.Ident:
		if !c.isLocal(f.Name) {
			if id, ok := c.src.pkg.funcs[f.Name]; ok {
				return c.emitCall(x, id, nil)
			}
			if _, ok := c.src.pkg.typeSpecs[f.Name]; ok {
				return c.conversion(x)
			}
			if _, ok := c.src.pkg.vars[f.Name]; !ok {
				return c.builtin(x, f)
			}
		}
	case *ast.SelectorExpr:
		if id, ok := f.X.(*ast.Ident); ok && !c.isLocal(id.Name) {
			if path, ok := c.src.imports[id.Name]; ok {
				return c.emitCall(x, object.MethodID(path+"."+f.Sel.Name), nil)
			}
			if _, ok := c.src.pkg.typeSpecs[id.Name]; ok {
				return object.VariableName{}, c.unsupported(x, "method expression")
			}
		}
		recv, err := c.expr(f.X)
		if err != nil {
			return recv, err
		}
		static := object.NewMethodID(c.exprType(f.X), f.Sel.Name)
		return c.emitCall(x, static, &recv)
	case *ast.FuncLit:
		return object.VariableName{}, c.unsupported(x, "call of a function literal")
	}

	// a function value: evaluate everything, the result is unknown
	if _, err := c.expr(fun); err != nil {
		return object.VariableName{}, err
	}
	for _, a := range x.Args {
		if _, err := c.expr(a); err != nil {
			return object.VariableName{}, err
		}
	}
	return c.unknown(x.Lparen), nil
}

// isValue reports whether e denotes a variable rather than a function or type.
func (c *compiler) isValue(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	if !ok {
		return true
	}
	if c.isLocal(id.Name) {
		return true
	}
	_, ok = c.src.pkg.vars[id.Name]
	return ok
}

func (c *compiler) emitCall(x *ast.CallExpr, method object.MethodID, recv *object.VariableName) (object.VariableName, error) {
	var args []object.VariableName
	if recv != nil {
		args = append(args, *recv)
	}
	for _, a := range x.Args {
		v, err := c.expr(a)
		if err != nil {
			return v, err
		}
		args = append(args, v)
	}
	p := newCallSite(c.src, c.fn, x, recv != nil, string(method))
	c.emit(&instruction.PreCall{Args: args}, x.Lparen, nil)
	c.emit(&instruction.Call{Method: method, Dynamic: recv != nil}, x.Pos(), p)
	t := c.tmp("r")
	c.emit(&instruction.AssignReturnValue{Target: t}, x.Pos(), nil)
	return t, nil
}

func (c *compiler) conversion(x *ast.CallExpr) (object.VariableName, error) {
	if len(x.Args) != 1 {
		return object.VariableName{}, c.unsupported(x, "conversion arity")
	}
	return c.expr(x.Args[0])
}

func (c *compiler) builtin(x *ast.CallExpr, f *ast.Ident) (object.VariableName, error) {
	evalAll := func(args []ast.Expr) error {
		for _, a := range args {
			if _, err := c.expr(a); err != nil {
				return err
			}
		}
		return nil
	}
	switch f.Name {
	case "new":
		if len(x.Args) != 1 {
			return object.VariableName{}, c.unsupported(x, "new arity")
		}
		return c.newObj(c.src.typeOf(x.Args[0], c.typeParams), x.Pos()), nil
	case "make":
		if len(x.Args) == 0 {
			return object.VariableName{}, c.unsupported(x, "make arity")
		}
		if err := evalAll(x.Args[1:]); err != nil {
			return object.VariableName{}, err
		}
		return c.newObj(c.src.typeOf(x.Args[0], c.typeParams), x.Pos()), nil
	case "len", "println", "print":
		name := f.Name
		if name == "print" {
			name = "println"
		}
		return c.emitCall(x, object.MethodID("builtin."+name), nil)
	case "append":
		if len(x.Args) == 0 {
			return object.VariableName{}, c.unsupported(x, "append arity")
		}
		v, err := c.expr(x.Args[0])
		if err != nil {
			return v, err
		}
		return v, evalAll(x.Args[1:])
	case "panic":
		if err := evalAll(x.Args); err != nil {
			return object.VariableName{}, err
		}
		c.emit(&instruction.Return{}, x.Pos(), nil)
		return c.unknown(x.Pos()), nil
	case "cap", "copy", "delete", "close", "clear", "min", "max", "recover", "complex", "real", "imag":
		if err := evalAll(x.Args); err != nil {
			return object.VariableName{}, err
		}
		return c.unknown(x.Pos()), nil
	}
	if isBasic(f.Name) || f.Name == "error" || f.Name == "any" {
		return c.conversion(x)
	}
	return object.VariableName{}, &SyntaxError{Position: c.src.position(f.Pos()), Msg: "undefined: " + f.Name}
}

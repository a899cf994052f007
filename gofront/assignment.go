package gofront

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"

	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/strips"
)

// assignment is the transform provider of a statement binding one variable:
// "x := e", "x = e", "var x = e", "var x T = e" or "var x T".
type assignment struct {
	src    *source
	fn     *ast.FuncDecl
	stmt   ast.Stmt
	name   string
	rhs    ast.Expr // nil for "var x T"
	typ    ast.Expr // declared type, nil when inferred
	define bool

	start, end int
	indent     string
}

var _ edit.TransformProvider = (*assignment)(nil)

func newAssignment(src *source, fn *ast.FuncDecl, stmt ast.Stmt, name string, rhs, typ ast.Expr, define bool) *assignment {
	start, end := src.span(stmt)
	return &assignment{
		src:    src,
		fn:     fn,
		stmt:   stmt,
		name:   name,
		rhs:    rhs,
		typ:    typ,
		define: define,
		start:  start,
		end:    end,
		indent: src.indent(start),
	}
}

func (a *assignment) String() string {
	return fmt.Sprintf("assignment to %s at %s", a.name, a.src.origin(a.stmt.Pos()))
}

func (a *assignment) unsupported(op string) error {
	return &edit.UnsupportedEditError{Operation: op, Provider: a.String()}
}

func (a *assignment) Remove() (edit.Transformation, error) {
	if a.fn == nil {
		return nil, a.unsupported("Remove outside a function body")
	}
	return &removeAssignment{a: a}, nil
}

func (a *assignment) RewriteArgument(int, edit.ValueProvider) (edit.Transformation, error) {
	return nil, a.unsupported("RewriteArgument")
}

func (a *assignment) AppendArgument(edit.ValueProvider) (edit.Transformation, error) {
	return nil, a.unsupported("AppendArgument")
}

func (a *assignment) RemoveArgument(int, bool) (edit.Transformation, error) {
	return nil, a.unsupported("RemoveArgument")
}

func (a *assignment) SetOptionalArgument(int) (edit.Transformation, error) {
	return nil, a.unsupported("SetOptionalArgument")
}

func (a *assignment) Navigation() (edit.Navigation, error) {
	pos := a.src.position(a.stmt.Pos())
	return edit.Navigation{Document: a.src.name, Offset: pos.Offset, Line: pos.Line, Column: pos.Column}, nil
}

// declaredType spells the type of the variable, or "" when unknown.
func (a *assignment) declaredType() string {
	if a.typ != nil {
		return types.ExprString(a.typ)
	}
	if a.rhs != nil {
		return staticType(a.rhs, a.fn, a.src.file)
	}
	return ""
}

// removeAssignment deletes the statement. A side-effecting right-hand side
// stays as a statement of its own.
type removeAssignment struct {
	a *assignment
}

func (t *removeAssignment) String() string { return "remove " + t.a.String() }

func (t *removeAssignment) Apply(view *edit.ExecutionView) error {
	a := t.a
	buf, err := document(view, a.src, t)
	if err != nil {
		return err
	}
	kept, err := dropStatement(buf, a.src, a.stmt, a.rhs)
	if err != nil {
		return edit.Conflict(t, "statement was already edited", err)
	}

	if a.define {
		if err := t.redeclare(buf); err != nil {
			return err
		}
	}
	var names []string
	if !kept && a.rhs != nil {
		names = identNames(a.rhs)
	}
	if !a.define {
		names = append(names, a.name)
	}
	return reconcile(buf, t, a.src, a.fn, names)
}

// redeclare keeps the variable declared for the uses left after its
// declaring statement is gone: a following plain assignment becomes the
// declaration, otherwise "var x T" goes before the first statement using it.
// ":=" survives only when the new value has the same static type.
func (t *removeAssignment) redeclare(buf *strips.Buffer) error {
	a := t.a
	uses, err := usesAfterEdit(buf, a.src, a.fn, a.name)
	if err != nil {
		return edit.Conflict(t, "edited source does not parse", err)
	}
	if uses == 0 {
		return nil
	}
	typ := a.declaredType()
	inferred := a.typ == nil

	_, list, index := a.src.statementOf(a.stmt)
	for _, s := range list[index+1:] {
		if countUses(s, a.name) == 0 {
			continue
		}
		start, _ := a.src.span(s)
		if !buf.Intact(start, start+1) {
			continue
		}
		if as, ok := s.(*ast.AssignStmt); ok && as.Tok == token.ASSIGN && len(as.Lhs) == 1 && len(as.Rhs) == 1 {
			if id, ok := as.Lhs[0].(*ast.Ident); ok && id.Name == a.name {
				tok := a.src.offset(as.TokPos)
				if !buf.Intact(start, tok+1) {
					return edit.Conflict(t, "assignment to "+a.name+" was rewritten", nil)
				}
				switch {
				case typ == "":
					return edit.Conflict(t, "cannot determine the type of "+a.name, nil)
				case inferred && staticType(as.Rhs[0], a.fn, a.src.file) == typ:
					err = buf.Replace(tok, tok+1, ":=")
				default:
					err = buf.Replace(start, tok+1, "var "+a.name+" "+typ+" =")
				}
				if err != nil {
					return edit.Conflict(t, "redeclaration of "+a.name, err)
				}
				return nil
			}
		}
		if typ == "" {
			return edit.Conflict(t, "cannot determine the type of "+a.name, nil)
		}
		if err := buf.Insert(start, "var "+a.name+" "+typ+"\n"+a.src.indent(start)); err != nil {
			return edit.Conflict(t, "redeclaration of "+a.name, err)
		}
		return nil
	}
	return edit.Conflict(t, a.name+" is still used but no following statement can declare it", nil)
}

// Check verifies the statement is not restored or rewritten by a later edit.
func (t *removeAssignment) Check(view *edit.ExecutionView) error {
	_, err := document(view, t.a.src, t)
	return err
}

// dropStatement removes stmt from buf, keeping a side-effecting rhs.
// It reports whether rhs was kept.
func dropStatement(buf *strips.Buffer, src *source, stmt ast.Stmt, rhs ast.Expr) (bool, error) {
	start, end := src.span(stmt)
	if rhs != nil && HasSideEffect(rhs) {
		return true, buf.Replace(start, end, keepStatement(rhs, src.slice(rhs)))
	}
	start, end = src.stmtRegion(start, end)
	return false, buf.Remove(start, end)
}

// usesAfterEdit counts the uses of name in the edited text of fn.
func usesAfterEdit(buf *strips.Buffer, src *source, fn *ast.FuncDecl, name string) (int, error) {
	f, err := parser.ParseFile(token.NewFileSet(), src.name, buf.String(), parser.SkipObjectResolution)
	if err != nil {
		return 0, err
	}
	key := keyOf(fn)
	edited := findFunc(f, key)
	if edited == nil {
		return 0, fmt.Errorf("function %s is gone", key)
	}
	return countUses(edited.Body, name), nil
}

// reconcile deletes the declarations of names left without uses, cascading
// to the names their initializers referred to.
func reconcile(buf *strips.Buffer, t fmt.Stringer, src *source, fn *ast.FuncDecl, names []string) error {
	if fn == nil {
		return nil
	}
	seen := map[string]bool{}
	for len(names) > 0 {
		name := names[0]
		names = names[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		stmt, rhs := declarationOf(fn, name)
		if stmt == nil {
			continue
		}
		start, end := src.span(stmt)
		if !buf.Intact(start, end) {
			continue
		}
		uses, err := usesAfterEdit(buf, src, fn, name)
		if err != nil {
			return edit.Conflict(t, "edited source does not parse", err)
		}
		if uses > 0 {
			continue
		}
		kept, err := dropStatement(buf, src, stmt, rhs)
		if err != nil {
			return edit.Conflict(t, "declaration of "+name, err)
		}
		if !kept && rhs != nil {
			names = append(names, identNames(rhs)...)
		}
	}
	return nil
}

// declarationOf finds the statement declaring a local variable on its own:
// "name := e", "var name = e" or "var name T".
func declarationOf(fn *ast.FuncDecl, name string) (ast.Stmt, ast.Expr) {
	var stmt ast.Stmt
	var rhs ast.Expr
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if stmt != nil {
			return false
		}
		switch s := n.(type) {
		case *ast.AssignStmt:
			if s.Tok == token.DEFINE && len(s.Lhs) == 1 && len(s.Rhs) == 1 {
				if id, ok := s.Lhs[0].(*ast.Ident); ok && id.Name == name {
					stmt, rhs = s, s.Rhs[0]
				}
			}
		case *ast.DeclStmt:
			gd, ok := s.Decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR || len(gd.Specs) != 1 {
				return true
			}
			vs := gd.Specs[0].(*ast.ValueSpec)
			if len(vs.Names) == 1 && vs.Names[0].Name == name {
				stmt = s
				if len(vs.Values) == 1 {
					rhs = vs.Values[0]
				}
			}
		}
		return true
	})
	return stmt, rhs
}

package gofront

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// SyntaxError reports source the front end cannot translate into instructions.
type SyntaxError struct {
	Position token.Position
	Msg      string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("%s: %s", e.Position, e.Msg) }

// source is one parsed document.
type source struct {
	name    string
	text    string
	file    *ast.File
	tf      *token.File
	pkg     *Package
	imports map[string]string // local name -> import path
}

func (s *source) offset(p token.Pos) int { return s.tf.Offset(p) }

func (s *source) span(n ast.Node) (int, int) { return s.offset(n.Pos()), s.offset(n.End()) }

func (s *source) slice(n ast.Node) string {
	start, end := s.span(n)
	return s.text[start:end]
}

func (s *source) position(p token.Pos) token.Position { return s.tf.Position(p) }

func (s *source) origin(p token.Pos) string { return s.position(p).String() }

func (s *source) lineStart(off int) int { return strings.LastIndexByte(s.text[:off], '\n') + 1 }

// indent returns the whitespace before off when off starts its line's content.
func (s *source) indent(off int) string {
	ws := s.text[s.lineStart(off):off]
	if strings.TrimLeft(ws, " \t") != "" {
		return ""
	}
	return ws
}

// stmtRegion widens [start, end) to whole lines when nothing else shares them.
func (s *source) stmtRegion(start, end int) (int, int) {
	ls := s.lineStart(start)
	if strings.TrimLeft(s.text[ls:start], " \t") != "" {
		return start, end
	}
	rest := s.text[end:]
	nl := strings.IndexByte(rest, '\n')
	tail := rest
	if nl >= 0 {
		tail = rest[:nl]
	}
	if strings.TrimSpace(tail) != "" {
		return start, end
	}
	if nl < 0 {
		return ls, len(s.text)
	}
	return ls, end + nl + 1
}

// statementOf locates the statement holding n inside a statement list.
// It returns nil when n is not inside a function body.
func (s *source) statementOf(n ast.Node) (stmt ast.Stmt, list []ast.Stmt, index int) {
	path, _ := astutil.PathEnclosingInterval(s.file, n.Pos(), n.End())
	for i := 0; i+1 < len(path); i++ {
		st, ok := path[i].(ast.Stmt)
		if !ok {
			continue
		}
		switch parent := path[i+1].(type) {
		case *ast.BlockStmt:
			list = parent.List
		case *ast.CaseClause:
			list = parent.Body
		case *ast.CommClause:
			list = parent.Body
		default:
			continue
		}
		for j, x := range list {
			if x == st {
				return st, list, j
			}
		}
	}
	return nil, nil, -1
}

// funcKey identifies a function declaration across re-parses of a document.
type funcKey struct {
	recv string
	name string
}

func (k funcKey) String() string {
	if k.recv == "" {
		return k.name
	}
	return k.recv + "." + k.name
}

func keyOf(fd *ast.FuncDecl) funcKey {
	k := funcKey{name: fd.Name.Name}
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		k.recv = recvTypeName(fd.Recv.List[0].Type)
	}
	return k
}

func findFunc(f *ast.File, key funcKey) *ast.FuncDecl {
	for _, d := range f.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Body != nil && keyOf(fd) == key {
			return fd
		}
	}
	return nil
}

// recvTypeName returns the base type name of a receiver: "*Box[T]" -> "Box".
func recvTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return recvTypeName(t.X)
	case *ast.ParenExpr:
		return recvTypeName(t.X)
	case *ast.IndexExpr:
		return recvTypeName(t.X)
	case *ast.IndexListExpr:
		return recvTypeName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

package gofront

import (
	"go/ast"
	"go/parser"
	"go/token"
)

// HasSideEffect reports whether removing e may drop observable behavior.
// Only the outermost node is classified: member access, indexing, slicing,
// calls and type assertions, plus prefix operators, count as side effects.
// Binary and parenthesized expressions do not.
func HasSideEffect(e ast.Expr) bool {
	switch e.(type) {
	case *ast.CallExpr, *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr,
		*ast.SliceExpr, *ast.TypeAssertExpr:
		return true
	case *ast.UnaryExpr, *ast.StarExpr:
		return true
	}
	return false
}

// sideEffectOf classifies source text; text that does not parse as an
// expression is treated as side-effecting.
func sideEffectOf(text string) (ast.Expr, bool) {
	e, err := parser.ParseExpr(text)
	if err != nil {
		return nil, true
	}
	return e, HasSideEffect(e)
}

// keepStatement turns a side-effecting expression into a statement.
func keepStatement(e ast.Expr, text string) string {
	switch x := unparen(e).(type) {
	case *ast.CallExpr:
		return text
	case *ast.UnaryExpr:
		if x.Op == token.ARROW {
			return text
		}
	}
	return "_ = " + text
}

// identNames returns the identifiers e refers to, skipping selected members.
func identNames(e ast.Node) []string {
	if e == nil {
		return nil
	}
	var names []string
	seen := map[string]bool{}
	walkIdents(e, func(id *ast.Ident) {
		if !seen[id.Name] && id.Name != "_" {
			seen[id.Name] = true
			names = append(names, id.Name)
		}
	})
	return names
}

// walkIdents visits the identifiers of n that may name variables.
func walkIdents(n ast.Node, fn func(*ast.Ident)) {
	ast.Inspect(n, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			walkIdents(x.X, fn)
			return false
		case *ast.Ident:
			fn(x)
		}
		return true
	})
}

// countUses counts the identifiers named name in body, not counting the
// ones that declare it.
func countUses(body ast.Node, name string) int {
	declaring := map[*ast.Ident]bool{}
	ast.Inspect(body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.AssignStmt:
			if x.Tok == token.DEFINE {
				for _, l := range x.Lhs {
					if id, ok := l.(*ast.Ident); ok && id.Name == name {
						declaring[id] = true
					}
				}
			}
		case *ast.ValueSpec:
			for _, id := range x.Names {
				if id.Name == name {
					declaring[id] = true
				}
			}
		}
		return true
	})
	n := 0
	walkIdents(body, func(id *ast.Ident) {
		if id.Name == name && !declaring[id] {
			n++
		}
	})
	return n
}

package gofront

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
)

var basicZero = map[string]any{
	"int": int64(0), "int8": int64(0), "int16": int64(0), "int32": int64(0), "int64": int64(0),
	"uint": int64(0), "uint8": int64(0), "uint16": int64(0), "uint32": int64(0), "uint64": int64(0),
	"uintptr": int64(0), "byte": int64(0), "rune": int64(0),
	"float32": float64(0), "float64": float64(0),
	"string": "",
	"bool":   false,
}

func isBasic(name string) bool {
	_, ok := basicZero[name]
	return ok
}

// typeOf maps a type expression to a descriptor. Local names are qualified
// with the package path; params are generic parameters in scope.
func (s *source) typeOf(expr ast.Expr, params map[string]bool) object.TypeDescriptor {
	switch t := expr.(type) {
	case nil:
		return object.TypeOf("<unknown>")
	case *ast.Ident:
		if params[t.Name] {
			return object.TypeOf(t.Name)
		}
		if _, ok := s.pkg.typeSpecs[t.Name]; ok {
			return object.TypeOf(s.pkg.Path + "." + t.Name)
		}
		return object.TypeOf(t.Name)
	case *ast.StarExpr:
		return s.typeOf(t.X, params)
	case *ast.ParenExpr:
		return s.typeOf(t.X, params)
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			if path, ok := s.imports[x.Name]; ok {
				return object.TypeOf(path + "." + t.Sel.Name)
			}
		}
	case *ast.IndexExpr:
		base := s.typeOf(t.X, params)
		return object.TypeOf(base.Name, s.typeOf(t.Index, params))
	case *ast.IndexListExpr:
		base := s.typeOf(t.X, params)
		args := make([]object.TypeDescriptor, len(t.Indices))
		for i, x := range t.Indices {
			args[i] = s.typeOf(x, params)
		}
		return object.TypeOf(base.Name, args...)
	case *ast.ArrayType:
		return object.TypeOf("[]" + s.typeOf(t.Elt, params).String())
	case *ast.MapType:
		return object.TypeOf("map[" + s.typeOf(t.Key, params).String() + "]" + s.typeOf(t.Value, params).String())
	case *ast.InterfaceType:
		return object.TypeOf("interface{}")
	}
	return object.TypeOf(types.ExprString(expr))
}

// structFields returns the field names of a local struct type, in order.
func (p *Package) structFields(name string) ([]string, bool) {
	spec, ok := p.typeSpecs[name]
	if !ok {
		return nil, false
	}
	st, ok := spec.Type.(*ast.StructType)
	if !ok {
		return nil, false
	}
	var fields []string
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 {
			fields = append(fields, recvTypeName(f.Type))
			continue
		}
		for _, n := range f.Names {
			fields = append(fields, n.Name)
		}
	}
	return fields, true
}

func typeParamNames(fl *ast.FieldList) []string {
	if fl == nil {
		return nil
	}
	var names []string
	for _, f := range fl.List {
		for _, n := range f.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

// chains describes the package's named types for dynamic dispatch.
func (p *Package) chains() []*methods.InheritanceChain {
	var out []*methods.InheritanceChain
	for _, name := range sortedKeys(p.typeSpecs) {
		spec := p.typeSpecs[name]
		src := p.typeSources[name]
		params := typeParamNames(spec.TypeParams)
		inScope := make(map[string]bool, len(params))
		args := make([]object.TypeDescriptor, len(params))
		for i, n := range params {
			inScope[n] = true
			args[i] = object.TypeOf(n)
		}
		chain := &methods.InheritanceChain{
			Type:    object.TypeOf(p.Path+"."+name, args...),
			Params:  params,
			Methods: map[string]object.MethodID{},
		}
		for m, id := range p.methods[name] {
			chain.Methods[m] = id
		}
		switch t := spec.Type.(type) {
		case *ast.StructType:
			for _, f := range t.Fields.List {
				if len(f.Names) == 0 {
					chain.Bases = append(chain.Bases, src.typeOf(f.Type, inScope))
				}
			}
		case *ast.InterfaceType:
			for _, f := range t.Methods.List {
				if len(f.Names) == 0 {
					chain.Bases = append(chain.Bases, src.typeOf(f.Type, inScope))
				}
			}
		default:
			if spec.Assign.IsValid() {
				chain.Bases = append(chain.Bases, src.typeOf(spec.Type, inScope))
			}
		}
		out = append(out, chain)
	}
	return out
}

// staticType spells the static type of e as source text, or "" when it
// cannot be told without type checking. fn and file supply the declarations
// of local variables and functions.
func staticType(e ast.Expr, fn *ast.FuncDecl, file *ast.File) string {
	return staticTypeDepth(e, fn, file, 0)
}

func staticTypeDepth(e ast.Expr, fn *ast.FuncDecl, file *ast.File, depth int) string {
	if depth > 8 {
		return ""
	}
	next := func(x ast.Expr) string { return staticTypeDepth(x, fn, file, depth+1) }
	switch x := e.(type) {
	case *ast.BasicLit:
		switch x.Kind {
		case token.INT:
			return "int"
		case token.FLOAT:
			return "float64"
		case token.STRING:
			return "string"
		case token.CHAR:
			return "rune"
		case token.IMAG:
			return "complex128"
		}
	case *ast.ParenExpr:
		return next(x.X)
	case *ast.CompositeLit:
		if x.Type != nil {
			return types.ExprString(x.Type)
		}
	case *ast.UnaryExpr:
		switch x.Op {
		case token.AND:
			if t := next(x.X); t != "" {
				return "*" + t
			}
		case token.NOT:
			return "bool"
		case token.SUB, token.ADD, token.XOR:
			return next(x.X)
		}
	case *ast.StarExpr:
		if t := next(x.X); strings.HasPrefix(t, "*") {
			return t[1:]
		}
	case *ast.BinaryExpr:
		switch x.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ, token.LAND, token.LOR:
			return "bool"
		case token.SHL, token.SHR:
			return next(x.X)
		}
		if t := next(x.X); t != "" {
			return t
		}
		return next(x.Y)
	case *ast.Ident:
		switch x.Name {
		case "true", "false":
			return "bool"
		case "nil":
			return ""
		}
		return localType(x.Name, fn, file, depth)
	case *ast.CallExpr:
		return callType(x, file)
	}
	return ""
}

func localType(name string, fn *ast.FuncDecl, file *ast.File, depth int) string {
	if fn == nil {
		return ""
	}
	for _, fl := range []*ast.FieldList{fn.Recv, fn.Type.Params} {
		if fl == nil {
			continue
		}
		for _, f := range fl.List {
			for _, n := range f.Names {
				if n.Name == name {
					return types.ExprString(f.Type)
				}
			}
		}
	}
	var found string
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if found != "" {
			return false
		}
		switch x := n.(type) {
		case *ast.ValueSpec:
			for i, id := range x.Names {
				if id.Name != name {
					continue
				}
				if x.Type != nil {
					found = types.ExprString(x.Type)
				} else if i < len(x.Values) {
					found = staticTypeDepth(x.Values[i], fn, file, depth+1)
				}
				return false
			}
		case *ast.AssignStmt:
			if x.Tok != token.DEFINE || len(x.Lhs) != len(x.Rhs) {
				return true
			}
			for i, l := range x.Lhs {
				if id, ok := l.(*ast.Ident); ok && id.Name == name {
					found = staticTypeDepth(x.Rhs[i], fn, file, depth+1)
					return false
				}
			}
		}
		return true
	})
	return found
}

func callType(call *ast.CallExpr, file *ast.File) string {
	id, ok := unparen(call.Fun).(*ast.Ident)
	if !ok {
		return ""
	}
	switch id.Name {
	case "new":
		if len(call.Args) == 1 {
			return "*" + types.ExprString(call.Args[0])
		}
		return ""
	case "make":
		if len(call.Args) > 0 {
			return types.ExprString(call.Args[0])
		}
		return ""
	case "len", "cap":
		return "int"
	}
	if isBasic(id.Name) {
		return id.Name
	}
	for _, d := range file.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil && d.Name.Name == id.Name {
				res := d.Type.Results
				if res == nil || len(res.List) != 1 || len(res.List[0].Names) > 1 {
					return ""
				}
				return types.ExprString(res.List[0].Type)
			}
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok && ts.Name.Name == id.Name {
					return id.Name
				}
			}
		}
	}
	return ""
}

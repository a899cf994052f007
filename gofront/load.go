// Package gofront translates Go source into generators, type services and
// transform providers for the analyzing machine.
package gofront

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"hash/fnv"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/podhmo/go-analyzing/instruction"
	"github.com/podhmo/go-analyzing/methods"
	"github.com/podhmo/go-analyzing/object"
)

// ExternalAssembly is the assembly of methods outside the loaded packages.
const ExternalAssembly methods.AssemblyRef = "external"

// Program is a loaded set of packages of one module.
type Program struct {
	Layout Layout
	Fset   *token.FileSet

	packages map[string]*Package
	funcs    map[object.MethodID]*funcGen
	inits    map[object.MethodID]*varInit
	types    methods.TypeTable
}

// Package is one loaded package.
type Package struct {
	Path string
	Name string

	prog        *Program
	sources     []*source
	typeSpecs   map[string]*ast.TypeSpec
	typeSources map[string]*source
	methods     map[string]map[string]object.MethodID // type -> method -> id
	funcs       map[string]object.MethodID
	vars        map[string]*varInit
}

// Load parses docs, keyed by slash-separated path relative to the module
// root, and prepares generators for every function and package variable.
// Test files and non-Go documents are ignored.
func Load(modulePath string, docs map[string]string) (*Program, error) {
	return LoadLayout(Layout{ModulePath: modulePath}, docs)
}

// LoadLayout is Load for a module whose documents also include the
// directories of locally replaced modules.
func LoadLayout(layout Layout, docs map[string]string) (*Program, error) {
	prog := &Program{
		Layout:   layout,
		Fset:     token.NewFileSet(),
		packages: map[string]*Package{},
		funcs:    map[object.MethodID]*funcGen{},
		inits:    map[object.MethodID]*varInit{},
		types:    methods.TypeTable{},
	}
	for _, name := range sortedKeys(docs) {
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		text := docs[name]
		f, err := parser.ParseFile(prog.Fset, name, text, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pkgPath := layout.PackagePath(name)
		pkg, ok := prog.packages[pkgPath]
		if !ok {
			pkg = &Package{
				Path:        pkgPath,
				Name:        f.Name.Name,
				prog:        prog,
				typeSpecs:   map[string]*ast.TypeSpec{},
				typeSources: map[string]*source{},
				methods:     map[string]map[string]object.MethodID{},
				funcs:       map[string]object.MethodID{},
				vars:        map[string]*varInit{},
			}
			prog.packages[pkgPath] = pkg
		}
		if pkg.Name != f.Name.Name {
			return nil, fmt.Errorf("%s: package %s, expected %s", name, f.Name.Name, pkg.Name)
		}
		src := &source{name: name, text: text, file: f, tf: prog.Fset.File(f.Pos()), pkg: pkg, imports: map[string]string{}}
		for _, imp := range f.Imports {
			p, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: bad import %s: %w", name, imp.Path.Value, err)
			}
			local := path.Base(p)
			if imp.Name != nil {
				local = imp.Name.Name
			}
			src.imports[local] = p
		}
		pkg.sources = append(pkg.sources, src)
	}

	for _, p := range sortedKeys(prog.packages) {
		if err := prog.packages[p].collect(); err != nil {
			return nil, err
		}
	}
	for _, p := range sortedKeys(prog.packages) {
		for _, c := range prog.packages[p].chains() {
			prog.types.Add(c)
		}
	}
	return prog, nil
}

// Layout maps documents to the packages holding them.
type Layout struct {
	ModulePath string
	// Mounts maps directories, relative to the module root, to the import
	// paths of the modules replaced by them.
	Mounts map[string]string
}

// PackagePath returns the import path of the package holding doc. The
// longest mount containing doc wins over the module itself.
func (l Layout) PackagePath(doc string) string {
	dir := path.Dir(doc)
	best := ""
	for mount := range l.Mounts {
		if len(mount) > len(best) && (dir == mount || strings.HasPrefix(dir, mount+"/")) {
			best = mount
		}
	}
	if best != "" {
		return joinPath(l.Mounts[best], strings.TrimPrefix(dir[len(best):], "/"))
	}
	if dir == "." {
		return l.ModulePath
	}
	return joinPath(l.ModulePath, dir)
}

func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	return base + "/" + rel
}

func (p *Package) collect() error {
	for _, src := range p.sources {
		for _, decl := range src.file.Decls {
			if d, ok := decl.(*ast.GenDecl); ok && d.Tok == token.TYPE {
				for _, spec := range d.Specs {
					ts := spec.(*ast.TypeSpec)
					p.typeSpecs[ts.Name.Name] = ts
					p.typeSources[ts.Name.Name] = src
				}
			}
		}
	}
	for _, src := range p.sources {
		for _, decl := range src.file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if err := p.addFunc(src, d); err != nil {
					return err
				}
			case *ast.GenDecl:
				if d.Tok != token.VAR && d.Tok != token.CONST {
					continue
				}
				for _, spec := range d.Specs {
					if err := p.addVar(src, spec.(*ast.ValueSpec)); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (p *Package) addFunc(src *source, d *ast.FuncDecl) error {
	if d.Body == nil || (d.Recv == nil && d.Name.Name == "init") {
		return nil
	}
	key := keyOf(d)
	id := object.MethodID(p.Path + "." + key.String())
	if _, dup := p.prog.funcs[id]; dup {
		return &SyntaxError{Position: src.position(d.Pos()), Msg: fmt.Sprintf("%s redeclared", id)}
	}
	p.prog.funcs[id] = &funcGen{src: src, decl: d, id: id, version: hash(src.slice(d))}
	if key.recv == "" {
		p.funcs[key.name] = id
		return nil
	}
	if p.methods[key.recv] == nil {
		p.methods[key.recv] = map[string]object.MethodID{}
	}
	p.methods[key.recv][key.name] = id
	return nil
}

func (p *Package) addVar(src *source, spec *ast.ValueSpec) error {
	for i, n := range spec.Names {
		if n.Name == "_" {
			continue
		}
		id := object.MethodID(p.Path + ".init." + n.Name)
		if _, dup := p.prog.inits[id]; dup {
			return &SyntaxError{Position: src.position(n.Pos()), Msg: fmt.Sprintf("%s redeclared", n.Name)}
		}
		v := &varInit{
			src:     src,
			spec:    spec,
			index:   i,
			id:      id,
			slot:    object.Shared(p.Path + "." + n.Name),
			version: hash(src.slice(spec)),
		}
		p.vars[n.Name] = v
		p.prog.inits[id] = v
	}
	return nil
}

func hash(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

// Types returns the type services of the loaded packages.
func (p *Program) Types() methods.TypeTable { return p.types }

// Package returns the loaded package with the given import path.
func (p *Program) Package(path string) (*Package, bool) {
	pkg, ok := p.packages[path]
	return pkg, ok
}

// Methods returns the IDs of every function and method, sorted.
func (p *Program) Methods() []object.MethodID {
	ids := make([]object.MethodID, 0, len(p.funcs))
	for id := range p.funcs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DocumentOf returns the document declaring a function, method or package
// variable initializer.
func (p *Program) DocumentOf(id object.MethodID) (string, bool) {
	if g, ok := p.funcs[id]; ok {
		return g.src.name, true
	}
	if v, ok := p.inits[id]; ok {
		return v.src.name, true
	}
	return "", false
}

// Generator returns the generator of a function or method.
func (p *Program) Generator(id object.MethodID) (instruction.Generator, bool) {
	g, ok := p.funcs[id]
	if !ok {
		return nil, false
	}
	return g, true
}

// Provide implements methods.Provider. Methods of packages that were not
// loaded get a generator returning an opaque value.
func (p *Program) Provide(ctx context.Context, m object.MethodID) (instruction.Generator, methods.AssemblyRef, error) {
	if g, ok := p.funcs[m]; ok {
		return g, methods.AssemblyRef(g.src.pkg.Path), nil
	}
	if g, ok := p.funcs[m.Definition()]; ok {
		return g, methods.AssemblyRef(g.src.pkg.Path), nil
	}
	if v, ok := p.inits[m]; ok {
		return v, methods.AssemblyRef(v.src.pkg.Path), nil
	}
	if pkg := p.packageOf(m); pkg != nil {
		return nil, "", fmt.Errorf("%s is not declared in package %s", m, pkg.Path)
	}
	return &externalGen{id: m}, ExternalAssembly, nil
}

func (p *Program) packageOf(m object.MethodID) *Package {
	var best *Package
	for path, pkg := range p.packages {
		if strings.HasPrefix(string(m), path+".") && (best == nil || len(path) > len(best.Path)) {
			best = pkg
		}
	}
	return best
}

// externalGen stands in for a function whose body is not available.
type externalGen struct {
	id object.MethodID
}

func (g *externalGen) Name() object.VersionedName { return object.Versioned(string(g.id), 0) }

func (g *externalGen) Generate(e instruction.Emitter) error {
	r := e.Temporary("ext")
	e.Emit(&instruction.AssignNewObject{Target: r, Type: object.TypeOf("external:" + string(g.id))})
	e.Emit(&instruction.Return{Source: r})
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

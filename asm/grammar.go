package asm

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/podhmo/go-analyzing/object"
)

// listing is the parse tree of one source: type and method blocks.
type listing struct {
	Decls []*decl `EOL* ( @@ EOL* )*`
}

type decl struct {
	Type   *typeDecl   `  @@`
	Method *methodDecl `| @@`
}

// typeDecl: type Name[P] : Base, Base { method = id }
type typeDecl struct {
	Pos lexer.Position

	Type    *typeRef   `"type" @@`
	Bases   []*typeRef `( ":" @@ ( "," @@ )* )?`
	Methods []*binding `"{" EOL* ( @@ EOL+ )* "}"`
}

type binding struct {
	Name   string     `@Name "="`
	Method *methodRef `@@`
}

// methodDecl: method id [version N] { statements }
type methodDecl struct {
	Pos lexer.Position

	ID      *methodRef `"method" @@`
	Version *uint64    `( "version" @Int )?`
	Body    []*stmt    `"{" EOL* ( @@ EOL+ )* "}"`
}

type typeRef struct {
	Name string     `@Name`
	Args []*typeRef `( "[" @@ ( "," @@ )* "]" )?`
}

func (t *typeRef) descriptor() object.TypeDescriptor {
	args := make([]object.TypeDescriptor, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.descriptor()
	}
	return object.TypeOf(t.Name, args...)
}

// methodRef spells a method id; generic arguments may sit between the
// type path and the method name, as in "pkg.Box[int].Get".
type methodRef struct {
	Path string     `@Name`
	Args []*typeRef `( "[" @@ ( "," @@ )* "]"`
	Tail string     `  ( "." @Name )? )?`
}

func (m *methodRef) id() object.MethodID {
	if len(m.Args) == 0 {
		return object.MethodID(m.Path)
	}
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		args[i] = a.descriptor().String()
	}
	s := m.Path + "[" + strings.Join(args, ",") + "]"
	if m.Tail != "" {
		s += "." + m.Tail
	}
	return object.MethodID(s)
}

type stmt struct {
	Pos lexer.Position

	Assign     *pair      `  "assign" @@`
	Arg        *argument  `| "arg" @@`
	Lit        *literal   `| "lit" @@`
	New        *alloc     `| "new" @@`
	RetVal     *varRef    `| "retval" @@`
	PreCall    *preCall   `| @@`
	Call       *methodRef `| "call" @@`
	CallVirt   *methodRef `| "callvirt" @@`
	JmpIf      *jmpIf     `| "jmpif" @@`
	Jmp        *string    `| "jmp" @Name`
	Label      *string    `| "label" @Name`
	Ret        *ret       `| @@`
	Ensure     *ensure    `| "ensure" @@`
	LateInit   *varRef    `| "lateinit" @@`
	Direct     *string    `| "direct" @( Op | Name )`
	DirectCall *string    `| "directcall" @( Op | Name )`
	Include    *methodRef `| "include" @@`
	Nop        bool       `| @"nop"`
}

// varRef is a variable: a plain name, a shared slot "@name" or a
// temporary "$name" local to one generation.
type varRef struct {
	Shared string `  @Shared`
	Temp   string `| @Temp`
	Name   string `| @Name`
}

type pair struct {
	Target *varRef `@@ ","`
	Source *varRef `@@`
}

type argument struct {
	Target *varRef `@@ ","`
	Index  int     `@Int`
}

type literal struct {
	Target *varRef `@@ ","`
	Value  *value  `@@`
}

type value struct {
	Float  *float64 `  @Float`
	Int    *int64   `| @Int`
	String *string  `| @String`
	Bool   *string  `| @( "true" | "false" )`
	Nil    bool     `| @"nil"`
}

func (v *value) literal() object.Literal {
	switch {
	case v.Float != nil:
		return object.LiteralOf(*v.Float)
	case v.Int != nil:
		return object.LiteralOf(*v.Int)
	case v.String != nil:
		return object.LiteralOf(*v.String)
	case v.Bool != nil:
		return object.LiteralOf(*v.Bool == "true")
	}
	return object.LiteralOf(nil)
}

type alloc struct {
	Target *varRef  `@@ ","`
	Type   *typeRef `@@`
}

type preCall struct {
	Keyword string    `@"precall"`
	Args    []*varRef `( @@ ( "," @@ )* )?`
}

type jmpIf struct {
	Condition *varRef `@@ ","`
	Label     string  `@Name`
}

type ret struct {
	Keyword string  `@"ret"`
	Source  *varRef `@@?`
}

type ensure struct {
	Target      *varRef    `@@ ","`
	Initializer *methodRef `@@`
}

var asmLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `(#|//)[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "EOL", Pattern: `\n|;`},
	{Name: "Float", Pattern: `-?[0-9]+\.[0-9]+`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Shared", Pattern: `@[A-Za-z_][A-Za-z0-9_./\-]*`},
	{Name: "Temp", Pattern: `\$[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `op[-+*/%<>!=&|]+`},
	{Name: "Name", Pattern: `[A-Za-z_<][A-Za-z0-9_./<>\-]*`},
	{Name: "Punct", Pattern: `[\[\],:={}.]`},
})

var parser = participle.MustBuild[listing](
	participle.Lexer(asmLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

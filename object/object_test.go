package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTable_CreateAssignsFreshIDs(t *testing.T) {
	table := NewTable()
	a := table.Create(TypeOf("app.Service"))
	b := table.CreateDirect(TypeOf("int"), int64(5))

	if a.ID() == b.ID() {
		t.Fatalf("expected distinct IDs, got %d and %d", a.ID(), b.ID())
	}
	if got, ok := table.Get(b.ID()); !ok || got != b {
		t.Errorf("Get(%d) = %v, %v; want the created instance", b.ID(), got, ok)
	}
	if v, ok := b.DirectValue(); !ok || v != int64(5) {
		t.Errorf("DirectValue() = %v, %v; want 5, true", v, ok)
	}
	if _, ok := a.DirectValue(); ok {
		t.Errorf("non-direct instance reports a direct value")
	}
	if diff := cmp.Diff(2, len(table.All())); diff != "" {
		t.Errorf("All() length mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_Nothing(t *testing.T) {
	table := NewTable()
	nothing := table.Nothing()
	if !nothing.IsNothing() {
		t.Fatal("Nothing() is not recognized as nothing")
	}
	if table.Create(NothingType).IsNothing() {
		t.Error("a fresh instance of the nothing type must not be the designated Nothing")
	}
	if nothing.Inspect() != "<nothing>" {
		t.Errorf("Inspect() = %q", nothing.Inspect())
	}
}

func TestInstance_Fields(t *testing.T) {
	table := NewTable()
	owner := table.Create(TypeOf("app.Owner"))
	value := table.CreateDirect(TypeOf("string"), "x")
	owner.SetField("b", value)
	owner.SetField("a", table.Nothing())

	got, ok := owner.Field("b")
	if !ok || got != value {
		t.Errorf("Field(b) = %v, %v", got, ok)
	}
	if diff := cmp.Diff([]string{"a", "b"}, owner.FieldNames()); diff != "" {
		t.Errorf("FieldNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeDescriptor(t *testing.T) {
	box := TypeOf("app.Box", TypeOf("T"))
	got := box.Substitute(map[string]TypeDescriptor{"T": TypeOf("int")})
	if got.String() != "app.Box[int]" {
		t.Errorf("Substitute() = %s", got)
	}
	if !got.Equal(TypeOf("app.Box", TypeOf("int"))) {
		t.Errorf("Equal() failed for %s", got)
	}
	if box.Equal(got) {
		t.Errorf("Equal() must distinguish %s and %s", box, got)
	}
}

func TestMethodID(t *testing.T) {
	cases := []struct {
		id        MethodID
		name      string
		declaring string
		segments  []string
		typeArgs  []string
	}{
		{
			id:        "example.com/app.Service.Run",
			name:      "Run",
			declaring: "example.com/app.Service",
			segments:  []string{"example", "com/app", "Service", "Run"},
		},
		{
			id:        "app.Box[example.com/x.T,int].Get",
			name:      "Get",
			declaring: "app.Box[example.com/x.T,int]",
			segments:  []string{"app", "Box", "Get"},
			typeArgs:  []string{"example.com/x.T", "int"},
		},
		{
			id:       "Main",
			name:     "Main",
			segments: []string{"Main"},
		},
	}
	for _, c := range cases {
		t.Run(string(c.id), func(t *testing.T) {
			if got := c.id.Name(); got != c.name {
				t.Errorf("Name() = %q, want %q", got, c.name)
			}
			if got := c.id.DeclaringType(); got != c.declaring {
				t.Errorf("DeclaringType() = %q, want %q", got, c.declaring)
			}
			if diff := cmp.Diff(c.segments, c.id.Segments()); diff != "" {
				t.Errorf("Segments() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(c.typeArgs, c.id.TypeArgs()); diff != "" {
				t.Errorf("TypeArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if got := MethodID("app.Box[int].Get").Definition(); got != "app.Box.Get" {
		t.Errorf("Definition() = %q", got)
	}
	if got := NewMethodID(TypeOf("app.Box", TypeOf("int")), "Get"); got != "app.Box[int].Get" {
		t.Errorf("NewMethodID() = %q", got)
	}
}

func TestVariableName(t *testing.T) {
	if s := Shared("cfg"); !s.IsShared() || s.String() != "@cfg" {
		t.Errorf("Shared() = %v", s)
	}
	tmp := VariableName{Name: "tmp", Scope: 3}
	if !tmp.IsTemporary() || tmp.String() != "tmp$3" {
		t.Errorf("temporary = %v", tmp)
	}
	if Var("x") == tmp {
		t.Error("user and temporary names must differ")
	}
}

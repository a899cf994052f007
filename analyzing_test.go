package analyzing_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/podhmo/go-analyzing"
	"github.com/podhmo/go-analyzing/analyzingtest"
	"github.com/podhmo/go-analyzing/edit"
	"github.com/podhmo/go-analyzing/locator"
	"github.com/podhmo/go-analyzing/machine"
	"github.com/podhmo/go-analyzing/object"
)

const modulePath = "example.com/app"

const mainSource = `package main

import "example.com/app/lib"

func Sum(a int, rest ...int) int { return a }

func Use(a, b int) int { return a }

func Main() int {
	x := lib.Double(1)
	y := 2
	return Sum(x, y)
}

func Broken() int {
	x := 1
	y := 2
	return Use(x, y)
}

func Two() int {
	return lib.Double(1)
}
`

const libSource = `package lib

func Double(n int) int { return n * 2 }
`

func docs() map[string]string {
	return map[string]string{
		"main.go":    mainSource,
		"lib/lib.go": libSource,
	}
}

func newProject(t *testing.T, opts ...analyzing.Option) *analyzing.Project {
	t.Helper()
	p, err := analyzing.New(modulePath, docs(), opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func analyze(t *testing.T, p *analyzing.Project, entry string) *machine.Result {
	t.Helper()
	res, err := p.Analyze(context.Background(), object.MethodID(modulePath+"."+entry))
	if err != nil {
		t.Fatalf("Analyze(%s) failed: %v", entry, err)
	}
	return res
}

func removeY(t *testing.T, res *machine.Result, callee string) edit.Transformation {
	t.Helper()
	y, err := res.Entry.Variables.Get(object.Var("y"))
	if err != nil {
		t.Fatalf("Get(y) failed: %v", err)
	}
	name := "remove argument 1 of " + modulePath + "." + callee
	for _, e := range res.Edits(y) {
		if e.Name == name {
			return e.Transformation
		}
	}
	t.Fatalf("no edit %q on y", name)
	return nil
}

// funcBody returns the declaration of the top-level function name, up to
// its closing brace.
func funcBody(text, name string) string {
	start := strings.Index(text, "func "+name+"(")
	if start < 0 {
		return ""
	}
	end := strings.Index(text[start:], "\n}\n")
	if end < 0 {
		return text[start:]
	}
	return text[start : start+end+3]
}

func TestAnalyze(t *testing.T) {
	p := newProject(t)
	res := analyze(t, p, "Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, int64(2))

	var got []string
	for _, c := range res.Children(res.Entry) {
		got = append(got, string(c.Method))
	}
	want := []string{modulePath + "/lib.Double", modulePath + ".Sum"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	if _, err := p.Analyze(context.Background(), modulePath+".Nothing"); err == nil {
		t.Error("expected an error for an undeclared entry")
	}
}

func TestOpen(t *testing.T) {
	dir := analyzingtest.WriteFiles(t, map[string]string{
		"go.mod":     "module example.com/app\n\ngo 1.24\n",
		"main.go":    mainSource,
		"lib/lib.go": libSource,
	})
	p, err := analyzing.Open(dir, analyzing.WithOverlay(locator.Overlay{
		"lib/triple.go": []byte("package lib\n\nfunc Triple(n int) int { return n * 3 }\n"),
	}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer p.Close()

	if got := p.ModulePath(); got != modulePath {
		t.Errorf("module path = %q, want %q", got, modulePath)
	}
	ids, err := p.Methods()
	if err != nil {
		t.Fatalf("Methods() failed: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == modulePath+"/lib.Triple" {
			found = true
		}
	}
	if !found {
		t.Errorf("overlay function is missing from %v", ids)
	}
	analyzingtest.AssertDirect(t, analyze(t, p, "Main").ReturnValue, int64(2))
}

func TestOpenWithReplace(t *testing.T) {
	dir := analyzingtest.WriteFiles(t, map[string]string{
		"app/go.mod": `module example.com/app

go 1.24

require example.com/lib v0.0.0

replace example.com/lib => ../lib
`,
		"app/main.go": "package main\n\nimport \"example.com/lib\"\n\nfunc Main() int { return lib.Double(4) }\n",
		"lib/go.mod":  "module example.com/lib\n\ngo 1.24\n",
		"lib/lib.go":  libSource,
	})
	p, err := analyzing.Open(filepath.Join(dir, "app"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer p.Close()

	res := analyze(t, p, "Main")
	analyzingtest.AssertDirect(t, res.ReturnValue, int64(8))
	if _, ok := p.Source("../lib/lib.go"); !ok {
		t.Error("the replaced module was not loaded")
	}
	_, ref, ok := p.Cache().Lookup("example.com/lib.Double")
	if !ok {
		t.Fatal("lib.Double is not cached")
	}
	if ref != "example.com/lib" {
		t.Errorf("assembly of lib.Double = %q, want %q", ref, "example.com/lib")
	}
}

func TestAnalyzeAll(t *testing.T) {
	p := newProject(t)
	entries := []object.MethodID{modulePath + ".Main", modulePath + ".Two", modulePath + ".Main"}
	results, err := p.AnalyzeAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("AnalyzeAll() failed: %v", err)
	}
	for i, res := range results {
		if res.Entry.Method != entries[i] {
			t.Errorf("result %d is for %s, want %s", i, res.Entry.Method, entries[i])
		}
		analyzingtest.AssertDirect(t, res.ReturnValue, int64(2))
	}

	entries = append(entries, modulePath+".Nothing")
	if _, err := p.AnalyzeAll(context.Background(), entries); err == nil {
		t.Error("expected an error when one entry fails")
	}
}

func TestApplyCommits(t *testing.T) {
	p := newProject(t)
	res := analyze(t, p, "Main")

	out, err := p.Apply(context.Background(), removeY(t, res, "Sum"))
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if !out.Committed {
		t.Fatalf("edit was not committed: %v", out.Reason)
	}
	if diff := cmp.Diff([]string{"main.go"}, out.Documents); diff != "" {
		t.Errorf("changed documents mismatch (-want +got):\n%s", diff)
	}

	// only the package of the edited document leaves the cache
	want := []object.MethodID{modulePath + ".Main", modulePath + ".Sum"}
	if diff := cmp.Diff(want, out.Invalidated); diff != "" {
		t.Errorf("invalidated methods mismatch (-want +got):\n%s", diff)
	}
	if _, _, ok := p.Cache().Lookup(modulePath + "/lib.Double"); !ok {
		t.Error("methods of an unchanged package were evicted")
	}

	text, _ := p.Source("main.go")
	wantMain := "func Main() int {\n\tx := lib.Double(1)\n\treturn Sum(x)\n}\n"
	if got := funcBody(text, "Main"); got != wantMain {
		t.Errorf("Main after commit mismatch:\n%s", got)
	}
	if got := funcBody(text, "Broken"); !strings.Contains(got, "y := 2") {
		t.Errorf("Broken must be untouched:\n%s", got)
	}
	if got := p.Workspace().Version("main.go"); got != 2 {
		t.Errorf("version = %d, want 2", got)
	}

	again := analyze(t, p, "Main")
	analyzingtest.AssertDirect(t, again.ReturnValue, int64(2))
	if _, err := again.Entry.Variables.Get(object.Var("y")); err == nil {
		t.Error("y is still assigned after its removal")
	}
}

func TestApplyValidationAborts(t *testing.T) {
	p := newProject(t, analyzing.WithEntries(modulePath+".Broken"))
	res := analyze(t, p, "Broken")

	out, err := p.Apply(context.Background(), removeY(t, res, "Use"))
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if out.Committed || out.Reason == nil {
		t.Errorf("outcome = %+v, want an aborted edit", out)
	}
	if text, _ := p.Source("main.go"); text != mainSource {
		t.Errorf("workspace changed after an aborted edit:\n%s", text)
	}
	if got := p.Workspace().Version("main.go"); got != 1 {
		t.Errorf("version = %d, want 1", got)
	}
	analyzingtest.AssertDirect(t, analyze(t, p, "Broken").ReturnValue, int64(1))
}

func TestApplyStaleEdit(t *testing.T) {
	p := newProject(t)
	res := analyze(t, p, "Main")
	tr := removeY(t, res, "Sum")

	if _, err := p.Apply(context.Background(), tr); err != nil {
		t.Fatalf("first Apply() failed: %v", err)
	}
	out, err := p.Apply(context.Background(), tr)
	var conflict *edit.TransformationConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, but got %v", err)
	}
	if out.Committed {
		t.Error("a stale edit was committed")
	}
}

func TestDirectCommitReloads(t *testing.T) {
	p := newProject(t)
	res := analyze(t, p, "Main")

	v := p.Workspace().NewView()
	if err := v.Apply(removeY(t, res, "Sum")); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if err := v.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if _, _, ok := p.Cache().Lookup(modulePath + ".Main"); ok {
		t.Error("Main is still cached after its document changed")
	}
	again := analyze(t, p, "Main")
	if _, err := again.Entry.Variables.Get(object.Var("y")); err == nil {
		t.Error("analysis did not follow the committed source")
	}
}

func TestApplyWhileAnalyzing(t *testing.T) {
	p := newProject(t)
	tr := removeY(t, analyze(t, p, "Main"), "Sum")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			if _, err := p.Analyze(ctx, modulePath+".Main"); err != nil && ctx.Err() == nil {
				t.Errorf("Analyze() failed during an edit: %v", err)
				return
			}
		}
	}()
	out, err := p.Apply(context.Background(), tr)
	cancel()
	wg.Wait()
	if err != nil || !out.Committed {
		t.Fatalf("Apply() = %+v, %v", out, err)
	}

	// a cached Main must come from the reloaded program
	prog, err := p.Program()
	if err != nil {
		t.Fatalf("Program() failed: %v", err)
	}
	if cached, _, ok := p.Cache().Lookup(modulePath + ".Main"); ok {
		current, _ := prog.Generator(modulePath + ".Main")
		if cached != current {
			t.Error("the cache holds Main of the replaced program")
		}
	}
	again := analyze(t, p, "Main")
	if _, err := again.Entry.Variables.Get(object.Var("y")); err == nil {
		t.Error("y is still assigned after its removal")
	}
}

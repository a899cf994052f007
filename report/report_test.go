package report_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/podhmo/go-analyzing/asm"
	"github.com/podhmo/go-analyzing/machine"
	"github.com/podhmo/go-analyzing/report"
)

const listing = `
method m.Id {
	arg a, 0
	ret a
}

method m.Main {
	lit x, 5
	precall x
	call m.Id
	retval r
	ret r
}
`

func buildReport(t *testing.T) *report.Report {
	t.Helper()
	a, err := asm.Parse("test.asm", listing)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	res, err := machine.New(nil, a.Provide).RunMethod(context.Background(), "m.Main")
	if err != nil {
		t.Fatalf("RunMethod() failed: %v", err)
	}
	return report.Build(res)
}

func TestBuild(t *testing.T) {
	rep := buildReport(t)
	if rep.Entry != "m.Main" || rep.Return != "5" {
		t.Errorf("entry = %q, return = %q", rep.Entry, rep.Return)
	}
	if got := len(rep.Root.Calls); got != 1 {
		t.Fatalf("calls of the entry = %d, want 1", got)
	}
	id := rep.Root.Calls[0]
	if diff := cmp.Diff([]string{"5"}, id.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if id.Origin != "test.asm:10:2" {
		t.Errorf("origin = %q, want %q", id.Origin, "test.asm:10:2")
	}
	names := make([]string, len(rep.Root.Variables))
	for i, v := range rep.Root.Variables {
		names[i] = v.Name
	}
	if diff := cmp.Diff([]string{"r", "x"}, names); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteText(t *testing.T) {
	rep := buildReport(t)
	var buf bytes.Buffer
	if err := rep.Write(&buf, report.Text, report.TextOptions{Variables: true}); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	want := fmt.Sprintf(`m.Main returned 5 (%d steps, %d instances)
m.Main() -> 5
  | r = 5
  | x = 5
  m.Id(5) -> 5 at test.asm:10:2
    | a = 5
`, rep.Steps, rep.Instances)
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := rep.WriteText(&buf, report.TextOptions{Color: true}); err != nil {
		t.Fatalf("WriteText() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[1mm.Id\x1b[0m(5)") {
		t.Errorf("colored output lacks a bold method name:\n%q", buf.String())
	}
}

func TestWriteYAML(t *testing.T) {
	rep := buildReport(t)
	var buf bytes.Buffer
	if err := rep.Write(&buf, report.YAML, report.TextOptions{}); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	var got report.Report
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("yaml.Unmarshal() failed: %v\n%s", err, buf.String())
	}
	if diff := cmp.Diff(rep, &got); diff != "" {
		t.Errorf("yaml document mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCBOR(t *testing.T) {
	rep := buildReport(t)
	var first, second bytes.Buffer
	if err := rep.Write(&first, report.CBOR, report.TextOptions{}); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := rep.WriteCBOR(&second); err != nil {
		t.Fatalf("WriteCBOR() failed: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("canonical encoding is not deterministic")
	}
	got, err := report.ReadCBOR(first.Bytes())
	if err != nil {
		t.Fatalf("ReadCBOR() failed: %v", err)
	}
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Errorf("cbor document mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "YAML", "cbor"} {
		if _, err := report.ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", s, err)
		}
	}
	if _, err := report.ParseFormat("json"); err == nil {
		t.Error("ParseFormat(json): expected an error")
	}
}

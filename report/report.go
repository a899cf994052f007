// Package report renders the call tree of a run as text, YAML or CBOR.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/podhmo/go-analyzing/machine"
	"github.com/podhmo/go-analyzing/object"
)

// Report is the serializable outcome of one run.
type Report struct {
	Entry     string `yaml:"entry" cbor:"1,keyasint"`
	Return    string `yaml:"return" cbor:"2,keyasint"`
	Steps     int    `yaml:"steps" cbor:"3,keyasint"`
	Instances int    `yaml:"instances" cbor:"4,keyasint"`
	Root      *Call  `yaml:"root" cbor:"5,keyasint"`
}

// Call is one node of the call tree.
type Call struct {
	Method    string     `yaml:"method" cbor:"1,keyasint"`
	Generator string     `yaml:"generator,omitempty" cbor:"2,keyasint,omitempty"`
	Kind      string     `yaml:"kind,omitempty" cbor:"3,keyasint,omitempty"`
	Origin    string     `yaml:"origin,omitempty" cbor:"4,keyasint,omitempty"`
	Args      []string   `yaml:"args,omitempty" cbor:"5,keyasint,omitempty"`
	Return    string     `yaml:"return,omitempty" cbor:"6,keyasint,omitempty"`
	Variables []Variable `yaml:"variables,omitempty" cbor:"7,keyasint,omitempty"`
	Calls     []*Call    `yaml:"calls,omitempty" cbor:"8,keyasint,omitempty"`
}

// Variable is a user variable of a frame with the edits attached to its value.
type Variable struct {
	Name  string   `yaml:"name" cbor:"1,keyasint"`
	Value string   `yaml:"value" cbor:"2,keyasint"`
	Edits []string `yaml:"edits,omitempty" cbor:"3,keyasint,omitempty"`
}

// Build converts a result into a report.
func Build(res *machine.Result) *Report {
	r := &Report{
		Steps:     res.Steps,
		Instances: res.Instances.Len(),
	}
	if res.Entry != nil {
		r.Entry = string(res.Entry.Method)
		r.Root = build(res, res.Entry)
	}
	if res.ReturnValue != nil {
		r.Return = res.ReturnValue.Inspect()
	}
	return r
}

func build(res *machine.Result, c *machine.CallContext) *Call {
	n := &Call{Method: string(c.Method), Origin: c.Origin}
	if c.Name != (object.VersionedName{}) {
		n.Generator = c.Name.String()
	}
	switch {
	case c.Direct:
		n.Kind = "direct"
	case c.Opaque:
		n.Kind = "opaque"
	}
	for _, a := range c.Args {
		n.Args = append(n.Args, a.Inspect())
	}
	if c.ReturnValue != nil {
		n.Return = c.ReturnValue.Inspect()
	}
	if c.Variables != nil {
		for _, name := range c.Variables.Names() {
			if name.IsTemporary() {
				continue
			}
			inst, err := c.Variables.Get(name)
			if err != nil {
				continue
			}
			v := Variable{Name: name.String(), Value: inst.Inspect()}
			for _, e := range res.Edits(inst) {
				v.Edits = append(v.Edits, e.Name)
			}
			sort.Strings(v.Edits)
			n.Variables = append(n.Variables, v)
		}
	}
	for _, child := range res.Children(c) {
		n.Calls = append(n.Calls, build(res, child))
	}
	return n
}

// Format is an output encoding.
type Format string

const (
	Text Format = "text"
	YAML Format = "yaml"
	CBOR Format = "cbor"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, YAML, CBOR:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// TextOptions controls the text rendering.
type TextOptions struct {
	// Color decorates the output with ANSI escapes.
	Color bool
	// Variables lists frame variables and their edits under each call.
	Variables bool
}

// Write renders r in the given format.
func (r *Report) Write(w io.Writer, format Format, opts TextOptions) error {
	switch format {
	case Text:
		return r.WriteText(w, opts)
	case YAML:
		return r.WriteYAML(w)
	case CBOR:
		return r.WriteCBOR(w)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// WriteYAML renders r as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// WriteCBOR renders r in canonical CBOR.
func (r *Report) WriteCBOR(w io.Writer) error {
	b, err := cborEncMode.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode cbor: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// ReadCBOR decodes a report written by WriteCBOR.
func ReadCBOR(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: unmarshal: %w", err)
	}
	return &r, nil
}

const (
	bold  = "\x1b[1m"
	dim   = "\x1b[2m"
	reset = "\x1b[0m"
)

// WriteText renders r as an indented call tree.
func (r *Report) WriteText(w io.Writer, opts TextOptions) error {
	style := func(code, s string) string {
		if !opts.Color || s == "" {
			return s
		}
		return code + s + reset
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s returned %s (%d steps, %d instances)\n", style(bold, r.Entry), r.Return, r.Steps, r.Instances)
	var walk func(c *Call, depth int)
	walk = func(c *Call, depth int) {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%s%s(%s) -> %s", indent, style(bold, c.Method), strings.Join(c.Args, ", "), c.Return)
		if c.Kind != "" {
			fmt.Fprintf(&b, " %s", style(dim, "["+c.Kind+"]"))
		}
		if c.Origin != "" {
			fmt.Fprintf(&b, " %s", style(dim, "at "+c.Origin))
		}
		b.WriteString("\n")
		if opts.Variables {
			for _, v := range c.Variables {
				fmt.Fprintf(&b, "%s  | %s = %s\n", indent, v.Name, v.Value)
				for _, e := range v.Edits {
					fmt.Fprintf(&b, "%s  |   %s\n", indent, style(dim, "edit: "+e))
				}
			}
		}
		for _, child := range c.Calls {
			walk(child, depth+1)
		}
	}
	if r.Root != nil {
		walk(r.Root, 0)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

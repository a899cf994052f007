package strips

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuffer_OriginalCoordinates(t *testing.T) {
	b := New("f(a, b, c)")
	// remove "a, " first; the offsets of b and c stay the same.
	if err := b.Remove(2, 5); err != nil {
		t.Fatal(err)
	}
	if err := b.Replace(8, 9, "z"); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(0, "x := "); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("x := f(b, z)", b.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
	if b.Original() != "f(a, b, c)" {
		t.Errorf("Original() changed: %q", b.Original())
	}
}

func TestBuffer_Overlap(t *testing.T) {
	cases := []struct {
		name string
		do   func(b *Buffer) error
	}{
		{"region in region", func(b *Buffer) error { return b.Remove(3, 5) }},
		{"region over region edge", func(b *Buffer) error { return b.Remove(0, 3) }},
		{"insertion inside region", func(b *Buffer) error { return b.Insert(4, "!") }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := New("0123456789")
			if err := b.Remove(2, 6); err != nil {
				t.Fatal(err)
			}
			if err := c.do(b); !errors.Is(err, ErrOverlap) {
				t.Errorf("expected ErrOverlap, got %v", err)
			}
		})
	}

	b := New("0123456789")
	if err := b.Remove(2, 6); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(6, "|"); err != nil {
		t.Errorf("insertion at region end must be allowed: %v", err)
	}
	if err := b.Insert(2, "|"); err != nil {
		t.Errorf("insertion at region start must be allowed: %v", err)
	}
	if diff := cmp.Diff("01||6789", b.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
	if err := b.Insert(11, "x"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestBuffer_SetIsIdempotentPerRegion(t *testing.T) {
	b := New("call(a, b)")
	if err := b.Set(5, 9, "a"); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(5, 9, "a, c"); err != nil {
		t.Fatalf("second Set with the same bounds must replace the first: %v", err)
	}
	if diff := cmp.Diff("call(a, c)", b.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
	if err := b.Replace(5, 9, "x"); !errors.Is(err, ErrOverlap) {
		t.Errorf("Replace over a Set region must conflict, got %v", err)
	}

	empty := New("call()")
	if err := empty.Set(5, 5, "x"); err != nil {
		t.Fatal(err)
	}
	if err := empty.Set(5, 5, "y"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("call(y)", empty.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuffer_CloneIsIndependent(t *testing.T) {
	b := New("hello world")
	c := b.Clone()
	if err := c.Replace(0, 5, "bye"); err != nil {
		t.Fatal(err)
	}
	if b.String() != "hello world" || b.Changed() {
		t.Errorf("clone edit leaked into the source buffer: %q", b.String())
	}
	if c.String() != "bye world" {
		t.Errorf("clone String() = %q", c.String())
	}
}

func TestBuffer_Intact(t *testing.T) {
	b := New("0123456789")
	if err := b.Remove(4, 6); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(8, "x"); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		start, end int
		want       bool
	}{
		{0, 4, true},
		{3, 5, false},
		{6, 8, true},
		{7, 9, false},
		{8, 10, true},
	}
	for _, c := range cases {
		if got := b.Intact(c.start, c.end); got != c.want {
			t.Errorf("Intact(%d, %d) = %v, want %v", c.start, c.end, got, c.want)
		}
	}
}

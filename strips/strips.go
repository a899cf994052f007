// Package strips implements a text-splice buffer whose edits are addressed in
// the coordinates of the original text. Earlier edits never shift the
// offsets later edits refer to, and a buffer can be cloned cheaply to stage
// speculative edits without touching the original.
package strips

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrOverlap is returned when an edit touches a region already rewritten by another edit.
	ErrOverlap = errors.New("strips: edit overlaps a previous edit")
	// ErrOutOfRange is returned for offsets outside the original text.
	ErrOutOfRange = errors.New("strips: offset out of range")
)

type splice struct {
	start, end int
	text       string
	keyed      bool
	seq        int
}

func (s splice) isRegion() bool { return s.start < s.end }

// Buffer is an original text plus a set of non-overlapping splices.
type Buffer struct {
	original string
	splices  []splice
	seq      int
}

// New creates a buffer over text with no edits.
func New(text string) *Buffer {
	return &Buffer{original: text}
}

// Clone returns an independent copy; the original text is shared.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{original: b.original, seq: b.seq}
	c.splices = append([]splice(nil), b.splices...)
	return c
}

// Original returns the unedited text.
func (b *Buffer) Original() string { return b.original }

// Changed reports whether any edit has been recorded.
func (b *Buffer) Changed() bool { return len(b.splices) > 0 }

// Insert places text at offset. Insertions at the same offset keep their order.
func (b *Buffer) Insert(offset int, text string) error {
	return b.add(splice{start: offset, end: offset, text: text})
}

// Remove deletes the original region [start, end).
func (b *Buffer) Remove(start, end int) error {
	return b.Replace(start, end, "")
}

// Replace rewrites the original region [start, end) with text.
func (b *Buffer) Replace(start, end int, text string) error {
	if start == end {
		return b.Insert(start, text)
	}
	return b.add(splice{start: start, end: end, text: text})
}

// Set rewrites [start, end) like Replace, but a later Set with the same bounds
// replaces the earlier one instead of conflicting with it.
func (b *Buffer) Set(start, end int, text string) error {
	for i, s := range b.splices {
		if s.keyed && s.start == start && s.end == end {
			b.splices[i].text = text
			return nil
		}
	}
	return b.add(splice{start: start, end: end, text: text, keyed: true})
}

// Intact reports whether no edit rewrites any part of [start, end).
// Insertions exactly at the bounds do not count.
func (b *Buffer) Intact(start, end int) bool {
	for _, s := range b.splices {
		if s.isRegion() {
			if s.start < end && start < s.end {
				return false
			}
			continue
		}
		if start < s.start && s.start < end {
			return false
		}
	}
	return true
}

func (b *Buffer) add(n splice) error {
	if n.start < 0 || n.end > len(b.original) || n.start > n.end {
		return fmt.Errorf("%w: [%d,%d) in text of length %d", ErrOutOfRange, n.start, n.end, len(b.original))
	}
	for _, s := range b.splices {
		switch {
		case n.isRegion() && s.isRegion():
			if n.start < s.end && s.start < n.end {
				return fmt.Errorf("%w: [%d,%d) and [%d,%d)", ErrOverlap, n.start, n.end, s.start, s.end)
			}
		case n.isRegion():
			if n.start < s.start && s.start < n.end {
				return fmt.Errorf("%w: [%d,%d) contains insertion at %d", ErrOverlap, n.start, n.end, s.start)
			}
		case s.isRegion():
			if s.start < n.start && n.start < s.end {
				return fmt.Errorf("%w: insertion at %d inside [%d,%d)", ErrOverlap, n.start, s.start, s.end)
			}
		}
	}
	b.seq++
	n.seq = b.seq
	b.splices = append(b.splices, n)
	return nil
}

// String renders the edited text.
func (b *Buffer) String() string {
	if len(b.splices) == 0 {
		return b.original
	}
	ordered := append([]splice(nil), b.splices...)
	sort.SliceStable(ordered, func(i, j int) bool {
		x, y := ordered[i], ordered[j]
		if x.start != y.start {
			return x.start < y.start
		}
		if x.isRegion() != y.isRegion() {
			return !x.isRegion()
		}
		return x.seq < y.seq
	})

	var sb strings.Builder
	pos := 0
	for _, s := range ordered {
		if s.start > pos {
			sb.WriteString(b.original[pos:s.start])
			pos = s.start
		}
		sb.WriteString(s.text)
		if s.end > pos {
			pos = s.end
		}
	}
	sb.WriteString(b.original[pos:])
	return sb.String()
}

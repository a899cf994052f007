package instruction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/podhmo/go-analyzing/object"
)

// Program is the materialized instruction sequence of one generator.
// Programs are immutable once built and may be shared between runs.
type Program struct {
	Name         object.VersionedName
	Instructions []Instruction
	Infos        []Info
	labels       []int
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Instructions) }

// Target returns the position a label is bound to. The position may equal
// Len, meaning the end of the program.
func (p *Program) Target(l Label) (int, bool) {
	if l.n < 1 || l.n > len(p.labels) || p.labels[l.n-1] < 0 {
		return 0, false
	}
	return p.labels[l.n-1], true
}

// Listing renders the program one instruction per line, with label markers.
// Two generators producing the same sequence have identical listings.
func (p *Program) Listing() string {
	marks := make(map[int][]int)
	for i, pos := range p.labels {
		if pos >= 0 {
			marks[pos] = append(marks[pos], i+1)
		}
	}

	var sb strings.Builder
	writeMarks := func(pos int) {
		ns := marks[pos]
		sort.Ints(ns)
		for _, n := range ns {
			fmt.Fprintf(&sb, "%s:\n", Label{n: n})
		}
	}
	for i, ins := range p.Instructions {
		writeMarks(i)
		fmt.Fprintf(&sb, "%04d %s\n", i, ins)
	}
	writeMarks(len(p.Instructions))
	return sb.String()
}

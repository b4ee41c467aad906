package parser

import (
	"fmt"
	"sort"
	"strings"
)

// Edit replaces source[Start:End] with Text. Start == End inserts.
type Edit struct {
	Start uint
	End   uint
	Text  string
}

// Splice applies edits to source. Edits may arrive in any order but must not
// overlap. Inserts sort ahead of a replacement starting at the same offset
// and otherwise keep their relative order.
func Splice(source []byte, edits []Edit) (string, error) {
	out, _, err := SpliceLines(source, edits)
	return out, err
}

// SpliceLines is Splice that also reports, for every line of the result,
// the 0-indexed source row its first character came from. Lines starting
// inside inserted text map to the row of the edit.
func SpliceLines(source []byte, edits []Edit) (string, []int, error) {
	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Start == sorted[i].End && sorted[j].Start != sorted[j].End
	})

	t := lineTracker{source: source, lineStart: true}
	var b strings.Builder
	b.Grow(len(source))
	cursor := uint(0)
	for _, e := range sorted {
		if e.Start < cursor || e.End < e.Start || e.End > uint(len(source)) {
			return "", nil, fmt.Errorf("edit [%d,%d) overlaps or exceeds source of %d bytes", e.Start, e.End, len(source))
		}
		b.Write(source[cursor:e.Start])
		t.copied(cursor, e.Start)
		b.WriteString(e.Text)
		t.text(e.Text, e.Start)
		cursor = e.End
	}
	b.Write(source[cursor:])
	t.copied(cursor, uint(len(source)))
	return b.String(), t.origins, nil
}

type lineTracker struct {
	source    []byte
	origins   []int
	lineStart bool
	// row and rowAt cache the row of the last offset looked up.
	row   int
	rowAt uint
}

func (t *lineTracker) rowOf(off uint) int {
	for ; t.rowAt < off; t.rowAt++ {
		if t.source[t.rowAt] == '\n' {
			t.row++
		}
	}
	return t.row
}

func (t *lineTracker) copied(from, to uint) {
	for i := from; i < to; i++ {
		if t.lineStart {
			t.origins = append(t.origins, t.rowOf(i))
			t.lineStart = false
		}
		t.lineStart = t.source[i] == '\n'
	}
}

func (t *lineTracker) text(text string, at uint) {
	for i := 0; i < len(text); i++ {
		if t.lineStart {
			t.origins = append(t.origins, t.rowOf(at))
			t.lineStart = false
		}
		t.lineStart = text[i] == '\n'
	}
}

// LineEnd extends end past trailing blanks and one newline when nothing else
// follows on that line, so deleting a whole statement leaves no empty line.
func LineEnd(source []byte, end uint) uint {
	i := end
	for i < uint(len(source)) && (source[i] == ' ' || source[i] == '\t' || source[i] == '\r') {
		i++
	}
	if i < uint(len(source)) && source[i] == '\n' {
		return i + 1
	}
	if i == uint(len(source)) {
		return i
	}
	return end
}

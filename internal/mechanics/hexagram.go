// internal/mechanics/hexagram.go
package mechanics

import (
	"fmt"
	"strings"
)

// HexagramLines is the number of lines in a hexagram.
const HexagramLines = 6

// Hexagram is a six-line pattern. Lines are ordered bottom (index 0) to
// top (index 5), matching the traditional reading order.
type Hexagram struct {
	Lines [HexagramLines]Polarity
}

// HexagramFromPattern builds a hexagram from a 6-bit pattern where bit i
// set means line i is yang.
func HexagramFromPattern(pattern uint8) Hexagram {
	var h Hexagram
	for i := 0; i < HexagramLines; i++ {
		if pattern&(1<<i) != 0 {
			h.Lines[i] = Yang
		}
	}
	return h
}

// Pattern returns the 6-bit identity of the hexagram.
func (h Hexagram) Pattern() uint8 {
	var p uint8
	for i, l := range h.Lines {
		if l == Yang {
			p |= 1 << i
		}
	}
	return p
}

// YangCount returns how many of the six lines are yang.
func (h Hexagram) YangCount() int {
	n := 0
	for _, l := range h.Lines {
		if l == Yang {
			n++
		}
	}
	return n
}

// String renders the hexagram bottom-up as a compact glyph string,
// "-" for yin (broken) and "=" for yang (solid).
func (h Hexagram) String() string {
	var b strings.Builder
	for _, l := range h.Lines {
		if l == Yang {
			b.WriteByte('=')
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ChangingLineSet is a subset of line indices selected for transformation,
// stored as a 6-bit mask.
type ChangingLineSet uint8

// NewChangingLineSet builds a set from explicit line indices. Indices
// outside 0..5 are rejected.
func NewChangingLineSet(indices ...int) (ChangingLineSet, error) {
	var s ChangingLineSet
	for _, i := range indices {
		if i < 0 || i >= HexagramLines {
			return 0, fmt.Errorf("changing line index %d out of range 0..%d", i, HexagramLines-1)
		}
		s |= 1 << i
	}
	return s, nil
}

// Contains reports whether line i is in the set.
func (s ChangingLineSet) Contains(i int) bool {
	return i >= 0 && i < HexagramLines && s&(1<<i) != 0
}

// Count returns the number of selected lines.
func (s ChangingLineSet) Count() int {
	n := 0
	for i := 0; i < HexagramLines; i++ {
		if s.Contains(i) {
			n++
		}
	}
	return n
}

// Indices returns the selected line indices in ascending order.
func (s ChangingLineSet) Indices() []int {
	var out []int
	for i := 0; i < HexagramLines; i++ {
		if s.Contains(i) {
			out = append(out, i)
		}
	}
	return out
}

// Transform flips the polarity of exactly the selected lines. Applying the
// same set twice returns the original hexagram.
func Transform(h Hexagram, s ChangingLineSet) Hexagram {
	for i := 0; i < HexagramLines; i++ {
		if !s.Contains(i) {
			continue
		}
		if h.Lines[i] == Yang {
			h.Lines[i] = Yin
		} else {
			h.Lines[i] = Yang
		}
	}
	return h
}

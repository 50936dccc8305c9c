// Package rewrite applies span patches to source text and records how offsets move.
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/extpath/internal/types"
)

// Patch replaces the bytes in Span with Text
type Patch struct {
	Span types.Span
	Text string
}

// Apply returns src with every patch applied. Patches are swept right to left so
// earlier spans stay valid while later ones are replaced. Overlapping patches are an
// error; bytes outside the patched spans are copied unchanged.
//
// With no patches the returned string is src itself.
func Apply(src string, patches []Patch) (string, *PositionMap, error) {
	if len(patches) == 0 {
		return src, &PositionMap{}, nil
	}

	sorted := make([]Patch, len(patches))
	copy(sorted, patches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start > sorted[j].Span.Start })

	pieces := make([]string, 0, 2*len(sorted)+1)
	tail := len(src)
	for _, p := range sorted {
		if p.Span.Start < 0 || p.Span.End > len(src) || p.Span.Start > p.Span.End {
			return "", nil, fmt.Errorf("patch %s outside source of %d bytes", p.Span, len(src))
		}
		if p.Span.End > tail {
			return "", nil, fmt.Errorf("patch %s overlaps a later patch", p.Span)
		}
		pieces = append(pieces, src[p.Span.End:tail], p.Text)
		tail = p.Span.Start
	}
	pieces = append(pieces, src[:tail])

	var b strings.Builder
	b.Grow(len(src))
	for i := len(pieces) - 1; i >= 0; i-- {
		b.WriteString(pieces[i])
	}

	return b.String(), newPositionMap(sorted), nil
}

// Segment is one replaced region in original and generated coordinates
type Segment struct {
	Original  types.Span
	Generated types.Span
}

// PositionMap translates byte offsets between the original and the rewritten text.
// Offsets inside a replaced region map to the start of the matching region.
type PositionMap struct {
	segments []Segment // ascending by Original.Start
}

func newPositionMap(descending []Patch) *PositionMap {
	m := &PositionMap{segments: make([]Segment, len(descending))}
	delta := 0
	for i := len(descending) - 1; i >= 0; i-- {
		p := descending[i]
		gen := types.Span{Start: p.Span.Start + delta, End: p.Span.Start + delta + len(p.Text)}
		m.segments[len(descending)-1-i] = Segment{Original: p.Span, Generated: gen}
		delta += len(p.Text) - p.Span.Len()
	}
	return m
}

// Segments returns the replaced regions in source order
func (m *PositionMap) Segments() []Segment {
	return m.segments
}

// Identity reports whether the rewrite changed nothing
func (m *PositionMap) Identity() bool {
	return len(m.segments) == 0
}

// ToGenerated maps an offset in the original text to the rewritten text
func (m *PositionMap) ToGenerated(offset int) int {
	return translate(m.segments, offset,
		func(s Segment) types.Span { return s.Original },
		func(s Segment) types.Span { return s.Generated })
}

// ToOriginal maps an offset in the rewritten text back to the original text
func (m *PositionMap) ToOriginal(offset int) int {
	return translate(m.segments, offset,
		func(s Segment) types.Span { return s.Generated },
		func(s Segment) types.Span { return s.Original })
}

func translate(segments []Segment, offset int, from, to func(Segment) types.Span) int {
	// Last segment starting at or before offset
	i := sort.Search(len(segments), func(i int) bool { return from(segments[i]).Start > offset }) - 1
	if i < 0 {
		return offset
	}
	src, dst := from(segments[i]), to(segments[i])
	if offset < src.End {
		return dst.Start
	}
	return offset - src.End + dst.End
}

package annotate

import (
	"sort"

	"resumark/api/internal/anchor"
)

// SegmentKind distinguishes plain text runs from highlighted note spans.
type SegmentKind string

const (
	SegmentPlain     SegmentKind = "plain"
	SegmentHighlight SegmentKind = "highlight"
)

// Segment is one run of a field's text. Highlight segments carry the note
// they belong to; plain segments do not.
type Segment struct {
	Kind SegmentKind
	Text string
	Note *Note
}

// Render splits fieldText into an ordered sequence of plain and highlighted
// segments for the given notes. Notes whose selected text cannot be located
// are skipped for this pass. Overlapping notes resolve earliest-start-wins:
// a note starting before the previous highlight has ended is silently
// dropped from the output, not an error. Render is a pure function of its
// inputs and safe to call on every pass.
func Render(fieldText string, notes []Note) []Segment {
	type placed struct {
		note   Note
		offset int
	}
	var anchored []placed
	for _, n := range notes {
		off, ok := anchor.Locate(fieldText, n.SelectedText, n.Context.Anchor())
		if !ok {
			continue
		}
		anchored = append(anchored, placed{note: n, offset: off})
	}
	if len(anchored) == 0 {
		return []Segment{{Kind: SegmentPlain, Text: fieldText}}
	}

	// Stable: equal offsets keep their original relative order.
	sort.SliceStable(anchored, func(i, j int) bool {
		return anchored[i].offset < anchored[j].offset
	})

	var segs []Segment
	last := 0
	for _, p := range anchored {
		if p.offset < last {
			continue
		}
		if p.offset > last {
			segs = append(segs, Segment{Kind: SegmentPlain, Text: fieldText[last:p.offset]})
		}
		end := p.offset + len(p.note.SelectedText)
		note := p.note
		segs = append(segs, Segment{Kind: SegmentHighlight, Text: fieldText[p.offset:end], Note: &note})
		last = end
	}
	if last < len(fieldText) {
		segs = append(segs, Segment{Kind: SegmentPlain, Text: fieldText[last:]})
	}
	return segs
}

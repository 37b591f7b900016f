// Package editor implements the client-side annotation engine: selection
// capture over the resume render tree, the note store synchronized with the
// remote note service, and the editing session state machine.
package editor

import (
	"errors"
	"strings"
	"unicode/utf8"

	"resumark/api/internal/annotate"
	"resumark/api/internal/resume"
)

const (
	// MinSelectionLength is the minimum selected-text length (runes, after
	// trimming) required to start a note.
	MinSelectionLength = 2
	// MinNoteLength is the minimum note body length.
	MinNoteLength = 2

	popoverWidth   = 320
	popoverHeight  = 300
	viewportPad    = 20
	popoverGap     = 10
)

var (
	// ErrSelectionTooShort means the trimmed selection was empty or a single
	// character; any pending selection should be cleared.
	ErrSelectionTooShort = errors.New("selection too short")
	// ErrInvalidAnchor means the selection started inside an existing
	// highlight, an active editing surface, or a form control.
	ErrInvalidAnchor = errors.New("selection anchor not annotatable")
	// ErrOutsideSection means no enclosing section owns the selection.
	ErrOutsideSection = errors.New("selection outside any section")
)

// Rect is the bounding box of the live selection in viewport coordinates.
type Rect struct {
	Top    float64
	Left   float64
	Bottom float64
	Width  float64
}

// Viewport describes the visible area at capture time.
type Viewport struct {
	Width     float64
	Height    float64
	ScrollTop float64
}

// SelectionSnapshot is what the UI layer hands the editor after a selection
// gesture completes: the raw text, which render-tree node owns the range,
// and enough geometry to place the popover. NodeIndex is -1 when the range
// is not inside any annotatable node.
type SelectionSnapshot struct {
	Text          string
	NodeIndex     int
	InHighlight   bool
	InEditSurface bool
	InFormInput   bool
	Rect          Rect
	Viewport      Viewport
}

// PopoverPosition is the resolved on-screen anchor for the note popover.
type PopoverPosition struct {
	Top   float64
	Left  float64
	Above bool
}

// PendingSelection is the ephemeral candidate note. It lives only between a
// completed selection gesture and confirmation or cancellation.
type PendingSelection struct {
	Text     string
	Section  annotate.Section
	Field    string
	Context  annotate.Context
	Position PopoverPosition
}

// Capture validates a selection snapshot against the render tree and derives
// the pending selection. It is pure: all state transitions happen in Session.
func Capture(snap SelectionSnapshot, tree []resume.FieldNode) (*PendingSelection, error) {
	text := strings.TrimSpace(snap.Text)
	if utf8.RuneCountInString(text) < MinSelectionLength {
		return nil, ErrSelectionTooShort
	}
	if snap.InHighlight || snap.InEditSurface || snap.InFormInput {
		return nil, ErrInvalidAnchor
	}
	if snap.NodeIndex < 0 || snap.NodeIndex >= len(tree) {
		return nil, ErrOutsideSection
	}
	node := tree[snap.NodeIndex]
	if !annotate.KnownSection(node.Section) {
		return nil, ErrOutsideSection
	}

	pending := &PendingSelection{
		Text:    text,
		Section: node.Section,
		Field:   node.Field,
		Context: annotate.Context{ParentElement: node.Field},
	}
	if idx := strings.Index(node.Text, text); idx >= 0 {
		pending.Context.BeforeText = strings.TrimSpace(node.Text[:idx])
		pending.Context.AfterText = strings.TrimSpace(node.Text[idx+len(text):])
	}
	pending.Position = placePopover(snap.Rect, snap.Viewport)
	return pending, nil
}

// placePopover prefers opening below the selection; when the space below
// cannot fit the popover and there is more room above, it opens above.
// Horizontal position is clamped so the popover stays inside the viewport
// with fixed padding.
func placePopover(rect Rect, vp Viewport) PopoverPosition {
	spaceBelow := vp.Height - rect.Bottom
	spaceAbove := rect.Top
	above := spaceBelow < popoverHeight && spaceAbove > spaceBelow

	var top float64
	if above {
		top = rect.Top + vp.ScrollTop - popoverHeight - popoverGap
		if top < viewportPad {
			top = viewportPad
		}
	} else {
		top = rect.Bottom + vp.ScrollTop + popoverGap
		maxTop := vp.Height + vp.ScrollTop - popoverHeight - viewportPad
		if top > maxTop {
			top = maxTop
		}
	}

	left := rect.Left + rect.Width/2
	minLeft := float64(popoverWidth)/2 + viewportPad
	maxLeft := vp.Width - float64(popoverWidth)/2 - viewportPad
	if left < minLeft {
		left = minLeft
	}
	if left > maxLeft {
		left = maxLeft
	}

	return PopoverPosition{Top: top, Left: left, Above: above}
}

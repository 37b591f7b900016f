// Package anchor re-locates a previously selected text span inside a field's
// current text. Offsets are never stored; every render recomputes them from
// the selected substring plus the surrounding context captured at selection
// time.
package anchor

import "strings"

// Context is the disambiguation hint captured when a note is created: the
// trimmed text immediately before and after the selection within its field.
type Context struct {
	BeforeText string `json:"beforeText,omitempty"`
	AfterText  string `json:"afterText,omitempty"`
}

// Empty reports whether the context carries no usable hint.
func (c *Context) Empty() bool {
	return c == nil || (c.BeforeText == "" && c.AfterText == "")
}

// Occurrences returns every start offset of needle in text, advancing one
// byte per match so overlapping occurrences are all enumerated.
func Occurrences(text, needle string) []int {
	if needle == "" {
		return nil
	}
	var offsets []int
	start := 0
	for {
		i := strings.Index(text[start:], needle)
		if i < 0 {
			return offsets
		}
		offsets = append(offsets, start+i)
		start += i + 1
	}
}

// Locate finds the offset of selectedText within fullText. A single
// occurrence is returned as-is, context or not. With multiple occurrences the
// first one whose before and after windows both contain the context hints
// wins, in scan order. When no occurrence satisfies both hints, Locate falls
// back to the first occurrence rather than a best-effort partial match;
// stored notes depend on that exact fallback, so changing it would silently
// re-anchor existing annotations.
func Locate(fullText, selectedText string, ctx *Context) (int, bool) {
	offsets := Occurrences(fullText, selectedText)
	if len(offsets) == 0 {
		return 0, false
	}
	if len(offsets) == 1 {
		return offsets[0], true
	}
	if ctx.Empty() {
		return offsets[0], true
	}
	for _, off := range offsets {
		if matchesAt(fullText, selectedText, off, ctx) {
			return off, true
		}
	}
	return offsets[0], true
}

// matchesAt checks the context windows around one occurrence: BeforeText must
// appear in the len(BeforeText) bytes preceding the occurrence, AfterText in
// the len(AfterText) bytes following it. An absent hint matches trivially.
func matchesAt(fullText, selectedText string, off int, ctx *Context) bool {
	if ctx == nil {
		return true
	}
	if ctx.BeforeText != "" {
		lo := off - len(ctx.BeforeText)
		if lo < 0 {
			lo = 0
		}
		if !strings.Contains(fullText[lo:off], ctx.BeforeText) {
			return false
		}
	}
	if ctx.AfterText != "" {
		lo := off + len(selectedText)
		hi := lo + len(ctx.AfterText)
		if lo > len(fullText) {
			return false
		}
		if hi > len(fullText) {
			hi = len(fullText)
		}
		if !strings.Contains(fullText[lo:hi], ctx.AfterText) {
			return false
		}
	}
	return true
}

// MatchesContext reports whether any occurrence of selectedText in fullText
// satisfies both context windows. Used by the note applicability filter.
func MatchesContext(fullText, selectedText string, ctx *Context) bool {
	if ctx.Empty() {
		return true
	}
	for _, off := range Occurrences(fullText, selectedText) {
		if matchesAt(fullText, selectedText, off, ctx) {
			return true
		}
	}
	return false
}

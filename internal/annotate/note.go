// Package annotate holds the note domain model and the pure reconciliation
// logic that turns a field's text plus its notes into renderable segments.
package annotate

import (
	"strconv"
	"strings"

	"resumark/api/internal/anchor"
)

// Section is a top-level structural zone of a resume.
type Section string

const (
	SectionPersonalInfo   Section = "personal_info"
	SectionSkills         Section = "skills"
	SectionWorkExperience Section = "work_experience"
	SectionProjects       Section = "projects"
	SectionQualifications Section = "qualifications"
)

// KnownSection reports whether s names one of the closed set of sections.
func KnownSection(s Section) bool {
	switch s {
	case SectionPersonalInfo, SectionSkills, SectionWorkExperience, SectionProjects, SectionQualifications:
		return true
	}
	return false
}

// Context is the note's capture-time surroundings. ParentElement names the
// field the selection belonged to; the field keys match the render tree
// (attribute names, or responsibility_<1-based> for list items).
type Context struct {
	BeforeText    string `json:"beforeText,omitempty"`
	AfterText     string `json:"afterText,omitempty"`
	ParentElement string `json:"parentElement,omitempty"`
}

// Anchor converts the note context into the locator's hint form.
func (c *Context) Anchor() *anchor.Context {
	if c == nil {
		return nil
	}
	return &anchor.Context{BeforeText: c.BeforeText, AfterText: c.AfterText}
}

// Note is a persisted annotation. Identifier is the client-generated stable
// key and is immutable for the life of the note; ID is assigned by the server
// and may be briefly absent on freshly created notes.
type Note struct {
	ID           string   `json:"id,omitempty"`
	Identifier   string   `json:"identifier"`
	Body         string   `json:"note"`
	Section      Section  `json:"section"`
	SelectedText string   `json:"selected_text"`
	Context      *Context `json:"context,omitempty"`
	FileURL      string   `json:"note_file,omitempty"`
	FileMimeType string   `json:"note_file_type,omitempty"`
}

// Field returns the field constraint carried by the note, if any.
func (n Note) Field() string {
	if n.Context == nil {
		return ""
	}
	return n.Context.ParentElement
}

const responsibilityPrefix = "responsibility_"

// fieldMatches applies the note's field constraint against a render-tree
// field key. Responsibility fields compare by numeric index so that
// "responsibility_1" and "responsibility_01" refer to the same list item.
func fieldMatches(noteField, field string) bool {
	if noteField == "" || field == "" {
		return true
	}
	if strings.HasPrefix(noteField, responsibilityPrefix) && strings.HasPrefix(field, responsibilityPrefix) {
		a, errA := strconv.Atoi(strings.TrimPrefix(noteField, responsibilityPrefix))
		b, errB := strconv.Atoi(strings.TrimPrefix(field, responsibilityPrefix))
		if errA != nil || errB != nil {
			return noteField == field
		}
		return a == b
	}
	return noteField == field
}

// AppliesTo reports whether the note should be rendered against the given
// field text. A note applies when its section matches, its selected text is
// present in the text, its field constraint (if any) matches, and its
// context (if any) matches some occurrence per the locator's window rule.
func (n Note) AppliesTo(section Section, fieldText, field string) bool {
	if n.Section != section {
		return false
	}
	if n.SelectedText == "" || !strings.Contains(fieldText, n.SelectedText) {
		return false
	}
	if !fieldMatches(n.Field(), field) {
		return false
	}
	return anchor.MatchesContext(fieldText, n.SelectedText, n.Context.Anchor())
}

// NotesFor filters notes down to those applicable to one rendered field,
// preserving input order.
func NotesFor(notes []Note, section Section, fieldText, field string) []Note {
	var out []Note
	for _, n := range notes {
		if n.AppliesTo(section, fieldText, field) {
			out = append(out, n)
		}
	}
	return out
}

package annotate

import (
	"reflect"
	"testing"
)

func segKinds(segs []Segment) []string {
	var out []string
	for _, s := range segs {
		out = append(out, string(s.Kind)+":"+s.Text)
	}
	return out
}

func TestRenderNoNotes(t *testing.T) {
	segs := Render("plain field text", nil)
	want := []string{"plain:plain field text"}
	if !reflect.DeepEqual(segKinds(segs), want) {
		t.Errorf("got %v, want %v", segKinds(segs), want)
	}
}

func TestRenderSingleHighlight(t *testing.T) {
	note := Note{Identifier: "n1", Body: "verify this", Section: SectionWorkExperience, SelectedText: "3 years"}
	segs := Render("approx 3 years exp", []Note{note})
	want := []string{"plain:approx ", "highlight:3 years", "plain: exp"}
	if !reflect.DeepEqual(segKinds(segs), want) {
		t.Errorf("got %v, want %v", segKinds(segs), want)
	}
	if segs[1].Note == nil || segs[1].Note.Identifier != "n1" {
		t.Error("highlight segment should carry its note")
	}
}

func TestRenderUnanchoredNoteSkipped(t *testing.T) {
	note := Note{Identifier: "gone", SelectedText: "vanished"}
	segs := Render("text without the span", []Note{note})
	want := []string{"plain:text without the span"}
	if !reflect.DeepEqual(segKinds(segs), want) {
		t.Errorf("unanchored note must not highlight: got %v", segKinds(segs))
	}
}

func TestRenderOverlapEarliestWins(t *testing.T) {
	// "quick brown" and "brown fox" overlap; the earlier-starting note wins
	// and the later one is omitted from this pass.
	a := Note{Identifier: "a", SelectedText: "quick brown"}
	b := Note{Identifier: "b", SelectedText: "brown fox"}
	segs := Render("the quick brown fox", []Note{b, a})
	want := []string{"plain:the ", "highlight:quick brown", "plain: fox"}
	if !reflect.DeepEqual(segKinds(segs), want) {
		t.Errorf("got %v, want %v", segKinds(segs), want)
	}
}

func TestRenderAdjacentNotes(t *testing.T) {
	a := Note{Identifier: "a", SelectedText: "ab"}
	b := Note{Identifier: "b", SelectedText: "cd"}
	segs := Render("abcd", []Note{a, b})
	want := []string{"highlight:ab", "highlight:cd"}
	if !reflect.DeepEqual(segKinds(segs), want) {
		t.Errorf("got %v, want %v", segKinds(segs), want)
	}
}

func TestRenderIdempotent(t *testing.T) {
	notes := []Note{
		{Identifier: "a", SelectedText: "Go", Context: &Context{BeforeText: "with "}},
		{Identifier: "b", SelectedText: "daily"},
	}
	text := "Go here, built with Go daily"
	first := Render(text, notes)
	second := Render(text, notes)
	if !reflect.DeepEqual(first, second) {
		t.Error("Render must be a pure function of its inputs")
	}
}

func TestRenderTrailingPlain(t *testing.T) {
	note := Note{Identifier: "n", SelectedText: "head"}
	segs := Render("head and tail", []Note{note})
	want := []string{"highlight:head", "plain: and tail"}
	if !reflect.DeepEqual(segKinds(segs), want) {
		t.Errorf("got %v, want %v", segKinds(segs), want)
	}
}

func TestNotesForSectionAndSubstring(t *testing.T) {
	notes := []Note{
		{Identifier: "match", Section: SectionSkills, SelectedText: "Go"},
		{Identifier: "wrong-section", Section: SectionProjects, SelectedText: "Go"},
		{Identifier: "absent-text", Section: SectionSkills, SelectedText: "Rust"},
	}
	got := NotesFor(notes, SectionSkills, "Golang", "name")
	if len(got) != 1 || got[0].Identifier != "match" {
		t.Errorf("got %v", got)
	}
}

func TestNotesForResponsibilityIndex(t *testing.T) {
	text := "shipped the billing pipeline"
	notes := []Note{
		{Identifier: "first", Section: SectionWorkExperience, SelectedText: "billing",
			Context: &Context{ParentElement: "responsibility_1"}},
		{Identifier: "second", Section: SectionWorkExperience, SelectedText: "billing",
			Context: &Context{ParentElement: "responsibility_2"}},
		{Identifier: "padded", Section: SectionWorkExperience, SelectedText: "billing",
			Context: &Context{ParentElement: "responsibility_01"}},
	}
	got := NotesFor(notes, SectionWorkExperience, text, "responsibility_1")
	if len(got) != 2 {
		t.Fatalf("expected numeric index matching (1 and 01), got %v", got)
	}
	if got[0].Identifier != "first" || got[1].Identifier != "padded" {
		t.Errorf("got %v", got)
	}
}

func TestNotesForFieldExactMatch(t *testing.T) {
	notes := []Note{
		{Identifier: "dur", Section: SectionWorkExperience, SelectedText: "3 years",
			Context: &Context{ParentElement: "duration"}},
	}
	if got := NotesFor(notes, SectionWorkExperience, "3 years at Acme", "job_title"); len(got) != 0 {
		t.Errorf("field mismatch must exclude the note, got %v", got)
	}
	if got := NotesFor(notes, SectionWorkExperience, "3 years at Acme", "duration"); len(got) != 1 {
		t.Errorf("expected match on duration, got %v", got)
	}
}

func TestNotesForSectionLevelNote(t *testing.T) {
	// A note with no field constraint applies to any field in its section.
	notes := []Note{{Identifier: "loose", Section: SectionSkills, SelectedText: "Go"}}
	if got := NotesFor(notes, SectionSkills, "Go", "name"); len(got) != 1 {
		t.Errorf("section-level note should apply, got %v", got)
	}
}

func TestNotesForContextFilter(t *testing.T) {
	notes := []Note{
		{Identifier: "ctx", Section: SectionProjects, SelectedText: "cache",
			Context: &Context{BeforeText: "distributed "}},
	}
	if got := NotesFor(notes, SectionProjects, "a distributed cache layer", ""); len(got) != 1 {
		t.Errorf("matching context should apply, got %v", got)
	}
	if got := NotesFor(notes, SectionProjects, "a local cache layer", ""); len(got) != 0 {
		t.Errorf("non-matching context should exclude, got %v", got)
	}
}

func TestKnownSection(t *testing.T) {
	if !KnownSection(SectionQualifications) {
		t.Error("qualifications is a known section")
	}
	if KnownSection(Section("hobbies")) {
		t.Error("hobbies is not a known section")
	}
}

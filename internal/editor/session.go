package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"resumark/api/internal/annotate"
	"resumark/api/internal/resume"
)

// State is the editor session's single explicit mode. Exactly one popover
// can be open at a time, so creating and editing are distinct states rather
// than flags.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StatePopoverCreating
	StatePopoverEditing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StatePopoverCreating:
		return "popover-creating"
	case StatePopoverEditing:
		return "popover-editing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNoteTooShort rejects note bodies under the minimum length.
	ErrNoteTooShort = errors.New("note too short")
	// ErrBusy rejects starting a new selection or edit while a popover is
	// already open.
	ErrBusy = errors.New("another note editing session is active")
	// ErrNoPending means a confirm arrived with nothing selected.
	ErrNoPending = errors.New("no pending selection")
)

// Session owns the editor's mutable UI state: the FSM, the pending
// selection, the note store, and the selection debouncer. All methods are
// safe for the single event-loop caller plus timer callbacks.
type Session struct {
	store    *NoteStore
	debounce *Debouncer

	state   State
	pending *PendingSelection
	editing string // identifier of the note being edited
}

func NewSession(store *NoteStore) *Session {
	return &Session{
		store:    store,
		debounce: NewDebouncer(SelectionDebounceDelay),
	}
}

func (s *Session) State() State              { return s.state }
func (s *Session) Pending() *PendingSelection { return s.pending }
func (s *Session) Store() *NoteStore          { return s.store }

// ObserveSelection schedules a capture of the given snapshot after the
// debounce delay, so the toolkit has finished settling the live selection
// by the time it is read. The callback receives the capture outcome.
func (s *Session) ObserveSelection(snap SelectionSnapshot, tree []resume.FieldNode, done func(*PendingSelection, error)) {
	s.debounce.Trigger(func() {
		pending, err := s.CaptureSelection(snap, tree)
		if done != nil {
			done(pending, err)
		}
	})
}

// CaptureSelection validates the snapshot and, on success, publishes the
// pending selection and opens the creation popover. A too-short selection
// clears any pending state; selections are ignored entirely while a popover
// is open.
func (s *Session) CaptureSelection(snap SelectionSnapshot, tree []resume.FieldNode) (*PendingSelection, error) {
	if s.state == StatePopoverCreating || s.state == StatePopoverEditing {
		return nil, ErrBusy
	}
	pending, err := Capture(snap, tree)
	if err != nil {
		if errors.Is(err, ErrSelectionTooShort) {
			s.pending = nil
			s.state = StateIdle
		}
		return nil, err
	}
	s.pending = pending
	s.state = StatePopoverCreating
	return pending, nil
}

// Cancel discards the pending selection or abandons the edit in progress.
// Escape and click-outside both land here. No remote side effects.
func (s *Session) Cancel() {
	s.pending = nil
	s.editing = ""
	s.state = StateIdle
}

// Close shuts the session down; no debounced capture may fire afterwards.
func (s *Session) Close() {
	s.debounce.Stop()
	s.Cancel()
}

// ConfirmCreate turns the pending selection into a persisted note. The
// pending state is cleared on success; on failure it is kept so the user can
// retry or cancel.
func (s *Session) ConfirmCreate(ctx context.Context, body string, att *Attachment) (annotate.Note, error) {
	if s.state != StatePopoverCreating || s.pending == nil {
		return annotate.Note{}, ErrNoPending
	}
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) < MinNoteLength {
		return annotate.Note{}, ErrNoteTooShort
	}

	p := s.pending
	in := CreateInput{
		Identifier:   NewIdentifier(p.Section, p.Text),
		Body:         body,
		Section:      p.Section,
		SelectedText: p.Text,
		Context:      &annotate.Context{BeforeText: p.Context.BeforeText, AfterText: p.Context.AfterText, ParentElement: p.Field},
	}
	note, err := s.store.Create(ctx, in, att)
	if err != nil {
		return note, err
	}
	s.pending = nil
	s.state = StateIdle
	return note, nil
}

// BeginEdit opens the editing popover for an existing note. Only one note
// editing session may be active at a time.
func (s *Session) BeginEdit(identifier string) error {
	if s.state == StatePopoverCreating || s.state == StatePopoverEditing {
		return ErrBusy
	}
	if _, ok := s.store.Get(identifier); !ok {
		return fmt.Errorf("begin edit: no local note %q", identifier)
	}
	s.editing = identifier
	s.state = StatePopoverEditing
	return nil
}

// Editing returns the identifier of the note being edited, if any.
func (s *Session) Editing() (string, bool) {
	return s.editing, s.state == StatePopoverEditing
}

// ConfirmEdit applies the new body (and optional replacement attachment) to
// the note under edit.
func (s *Session) ConfirmEdit(ctx context.Context, body string, att *Attachment) (annotate.Note, error) {
	if s.state != StatePopoverEditing {
		return annotate.Note{}, ErrNoPending
	}
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) < MinNoteLength {
		return annotate.Note{}, ErrNoteTooShort
	}
	note, err := s.store.Update(ctx, s.editing, body, att)
	if err != nil {
		return note, err
	}
	s.editing = ""
	s.state = StateIdle
	return note, nil
}

// DeleteNote removes a note; the underlying text is unaffected. Delete is
// allowed from any state and closes an edit popover targeting the same note.
func (s *Session) DeleteNote(ctx context.Context, identifier string) error {
	if err := s.store.Delete(ctx, identifier); err != nil {
		return err
	}
	if s.editing == identifier {
		s.editing = ""
		s.state = StateIdle
	}
	return nil
}

// RenderField derives the segment sequence for one field on the current
// store contents.
func (s *Session) RenderField(section annotate.Section, fieldText, field string) []annotate.Segment {
	return annotate.Render(fieldText, s.store.ForField(section, fieldText, field))
}

package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"resumark/api/internal/annotate"
)

// ErrNoteUnresolved means a note's server id could not be determined even
// after re-fetching the full list; the operation is abandoned.
var ErrNoteUnresolved = errors.New("note id unresolved")

// Attachment is a file offered alongside a note. At most one per note.
type Attachment struct {
	Filename string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// CreateInput is the payload for a new note.
type CreateInput struct {
	Identifier   string
	Body         string
	Section      annotate.Section
	SelectedText string
	Context      *annotate.Context
}

// NoteService is the remote persistence boundary. Implementations surface
// transport errors as-is; the store never retries.
type NoteService interface {
	CreateNote(ctx context.Context, in CreateInput, att *Attachment) (annotate.Note, error)
	ListNotes(ctx context.Context) ([]annotate.Note, error)
	UpdateNote(ctx context.Context, id, body string, att *Attachment) (annotate.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// NewIdentifier builds the client-generated stable key for a note. The
// format is load-bearing: stored notes use it and it must stay unique per
// note, so the creation timestamp is the disambiguator.
func NewIdentifier(section annotate.Section, selectedText string) string {
	return fmt.Sprintf("%s-%s-%d", section, selectedText, time.Now().UnixMilli())
}

// NoteStore is the local map of notes keyed by identifier, kept in sync with
// the remote service. Completions replace or remove exactly one entry; the
// map is never partially updated. Failed remote calls leave optimistic local
// state in place — reconciliation is the caller's (user's) decision.
type NoteStore struct {
	mu    sync.Mutex
	svc   NoteService
	notes map[string]annotate.Note
	order []string
}

func NewNoteStore(svc NoteService, initial []annotate.Note) *NoteStore {
	s := &NoteStore{svc: svc, notes: make(map[string]annotate.Note)}
	for _, n := range initial {
		s.putLocked(n)
	}
	return s
}

func (s *NoteStore) putLocked(n annotate.Note) {
	if _, seen := s.notes[n.Identifier]; !seen {
		s.order = append(s.order, n.Identifier)
	}
	s.notes[n.Identifier] = n
}

func (s *NoteStore) removeLocked(identifier string) {
	delete(s.notes, identifier)
	for i, id := range s.order {
		if id == identifier {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// All returns the notes in insertion order.
func (s *NoteStore) All() []annotate.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]annotate.Note, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.notes[id])
	}
	return out
}

// Get looks a note up by its identifier.
func (s *NoteStore) Get(identifier string) (annotate.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[identifier]
	return n, ok
}

// ForField returns the notes applicable to one rendered field.
func (s *NoteStore) ForField(section annotate.Section, fieldText, field string) []annotate.Note {
	return annotate.NotesFor(s.All(), section, fieldText, field)
}

// Create persists a new note. An optimistic record appears in the map
// immediately; a create failure surfaces the error and leaves that record
// in place. A success response without a server id is tolerated by
// re-fetching the list and matching on identifier.
func (s *NoteStore) Create(ctx context.Context, in CreateInput, att *Attachment) (annotate.Note, error) {
	optimistic := annotate.Note{
		Identifier:   in.Identifier,
		Body:         in.Body,
		Section:      in.Section,
		SelectedText: in.SelectedText,
		Context:      in.Context,
	}
	s.mu.Lock()
	s.putLocked(optimistic)
	s.mu.Unlock()

	created, err := s.svc.CreateNote(ctx, in, att)
	if err != nil {
		return optimistic, fmt.Errorf("create note: %w", err)
	}
	if created.ID == "" {
		if resolved, err := s.resolveByIdentifier(ctx, in.Identifier); err == nil {
			created = resolved
		}
	}
	if created.Identifier == "" {
		created.Identifier = in.Identifier
	}
	s.mu.Lock()
	s.putLocked(created)
	s.mu.Unlock()
	return created, nil
}

// Update replaces a note's body (and optionally its attachment), preserving
// its identity.
func (s *NoteStore) Update(ctx context.Context, identifier, body string, att *Attachment) (annotate.Note, error) {
	s.mu.Lock()
	current, ok := s.notes[identifier]
	s.mu.Unlock()
	if !ok {
		return annotate.Note{}, fmt.Errorf("update note: no local note %q", identifier)
	}
	id := current.ID
	if id == "" {
		resolved, err := s.resolveByIdentifier(ctx, identifier)
		if err != nil {
			return annotate.Note{}, fmt.Errorf("update note %q: %w", identifier, err)
		}
		id = resolved.ID
	}

	updated, err := s.svc.UpdateNote(ctx, id, body, att)
	if err != nil {
		return current, fmt.Errorf("update note: %w", err)
	}
	if updated.Identifier == "" {
		updated.Identifier = identifier
	}
	s.mu.Lock()
	s.putLocked(updated)
	s.mu.Unlock()
	return updated, nil
}

// Delete removes a note. When the server id was never observed locally the
// store re-fetches the list to resolve it by identifier; a note still absent
// abandons the delete with ErrNoteUnresolved, and a failed re-fetch surfaces
// the fetch error itself. The entry leaves the map only after the remote
// delete succeeds.
func (s *NoteStore) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	current, ok := s.notes[identifier]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	id := current.ID
	if id == "" {
		resolved, err := s.resolveByIdentifier(ctx, identifier)
		if err != nil {
			return fmt.Errorf("delete note %q: %w", identifier, err)
		}
		id = resolved.ID
	}
	if err := s.svc.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	s.mu.Lock()
	s.removeLocked(identifier)
	s.mu.Unlock()
	return nil
}

// Refresh replaces the whole map with the server's current list.
func (s *NoteStore) Refresh(ctx context.Context) error {
	notes, err := s.svc.ListNotes(ctx)
	if err != nil {
		return fmt.Errorf("list notes: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = make(map[string]annotate.Note, len(notes))
	s.order = s.order[:0]
	for _, n := range notes {
		s.putLocked(n)
	}
	return nil
}

// resolveByIdentifier re-fetches the server list to find a note whose id was
// never observed locally. A failed fetch is reported distinctly from a note
// that is genuinely absent, so callers can tell a network error apart from
// an abandoned resolution.
func (s *NoteStore) resolveByIdentifier(ctx context.Context, identifier string) (annotate.Note, error) {
	notes, err := s.svc.ListNotes(ctx)
	if err != nil {
		return annotate.Note{}, fmt.Errorf("list notes: %w", err)
	}
	for _, n := range notes {
		if n.Identifier == identifier && n.ID != "" {
			return n, nil
		}
	}
	return annotate.Note{}, ErrNoteUnresolved
}

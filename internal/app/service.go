package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"resumark/api/internal/annotate"
	"resumark/api/internal/attach"
	"resumark/api/internal/export"
	"resumark/api/internal/history"
	"resumark/api/internal/resume"
	"resumark/api/internal/search"
	"resumark/api/internal/share"
	"resumark/api/internal/store"
	"resumark/api/internal/util"
)

// ResumeDetail is the resume payload served to the editor. Notes ride along
// under get_all_notes so one fetch hydrates the whole annotation layer.
type ResumeDetail struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Data        json.RawMessage `json:"resume_data"`
	GetAllNotes []annotate.Note `json:"get_all_notes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CreateNoteInput struct {
	Identifier   string            `json:"identifier"`
	Note         string            `json:"note"`
	Section      string            `json:"section"`
	SelectedText string            `json:"selected_text"`
	Context      *annotate.Context `json:"context,omitempty"`
}

type UpdateNoteInput struct {
	Note string `json:"note"`
}

type PatchResumeInput struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Author  string `json:"author,omitempty"`
}

type CreateShareInput struct {
	Template string `json:"template,omitempty"`
	Password string `json:"password,omitempty"`
	TTLHours int    `json:"ttl_hours,omitempty"`
}

// ShareLink is the response to a share creation: the opaque token plus the
// path the frontend turns into a copyable URL.
type ShareLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SearchInput struct {
	Query   string
	Resume  string // resume slug; empty = all resumes
	Section string
	Limit   int
	Offset  int
}

var allowedShareTemplates = map[string]struct{}{
	"classic": {},
	"modern":  {},
	"compact": {},
}

type dataStore interface {
	GetResumeBySlug(context.Context, string) (store.Resume, error)
	UpdateResumeData(context.Context, string, []byte) (store.Resume, error)
	InsertNote(context.Context, store.NoteRecord) (store.NoteRecord, error)
	ListNotes(context.Context, string) ([]store.NoteRecord, error)
	GetNote(context.Context, string) (store.NoteRecord, error)
	GetNoteByIdentifier(context.Context, string, string) (store.NoteRecord, error)
	UpdateNote(context.Context, string, string, string, string) (store.NoteRecord, error)
	DeleteNote(context.Context, string) (store.NoteRecord, error)
	Ping(ctx context.Context) error
}

type historyService interface {
	EnsureRepo(string, json.RawMessage, string) error
	CommitSnapshot(string, json.RawMessage, string, string) (history.CommitInfo, error)
	History(string, int) ([]history.CommitInfo, error)
}

type shareService interface {
	CreateLink(context.Context, share.Snapshot, time.Duration, string) (string, error)
	Resolve(context.Context, string, string) (share.Snapshot, error)
	Revoke(context.Context, string) error
}

type searchService interface {
	Search(search.Query) search.Response
	IndexNote(search.NoteRecord)
	DeleteNote(string)
}

type exportService interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type Service struct {
	store    dataStore
	shares   shareService
	searcher searchService
	history  historyService
	exporter exportService
	files    attach.Storage
	shareTTL time.Duration
}

func New(dataStore *store.PostgresStore, shares *share.Service, searcher *search.Service, hist *history.Service, files attach.Storage, shareTTL time.Duration) *Service {
	s := &Service{
		store:    dataStore,
		shares:   shares,
		searcher: searcher,
		history:  hist,
		files:    files,
		shareTTL: shareTTL,
	}
	s.exporter = export.NewService(s)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) GetResume(ctx context.Context, slug string) (ResumeDetail, error) {
	rec, err := s.store.GetResumeBySlug(ctx, slug)
	if err != nil {
		return ResumeDetail{}, err
	}
	notes, err := s.resumeNotes(ctx, rec.ID)
	if err != nil {
		return ResumeDetail{}, err
	}
	return ResumeDetail{
		ID:          rec.ID,
		Slug:        rec.Slug,
		Title:       rec.Title,
		Data:        rec.Data,
		GetAllNotes: notes,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

func (s *Service) PatchResume(ctx context.Context, slug string, input PatchResumeInput) (ResumeDetail, error) {
	if !annotate.KnownSection(annotate.Section(input.Section)) {
		return ResumeDetail{}, domainError(http.StatusBadRequest, "INVALID_SECTION", fmt.Sprintf("Unknown section %q", input.Section), nil)
	}
	rec, err := s.store.GetResumeBySlug(ctx, slug)
	if err != nil {
		return ResumeDetail{}, err
	}
	data, err := resume.Parse(rec.Data)
	if err != nil {
		return ResumeDetail{}, domainError(http.StatusUnprocessableEntity, "INVALID_RESUME_DATA", "Stored resume data cannot be parsed", err.Error())
	}
	patched, err := data.Apply(resume.Patch{
		Section: annotate.Section(input.Section),
		Index:   input.Index,
		Field:   input.Field,
		Value:   input.Value,
	})
	if err != nil {
		return ResumeDetail{}, domainError(http.StatusBadRequest, "INVALID_PATCH", "Patch does not address an editable field", err.Error())
	}
	encoded, err := patched.Encode()
	if err != nil {
		return ResumeDetail{}, fmt.Errorf("encode patched resume: %w", err)
	}
	updated, err := s.store.UpdateResumeData(ctx, rec.ID, encoded)
	if err != nil {
		return ResumeDetail{}, err
	}

	author := strings.TrimSpace(input.Author)
	if author == "" {
		author = "editor"
	}
	if err := s.history.EnsureRepo(rec.ID, rec.Data, author); err != nil {
		log.Printf(`{"event":"history_ensure_failed","resume":"%s","error":"%s"}`, rec.ID, err)
	} else {
		message := fmt.Sprintf("Edit %s.%s", input.Section, input.Field)
		if _, err := s.history.CommitSnapshot(rec.ID, updated.Data, author, message); err != nil {
			log.Printf(`{"event":"history_commit_failed","resume":"%s","error":"%s"}`, rec.ID, err)
		}
	}

	notes, err := s.resumeNotes(ctx, rec.ID)
	if err != nil {
		return ResumeDetail{}, err
	}
	return ResumeDetail{
		ID:          updated.ID,
		Slug:        updated.Slug,
		Title:       updated.Title,
		Data:        updated.Data,
		GetAllNotes: notes,
		CreatedAt:   updated.CreatedAt,
		UpdatedAt:   updated.UpdatedAt,
	}, nil
}

func (s *Service) CreateNote(ctx context.Context, slug string, input CreateNoteInput, upload *attach.Upload) (annotate.Note, error) {
	rec, err := s.store.GetResumeBySlug(ctx, slug)
	if err != nil {
		return annotate.Note{}, err
	}
	if err := validateNoteBody(input.Note); err != nil {
		return annotate.Note{}, err
	}
	if !annotate.KnownSection(annotate.Section(input.Section)) {
		return annotate.Note{}, domainError(http.StatusBadRequest, "INVALID_SECTION", fmt.Sprintf("Unknown section %q", input.Section), nil)
	}
	if strings.TrimSpace(input.SelectedText) == "" {
		return annotate.Note{}, domainError(http.StatusBadRequest, "INVALID_SELECTION", "selected_text is required", nil)
	}
	if upload != nil {
		if err := attach.Validate(upload.MimeType, upload.Size); err != nil {
			return annotate.Note{}, err
		}
	}

	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		identifier = util.NewID("note")
	}
	var contextJSON []byte
	if input.Context != nil {
		contextJSON, err = json.Marshal(input.Context)
		if err != nil {
			return annotate.Note{}, fmt.Errorf("encode note context: %w", err)
		}
	}

	note := store.NoteRecord{
		ID:           util.NewID("note"),
		Identifier:   identifier,
		ResumeID:     rec.ID,
		Section:      input.Section,
		Field:        fieldOf(input.Context),
		SelectedText: input.SelectedText,
		Context:      contextJSON,
		Note:         strings.TrimSpace(input.Note),
	}
	saved, err := s.store.InsertNote(ctx, note)
	if err != nil {
		return annotate.Note{}, err
	}

	if upload != nil {
		key, err := s.files.Put(ctx, saved.ID, *upload)
		if err != nil {
			return annotate.Note{}, fmt.Errorf("store attachment: %w", err)
		}
		saved, err = s.store.UpdateNote(ctx, saved.ID, saved.Note, key, upload.MimeType)
		if err != nil {
			return annotate.Note{}, err
		}
	}

	s.searcher.IndexNote(searchRecord(saved))
	return s.noteView(ctx, saved), nil
}

func (s *Service) UpdateNote(ctx context.Context, id string, input UpdateNoteInput, upload *attach.Upload) (annotate.Note, error) {
	if err := validateNoteBody(input.Note); err != nil {
		return annotate.Note{}, err
	}
	current, err := s.store.GetNote(ctx, id)
	if err != nil {
		return annotate.Note{}, err
	}

	fileKey, fileType := "", ""
	if upload != nil {
		if err := attach.Validate(upload.MimeType, upload.Size); err != nil {
			return annotate.Note{}, err
		}
		fileKey, err = s.files.Put(ctx, current.ID, *upload)
		if err != nil {
			return annotate.Note{}, fmt.Errorf("store attachment: %w", err)
		}
		fileType = upload.MimeType
	}

	saved, err := s.store.UpdateNote(ctx, id, strings.TrimSpace(input.Note), fileKey, fileType)
	if err != nil {
		return annotate.Note{}, err
	}
	if upload != nil && current.FileURL != "" && current.FileURL != fileKey {
		if err := s.files.Remove(ctx, current.FileURL); err != nil {
			log.Printf(`{"event":"attachment_remove_failed","note":"%s","error":"%s"}`, id, err)
		}
	}

	s.searcher.IndexNote(searchRecord(saved))
	return s.noteView(ctx, saved), nil
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteNote(ctx, id)
	if err != nil {
		return err
	}
	s.searcher.DeleteNote(deleted.ID)
	if deleted.FileURL != "" {
		// Best effort: an orphaned object must not resurrect the note.
		if err := s.files.Remove(ctx, deleted.FileURL); err != nil {
			log.Printf(`{"event":"attachment_remove_failed","note":"%s","error":"%s"}`, id, err)
		}
	}
	return nil
}

func (s *Service) CreateShare(ctx context.Context, slug string, input CreateShareInput) (ShareLink, error) {
	template := input.Template
	if template == "" {
		template = "classic"
	}
	if _, ok := allowedShareTemplates[template]; !ok {
		return ShareLink{}, domainError(http.StatusBadRequest, "INVALID_TEMPLATE", fmt.Sprintf("Unknown share template %q", input.Template), nil)
	}
	rec, err := s.store.GetResumeBySlug(ctx, slug)
	if err != nil {
		return ShareLink{}, err
	}
	notes, err := s.resumeNotes(ctx, rec.ID)
	if err != nil {
		return ShareLink{}, err
	}

	ttl := s.shareTTL
	if ttl <= 0 {
		ttl = share.DefaultTTL
	}
	if input.TTLHours > 0 {
		ttl = time.Duration(input.TTLHours) * time.Hour
	}
	snap := share.Snapshot{
		Slug:      rec.Slug,
		Title:     rec.Title,
		Template:  template,
		Data:      rec.Data,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
	token, err := s.shares.CreateLink(ctx, snap, ttl, input.Password)
	if err != nil {
		return ShareLink{}, err
	}
	return ShareLink{
		Token:     token,
		URL:       "/share/" + token,
		ExpiresAt: snap.CreatedAt.Add(ttl),
	}, nil
}

func (s *Service) ResolveShare(ctx context.Context, token, password string) (share.Snapshot, error) {
	return s.shares.Resolve(ctx, token, password)
}

func (s *Service) RevokeShare(ctx context.Context, token string) error {
	return s.shares.Revoke(ctx, token)
}

func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.exporter.Export(ctx, req)
}

// ResumeForExport feeds the export renderer the same note set the editor
// renders, so the PDF highlights exactly what the screen highlights.
func (s *Service) ResumeForExport(ctx context.Context, slug string) (string, resume.Data, []annotate.Note, error) {
	rec, err := s.store.GetResumeBySlug(ctx, slug)
	if err != nil {
		return "", resume.Data{}, nil, err
	}
	data, err := resume.Parse(rec.Data)
	if err != nil {
		return "", resume.Data{}, nil, domainError(http.StatusUnprocessableEntity, "INVALID_RESUME_DATA", "Stored resume data cannot be parsed", err.Error())
	}
	notes, err := s.resumeNotes(ctx, rec.ID)
	if err != nil {
		return "", resume.Data{}, nil, err
	}
	return rec.Title, data, notes, nil
}

func (s *Service) History(ctx context.Context, slug string, limit int) ([]history.CommitInfo, error) {
	rec, err := s.store.GetResumeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	commits, err := s.history.History(rec.ID, limit)
	if err != nil {
		if errors.Is(err, history.ErrNoHistory) {
			return []history.CommitInfo{}, nil
		}
		return nil, err
	}
	return commits, nil
}

func (s *Service) Search(ctx context.Context, input SearchInput) (search.Response, error) {
	query := search.Query{
		Text:          input.Query,
		FilterSection: input.Section,
		Limit:         input.Limit,
		Offset:        input.Offset,
	}
	if input.Resume != "" {
		rec, err := s.store.GetResumeBySlug(ctx, input.Resume)
		if err != nil {
			return search.Response{}, err
		}
		query.FilterResume = rec.ID
	}
	return s.searcher.Search(query), nil
}

func (s *Service) resumeNotes(ctx context.Context, resumeID string) ([]annotate.Note, error) {
	records, err := s.store.ListNotes(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	notes := make([]annotate.Note, 0, len(records))
	for _, rec := range records {
		notes = append(notes, s.noteView(ctx, rec))
	}
	return notes, nil
}

// noteView converts a stored record into its wire form. Attachment keys are
// swapped for presigned URLs here rather than at write time so links never
// outlive their signatures.
func (s *Service) noteView(ctx context.Context, rec store.NoteRecord) annotate.Note {
	note := annotate.Note{
		ID:           rec.ID,
		Identifier:   rec.Identifier,
		Body:         rec.Note,
		Section:      annotate.Section(rec.Section),
		SelectedText: rec.SelectedText,
		FileMimeType: rec.FileMimeType,
	}
	if len(rec.Context) > 0 {
		var c annotate.Context
		if err := json.Unmarshal(rec.Context, &c); err == nil {
			note.Context = &c
		}
	}
	if rec.FileURL != "" {
		url, err := s.files.URL(ctx, rec.FileURL)
		if err != nil {
			log.Printf(`{"event":"attachment_url_failed","note":"%s","error":"%s"}`, rec.ID, err)
			url = rec.FileURL
		}
		note.FileURL = url
	}
	return note
}

func validateNoteBody(body string) error {
	if utf8.RuneCountInString(strings.TrimSpace(body)) < 2 {
		return domainError(http.StatusBadRequest, "NOTE_TOO_SHORT", "Note must be at least 2 characters", map[string]string{"field": "note"})
	}
	return nil
}

func fieldOf(c *annotate.Context) string {
	if c == nil {
		return ""
	}
	return c.ParentElement
}

func searchRecord(rec store.NoteRecord) search.NoteRecord {
	return search.NoteRecord{
		ID:           rec.ID,
		Identifier:   rec.Identifier,
		ResumeID:     rec.ResumeID,
		Section:      rec.Section,
		Field:        rec.Field,
		SelectedText: rec.SelectedText,
		Note:         rec.Note,
	}
}

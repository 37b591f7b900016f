package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"resumark/api/internal/annotate"
	"resumark/api/internal/attach"
	"resumark/api/internal/export"
	"resumark/api/internal/history"
	"resumark/api/internal/search"
	"resumark/api/internal/share"
	"resumark/api/internal/store"
)

const sampleResumeJSON = `{
	"personal_info": {"name": "Ada Lannister", "email": "ada@example.com"},
	"qualifications": [{"title": "BSc", "description": "Computer Science"}],
	"skills": [{"name": "Go"}],
	"work_experience": [{
		"company_name": "Initech",
		"job_title": "Engineer",
		"duration": "approx 3 years exp",
		"key_responsbilities": ["shipped the billing pipeline"]
	}],
	"projects": []
}`

type fakeStore struct {
	getResumeBySlugFn     func(ctx context.Context, slug string) (store.Resume, error)
	updateResumeDataFn    func(ctx context.Context, id string, data []byte) (store.Resume, error)
	insertNoteFn          func(ctx context.Context, n store.NoteRecord) (store.NoteRecord, error)
	listNotesFn           func(ctx context.Context, resumeID string) ([]store.NoteRecord, error)
	getNoteFn             func(ctx context.Context, id string) (store.NoteRecord, error)
	getNoteByIdentifierFn func(ctx context.Context, resumeID, identifier string) (store.NoteRecord, error)
	updateNoteFn          func(ctx context.Context, id, note, fileURL, fileMimeType string) (store.NoteRecord, error)
	deleteNoteFn          func(ctx context.Context, id string) (store.NoteRecord, error)
	pingFn                func(ctx context.Context) error
}

func (f *fakeStore) GetResumeBySlug(ctx context.Context, slug string) (store.Resume, error) {
	if f.getResumeBySlugFn == nil {
		return store.Resume{}, sql.ErrNoRows
	}
	return f.getResumeBySlugFn(ctx, slug)
}

func (f *fakeStore) UpdateResumeData(ctx context.Context, id string, data []byte) (store.Resume, error) {
	if f.updateResumeDataFn == nil {
		return store.Resume{}, sql.ErrNoRows
	}
	return f.updateResumeDataFn(ctx, id, data)
}

func (f *fakeStore) InsertNote(ctx context.Context, n store.NoteRecord) (store.NoteRecord, error) {
	if f.insertNoteFn == nil {
		return n, nil
	}
	return f.insertNoteFn(ctx, n)
}

func (f *fakeStore) ListNotes(ctx context.Context, resumeID string) ([]store.NoteRecord, error) {
	if f.listNotesFn == nil {
		return nil, nil
	}
	return f.listNotesFn(ctx, resumeID)
}

func (f *fakeStore) GetNote(ctx context.Context, id string) (store.NoteRecord, error) {
	if f.getNoteFn == nil {
		return store.NoteRecord{}, sql.ErrNoRows
	}
	return f.getNoteFn(ctx, id)
}

func (f *fakeStore) GetNoteByIdentifier(ctx context.Context, resumeID, identifier string) (store.NoteRecord, error) {
	if f.getNoteByIdentifierFn == nil {
		return store.NoteRecord{}, sql.ErrNoRows
	}
	return f.getNoteByIdentifierFn(ctx, resumeID, identifier)
}

func (f *fakeStore) UpdateNote(ctx context.Context, id, note, fileURL, fileMimeType string) (store.NoteRecord, error) {
	if f.updateNoteFn == nil {
		return store.NoteRecord{}, sql.ErrNoRows
	}
	return f.updateNoteFn(ctx, id, note, fileURL, fileMimeType)
}

func (f *fakeStore) DeleteNote(ctx context.Context, id string) (store.NoteRecord, error) {
	if f.deleteNoteFn == nil {
		return store.NoteRecord{}, sql.ErrNoRows
	}
	return f.deleteNoteFn(ctx, id)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		return nil
	}
	return f.pingFn(ctx)
}

type fakeShares struct {
	createLinkFn func(ctx context.Context, snap share.Snapshot, ttl time.Duration, password string) (string, error)
	resolveFn    func(ctx context.Context, token, password string) (share.Snapshot, error)
	revokeFn     func(ctx context.Context, token string) error
}

func (f *fakeShares) CreateLink(ctx context.Context, snap share.Snapshot, ttl time.Duration, password string) (string, error) {
	if f.createLinkFn == nil {
		return "tok", nil
	}
	return f.createLinkFn(ctx, snap, ttl, password)
}

func (f *fakeShares) Resolve(ctx context.Context, token, password string) (share.Snapshot, error) {
	if f.resolveFn == nil {
		return share.Snapshot{}, share.ErrNotFound
	}
	return f.resolveFn(ctx, token, password)
}

func (f *fakeShares) Revoke(ctx context.Context, token string) error {
	if f.revokeFn == nil {
		return nil
	}
	return f.revokeFn(ctx, token)
}

type fakeSearch struct {
	indexed  []search.NoteRecord
	deleted  []string
	response search.Response
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	resp := f.response
	resp.Query = q.Text
	if resp.Results == nil {
		resp.Results = []search.Result{}
	}
	return resp
}

func (f *fakeSearch) IndexNote(n search.NoteRecord) { f.indexed = append(f.indexed, n) }
func (f *fakeSearch) DeleteNote(id string)          { f.deleted = append(f.deleted, id) }

type fakeHistory struct {
	ensured []string
	commits []string
	listFn  func(resumeID string, limit int) ([]history.CommitInfo, error)
}

func (f *fakeHistory) EnsureRepo(resumeID string, initial json.RawMessage, author string) error {
	f.ensured = append(f.ensured, resumeID)
	return nil
}

func (f *fakeHistory) CommitSnapshot(resumeID string, data json.RawMessage, author, message string) (history.CommitInfo, error) {
	f.commits = append(f.commits, message)
	return history.CommitInfo{Hash: "abc1234", Message: message, Author: author}, nil
}

func (f *fakeHistory) History(resumeID string, limit int) ([]history.CommitInfo, error) {
	if f.listFn == nil {
		return nil, history.ErrNoHistory
	}
	return f.listFn(resumeID, limit)
}

type fakeFiles struct {
	putFn    func(ctx context.Context, noteID string, up attach.Upload) (string, error)
	removed  []string
	urlCalls []string
}

func (f *fakeFiles) Put(ctx context.Context, noteID string, up attach.Upload) (string, error) {
	if f.putFn == nil {
		return "notes/" + noteID + "/file", nil
	}
	return f.putFn(ctx, noteID, up)
}

func (f *fakeFiles) URL(ctx context.Context, key string) (string, error) {
	f.urlCalls = append(f.urlCalls, key)
	return "https://files.example.com/" + key, nil
}

func (f *fakeFiles) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type fakeExporter struct {
	exportFn func(ctx context.Context, req export.Request) (*export.Result, error)
}

func (f *fakeExporter) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	if f.exportFn == nil {
		return &export.Result{Data: []byte("%PDF-1.4 fake"), Filename: req.Slug + ".pdf", MimeType: "application/pdf"}, nil
	}
	return f.exportFn(ctx, req)
}

type testDeps struct {
	store    *fakeStore
	shares   *fakeShares
	searcher *fakeSearch
	history  *fakeHistory
	files    *fakeFiles
	exporter *fakeExporter
}

func sampleResume() store.Resume {
	return store.Resume{
		ID:        "res_1",
		Slug:      "ada-lannister",
		Title:     "Ada Lannister",
		Data:      json.RawMessage(sampleResumeJSON),
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newTestService() (*Service, *testDeps) {
	deps := &testDeps{
		store: &fakeStore{
			getResumeBySlugFn: func(ctx context.Context, slug string) (store.Resume, error) {
				if slug != "ada-lannister" {
					return store.Resume{}, sql.ErrNoRows
				}
				return sampleResume(), nil
			},
		},
		shares:   &fakeShares{},
		searcher: &fakeSearch{},
		history:  &fakeHistory{},
		files:    &fakeFiles{},
		exporter: &fakeExporter{},
	}
	svc := &Service{
		store:    deps.store,
		shares:   deps.shares,
		searcher: deps.searcher,
		history:  deps.history,
		exporter: deps.exporter,
		files:    deps.files,
	}
	return svc, deps
}

func TestGetResumeIncludesNotes(t *testing.T) {
	svc, deps := newTestService()
	deps.store.listNotesFn = func(ctx context.Context, resumeID string) ([]store.NoteRecord, error) {
		if resumeID != "res_1" {
			t.Fatalf("listed notes for %q", resumeID)
		}
		return []store.NoteRecord{{
			ID:           "note_1",
			Identifier:   "cli_1",
			ResumeID:     resumeID,
			Section:      "work_experience",
			SelectedText: "billing pipeline",
			Context:      json.RawMessage(`{"parentElement":"responsibility_1"}`),
			Note:         "ask about scale",
		}}, nil
	}

	detail, err := svc.GetResume(context.Background(), "ada-lannister")
	if err != nil {
		t.Fatalf("GetResume: %v", err)
	}
	if detail.Slug != "ada-lannister" || detail.ID != "res_1" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if len(detail.GetAllNotes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(detail.GetAllNotes))
	}
	note := detail.GetAllNotes[0]
	if note.Section != annotate.SectionWorkExperience {
		t.Fatalf("section = %q", note.Section)
	}
	if note.Context == nil || note.Context.ParentElement != "responsibility_1" {
		t.Fatalf("context not decoded: %+v", note.Context)
	}
}

func TestGetResumeUnknownSlug(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.GetResume(context.Background(), "nobody"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestPatchResumeUpdatesAndCommits(t *testing.T) {
	svc, deps := newTestService()
	deps.store.updateResumeDataFn = func(ctx context.Context, id string, data []byte) (store.Resume, error) {
		if id != "res_1" {
			t.Fatalf("update for %q", id)
		}
		if !strings.Contains(string(data), "Staff Engineer") {
			t.Fatalf("patched data missing value: %s", data)
		}
		updated := sampleResume()
		updated.Data = data
		return updated, nil
	}

	detail, err := svc.PatchResume(context.Background(), "ada-lannister", PatchResumeInput{
		Section: "work_experience",
		Index:   0,
		Field:   "job_title",
		Value:   "Staff Engineer",
		Author:  "Ada",
	})
	if err != nil {
		t.Fatalf("PatchResume: %v", err)
	}
	if !strings.Contains(string(detail.Data), "Staff Engineer") {
		t.Fatalf("detail data missing value")
	}
	if len(deps.history.ensured) != 1 || deps.history.ensured[0] != "res_1" {
		t.Fatalf("repo not ensured: %v", deps.history.ensured)
	}
	if len(deps.history.commits) != 1 || deps.history.commits[0] != "Edit work_experience.job_title" {
		t.Fatalf("commit messages = %v", deps.history.commits)
	}
}

func TestPatchResumeRejectsUnknownSection(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.PatchResume(context.Background(), "ada-lannister", PatchResumeInput{
		Section: "hobbies", Field: "name", Value: "chess",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_SECTION" {
		t.Fatalf("expected INVALID_SECTION, got %v", err)
	}
}

func TestPatchResumeRejectsBadField(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.PatchResume(context.Background(), "ada-lannister", PatchResumeInput{
		Section: "work_experience", Index: 0, Field: "salary", Value: "1",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_PATCH" {
		t.Fatalf("expected INVALID_PATCH, got %v", err)
	}
}

func TestPatchResumeUnparseableData(t *testing.T) {
	svc, deps := newTestService()
	deps.store.getResumeBySlugFn = func(ctx context.Context, slug string) (store.Resume, error) {
		rec := sampleResume()
		rec.Data = json.RawMessage(`{broken`)
		return rec, nil
	}
	_, err := svc.PatchResume(context.Background(), "ada-lannister", PatchResumeInput{
		Section: "skills", Index: 0, Value: "Rust",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_RESUME_DATA" {
		t.Fatalf("expected INVALID_RESUME_DATA, got %v", err)
	}
}

func TestCreateNoteIndexesForSearch(t *testing.T) {
	svc, deps := newTestService()
	note, err := svc.CreateNote(context.Background(), "ada-lannister", CreateNoteInput{
		Identifier:   "cli_9",
		Note:         "ask about scale",
		Section:      "work_experience",
		SelectedText: "billing pipeline",
		Context:      &annotate.Context{BeforeText: "shipped the ", ParentElement: "responsibility_1"},
	}, nil)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.ID == "" || note.Identifier != "cli_9" {
		t.Fatalf("unexpected note %+v", note)
	}
	if len(deps.searcher.indexed) != 1 {
		t.Fatalf("expected 1 indexed record, got %d", len(deps.searcher.indexed))
	}
	if deps.searcher.indexed[0].Field != "responsibility_1" {
		t.Fatalf("indexed field = %q", deps.searcher.indexed[0].Field)
	}
}

func TestCreateNoteTooShort(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateNote(context.Background(), "ada-lannister", CreateNoteInput{
		Note: " a ", Section: "skills", SelectedText: "Go",
	}, nil)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOTE_TOO_SHORT" {
		t.Fatalf("expected NOTE_TOO_SHORT, got %v", err)
	}
}

func TestCreateNoteGeneratesIdentifier(t *testing.T) {
	svc, _ := newTestService()
	note, err := svc.CreateNote(context.Background(), "ada-lannister", CreateNoteInput{
		Note: "check this", Section: "skills", SelectedText: "Go",
	}, nil)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if !strings.HasPrefix(note.Identifier, "note_") {
		t.Fatalf("identifier = %q", note.Identifier)
	}
}

func TestCreateNoteWithAttachment(t *testing.T) {
	svc, deps := newTestService()
	deps.store.updateNoteFn = func(ctx context.Context, id, note, fileURL, fileMimeType string) (store.NoteRecord, error) {
		return store.NoteRecord{
			ID: id, Identifier: "cli_9", ResumeID: "res_1", Section: "skills",
			SelectedText: "Go", Note: note, FileURL: fileURL, FileMimeType: fileMimeType,
		}, nil
	}

	up := &attach.Upload{
		Filename: "offer.pdf",
		MimeType: "application/pdf",
		Size:     1024,
		Reader:   io.NopCloser(strings.NewReader("%PDF-1.4 fake")),
	}
	note, err := svc.CreateNote(context.Background(), "ada-lannister", CreateNoteInput{
		Identifier: "cli_9", Note: "see offer", Section: "skills", SelectedText: "Go",
	}, up)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if !strings.HasPrefix(note.FileURL, "https://files.example.com/notes/") {
		t.Fatalf("file url = %q", note.FileURL)
	}
	if note.FileMimeType != "application/pdf" {
		t.Fatalf("mime = %q", note.FileMimeType)
	}
}

func TestCreateNoteRejectsBadAttachment(t *testing.T) {
	svc, _ := newTestService()
	up := &attach.Upload{Filename: "v.zip", MimeType: "application/zip", Size: 10}
	_, err := svc.CreateNote(context.Background(), "ada-lannister", CreateNoteInput{
		Note: "see file", Section: "skills", SelectedText: "Go",
	}, up)
	if !errors.Is(err, attach.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestUpdateNoteReindexes(t *testing.T) {
	svc, deps := newTestService()
	deps.store.getNoteFn = func(ctx context.Context, id string) (store.NoteRecord, error) {
		return store.NoteRecord{ID: id, Identifier: "cli_1", ResumeID: "res_1", Note: "old"}, nil
	}
	deps.store.updateNoteFn = func(ctx context.Context, id, note, fileURL, fileMimeType string) (store.NoteRecord, error) {
		return store.NoteRecord{ID: id, Identifier: "cli_1", ResumeID: "res_1", Note: note}, nil
	}

	note, err := svc.UpdateNote(context.Background(), "note_1", UpdateNoteInput{Note: "revised body"}, nil)
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if note.Body != "revised body" {
		t.Fatalf("body = %q", note.Body)
	}
	if len(deps.searcher.indexed) != 1 {
		t.Fatalf("expected reindex, got %d", len(deps.searcher.indexed))
	}
}

func TestUpdateNoteReplacingAttachmentRemovesOld(t *testing.T) {
	svc, deps := newTestService()
	deps.store.getNoteFn = func(ctx context.Context, id string) (store.NoteRecord, error) {
		return store.NoteRecord{ID: id, Identifier: "cli_1", ResumeID: "res_1", Note: "old", FileURL: "notes/note_1/old"}, nil
	}
	deps.store.updateNoteFn = func(ctx context.Context, id, note, fileURL, fileMimeType string) (store.NoteRecord, error) {
		return store.NoteRecord{ID: id, Identifier: "cli_1", ResumeID: "res_1", Note: note, FileURL: fileURL, FileMimeType: fileMimeType}, nil
	}

	up := &attach.Upload{Filename: "new.png", MimeType: "image/png", Size: 512, Reader: strings.NewReader("png")}
	if _, err := svc.UpdateNote(context.Background(), "note_1", UpdateNoteInput{Note: "new body"}, up); err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if len(deps.files.removed) != 1 || deps.files.removed[0] != "notes/note_1/old" {
		t.Fatalf("removed = %v", deps.files.removed)
	}
}

func TestDeleteNoteDeindexesAndRemovesAttachment(t *testing.T) {
	svc, deps := newTestService()
	deps.store.deleteNoteFn = func(ctx context.Context, id string) (store.NoteRecord, error) {
		return store.NoteRecord{ID: id, FileURL: "notes/note_1/file.pdf"}, nil
	}

	if err := svc.DeleteNote(context.Background(), "note_1"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if len(deps.searcher.deleted) != 1 || deps.searcher.deleted[0] != "note_1" {
		t.Fatalf("deindexed = %v", deps.searcher.deleted)
	}
	if len(deps.files.removed) != 1 || deps.files.removed[0] != "notes/note_1/file.pdf" {
		t.Fatalf("removed = %v", deps.files.removed)
	}
}

func TestDeleteNoteUnknownID(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.DeleteNote(context.Background(), "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestCreateShareSnapshotsResume(t *testing.T) {
	svc, deps := newTestService()
	var captured share.Snapshot
	var capturedTTL time.Duration
	deps.shares.createLinkFn = func(ctx context.Context, snap share.Snapshot, ttl time.Duration, password string) (string, error) {
		captured = snap
		capturedTTL = ttl
		if password != "hunter2" {
			t.Fatalf("password = %q", password)
		}
		return "tok123", nil
	}

	link, err := svc.CreateShare(context.Background(), "ada-lannister", CreateShareInput{
		Template: "modern", Password: "hunter2", TTLHours: 48,
	})
	if err != nil {
		t.Fatalf("CreateShare: %v", err)
	}
	if link.Token != "tok123" || link.URL != "/share/tok123" {
		t.Fatalf("link = %+v", link)
	}
	if captured.Slug != "ada-lannister" || captured.Template != "modern" {
		t.Fatalf("snapshot = %+v", captured)
	}
	if capturedTTL != 48*time.Hour {
		t.Fatalf("ttl = %v", capturedTTL)
	}
}

func TestCreateShareRejectsUnknownTemplate(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateShare(context.Background(), "ada-lannister", CreateShareInput{Template: "sparkly"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_TEMPLATE" {
		t.Fatalf("expected INVALID_TEMPLATE, got %v", err)
	}
}

func TestHistoryEmptyForUntouchedResume(t *testing.T) {
	svc, _ := newTestService()
	commits, err := svc.History(context.Background(), "ada-lannister", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(commits) != 0 {
		t.Fatalf("expected no commits, got %d", len(commits))
	}
}

func TestSearchResolvesResumeSlugToFilter(t *testing.T) {
	svc, deps := newTestService()
	deps.searcher.response = search.Response{
		Results: []search.Result{{ID: "note_1", Snippet: "ask about <mark>scale</mark>"}},
		Total:   1,
	}

	resp, err := svc.Search(context.Background(), SearchInput{Query: "scale", Resume: "ada-lannister"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 || resp.Query != "scale" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestSearchUnknownResumeSlug(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Search(context.Background(), SearchInput{Query: "x", Resume: "nobody"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const resumeColumns = `id, slug, title, data, created_at, updated_at`

func scanResume(row *sql.Row) (Resume, error) {
	var r Resume
	err := row.Scan(&r.ID, &r.Slug, &r.Title, &r.Data, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *PostgresStore) InsertResume(ctx context.Context, r Resume) (Resume, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO resumes (id, slug, title, data)
		VALUES ($1, $2, $3, $4)
		RETURNING `+resumeColumns,
		r.ID, r.Slug, r.Title, r.Data)
	inserted, err := scanResume(row)
	if err != nil {
		return Resume{}, fmt.Errorf("insert resume: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetResumeBySlug(ctx context.Context, slug string) (Resume, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE slug=$1`, slug)
	return scanResume(row)
}

func (s *PostgresStore) GetResumeByID(ctx context.Context, id string) (Resume, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id=$1`, id)
	return scanResume(row)
}

// UpdateResumeData replaces a resume's document blob.
func (s *PostgresStore) UpdateResumeData(ctx context.Context, id string, data []byte) (Resume, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE resumes SET data=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+resumeColumns,
		id, data)
	return scanResume(row)
}

const noteColumns = `id, identifier, resume_id, section, field, selected_text,
	context, note, note_file, note_file_type, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (NoteRecord, error) {
	var n NoteRecord
	var context sql.NullString
	var fileURL, fileType sql.NullString
	err := row.Scan(&n.ID, &n.Identifier, &n.ResumeID, &n.Section, &n.Field,
		&n.SelectedText, &context, &n.Note, &fileURL, &fileType,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return NoteRecord{}, err
	}
	if context.Valid {
		n.Context = []byte(context.String)
	}
	n.FileURL = fileURL.String
	n.FileMimeType = fileType.String
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PostgresStore) InsertNote(ctx context.Context, n NoteRecord) (NoteRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (id, identifier, resume_id, section, field, selected_text, context, note, note_file, note_file_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+noteColumns,
		n.ID, n.Identifier, n.ResumeID, n.Section, n.Field, n.SelectedText,
		nullableJSON(n.Context), n.Note, nullable(n.FileURL), nullable(n.FileMimeType))
	inserted, err := scanNote(row)
	if err != nil {
		return NoteRecord{}, fmt.Errorf("insert note: %w", err)
	}
	return inserted, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (s *PostgresStore) GetNote(ctx context.Context, id string) (NoteRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id=$1`, id)
	return scanNote(row)
}

func (s *PostgresStore) GetNoteByIdentifier(ctx context.Context, resumeID, identifier string) (NoteRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE resume_id=$1 AND identifier=$2`, resumeID, identifier)
	return scanNote(row)
}

// ListNotes returns a resume's notes oldest first, matching the order the
// editor shows them in.
func (s *PostgresStore) ListNotes(ctx context.Context, resumeID string) ([]NoteRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE resume_id=$1 ORDER BY created_at ASC, id ASC`, resumeID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []NoteRecord
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// UpdateNote replaces a note's text and, when the file columns are set,
// its attachment. Identity columns never change.
func (s *PostgresStore) UpdateNote(ctx context.Context, id, note, fileURL, fileMimeType string) (NoteRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notes
		SET note=$2,
			note_file=COALESCE($3, note_file),
			note_file_type=COALESCE($4, note_file_type),
			updated_at=NOW()
		WHERE id=$1
		RETURNING `+noteColumns,
		id, note, nullable(fileURL), nullable(fileMimeType))
	return scanNote(row)
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id string) (NoteRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM notes WHERE id=$1 RETURNING `+noteColumns, id)
	return scanNote(row)
}

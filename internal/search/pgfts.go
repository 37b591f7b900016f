package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches notes with plainto_tsquery and ranks with ts_rank; snippets
// come from ts_headline over the note body.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	where := "n.fts @@ " + tsQuery
	if q.FilterResume != "" {
		where += fmt.Sprintf(" AND n.resume_id = $%d", argN)
		args = append(args, q.FilterResume)
		argN++
	}
	if q.FilterSection != "" {
		where += fmt.Sprintf(" AND n.section = $%d", argN)
		args = append(args, q.FilterSection)
		argN++
	}

	countSQL := fmt.Sprintf(`SELECT count(*) FROM notes n WHERE %s`, where)
	dataSQL := fmt.Sprintf(`
		SELECT n.id, n.identifier, n.resume_id, n.section, n.field, n.selected_text,
			ts_headline('english', coalesce(n.note, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM notes n
		WHERE %s
		ORDER BY ts_rank(n.fts, %s) DESC
		LIMIT %d OFFSET %d`,
		tsQuery, where, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Identifier, &r.ResumeID, &r.Section, &r.Field, &r.SelectedText, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every note for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]NoteRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, identifier, resume_id, section, field, selected_text, note
		FROM notes
	`)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	defer rows.Close()

	notes := make([]NoteRecord, 0)
	for rows.Next() {
		var n NoteRecord
		if err := rows.Scan(&n.ID, &n.Identifier, &n.ResumeID, &n.Section, &n.Field, &n.SelectedText, &n.Note); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

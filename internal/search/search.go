// Package search finds notes by their text. Meilisearch serves queries when
// it is reachable; PostgreSQL full-text search answers otherwise, so search
// never goes fully dark while the database is up.
package search

// Result is a single note hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	Identifier   string `json:"identifier"`
	ResumeID     string `json:"resumeId"`
	Section      string `json:"section"`
	Field        string `json:"field"`
	SelectedText string `json:"selectedText"`
	Snippet      string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterResume  string // resume id; empty = all resumes
	FilterSection string // section name; empty = all sections
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// NoteRecord is the data indexed for one note.
type NoteRecord struct {
	ID           string `json:"id"`
	Identifier   string `json:"identifier"`
	ResumeID     string `json:"resumeId"`
	Section      string `json:"section"`
	Field        string `json:"field"`
	SelectedText string `json:"selectedText"`
	Note         string `json:"note"`
}

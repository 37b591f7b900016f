package store

import (
	"encoding/json"
	"time"
)

// Resume is one stored resume. Data holds the structured resume document
// as it came from the parser, verbatim.
type Resume struct {
	ID        string
	Slug      string
	Title     string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteRecord is one stored annotation. Identifier is the client-generated
// key, unique per resume; Context is the anchor context blob as JSON.
type NoteRecord struct {
	ID           string
	Identifier   string
	ResumeID     string
	Section      string
	Field        string
	SelectedText string
	Context      json.RawMessage
	Note         string
	FileURL      string
	FileMimeType string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

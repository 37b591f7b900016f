// Package export renders a resume, highlights and all, to PDF through
// headless Chrome.
package export

import "errors"

// Format is the export output format.
type Format string

const FormatPDF Format = "pdf"

// Request contains parameters for an export operation.
type Request struct {
	Slug         string
	Format       Format
	IncludeNotes bool // append the note bodies after the resume
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies
	// are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates the requested format is not offered.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

package export

import (
	"context"
	"fmt"

	"resumark/api/internal/annotate"
	"resumark/api/internal/resume"
)

// DataStore is the slice of storage the exporter needs.
type DataStore interface {
	ResumeForExport(ctx context.Context, slug string) (title string, data resume.Data, notes []annotate.Note, err error)
}

// Service renders resumes to downloadable files.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	title, data, notes, err := s.store.ResumeForExport(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}

	htmlDoc, err := RenderResumeHTML(BuildTemplateData(data, notes, req.IncludeNotes))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(htmlDoc, title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

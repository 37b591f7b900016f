package export

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"resumark/api/internal/annotate"
	"resumark/api/internal/resume"
)

// TemplateData holds data for resume template rendering. Field values are
// pre-rendered HTML with highlight marks already applied.
type TemplateData struct {
	Name     string
	Meta     []template.HTML
	Sections []TemplateSection
	Notes    []TemplateNote
}

type TemplateSection struct {
	Heading string
	Blocks  []TemplateBlock
}

// TemplateBlock is one entry within a section: a work position, a project,
// a qualification, or the flat skill list.
type TemplateBlock struct {
	Title    template.HTML
	Subtitle template.HTML
	Lines    []template.HTML
	Items    []template.HTML
}

type TemplateNote struct {
	Section      string
	SelectedText string
	Body         string
}

// BuildTemplateData renders every resume field with its applicable notes
// highlighted.
func BuildTemplateData(data resume.Data, notes []annotate.Note, includeNotes bool) TemplateData {
	mark := func(section annotate.Section, fieldText, field string) template.HTML {
		return renderField(fieldText, annotate.NotesFor(notes, section, fieldText, field))
	}

	td := TemplateData{Name: data.PersonalInfo.Name}

	for _, meta := range []struct{ field, text string }{
		{"email", data.PersonalInfo.Email},
		{"contact_no", data.PersonalInfo.ContactNo},
		{"linkedin", data.PersonalInfo.LinkedIn},
		{"github", data.PersonalInfo.GitHub},
		{"website", data.PersonalInfo.Website},
	} {
		if skippable(meta.text) {
			continue
		}
		td.Meta = append(td.Meta, mark(annotate.SectionPersonalInfo, meta.text, meta.field))
	}

	if len(data.Skills) > 0 {
		block := TemplateBlock{}
		for _, skill := range data.Skills {
			if skippable(skill.Name) {
				continue
			}
			block.Items = append(block.Items, mark(annotate.SectionSkills, skill.Name, "name"))
		}
		if len(block.Items) > 0 {
			td.Sections = append(td.Sections, TemplateSection{
				Heading: "Skills",
				Blocks:  []TemplateBlock{block},
			})
		}
	}

	if len(data.WorkExperience) > 0 {
		section := TemplateSection{Heading: "Work Experience"}
		for _, work := range data.WorkExperience {
			if skippable(work.CompanyName) {
				continue
			}
			block := TemplateBlock{
				Title:    mark(annotate.SectionWorkExperience, work.CompanyName, "company_name"),
				Subtitle: joinHTML(" · ",
					mark(annotate.SectionWorkExperience, work.JobTitle, "job_title"),
					mark(annotate.SectionWorkExperience, work.Duration, "duration")),
			}
			for i, resp := range work.KeyResponsibilities {
				if skippable(resp) {
					continue
				}
				field := fmt.Sprintf("responsibility_%d", i+1)
				block.Items = append(block.Items, mark(annotate.SectionWorkExperience, resp, field))
			}
			section.Blocks = append(section.Blocks, block)
		}
		if len(section.Blocks) > 0 {
			td.Sections = append(td.Sections, section)
		}
	}

	if len(data.Projects) > 0 {
		section := TemplateSection{Heading: "Projects"}
		for _, project := range data.Projects {
			block := TemplateBlock{
				Title: mark(annotate.SectionProjects, project.Title, "title"),
			}
			if !skippable(project.Description) {
				block.Lines = append(block.Lines, mark(annotate.SectionProjects, project.Description, "description"))
			}
			for i, skill := range project.SkillsUsed {
				if skippable(skill.Name) {
					continue
				}
				field := fmt.Sprintf("skill_%d", i)
				block.Items = append(block.Items, mark(annotate.SectionProjects, skill.Name, field))
			}
			section.Blocks = append(section.Blocks, block)
		}
		td.Sections = append(td.Sections, section)
	}

	if len(data.Qualifications) > 0 {
		section := TemplateSection{Heading: "Qualifications"}
		for _, q := range data.Qualifications {
			block := TemplateBlock{
				Title: mark(annotate.SectionQualifications, q.Title, "title"),
			}
			if !skippable(q.Description) {
				block.Lines = append(block.Lines, mark(annotate.SectionQualifications, q.Description, "description"))
			}
			section.Blocks = append(section.Blocks, block)
		}
		td.Sections = append(td.Sections, section)
	}

	if includeNotes {
		for _, n := range notes {
			td.Notes = append(td.Notes, TemplateNote{
				Section:      string(n.Section),
				SelectedText: n.SelectedText,
				Body:         n.Body,
			})
		}
	}

	return td
}

// renderField escapes the field text and wraps highlighted segments in
// <mark> tags.
func renderField(fieldText string, notes []annotate.Note) template.HTML {
	segments := annotate.Render(fieldText, notes)
	var b strings.Builder
	for _, seg := range segments {
		if seg.Kind == annotate.SegmentHighlight {
			b.WriteString("<mark>")
			b.WriteString(html.EscapeString(seg.Text))
			b.WriteString("</mark>")
			continue
		}
		b.WriteString(html.EscapeString(seg.Text))
	}
	return template.HTML(b.String())
}

func joinHTML(sep string, parts ...template.HTML) template.HTML {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(string(p)) == "" {
			continue
		}
		kept = append(kept, string(p))
	}
	return template.HTML(strings.Join(kept, html.EscapeString(sep)))
}

// Placeholder values the parser emits for absent fields.
func skippable(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed == "" || trimmed == "-"
}

var resumeTemplate = template.Must(template.New("resume").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.5; max-width: 760px; margin: 2rem auto; color: #1a1a1a; }
    h1 { margin-bottom: 0.2rem; }
    h2 { border-bottom: 1px solid #999; padding-bottom: 0.2rem; margin-top: 1.6rem; }
    .meta { color: #555; font-size: 0.9em; }
    .meta span + span::before { content: " · "; }
    .subtitle { color: #444; font-style: italic; }
    mark { background: #fde68a; padding: 0 2px; }
    .note { background: #f5f5f5; padding: 0.6rem 1rem; margin: 0.6rem 0; border-left: 3px solid #333; }
    .note .origin { color: #666; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  {{if .Meta}}<p class="meta">{{range .Meta}}<span>{{.}}</span>{{end}}</p>{{end}}
  {{range .Sections}}
  <h2>{{.Heading}}</h2>
  {{range .Blocks}}
  <div class="block">
    {{if .Title}}<p><strong>{{.Title}}</strong>{{if .Subtitle}} <span class="subtitle">{{.Subtitle}}</span>{{end}}</p>{{end}}
    {{range .Lines}}<p>{{.}}</p>{{end}}
    {{if .Items}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>{{end}}
  </div>
  {{end}}
  {{end}}
  {{if .Notes}}
  <h2>Notes</h2>
  {{range .Notes}}
  <div class="note">
    <div class="origin">{{.Section}} — “{{.SelectedText}}”</div>
    <div>{{.Body}}</div>
  </div>
  {{end}}
  {{end}}
</body>
</html>`))

// RenderResumeHTML renders the resume template with provided data.
func RenderResumeHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

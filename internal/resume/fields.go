package resume

import (
	"fmt"

	"resumark/api/internal/annotate"
)

// FieldNode is the render-tree abstraction for selection capture: one
// annotatable run of text together with the section and field that own it.
// On the web client this corresponds to the element carrying data-section /
// data-field; here it is an ordered flat list.
type FieldNode struct {
	Section annotate.Section
	Field   string
	Text    string
}

// FieldNodes flattens the snapshot into document order. Empty and
// placeholder ("-") values are skipped the same way the renderer skips them,
// so node indices line up with what a viewer actually sees.
func (d Data) FieldNodes() []FieldNode {
	var nodes []FieldNode

	add := func(section annotate.Section, field, text string) {
		if text == "" || text == "-" {
			return
		}
		nodes = append(nodes, FieldNode{Section: section, Field: field, Text: text})
	}

	add(annotate.SectionPersonalInfo, "name", d.PersonalInfo.Name)
	add(annotate.SectionPersonalInfo, "email", d.PersonalInfo.Email)
	add(annotate.SectionPersonalInfo, "contact_no", d.PersonalInfo.ContactNo)
	add(annotate.SectionPersonalInfo, "gender", d.PersonalInfo.Gender)
	add(annotate.SectionPersonalInfo, "linkedin", d.PersonalInfo.LinkedIn)
	add(annotate.SectionPersonalInfo, "github", d.PersonalInfo.GitHub)
	add(annotate.SectionPersonalInfo, "website", d.PersonalInfo.Website)

	for _, s := range d.Skills {
		add(annotate.SectionSkills, "name", s.Name)
	}

	for _, w := range d.WorkExperience {
		if w.CompanyName == "" {
			continue
		}
		add(annotate.SectionWorkExperience, "company_name", w.CompanyName)
		add(annotate.SectionWorkExperience, "job_title", w.JobTitle)
		add(annotate.SectionWorkExperience, "duration", w.Duration)
		for i, resp := range w.KeyResponsibilities {
			add(annotate.SectionWorkExperience, fmt.Sprintf("responsibility_%d", i+1), resp)
		}
	}

	for _, p := range d.Projects {
		add(annotate.SectionProjects, "title", p.Title)
		add(annotate.SectionProjects, "description", p.Description)
		for i, s := range p.SkillsUsed {
			add(annotate.SectionProjects, fmt.Sprintf("skill_%d", i), s.Name)
		}
	}

	for _, q := range d.Qualifications {
		add(annotate.SectionQualifications, "title", q.Title)
		add(annotate.SectionQualifications, "description", q.Description)
	}

	return nodes
}

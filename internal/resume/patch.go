package resume

import (
	"fmt"
	"strconv"
	"strings"

	"resumark/api/internal/annotate"
)

// Patch addresses a single editable field. Field names follow the render
// tree: attribute names for scalar fields, responsibility_<1-based> for work
// experience list items, skill_<0-based> for project skill chips.
type Patch struct {
	Section annotate.Section
	Index   int
	Field   string
	Value   string
}

// Apply returns a new snapshot with the patched field replaced. The receiver
// is never mutated, so concurrent readers of the old snapshot stay
// consistent.
func (d Data) Apply(p Patch) (Data, error) {
	out := d.clone()
	switch p.Section {
	case annotate.SectionPersonalInfo:
		if err := out.PersonalInfo.set(p.Field, p.Value); err != nil {
			return Data{}, err
		}
	case annotate.SectionSkills:
		if p.Index < 0 || p.Index >= len(out.Skills) {
			return Data{}, fmt.Errorf("skills index %d out of range", p.Index)
		}
		out.Skills[p.Index].Name = p.Value
	case annotate.SectionWorkExperience:
		if p.Index < 0 || p.Index >= len(out.WorkExperience) {
			return Data{}, fmt.Errorf("work_experience index %d out of range", p.Index)
		}
		if err := out.WorkExperience[p.Index].set(p.Field, p.Value); err != nil {
			return Data{}, err
		}
	case annotate.SectionProjects:
		if p.Index < 0 || p.Index >= len(out.Projects) {
			return Data{}, fmt.Errorf("projects index %d out of range", p.Index)
		}
		if err := out.Projects[p.Index].set(p.Field, p.Value); err != nil {
			return Data{}, err
		}
	case annotate.SectionQualifications:
		if p.Index < 0 || p.Index >= len(out.Qualifications) {
			return Data{}, fmt.Errorf("qualifications index %d out of range", p.Index)
		}
		switch p.Field {
		case "title":
			out.Qualifications[p.Index].Title = p.Value
		case "description":
			out.Qualifications[p.Index].Description = p.Value
		default:
			return Data{}, fmt.Errorf("unknown qualifications field %q", p.Field)
		}
	default:
		return Data{}, fmt.Errorf("unknown section %q", p.Section)
	}
	return out, nil
}

func (pi *PersonalInfo) set(field, value string) error {
	switch field {
	case "name":
		pi.Name = value
	case "gender":
		pi.Gender = value
	case "contact_no":
		pi.ContactNo = value
	case "email":
		pi.Email = value
	case "github":
		pi.GitHub = value
	case "linkedin":
		pi.LinkedIn = value
	case "website":
		pi.Website = value
	default:
		return fmt.Errorf("unknown personal_info field %q", field)
	}
	return nil
}

func (w *WorkExperience) set(field, value string) error {
	switch field {
	case "company_name":
		w.CompanyName = value
	case "job_title":
		w.JobTitle = value
	case "duration":
		w.Duration = value
	default:
		if idx, ok := responsibilityIndex(field); ok {
			if idx < 1 || idx > len(w.KeyResponsibilities) {
				return fmt.Errorf("responsibility index %d out of range", idx)
			}
			w.KeyResponsibilities[idx-1] = value
			return nil
		}
		return fmt.Errorf("unknown work_experience field %q", field)
	}
	return nil
}

func (p *Project) set(field, value string) error {
	switch field {
	case "title":
		p.Title = value
	case "description":
		p.Description = value
	default:
		if rest, ok := strings.CutPrefix(field, "skill_"); ok {
			idx, err := strconv.Atoi(rest)
			if err != nil || idx < 0 || idx >= len(p.SkillsUsed) {
				return fmt.Errorf("project skill index %q out of range", rest)
			}
			p.SkillsUsed[idx].Name = value
			return nil
		}
		return fmt.Errorf("unknown projects field %q", field)
	}
	return nil
}

func responsibilityIndex(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "responsibility_")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// Package resume models the structured resume payload produced by the
// upstream parsing pipeline, and the immutable edit operations over it.
package resume

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidData marks a resume payload that cannot be decoded. The editor
// treats this as terminal: no partial render is attempted.
var ErrInvalidData = errors.New("invalid resume data")

type PersonalInfo struct {
	Name      string `json:"name"`
	Gender    string `json:"gender"`
	ContactNo string `json:"contact_no"`
	Email     string `json:"email"`
	GitHub    string `json:"github"`
	LinkedIn  string `json:"linkedin"`
	Website   string `json:"website"`
}

type Skill struct {
	Name string `json:"name"`
}

type WorkExperience struct {
	CompanyName string `json:"company_name"`
	JobTitle    string `json:"job_title"`
	Duration    string `json:"duration"`
	// Tag spelling matches the upstream parser's output.
	KeyResponsibilities []string `json:"key_responsbilities"`
}

type Project struct {
	Title       string  `json:"title"`
	SkillsUsed  []Skill `json:"skills_used"`
	Description string  `json:"description"`
}

type Qualification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Data is one structured resume snapshot. Values are treated as immutable;
// edits go through Apply, which returns a fresh deep copy.
type Data struct {
	PersonalInfo   PersonalInfo     `json:"personal_info"`
	Qualifications []Qualification  `json:"qualifications"`
	Skills         []Skill          `json:"skills"`
	WorkExperience []WorkExperience `json:"work_experience"`
	Projects       []Project        `json:"projects"`
}

// Parse decodes a stored resume payload. Any decode failure is wrapped in
// ErrInvalidData so callers can distinguish the terminal parse-failure state
// from transient errors.
func Parse(raw []byte) (Data, error) {
	if len(raw) == 0 {
		return Data{}, fmt.Errorf("%w: empty payload", ErrInvalidData)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return d, nil
}

// Encode serializes a snapshot back to its stored form.
func (d Data) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// clone deep-copies the snapshot so Apply never aliases slices with its
// receiver.
func (d Data) clone() Data {
	out := d
	out.Qualifications = append([]Qualification(nil), d.Qualifications...)
	out.Skills = append([]Skill(nil), d.Skills...)
	out.Projects = make([]Project, len(d.Projects))
	for i, p := range d.Projects {
		p.SkillsUsed = append([]Skill(nil), p.SkillsUsed...)
		out.Projects[i] = p
	}
	out.WorkExperience = make([]WorkExperience, len(d.WorkExperience))
	for i, w := range d.WorkExperience {
		w.KeyResponsibilities = append([]string(nil), w.KeyResponsibilities...)
		out.WorkExperience[i] = w
	}
	return out
}

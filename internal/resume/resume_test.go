package resume

import (
	"errors"
	"testing"

	"resumark/api/internal/annotate"
)

const samplePayload = `{
	"personal_info": {
		"name": "Ada Lannister",
		"gender": "-",
		"contact_no": "555-0101",
		"email": "ada@example.com",
		"github": "https://github.com/ada",
		"linkedin": "-",
		"website": ""
	},
	"qualifications": [
		{"title": "BSc Computer Science", "description": "First class"}
	],
	"skills": [{"name": "Go"}, {"name": "Postgres"}],
	"work_experience": [
		{
			"company_name": "Acme",
			"job_title": "Engineer",
			"duration": "approx 3 years exp",
			"key_responsbilities": ["shipped the billing pipeline", "ran incident response"]
		},
		{"company_name": "", "job_title": "", "duration": "", "key_responsbilities": []}
	],
	"projects": [
		{"title": "Cache", "skills_used": [{"name": "Redis"}], "description": "a distributed cache layer"}
	]
}`

func mustParse(t *testing.T) Data {
	t.Helper()
	d, err := Parse([]byte(samplePayload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestParseInvalid(t *testing.T) {
	for _, raw := range []string{"", "{not json", `"a bare string won't decode into the struct`} {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrInvalidData) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidData", raw, err)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	d := mustParse(t)
	raw, err := d.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	again, err := Parse(raw)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	if again.WorkExperience[0].KeyResponsibilities[0] != "shipped the billing pipeline" {
		t.Error("responsibilities lost in round trip")
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	d := mustParse(t)
	patched, err := d.Apply(Patch{Section: annotate.SectionWorkExperience, Index: 0, Field: "responsibility_1", Value: "rewrote billing"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if d.WorkExperience[0].KeyResponsibilities[0] != "shipped the billing pipeline" {
		t.Error("Apply mutated the original snapshot")
	}
	if patched.WorkExperience[0].KeyResponsibilities[0] != "rewrote billing" {
		t.Error("patch was not applied to the new snapshot")
	}
}

func TestApplyPersonalInfo(t *testing.T) {
	d := mustParse(t)
	patched, err := d.Apply(Patch{Section: annotate.SectionPersonalInfo, Field: "email", Value: "new@example.com"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if patched.PersonalInfo.Email != "new@example.com" || d.PersonalInfo.Email != "ada@example.com" {
		t.Error("personal_info patch misapplied")
	}
}

func TestApplyProjectSkillChip(t *testing.T) {
	d := mustParse(t)
	patched, err := d.Apply(Patch{Section: annotate.SectionProjects, Index: 0, Field: "skill_0", Value: "Valkey"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if patched.Projects[0].SkillsUsed[0].Name != "Valkey" || d.Projects[0].SkillsUsed[0].Name != "Redis" {
		t.Error("project skill patch misapplied")
	}
}

func TestApplyErrors(t *testing.T) {
	d := mustParse(t)
	cases := []Patch{
		{Section: annotate.SectionSkills, Index: 99, Value: "x"},
		{Section: annotate.SectionWorkExperience, Index: 0, Field: "responsibility_9", Value: "x"},
		{Section: annotate.SectionPersonalInfo, Field: "shoe_size", Value: "x"},
		{Section: "hobbies", Field: "name", Value: "x"},
	}
	for _, p := range cases {
		if _, err := d.Apply(p); err == nil {
			t.Errorf("Apply(%+v) expected error", p)
		}
	}
}

func TestFieldNodesOrderAndFiltering(t *testing.T) {
	d := mustParse(t)
	nodes := d.FieldNodes()

	// Placeholder "-" and empty values are skipped.
	for _, n := range nodes {
		if n.Text == "" || n.Text == "-" {
			t.Errorf("placeholder node leaked through: %+v", n)
		}
	}

	// The empty work experience entry contributes nothing.
	var respFields []string
	for _, n := range nodes {
		if n.Section == annotate.SectionWorkExperience {
			respFields = append(respFields, n.Field)
		}
	}
	want := []string{"company_name", "job_title", "duration", "responsibility_1", "responsibility_2"}
	if len(respFields) != len(want) {
		t.Fatalf("work experience fields = %v, want %v", respFields, want)
	}
	for i := range want {
		if respFields[i] != want[i] {
			t.Fatalf("work experience fields = %v, want %v", respFields, want)
		}
	}
}

package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultReturnsFreshCopies(t *testing.T) {
	first := Default()
	first.Requirements.SpokenLanguages[0] = "French"
	first.Requirements.Country = "Mars"

	second := Default()
	assert.Equal(t, "Canada", second.Requirements.Country)
	assert.Equal(t, []string{"English"}, second.Requirements.SpokenLanguages)
}

func TestDefaultJSONUsesProfileKeys(t *testing.T) {
	raw, err := json.Marshal(Default())
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "Canada", doc["requirements"]["country"])
	assert.EqualValues(t, 90000, doc["requirements"]["max_salary_cad"])
	assert.Equal(t, map[string]any{"preferred_size": []any{"large"}}, doc["preferences"]["company"])
}

func TestValidateReportsShapeProblems(t *testing.T) {
	p := Default()
	p.Requirements.Country = ""
	p.Requirements.MaxSalaryCAD = -1
	p.Requirements.SpokenLanguages = nil
	p.Preferences.ExperienceRangePreferred = []int{0, 1, 2}

	err := p.Validate()
	require.ErrorIs(t, err, ErrInvalidProfile)
	assert.Contains(t, err.Error(), "Requirements.Country")
	assert.Contains(t, err.Error(), "Requirements.MaxSalaryCAD")
	assert.Contains(t, err.Error(), "Requirements.SpokenLanguages")
	assert.Contains(t, err.Error(), "Preferences.ExperienceRangePreferred")
}

func TestValidateNil(t *testing.T) {
	var p *Profile
	assert.ErrorIs(t, p.Validate(), ErrInvalidProfile)
}

func TestFromMap(t *testing.T) {
	section := map[string]any{
		"requirements": map[string]any{
			"country":                  "Canada",
			"min_salary_cad":           50000,
			"max_salary_cad":           "120000",
			"highest_education":        "MSc",
			"spoken_languages":         []any{"English", "French"},
			"job_field":                []any{"backend"},
			"employment_types_allowed": []any{"full-time"},
		},
		"preferences": map[string]any{
			"preferred_locations": []any{"Montreal"},
			"tech_stack": map[string]any{
				"comfortable_with": []any{"go"},
			},
		},
	}

	p, err := FromMap(section)
	require.NoError(t, err)
	assert.Equal(t, 120000, p.Requirements.MaxSalaryCAD)
	assert.Equal(t, []string{"English", "French"}, p.Requirements.SpokenLanguages)
	assert.Equal(t, []string{"go"}, p.Preferences.TechStack.ComfortableWith)
}

func TestFromMapRejectsUnknownKeys(t *testing.T) {
	_, err := FromMap(map[string]any{
		"requirements": map[string]any{"countri": "Canada"},
	})
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestFromMapRejectsIncompleteProfile(t *testing.T) {
	_, err := FromMap(map[string]any{
		"requirements": map[string]any{"country": "Canada"},
	})
	require.ErrorIs(t, err, ErrInvalidProfile)
	assert.Contains(t, err.Error(), "HighestEducation")
}

package prompts

import (
	"strings"
	"testing"

	"github.com/spigell/jd-matcher/internal/profile"
	"github.com/spigell/jd-matcher/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExtractionContainsEveryKeyAndTextOnce(t *testing.T) {
	schemas := map[string]*schema.Schema{
		"default": schema.Default(),
		"small":   schema.MustNew(schema.StringField("title"), schema.ListField("skills")),
	}
	texts := []string{
		"Senior Go engineer wanted in Toronto.",
		"  \n\tWe are hiring a QA lead (remote, CAD 80k).\n\n",
		"Line one of the posting\nLine two {{FIELDS}} of the posting",
	}

	for name, s := range schemas {
		for _, text := range texts {
			prompt, err := BuildExtraction(text, s)
			require.NoError(t, err, name)

			for _, key := range s.Names() {
				assert.Contains(t, prompt, `"`+key+`"`, name)
				assert.Contains(t, prompt, "- "+key+": ", name)
			}
			assert.Equal(t, 1, strings.Count(prompt, strings.TrimSpace(text)), name)
		}
	}
}

func TestBuildExtractionLayout(t *testing.T) {
	s := schema.MustNew(schema.StringField("title"), schema.ListField("skills"))

	prompt, err := BuildExtraction("  Go developer  ", s)
	require.NoError(t, err)

	want := strings.Join([]string{
		"Extract the following fields from the job description and return them as a JSON object EXACTLY following the schema below. If a field is missing, set it to null (scalar) or [] (list).",
		"",
		"Schema fields (name: type/hint):",
		"",
		"- title: string|null",
		"- skills: list[string]|[]",
		"",
		"Please return a single JSON object following this template EXACTLY:",
		"",
		"{",
		`  "title": null,`,
		`  "skills": []`,
		"}",
		"",
		"Job description:",
		"--------",
		"Go developer",
		"--------",
		"",
		"Return ONLY the JSON object.",
	}, "\n")
	assert.Equal(t, want, prompt)
}

func TestBuildExtractionIsDeterministic(t *testing.T) {
	first, err := BuildExtraction("Backend role", schema.Default())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		next, err := BuildExtraction("Backend role", schema.Default())
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestBuildExtractionRejectsEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := BuildExtraction(text, schema.Default())
		assert.ErrorIs(t, err, ErrEmptyDescription)
	}
}

func TestBuildComparison(t *testing.T) {
	record, err := schema.NewRecord([]byte(`{"location":"Toronto","salary_min_cad":100000}`))
	require.NoError(t, err)

	prompt, err := BuildComparison(record, profile.Default())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "EXTRACTED_JD_JSON:\n{\n  \"location\": \"Toronto\",\n  \"salary_min_cad\": 100000\n}"))
	assert.Contains(t, prompt, "IDEAL_PROFILE_JSON:\n{\n  \"requirements\": {")
	assert.Contains(t, prompt, `"max_salary_cad": 90000`)
	assert.Contains(t, prompt, `"overall_eligibility": "red|yellow|grey|green"`)
	assert.Contains(t, prompt, "EXAMPLE (valid output):")
	assert.True(t, strings.HasSuffix(prompt, "cite the evidence value exactly as it appears in EXTRACTED_JD_JSON (or null if missing)."))
}

func TestBuildComparisonRequiresProfile(t *testing.T) {
	_, err := BuildComparison(schema.Record{}, nil)
	assert.Error(t, err)
}

func TestSystemInstructions(t *testing.T) {
	assert.True(t, strings.HasPrefix(ExtractionSystem(), "You are a careful JSON extractor."))

	system := ComparisonSystem()
	for _, color := range []string{`"red" (Not eligible)`, `"yellow" (Eligible but away from preferred)`, `"grey" (Informational / unknown)`, `"green" (Eligible and preferred)`} {
		assert.Contains(t, system, color)
	}
}

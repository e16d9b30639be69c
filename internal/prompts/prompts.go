// Package prompts renders the instructions sent to the model for both pipeline stages.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"github.com/spigell/jd-matcher/internal/profile"
	"github.com/spigell/jd-matcher/internal/schema"
	"github.com/tidwall/pretty"
)

//go:embed extraction_system.md
var extractionSystem string

//go:embed extraction.md
var extractionTemplate string

//go:embed comparison_system.md
var comparisonSystem string

//go:embed comparison.md
var comparisonTemplate string

var ErrEmptyDescription = errors.New("job description is empty")

var prettyOptions = &pretty.Options{Width: 80, Indent: "  "}

// ExtractionSystem is the system instruction of the extraction stage.
func ExtractionSystem() string { return strings.TrimSpace(extractionSystem) }

// ComparisonSystem is the system instruction of the comparison stage. It fixes the
// meaning of the four colors.
func ComparisonSystem() string { return strings.TrimSpace(comparisonSystem) }

// BuildExtraction renders the extraction instruction for the job text. The output only
// depends on its inputs.
func BuildExtraction(text string, s *schema.Schema) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDescription
	}
	if s == nil {
		return "", errors.New("schema is required")
	}

	// Single pass, so placeholders inside the job text are left alone.
	r := strings.NewReplacer(
		"{{FIELDS}}", s.FieldsText(),
		"{{TEMPLATE}}", indent(s.Template()),
		"{{JOB_DESCRIPTION}}", text,
	)
	return r.Replace(strings.TrimSpace(extractionTemplate)), nil
}

// BuildComparison renders the comparison instruction for an extracted record and a profile.
func BuildComparison(record schema.Record, p *profile.Profile) (string, error) {
	if p == nil {
		return "", errors.New("profile is required")
	}

	profileJSON, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	r := strings.NewReplacer(
		"{{EXTRACTED_JSON}}", indent(record.Raw()),
		"{{PROFILE_JSON}}", indent(profileJSON),
	)
	return r.Replace(strings.TrimSpace(comparisonTemplate)), nil
}

func indent(raw []byte) string {
	return strings.TrimRight(string(pretty.PrettyOptions(raw, prettyOptions)), "\n")
}

package analyzer

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/spigell/jd-matcher/internal/ai"
	"github.com/spigell/jd-matcher/internal/schema"
)

// Color is the eligibility bucket of a field or of the whole posting.
type Color string

const (
	// Red means the candidate is not eligible.
	Red Color = "red"
	// Yellow means eligible but away from the preferences.
	Yellow Color = "yellow"
	// Grey means the value is missing or cannot be compared.
	Grey Color = "grey"
	// Green means eligible and preferred.
	Green Color = "green"
)

// Colors lists every bucket from worst to best.
var Colors = []Color{Red, Yellow, Grey, Green}

func (c Color) Valid() bool {
	switch c {
	case Red, Yellow, Grey, Green:
		return true
	default:
		return false
	}
}

func (c Color) String() string { return string(c) }

// FieldVerdict is the classification of one extracted field. Evidence is the raw value
// from the extraction, or nil when the posting did not mention it.
type FieldVerdict struct {
	Color       Color  `json:"color"`
	Explanation string `json:"explanation"`
	Evidence    any    `json:"evidence"`
}

type Comparison struct {
	OverallEligibility Color                   `json:"overall_eligibility"`
	SummaryExplanation string                  `json:"summary_explanation"`
	Fields             map[string]FieldVerdict `json:"fields"`
}

var errComparisonNotObject = errors.New("comparison is not a JSON object")

// UnmarshalJSON only needs an object. Values of the wrong type degrade to their string
// form or to zero, so a null summary or a numeric color does not lose the whole result.
func (c *Comparison) UnmarshalJSON(data []byte) error {
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return errComparisonNotObject
	}

	*c = Comparison{
		OverallEligibility: Color(root.Get("overall_eligibility").String()),
		SummaryExplanation: root.Get("summary_explanation").String(),
		Fields:             map[string]FieldVerdict{},
	}

	root.Get("fields").ForEach(func(key, value gjson.Result) bool {
		verdict := FieldVerdict{}
		if value.IsObject() {
			verdict.Color = Color(value.Get("color").String())
			verdict.Explanation = value.Get("explanation").String()
			verdict.Evidence = value.Get("evidence").Value()
		}
		c.Fields[key.String()] = verdict
		return true
	})
	return nil
}

// ByColor returns the sorted names of the fields classified as color.
func (c *Comparison) ByColor(color Color) []string {
	if c == nil {
		return nil
	}

	names := make([]string, 0, len(c.Fields))
	for name, verdict := range c.Fields {
		if verdict.Color == color {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Counts returns how many fields fall into each color.
func (c *Comparison) Counts() map[Color]int {
	counts := make(map[Color]int, len(Colors))
	if c == nil {
		return counts
	}
	for _, verdict := range c.Fields {
		counts[verdict.Color]++
	}
	return counts
}

type ExtractionRun struct {
	Data  schema.Record `json:"data"`
	Usage ai.Usage      `json:"usage"`
	// RawUsage is the usage object as the provider reported it.
	RawUsage json.RawMessage `json:"raw_usage,omitempty"`
	Attempts int             `json:"attempts"`
	// Fallback is set when every attempt failed and Data is the empty record.
	Fallback bool `json:"fallback"`
	// Missing lists the schema fields the model left out.
	Missing []string      `json:"missing_fields,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

type ComparisonRun struct {
	Data Comparison `json:"data"`
	// Raw is the comparison object exactly as the model returned it, keys Data drops included.
	Raw      json.RawMessage `json:"raw,omitempty"`
	Usage    ai.Usage        `json:"usage"`
	RawUsage json.RawMessage `json:"raw_usage,omitempty"`
	Attempts int             `json:"attempts"`
	Fallback bool            `json:"fallback"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// Analysis is one extraction followed by one comparison.
type Analysis struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	Sample     bool           `json:"sample"`
	Extraction *ExtractionRun `json:"extraction"`
	Comparison *ComparisonRun `json:"comparison"`
	Elapsed    time.Duration  `json:"elapsed"`
}

// TotalTokens sums the usage of both stages.
func (a *Analysis) TotalTokens() int {
	if a == nil {
		return 0
	}
	total := 0
	if a.Extraction != nil {
		total += a.Extraction.Usage.TotalTokens
	}
	if a.Comparison != nil {
		total += a.Comparison.Usage.TotalTokens
	}
	return total
}

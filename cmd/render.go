package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tidwall/pretty"

	"github.com/spigell/jd-matcher/internal/analyzer"
	"github.com/spigell/jd-matcher/internal/schema"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func validateOutput(output string) error {
	switch output {
	case outputText, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q, use %s or %s", output, outputText, outputJSON)
	}
}

func renderAnalysis(w io.Writer, a *analyzer.Analysis, output string) error {
	if output == outputJSON {
		return writeJSON(w, a)
	}

	c := a.Comparison
	fmt.Fprintf(w, "Overall eligibility: %s\n", strings.ToUpper(c.Data.OverallEligibility.String()))
	if c.Data.SummaryExplanation != "" {
		fmt.Fprintf(w, "Summary: %s\n", c.Data.SummaryExplanation)
	}
	if line := postingLine(a.Extraction.Data); line != "" {
		fmt.Fprintf(w, "Posting: %s\n", line)
	}
	if a.Extraction.Fallback {
		fmt.Fprintln(w, "Warning: extraction failed, the comparison was made on an empty record")
	}
	if c.Fallback {
		fmt.Fprintln(w, "Warning: comparison failed")
	}
	fmt.Fprintf(w, "Tokens: extraction %d, comparison %d\n", a.Extraction.Usage.TotalTokens, c.Usage.TotalTokens)

	for _, color := range analyzer.Colors {
		names := c.Data.ByColor(color)
		if len(names) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d)\n", strings.ToUpper(color.String()), len(names))
		for _, name := range names {
			renderVerdict(w, name, c.Data.Fields[name])
		}
	}

	if unknown := unknownColorFields(&c.Data); len(unknown) > 0 {
		fmt.Fprintf(w, "\nUNCLASSIFIED (%d)\n", len(unknown))
		for _, name := range unknown {
			renderVerdict(w, name, c.Data.Fields[name])
		}
	}
	return nil
}

func renderExtraction(w io.Writer, run *analyzer.ExtractionRun, output string) error {
	if output == outputJSON {
		return writeJSON(w, run)
	}

	if run.Fallback {
		fmt.Fprintln(w, "Warning: extraction failed, every field is empty")
	}
	fmt.Fprintln(w, strings.TrimRight(string(pretty.Pretty(run.Data.Raw())), "\n"))
	if len(run.Missing) > 0 {
		fmt.Fprintf(w, "Missing fields: %s\n", strings.Join(run.Missing, ", "))
	}
	fmt.Fprintf(w, "Tokens: %d\n", run.Usage.TotalTokens)
	return nil
}

// posting is the part of an extracted record shown in the text header.
type posting struct {
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	Location    string `json:"location"`
}

// postingLine summarizes the record as "title at company (location)". Records whose
// values cannot be read as text, or that hold none of them, give an empty line.
func postingLine(record schema.Record) string {
	var p posting
	if err := record.Decode(&p); err != nil {
		return ""
	}
	if p.Title == "" && p.CompanyName == "" && p.Location == "" {
		return ""
	}

	line := p.Title
	if line == "" {
		line = "Untitled posting"
	}
	if p.CompanyName != "" {
		line += " at " + p.CompanyName
	}
	if p.Location != "" {
		line += " (" + p.Location + ")"
	}
	return line
}

func renderVerdict(w io.Writer, name string, verdict analyzer.FieldVerdict) {
	fmt.Fprintf(w, "  - %s: %s\n", name, verdict.Explanation)
	fmt.Fprintf(w, "      evidence: %s\n", evidenceText(verdict.Evidence))
}

func evidenceText(evidence any) string {
	raw, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Sprintf("%v", evidence)
	}
	return string(raw)
}

func unknownColorFields(c *analyzer.Comparison) []string {
	var names []string
	for name, verdict := range c.Fields {
		if !verdict.Color.Valid() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func writeJSON(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(raw))
	return err
}

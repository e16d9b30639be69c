package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/spigell/jd-matcher/internal/analyzer"
)

const (
	PromptBack = "back"
	PromptExit = "exit"
)

// colorItems builds the color menu with field counts, ending with the exit entry.
func colorItems(c *analyzer.Comparison) []string {
	counts := c.Counts()
	items := make([]string, 0, len(analyzer.Colors)+1)
	for _, color := range analyzer.Colors {
		items = append(items, fmt.Sprintf("%s (%d)", color, counts[color]))
	}
	return append(items, PromptExit)
}

// browse lets the user filter compared fields by color until exit or Ctrl+C.
func browse(c *analyzer.Comparison, out io.Writer) error {
	for {
		colorPrompt := promptui.Select{
			Label: "Show fields by color",
			Items: colorItems(c),
		}

		idx, _, err := colorPrompt.Run()
		if err != nil {
			return ignoreInterrupt(err)
		}
		if idx >= len(analyzer.Colors) {
			return nil
		}

		color := analyzer.Colors[idx]
		names := c.ByColor(color)
		if len(names) == 0 {
			fmt.Fprintf(out, "no %s fields\n", color)
			continue
		}

		fieldPrompt := promptui.Select{
			Label: strings.ToUpper(color.String()) + " fields",
			Items: append(names, PromptBack),
			Size:  15,
		}

		_, name, err := fieldPrompt.Run()
		if err != nil {
			return ignoreInterrupt(err)
		}
		if name == PromptBack {
			continue
		}

		renderVerdict(out, name, c.Fields[name])
	}
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}
	return err
}

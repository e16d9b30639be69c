package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jd-matcher/internal/analyzer"
	"github.com/spigell/jd-matcher/internal/store"
)

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Print the result of the last analysis",
	Run: func(cmd *cobra.Command, _ []string) {
		last(cmd)
	},
}

func init() {
	rootCmd.AddCommand(lastCmd)

	lastCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
	lastCmd.Flags().BoolP("interactive", "i", false, "browse compared fields by color")
}

func last(cmd *cobra.Command) {
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		logger.Fatal("bad flag", zap.Error(err))
	}

	st, err := openStore(config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	var analysis analyzer.Analysis
	found, err := st.Get(store.KeyLastAnalysis, &analysis)
	if err != nil {
		logger.Fatal("reading the last analysis", zap.Error(err), zap.String("path", st.Path()))
	}
	if !found || analysis.Extraction == nil || analysis.Comparison == nil {
		logger.Info("exiting", zap.String("reason", "no analysis has been stored yet"))
		return
	}

	if err := renderAnalysis(os.Stdout, &analysis, output); err != nil {
		logger.Fatal("rendering the result", zap.Error(err))
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := browse(&analysis.Comparison.Data, os.Stdout); err != nil {
			logger.Fatal("browsing the result", zap.Error(err))
		}
	}
}

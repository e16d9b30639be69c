package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jd-matcher/internal/ai"
	"github.com/spigell/jd-matcher/internal/ai/openai"
	"github.com/spigell/jd-matcher/internal/analyzer"
	"github.com/spigell/jd-matcher/internal/profile"
	"github.com/spigell/jd-matcher/internal/prompts"
	"github.com/spigell/jd-matcher/internal/secrets"
	"github.com/spigell/jd-matcher/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract fields from a job description and compare them with the candidate profile",
	Long: "Reads the job description from --file, from stdin when it is piped, " +
		"or falls back to the text of the last unfinished run.",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("file", "f", "", "file with the job description, '-' for stdin")
	analyzeCmd.Flags().Bool("sample", false, "return canned data without calling the model")
	analyzeCmd.Flags().BoolP("interactive", "i", false, "browse compared fields by color after the run")
	analyzeCmd.Flags().Bool("extract-only", false, "stop after the extraction stage")
	analyzeCmd.Flags().StringP("output", "o", outputText, "output format: text or json")

	viper.BindPFlag("sample", analyzeCmd.Flags().Lookup("sample"))
}

func analyze(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("starting the jd-matcher", zap.String("version", version))

	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		logger.Fatal("bad flag", zap.Error(err))
	}

	st, err := openStore(config.Store)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	file, _ := cmd.Flags().GetString("file")
	text, err := readDescription(file, os.Stdin, st)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	// Keep the text so an interrupted run can be repeated without pasting it again.
	if err := st.Set(store.KeyPendingText, text); err != nil {
		logger.Warn("saving the job description", zap.Error(err))
	}

	a, err := newAnalyzer(config, logger)
	if err != nil {
		logger.Fatal("building the analyzer", zap.Error(err))
	}

	if extractOnly, _ := cmd.Flags().GetBool("extract-only"); extractOnly {
		run, err := a.Extract(ctx, text)
		if err != nil {
			logger.Fatal("extraction failed", zap.Error(err))
		}
		if err := renderExtraction(os.Stdout, run, output); err != nil {
			logger.Fatal("rendering the result", zap.Error(err))
		}
		return
	}

	analysis, err := a.Analyze(ctx, text)
	if err != nil {
		logger.Fatal("analysis failed", zap.Error(err))
	}

	if err := st.Set(store.KeyLastAnalysis, analysis); err != nil {
		logger.Warn("saving the analysis", zap.Error(err))
	}
	if err := st.Delete(store.KeyPendingText); err != nil {
		logger.Warn("clearing the saved job description", zap.Error(err))
	}

	if err := renderAnalysis(os.Stdout, analysis, output); err != nil {
		logger.Fatal("rendering the result", zap.Error(err))
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := browse(&analysis.Comparison.Data, os.Stdout); err != nil {
			logger.Fatal("browsing the result", zap.Error(err))
		}
	}
}

type pendingStore interface {
	Get(key string, target any) (bool, error)
}

// readDescription picks the job text from the file flag, piped stdin or the pending
// text of the previous run, in that order.
func readDescription(file string, stdin *os.File, st pendingStore) (string, error) {
	switch {
	case file == "-":
		return readAll(stdin)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %q: %w", file, err)
		}
		return nonEmpty(string(data))
	}

	if stdin != nil {
		if stat, err := stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
			return readAll(stdin)
		}
	}

	var pending string
	found, err := st.Get(store.KeyPendingText, &pending)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: pass --file or pipe the text to stdin", prompts.ErrEmptyDescription)
	}
	return nonEmpty(pending)
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return nonEmpty(string(data))
}

func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", prompts.ErrEmptyDescription
	}
	return text, nil
}

func newAnalyzer(config *Config, logger *zap.Logger) (*analyzer.Analyzer, error) {
	p := profile.Default()
	if len(config.Profile) > 0 {
		custom, err := profile.FromMap(config.Profile)
		if err != nil {
			return nil, err
		}
		p = custom
	}

	cfg := analyzer.Config{
		Provider:     openai.Provider,
		Sample:       config.Sample,
		SampleDelay:  config.SampleDelay,
		Extraction:   config.Extraction,
		Comparison:   config.Comparison,
		RetryDelay:   config.RetryDelay,
		Profile:      p,
		MaxLogLength: config.MaxLogLength,
	}

	var chat ai.Chatter
	if !cfg.Sample {
		generator, err := newGenerator(config.OpenAI)
		if err != nil {
			return nil, err
		}
		chat = generator
	}

	return analyzer.New(chat, cfg, logger)
}

func newGenerator(cfg *OpenAIConfig) (*openai.Generator, error) {
	if cfg == nil {
		return nil, errors.New("openai configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "openai api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
		Env:   "OPENAI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (or run with --sample)", err)
	}

	return openai.NewGenerator(openai.Config{
		APIKey:  apiKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
}

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jd-matcher/internal/analyzer"
	"github.com/spigell/jd-matcher/internal/prompts"
	"github.com/spigell/jd-matcher/internal/store"
)

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return st
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jd.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadDescriptionFromFile(t *testing.T) {
	text, err := readDescription(writeTemp(t, "Go developer"), nil, tempStore(t))
	require.NoError(t, err)
	assert.Equal(t, "Go developer", text)

	_, err = readDescription(writeTemp(t, "  \n"), nil, tempStore(t))
	assert.ErrorIs(t, err, prompts.ErrEmptyDescription)

	_, err = readDescription(filepath.Join(t.TempDir(), "missing.txt"), nil, tempStore(t))
	assert.Error(t, err)
}

func TestReadDescriptionFromPipedStdin(t *testing.T) {
	stdin, err := os.Open(writeTemp(t, "Piped posting"))
	require.NoError(t, err)
	defer stdin.Close()

	text, err := readDescription("", stdin, tempStore(t))
	require.NoError(t, err)
	assert.Equal(t, "Piped posting", text)
}

func TestReadDescriptionFallsBackToPendingText(t *testing.T) {
	st := tempStore(t)

	_, err := readDescription("", nil, st)
	require.ErrorIs(t, err, prompts.ErrEmptyDescription)

	require.NoError(t, st.Set(store.KeyPendingText, "Saved posting"))
	text, err := readDescription("", nil, st)
	require.NoError(t, err)
	assert.Equal(t, "Saved posting", text)
}

func TestNewAnalyzerInSampleMode(t *testing.T) {
	a, err := newAnalyzer(&Config{Sample: true, OpenAI: &OpenAIConfig{}}, nil)
	require.NoError(t, err)
	assert.True(t, a.Config().Sample)
	assert.Equal(t, analyzer.DefaultSampleDelay, a.Config().SampleDelay)
}

func TestNewAnalyzerRequiresKeyOutsideSampleMode(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := newAnalyzer(&Config{OpenAI: &OpenAIConfig{}}, nil)
	assert.Error(t, err)

	a, err := newAnalyzer(&Config{
		OpenAI:     &OpenAIConfig{APIKey: "sk-test", Timeout: time.Second},
		Extraction: analyzer.StageConfig{Model: "custom-model"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", a.Config().Extraction.Model)
	assert.Equal(t, analyzer.DefaultComparisonModel, a.Config().Comparison.Model)
}

func TestNewAnalyzerProfileOverride(t *testing.T) {
	_, err := newAnalyzer(&Config{Sample: true, Profile: map[string]any{"requirements": map[string]any{"country": "Canada"}}}, nil)
	assert.Error(t, err)

	a, err := newAnalyzer(&Config{Sample: true, Profile: map[string]any{
		"requirements": map[string]any{
			"country":                  "Germany",
			"highest_education":        "MSc",
			"spoken_languages":         []any{"German"},
			"job_field":                []any{"backend"},
			"employment_types_allowed": []any{"full-time"},
		},
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Germany", a.Config().Profile.Requirements.Country)
}

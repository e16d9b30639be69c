// Package analyzer runs the extraction and comparison stages for a job description.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jd-matcher/internal/ai"
	"github.com/spigell/jd-matcher/internal/logger"
	"github.com/spigell/jd-matcher/internal/profile"
	"github.com/spigell/jd-matcher/internal/prompts"
	"github.com/spigell/jd-matcher/internal/schema"
	"github.com/spigell/jd-matcher/internal/utils"
)

const (
	StageExtraction = "extraction"
	StageComparison = "comparison"

	DefaultExtractionModel      = "gpt-4.1-mini"
	DefaultExtractionMaxRetries = 2
	DefaultComparisonModel      = "gpt-5-mini"
	DefaultComparisonMaxRetries = 1
	DefaultSampleDelay          = 500 * time.Millisecond

	defaultProvider = "openai"

	// FallbackSummary is the explanation of the comparison returned when the model failed.
	FallbackSummary = "Comparator failed to return a valid structured result."
)

//go:embed comparison_schema.json
var comparisonSchema []byte

//go:embed sample/extraction.json
var sampleExtraction []byte

//go:embed sample/comparison.json
var sampleComparison []byte

var comparisonFallback = json.RawMessage(`{"overall_eligibility":"grey","summary_explanation":"` + FallbackSummary + `","fields":{}}`)

// ComparisonSchema returns the JSON Schema a comparison response must satisfy.
func ComparisonSchema() []byte { return bytes.Clone(comparisonSchema) }

type StageConfig struct {
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type Config struct {
	Provider    string
	Sample      bool
	SampleDelay time.Duration
	Extraction  StageConfig
	Comparison  StageConfig
	RetryDelay  time.Duration
	// Schema defaults to schema.Default().
	Schema *schema.Schema
	// Profile is used when Compare gets no profile. Defaults to profile.Default().
	Profile      *profile.Profile
	MaxLogLength int
}

func DefaultConfig() Config {
	return Config{
		Provider:    defaultProvider,
		SampleDelay: DefaultSampleDelay,
		Extraction:  StageConfig{Model: DefaultExtractionModel, MaxRetries: DefaultExtractionMaxRetries},
		Comparison:  StageConfig{Model: DefaultComparisonModel, MaxRetries: DefaultComparisonMaxRetries},
		RetryDelay:  ai.DefaultRetryDelay,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.SampleDelay == 0 {
		c.SampleDelay = def.SampleDelay
	}
	if c.Extraction.Model == "" {
		c.Extraction.Model = def.Extraction.Model
	}
	if c.Extraction.MaxRetries <= 0 {
		c.Extraction.MaxRetries = def.Extraction.MaxRetries
	}
	if c.Comparison.Model == "" {
		c.Comparison.Model = def.Comparison.Model
	}
	if c.Comparison.MaxRetries <= 0 {
		c.Comparison.MaxRetries = def.Comparison.MaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.Schema == nil {
		c.Schema = schema.Default()
	}
	if c.Profile == nil {
		c.Profile = profile.Default()
	}
	return c
}

// Analyzer holds one completion client per stage. It keeps no state between calls,
// so concurrent use is safe.
type Analyzer struct {
	cfg        Config
	extraction *ai.Client
	comparison *ai.Client
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

type Option func(*Analyzer)

// WithSleep replaces every wait: the retry delay and the simulated sample delay.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Analyzer) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

// New builds an Analyzer. chat may be nil in sample mode.
func New(chat ai.Chatter, cfg Config, log *zap.Logger, opts ...Option) (*Analyzer, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	a := &Analyzer{
		cfg:    cfg,
		logger: log,
		sleep:  utils.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Sample {
		log.Info("sample mode is enabled, the model will not be called")
		return a, nil
	}
	if chat == nil {
		return nil, errors.New("chat transport is required unless sample mode is enabled")
	}

	compareShape, err := ai.SchemaValidator(comparisonSchema)
	if err != nil {
		return nil, err
	}

	a.extraction, err = ai.NewClient(chat, ai.Policy{
		Stage:        StageExtraction,
		Model:        cfg.Extraction.Model,
		MaxRetries:   cfg.Extraction.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		OnExhausted:  ai.ExhaustRaise,
		Validate:     ai.AnyObject,
		MaxLogLength: cfg.MaxLogLength,
	}, logger.ForStage(log, cfg.Provider, cfg.Extraction.Model, StageExtraction), ai.WithSleep(a.sleep))
	if err != nil {
		return nil, fmt.Errorf("create extraction client: %w", err)
	}

	a.comparison, err = ai.NewClient(chat, ai.Policy{
		Stage:        StageComparison,
		Model:        cfg.Comparison.Model,
		MaxRetries:   cfg.Comparison.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		OnExhausted:  ai.ExhaustFallback,
		Fallback:     comparisonFallback,
		Validate:     compareShape,
		MaxLogLength: cfg.MaxLogLength,
	}, logger.ForStage(log, cfg.Provider, cfg.Comparison.Model, StageComparison), ai.WithSleep(a.sleep))
	if err != nil {
		return nil, fmt.Errorf("create comparison client: %w", err)
	}

	return a, nil
}

func (a *Analyzer) Config() Config { return a.cfg }

// Extract turns a job description into a record. When the model fails on every attempt
// the record is the schema fallback, so callers always get every schema field. The only
// error is prompts.ErrEmptyDescription.
func (a *Analyzer) Extract(ctx context.Context, text string) (*ExtractionRun, error) {
	return a.extract(ctx, text, a.logger)
}

// Compare classifies a record against p, or against the configured profile when p is nil.
// It never fails: a failed comparison is the grey fallback with zero usage.
func (a *Analyzer) Compare(ctx context.Context, record schema.Record, p *profile.Profile) *ComparisonRun {
	return a.compare(ctx, record, p, a.logger)
}

// Analyze runs extraction and then comparison against the configured profile.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	analysis := &Analysis{
		RunID:     uuid.NewString(),
		StartedAt: a.now(),
		Sample:    a.cfg.Sample,
	}
	log := logger.WithRunID(a.logger, analysis.RunID)

	log.Info("analysis started")

	extraction, err := a.extract(ctx, text, log)
	if err != nil {
		return nil, err
	}
	analysis.Extraction = extraction
	analysis.Comparison = a.compare(ctx, extraction.Data, nil, log)
	analysis.Elapsed = a.now().Sub(analysis.StartedAt)

	log.Info("analysis finished",
		zap.String("overall_eligibility", analysis.Comparison.Data.OverallEligibility.String()),
		zap.Bool("extraction_fallback", extraction.Fallback),
		zap.Bool("comparison_fallback", analysis.Comparison.Fallback),
		zap.Int("total_tokens", analysis.TotalTokens()),
		zap.Duration("elapsed", analysis.Elapsed),
	)
	return analysis, nil
}

func (a *Analyzer) extract(ctx context.Context, text string, log *zap.Logger) (*ExtractionRun, error) {
	prompt, err := prompts.BuildExtraction(text, a.cfg.Schema)
	if err != nil {
		return nil, err
	}

	started := a.now()
	log = logger.WithFields(log, zap.String(logger.FieldStage, StageExtraction))

	if a.cfg.Sample {
		a.simulate(ctx, log)
		record, err := schema.NewRecord(sampleExtraction)
		if err != nil {
			return nil, fmt.Errorf("load sample extraction: %w", err)
		}
		return &ExtractionRun{Data: record, Attempts: 1, Missing: record.Missing(a.cfg.Schema), Elapsed: a.now().Sub(started)}, nil
	}

	resp, err := a.extraction.WithLogger(a.clientLogger(log, a.cfg.Extraction.Model)).
		Complete(ctx, prompts.ExtractionSystem(), prompt)
	if err != nil {
		log.Warn("extraction failed, returning empty record", zap.Error(err))
		return a.extractionFallback(err, started), nil
	}

	record, err := schema.NewRecord(resp.Data)
	if err != nil {
		log.Warn("extraction result is not a record, returning empty record", zap.Error(err))
		return a.extractionFallback(err, started), nil
	}

	run := &ExtractionRun{
		Data:     record,
		Usage:    resp.Usage,
		RawUsage: resp.RawUsage,
		Attempts: resp.Attempts,
		Missing:  record.Missing(a.cfg.Schema),
		Elapsed:  a.now().Sub(started),
	}

	if len(run.Missing) > 0 {
		log.Info("extraction result misses schema fields", zap.Strings("missing_fields", run.Missing))
	}
	if issues, err := a.cfg.Schema.Conformance(record); err != nil {
		log.Debug("conformance check failed", zap.Error(err))
	} else if len(issues) > 0 {
		problems := make([]string, 0, len(issues))
		for _, issue := range issues {
			problems = append(problems, issue.String())
		}
		log.Debug("extraction result deviates from field types", zap.Strings("issues", problems))
	}

	return run, nil
}

func (a *Analyzer) extractionFallback(cause error, started time.Time) *ExtractionRun {
	attempts := 0
	var exhausted *ai.ExhaustedError
	if errors.As(cause, &exhausted) {
		attempts = exhausted.Attempts
	}
	return &ExtractionRun{
		Data:     a.cfg.Schema.Fallback(),
		Attempts: attempts,
		Fallback: true,
		Elapsed:  a.now().Sub(started),
	}
}

func (a *Analyzer) compare(ctx context.Context, record schema.Record, p *profile.Profile, log *zap.Logger) *ComparisonRun {
	if p == nil {
		p = a.cfg.Profile
	}

	started := a.now()
	log = logger.WithFields(log, zap.String(logger.FieldStage, StageComparison))

	if a.cfg.Sample {
		a.simulate(ctx, log)
		var comparison Comparison
		if err := json.Unmarshal(sampleComparison, &comparison); err != nil {
			log.Error("sample comparison is broken", zap.Error(err))
			return comparisonFallbackRun(started, a.now())
		}
		return &ComparisonRun{Data: comparison, Raw: bytes.Clone(sampleComparison), Attempts: 1, Elapsed: a.now().Sub(started)}
	}

	prompt, err := prompts.BuildComparison(record, p)
	if err != nil {
		log.Warn("cannot build comparison prompt, returning fallback", zap.Error(err))
		return comparisonFallbackRun(started, a.now())
	}

	resp, err := a.comparison.WithLogger(a.clientLogger(log, a.cfg.Comparison.Model)).
		Complete(ctx, prompts.ComparisonSystem(), prompt)
	if err != nil {
		log.Warn("comparison failed, returning fallback", zap.Error(err))
		return comparisonFallbackRun(started, a.now())
	}

	if resp.Fallback {
		run := comparisonFallbackRun(started, a.now())
		run.Attempts = resp.Attempts
		return run
	}

	var comparison Comparison
	if err := json.Unmarshal(resp.Data, &comparison); err != nil {
		log.Warn("comparison result cannot be decoded, returning fallback", zap.Error(err))
		return comparisonFallbackRun(started, a.now())
	}

	for name, verdict := range comparison.Fields {
		if !verdict.Color.Valid() {
			log.Debug("field has unknown color", zap.String("field", name), zap.String("color", string(verdict.Color)))
		}
	}

	return &ComparisonRun{
		Data:     comparison,
		Raw:      resp.Data,
		Usage:    resp.Usage,
		RawUsage: resp.RawUsage,
		Attempts: resp.Attempts,
		Elapsed:  a.now().Sub(started),
	}
}

func comparisonFallbackRun(started, finished time.Time) *ComparisonRun {
	return &ComparisonRun{
		Data: Comparison{
			OverallEligibility: Grey,
			SummaryExplanation: FallbackSummary,
			Fields:             map[string]FieldVerdict{},
		},
		Fallback: true,
		Elapsed:  finished.Sub(started),
	}
}

// clientLogger keeps the provider and model fields on per-call loggers.
func (a *Analyzer) clientLogger(log *zap.Logger, model string) *zap.Logger {
	return logger.WithFields(log, logger.StringFields(
		logger.StringField{Key: logger.FieldProvider, Value: a.cfg.Provider},
		logger.StringField{Key: logger.FieldModel, Value: model},
	)...)
}

func (a *Analyzer) simulate(ctx context.Context, log *zap.Logger) {
	log.Debug("returning sample data", zap.Duration("delay", a.cfg.SampleDelay))
	if err := a.sleep(ctx, a.cfg.SampleDelay); err != nil {
		log.Debug("sample delay interrupted", zap.Error(err))
	}
}

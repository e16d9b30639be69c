package cmd

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jd-matcher/internal/analyzer"
	"github.com/spigell/jd-matcher/internal/logger"
	"github.com/spigell/jd-matcher/internal/store"
)

const (
	app = "jd-matcher"
)

type Config struct {
	OpenAI       *OpenAIConfig        `mapstructure:"openai"`
	Extraction   analyzer.StageConfig `mapstructure:"extraction"`
	Comparison   analyzer.StageConfig `mapstructure:"comparison"`
	RetryDelay   time.Duration        `mapstructure:"retry-delay"`
	Sample       bool                 `mapstructure:"sample"`
	SampleDelay  time.Duration        `mapstructure:"sample-delay"`
	MaxLogLength int                  `mapstructure:"max-log-length"`
	Store        *StoreConfig         `mapstructure:"store"`
	// Profile overrides the built-in candidate profile. Keys follow the profile JSON.
	Profile map[string]any `mapstructure:"profile"`
}

type OpenAIConfig struct {
	APIKey     string        `mapstructure:"api-key" json:"-"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	BaseURL    string        `mapstructure:"base-url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jd-matcher extracts structured fields from a job description and checks them against your profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindings := map[string]string{
		"openai.api-key":      "OPENAI_API_KEY",
		"openai.api-key-file": "OPENAI_API_KEY_FILE",
		"openai.base-url":     "OPENAI_BASE_URL",
		"sample":              "JDM_SAMPLE",
		"store.path":          "JDM_STORE_PATH",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("openai.timeout", "60s")
	viper.SetDefault("extraction.model", analyzer.DefaultExtractionModel)
	viper.SetDefault("extraction.max-retries", analyzer.DefaultExtractionMaxRetries)
	viper.SetDefault("comparison.model", analyzer.DefaultComparisonModel)
	viper.SetDefault("comparison.max-retries", analyzer.DefaultComparisonMaxRetries)
	viper.SetDefault("retry-delay", "500ms")
	viper.SetDefault("sample-delay", "500ms")
	viper.SetDefault("max-log-length", 200)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jd-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// Without a config file the defaults and environment are enough, but a broken file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.OpenAI == nil {
		config.OpenAI = &OpenAIConfig{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}

	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func openStore(cfg *StoreConfig) (*store.Store, error) {
	path := ""
	if cfg != nil {
		path = cfg.Path
	}
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, app, "state.json")
	}
	return store.New(path)
}

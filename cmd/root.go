package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ovoronin/resume-ranker/internal/ai/gemini"
	"github.com/ovoronin/resume-ranker/internal/candidates"
	"github.com/ovoronin/resume-ranker/internal/extract"
	"github.com/ovoronin/resume-ranker/internal/llamacloud"
	"github.com/ovoronin/resume-ranker/internal/logger"
	"github.com/ovoronin/resume-ranker/internal/matching"
	"github.com/ovoronin/resume-ranker/internal/ranker"
	"github.com/ovoronin/resume-ranker/internal/scorer"
	"github.com/ovoronin/resume-ranker/internal/secrets"
	"github.com/ovoronin/resume-ranker/internal/tools"
)

const (
	app = "resume-ranker"

	defaultTimeout = 2 * time.Minute
)

type Config struct {
	AI         *AIConfig         `mapstructure:"ai"`
	LlamaCloud *LlamaCloudConfig `mapstructure:"llamacloud"`
	Matching   *MatchingConfig   `mapstructure:"matching"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type LlamaCloudConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	PipelineID   string `mapstructure:"pipeline-id"`
	UseMock      bool   `mapstructure:"use-mock"`
	MockFallback bool   `mapstructure:"mock-fallback"`
}

type MatchingConfig struct {
	RequiredWeight  float64       `mapstructure:"required-weight"`
	PreferredWeight float64       `mapstructure:"preferred-weight"`
	MaxConcurrency  int           `mapstructure:"max-concurrency"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-ranker extracts job requirements and ranks candidate résumés against them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		// An explicitly requested config file must parse.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")

	// The default config file is optional: API keys can come from the
	// environment and everything else has a default.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.LlamaCloud == nil {
		config.LlamaCloud = &LlamaCloudConfig{}
	}
	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}

	return config, nil
}

// newService wires the Judge, the candidate source and the ranking
// engine into the operations service. The returned timeout bounds a
// single operation.
func newService(ctx context.Context, log *zap.Logger) (*tools.Service, time.Duration, error) {
	config, err := getConfig()
	if err != nil {
		return nil, 0, fmt.Errorf("getting a config: %w", err)
	}

	judge, err := newJudge(ctx, config.AI, log)
	if err != nil {
		return nil, 0, err
	}

	maxLogLength := config.AI.Gemini.MaxLogLength
	extractor := extract.New(judge, log, maxLogLength)
	qualScorer := scorer.New(judge, log, maxLogLength)

	weights := matching.Weights{
		Required:  config.Matching.RequiredWeight,
		Preferred: config.Matching.PreferredWeight,
	}
	engine := ranker.New(qualScorer, weights, nil, log, config.Matching.MaxConcurrency)

	source, fallback, err := newSource(config.LlamaCloud, log)
	if err != nil {
		return nil, 0, err
	}

	timeout := config.Matching.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return tools.NewService(extractor, engine, source, fallback, log), timeout, nil
}

func newJudge(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*gemini.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithCommonFields(log, "gemini", cfg.Gemini.Model)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
}

// newSource picks the candidate source: the mock directly when
// requested, otherwise the LlamaCloud index with an optional mock
// fallback.
func newSource(cfg *LlamaCloudConfig, log *zap.Logger) (candidates.Source, candidates.Source, error) {
	if cfg.UseMock {
		log.Info("using the mock candidate source")
		return candidates.NewMockSource(), nil, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "llamacloud api key",
		File:  cfg.APIKeyFile,
		Env:   "LLAMACLOUD_API_KEY",
		Value: cfg.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set llamacloud.api-key-file or LLAMACLOUD_API_KEY, or llamacloud.use-mock)", err)
	}

	if strings.TrimSpace(cfg.PipelineID) == "" {
		return nil, nil, errors.New("llamacloud.pipeline-id is required")
	}

	source := candidates.NewIndexSource(llamacloud.New(apiKey, cfg.PipelineID, log), log)

	var fallback candidates.Source
	if cfg.MockFallback {
		fallback = candidates.NewMockSource()
	}

	return source, fallback, nil
}

package cmd

import (
	"context"
	"fmt"
	stdlog "log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/logger"
	"github.com/spigell/resume-guard/internal/masking"
	"github.com/spigell/resume-guard/internal/review"
	"github.com/spigell/resume-guard/internal/review/gemini"
	"github.com/spigell/resume-guard/internal/review/openrouter"
	"github.com/spigell/resume-guard/internal/secrets"
)

const (
	RecognizerLexicon = "lexicon"
	RecognizerProse   = "prose"
	RecognizerBoth    = "both"
	RecognizerNone    = "none"
)

// setup builds the logger and decodes the configuration.
func setup() (*zap.Logger, *Config) {
	// Logs go to stderr so masked output on stdout can be piped.
	log, err := logger.New(logger.Options{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: "stderr",
	})
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		log.Fatal("config is required")
	}

	return log, config
}

func newRecognizer(cfg *MaskingConfig) (masking.Recognizer, error) {
	name := RecognizerLexicon
	var extra masking.LexiconConfig
	if cfg != nil {
		if n := strings.TrimSpace(strings.ToLower(cfg.Recognizer)); n != "" {
			name = n
		}
		extra = cfg.Lexicon
	}

	switch name {
	case RecognizerLexicon:
		lex, err := masking.NewLexiconRecognizer(extra)
		if err != nil {
			return nil, fmt.Errorf("building lexicon recognizer: %w", err)
		}
		return lex, nil
	case RecognizerProse:
		return masking.NewProseRecognizer(), nil
	case RecognizerBoth:
		lex, err := masking.NewLexiconRecognizer(extra)
		if err != nil {
			return nil, fmt.Errorf("building lexicon recognizer: %w", err)
		}
		return masking.MultiRecognizer{lex, masking.NewProseRecognizer()}, nil
	case RecognizerNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported recognizer: %s", name)
	}
}

func newPipeline(cfg *MaskingConfig, log *zap.Logger) (*masking.Pipeline, error) {
	recognizer, err := newRecognizer(cfg)
	if err != nil {
		return nil, err
	}

	degrade := cfg != nil && cfg.DegradeOnEntityError
	return masking.New(masking.Options{
		Recognizer:           recognizer,
		DegradeOnEntityError: degrade,
		Logger:               log,
	}), nil
}

// newReviewer builds the configured reviewer service. The API key is resolved
// from the key file, the inline config value or the provider's environment
// variable, in that order.
func newReviewer(ctx context.Context, cfg *ReviewConfig, log *zap.Logger) (review.Reviewer, error) {
	if cfg == nil {
		cfg = &ReviewConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = openrouter.ProviderName
	}

	var generator review.Generator

	switch provider {
	case openrouter.ProviderName:
		orCfg := cfg.OpenRouter
		if orCfg == nil {
			orCfg = &OpenRouterConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openrouter api key",
			Value: orCfg.APIKey,
			File:  orCfg.APIKeyFile,
			Env:   "OPENROUTER_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set review.openrouter.api-key-file or OPENROUTER_API_KEY)", err)
		}

		generator, err = openrouter.New(openrouter.Config{
			APIKey:      apiKey,
			Model:       orCfg.Model,
			BaseURL:     orCfg.BaseURL,
			Referer:     orCfg.Referer,
			Title:       orCfg.Title,
			Temperature: orCfg.Temperature,
			Timeout:     orCfg.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
	case gemini.ProviderName:
		gCfg := cfg.Gemini
		if gCfg == nil {
			gCfg = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gCfg.APIKey,
			File:  gCfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set review.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		generator, err = gemini.NewGenerator(ctx, gemini.Config{
			APIKey:      apiKey,
			Model:       gCfg.Model,
			MaxRetries:  gCfg.MaxRetries,
			Temperature: gCfg.Temperature,
		}, log)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported review provider: %s", cfg.Provider)
	}

	service, err := review.NewService(generator, review.Options{
		Provider:      provider,
		RatePerMinute: cfg.RatePerMinute,
		MaxLogLength:  cfg.MaxLogLength,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}
	return service, nil
}

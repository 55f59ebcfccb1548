package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/imagereview/internal/analysis"
	"github.com/lehigh-university-libraries/imagereview/internal/cache"
	"github.com/lehigh-university-libraries/imagereview/internal/config"
	"github.com/lehigh-university-libraries/imagereview/internal/dataset"
	"github.com/lehigh-university-libraries/imagereview/internal/gemini"
	"github.com/lehigh-university-libraries/imagereview/internal/images"
	"github.com/lehigh-university-libraries/imagereview/internal/ollama"
	"github.com/lehigh-university-libraries/imagereview/internal/openai"
	"github.com/lehigh-university-libraries/imagereview/internal/providers"
)

// pipeline is everything needed to load and analyze a table
type pipeline struct {
	cfg      *config.Config
	store    cache.Store
	analyzer *analysis.Analyzer
	loader   *dataset.Loader
	opener   *dataset.Opener
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newProvider(cfg *config.Config) (providers.Provider, error) {
	switch cfg.Provider.Name {
	case config.ProviderOpenAI:
		return openai.New(cfg.Provider.OpenAIAPIKey, cfg.Provider.OpenAIBaseURL, cfg.Timeout()), nil
	case config.ProviderGemini:
		return gemini.New(cfg.Provider.GeminiAPIKey), nil
	case config.ProviderOllama:
		return ollama.New(cfg.Provider.OllamaURL, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider.Name)
	}
}

// openStore opens the analysis cache without needing provider credentials
func openStore(ctx context.Context, flags *globalFlags) (cache.Store, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	return cache.Open(ctx, cfg.CacheOptions())
}

func newPipeline(ctx context.Context, flags *globalFlags) (*pipeline, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis cache: %w", err)
	}

	analyzer := analysis.New(store, images.NewFetcher(cfg.Timeout()), provider, analysis.Options{
		Model:             cfg.Model(),
		Temperature:       cfg.Provider.Temperature,
		MaxImageDimension: cfg.Analysis.MaxImageDimension,
		Timeout:           cfg.Timeout(),
		CacheFailures:     cfg.Cache.CacheFailures,
	})

	slog.Debug("Pipeline ready",
		"provider", cfg.Provider.Name,
		"model", cfg.Model(),
		"cache_backend", cfg.Cache.Backend,
		"cache_path", cfg.Cache.Path)

	return &pipeline{
		cfg:      cfg,
		store:    store,
		analyzer: analyzer,
		loader:   dataset.NewLoader(analyzer, cfg.Analysis.Concurrency),
		opener: dataset.NewOpener(cfg.Timeout(), dataset.SourceAuth{
			Token:    cfg.Source.Token,
			Username: cfg.Source.Username,
			Password: cfg.Source.Password,
		}),
	}, nil
}

// source resolves the positional argument against the configured default
func (p *pipeline) source(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if p.cfg.Source.URL != "" {
		return p.cfg.Source.URL, nil
	}
	return "", fmt.Errorf("no source given: pass a path or URL, or set source.url")
}

func (p *pipeline) Close() {
	if err := p.store.Close(); err != nil {
		slog.Error("Failed to close analysis cache", "err", err)
	}
}

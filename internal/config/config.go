package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/lehigh-university-libraries/imagereview/internal/cache"
	"github.com/lehigh-university-libraries/imagereview/internal/models"
	"gopkg.in/yaml.v3"
)

const AppName = "imagereview"

// Vision providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

type Config struct {
	Provider ProviderConfig       `yaml:"provider" toml:"provider"`
	Source   SourceConfig         `yaml:"source" toml:"source"`
	Columns  models.ColumnMapping `yaml:"columns" toml:"columns"`
	Cache    CacheConfig          `yaml:"cache" toml:"cache"`
	Analysis AnalysisConfig       `yaml:"analysis" toml:"analysis"`
	Server   ServerConfig         `yaml:"server" toml:"server"`
}

type ProviderConfig struct {
	Name          string  `yaml:"name" toml:"name"`
	Model         string  `yaml:"model" toml:"model"`
	Temperature   float64 `yaml:"temperature" toml:"temperature"`
	OpenAIAPIKey  string  `yaml:"openai_api_key" toml:"openai_api_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url" toml:"openai_base_url"`
	GeminiAPIKey  string  `yaml:"gemini_api_key" toml:"gemini_api_key"`
	OllamaURL     string  `yaml:"ollama_url" toml:"ollama_url"`
}

// SourceConfig is the default table location. URL may be a local path.
type SourceConfig struct {
	URL      string `yaml:"url" toml:"url"`
	Token    string `yaml:"token" toml:"token"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

type CacheConfig struct {
	Backend       string `yaml:"backend" toml:"backend"`
	Path          string `yaml:"path" toml:"path"`
	CacheFailures bool   `yaml:"cache_failures" toml:"cache_failures"`
	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db"`
	RedisKey      string `yaml:"redis_key" toml:"redis_key"`
}

type AnalysisConfig struct {
	Concurrency       int `yaml:"concurrency" toml:"concurrency"`
	TimeoutSeconds    int `yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxImageDimension int `yaml:"max_image_dimension" toml:"max_image_dimension"`
}

type ServerConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Default returns the configuration used when no file or environment
// overrides are present
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:        ProviderOpenAI,
			Temperature: 0,
			OllamaURL:   "http://localhost:11434",
		},
		Columns: models.DefaultColumnMapping(),
		Cache: CacheConfig{
			Backend: cache.BackendFile,
			Path:    filepath.Join(xdg.CacheHome, AppName, "analysis_cache.json"),
		},
		Analysis: AnalysisConfig{
			Concurrency:       4,
			TimeoutSeconds:    60,
			MaxImageDimension: 1600,
		},
		Server: ServerConfig{
			Port: 8888,
		},
	}
}

// Load applies the optional file at path over the defaults, then the
// environment. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.overrideByEnv()
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("decode config file failed: %w", err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode config file failed: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	return nil
}

func (c *Config) overrideByEnv() {
	c.Provider.Name = getEnv("REVIEW_PROVIDER", c.Provider.Name)
	c.Provider.Model = getEnv("REVIEW_MODEL", c.Provider.Model)
	c.Provider.Temperature = getEnvAsFloat("REVIEW_TEMPERATURE", c.Provider.Temperature)
	c.Provider.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.Provider.OpenAIAPIKey)
	c.Provider.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.Provider.OpenAIBaseURL)
	c.Provider.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Provider.GeminiAPIKey)
	c.Provider.OllamaURL = getEnv("OLLAMA_URL", c.Provider.OllamaURL)

	c.Source.URL = getEnv("REVIEW_SOURCE_URL", c.Source.URL)
	c.Source.Token = getEnv("REVIEW_SOURCE_TOKEN", c.Source.Token)
	c.Source.Username = getEnv("REVIEW_SOURCE_USERNAME", c.Source.Username)
	c.Source.Password = getEnv("REVIEW_SOURCE_PASSWORD", c.Source.Password)

	c.Cache.Backend = getEnv("REVIEW_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Path = getEnv("REVIEW_CACHE_PATH", c.Cache.Path)
	c.Cache.CacheFailures = getEnvAsBool("REVIEW_CACHE_FAILURES", c.Cache.CacheFailures)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvAsInt("REDIS_DB", c.Cache.RedisDB)

	c.Analysis.Concurrency = getEnvAsInt("REVIEW_CONCURRENCY", c.Analysis.Concurrency)
	c.Analysis.TimeoutSeconds = getEnvAsInt("REVIEW_TIMEOUT_SECONDS", c.Analysis.TimeoutSeconds)

	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
}

// Validate checks the configuration. A missing API key for openai or gemini
// is reported as ErrMissingCredential.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderOpenAI:
		if c.Provider.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingCredential)
		}
	case ProviderGemini:
		if c.Provider.GeminiAPIKey == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingCredential)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider.Name)
	}

	switch c.Cache.Backend {
	case cache.BackendFile, cache.BackendSQLite, cache.BackendRedis:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Cache.Backend)
	}

	for _, role := range models.Roles {
		if strings.TrimSpace(c.Columns.Column(role)) == "" {
			return fmt.Errorf("%w: %s", ErrEmptyColumn, role)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}
	if c.Analysis.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	return nil
}

// Model returns the configured model or the provider's default
func (c *Config) Model() string {
	if c.Provider.Model != "" {
		return c.Provider.Model
	}
	switch c.Provider.Name {
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderOllama:
		return "llava"
	default:
		return "gpt-4o-mini"
	}
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:       c.Cache.Backend,
		Path:          c.Cache.Path,
		RedisAddr:     c.Cache.RedisAddr,
		RedisPassword: c.Cache.RedisPassword,
		RedisDB:       c.Cache.RedisDB,
		RedisKey:      c.Cache.RedisKey,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

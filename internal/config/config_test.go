package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"REVIEW_PROVIDER", "REVIEW_MODEL", "REVIEW_TEMPERATURE", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"GEMINI_API_KEY", "OLLAMA_URL", "REVIEW_SOURCE_URL", "REVIEW_SOURCE_TOKEN",
	"REVIEW_SOURCE_USERNAME", "REVIEW_SOURCE_PASSWORD", "REVIEW_CACHE_BACKEND", "REVIEW_CACHE_PATH",
	"REVIEW_CACHE_FAILURES", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REVIEW_CONCURRENCY",
	"REVIEW_TIMEOUT_SECONDS", "PORT",
}

// clearEnv blanks every variable Load reads; empty values are ignored
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Name != ProviderOpenAI {
		t.Errorf("Provider.Name = %s", cfg.Provider.Name)
	}
	if cfg.Columns.Image != "ImageURL" || cfg.Columns.PlaceID != "GooglePlaceID" {
		t.Errorf("Columns = %+v", cfg.Columns)
	}
	if cfg.Cache.CacheFailures {
		t.Error("failures should not be cached by default")
	}
	if filepath.Base(cfg.Cache.Path) != "analysis_cache.json" {
		t.Errorf("Cache.Path = %s", cfg.Cache.Path)
	}
	if !errors.Is(cfg.Validate(), ErrMissingCredential) {
		t.Error("openai without a key should fail validation")
	}
}

func TestLoad_Files(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "config.yaml",
			content: `provider:
  name: ollama
  model: llava:13b
columns:
  url: Link
  image: Photo
  place_id: Place
  id: Code
cache:
  backend: sqlite
  path: /tmp/cache.db
  cache_failures: true
server:
  port: 9000
`,
		},
		{
			name: "toml",
			file: "config.toml",
			content: `[provider]
name = "ollama"
model = "llava:13b"

[columns]
url = "Link"
image = "Photo"
place_id = "Place"
id = "Code"

[cache]
backend = "sqlite"
path = "/tmp/cache.db"
cache_failures = true

[server]
port = 9000
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if cfg.Model() != "llava:13b" {
				t.Errorf("Model() = %s", cfg.Model())
			}
			if cfg.Columns.URL != "Link" || cfg.Columns.ID != "Code" {
				t.Errorf("Columns = %+v", cfg.Columns)
			}
			if cfg.Cache.Backend != "sqlite" || !cfg.Cache.CacheFailures {
				t.Errorf("Cache = %+v", cfg.Cache)
			}
			if cfg.Server.Port != 9000 {
				t.Errorf("Server.Port = %d", cfg.Server.Port)
			}
			if cfg.Analysis.Concurrency != 4 {
				t.Errorf("unset values should keep defaults, got concurrency %d", cfg.Analysis.Concurrency)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7000")
	t.Setenv("REVIEW_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if cfg.Model() != "gemini-2.5-flash" {
		t.Errorf("Model() = %s", cfg.Model())
	}
}

func TestLoad_UnsupportedFile(t *testing.T) {
	clearEnv(t)
	_, err := Load("config.json")
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("expected ErrUnsupportedFile, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "ollama needs no key", mutate: func(c *Config) { c.Provider.Name = ProviderOllama }},
		{name: "openai with key", mutate: func(c *Config) { c.Provider.OpenAIAPIKey = "k" }},
		{name: "gemini without key", mutate: func(c *Config) { c.Provider.Name = ProviderGemini }, want: ErrMissingCredential},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider.Name = "claude" }, want: ErrUnknownProvider},
		{name: "unknown backend", mutate: func(c *Config) {
			c.Provider.Name = ProviderOllama
			c.Cache.Backend = "memcached"
		}, want: ErrUnknownBackend},
		{name: "empty column", mutate: func(c *Config) {
			c.Provider.Name = ProviderOllama
			c.Columns.PlaceID = " "
		}, want: ErrEmptyColumn},
		{name: "bad port", mutate: func(c *Config) {
			c.Provider.Name = ProviderOllama
			c.Server.Port = 0
		}, want: ErrInvalidPort},
		{name: "bad timeout", mutate: func(c *Config) {
			c.Provider.Name = ProviderOllama
			c.Analysis.TimeoutSeconds = 0
		}, want: ErrInvalidTimeout},
		{name: "bad concurrency", mutate: func(c *Config) {
			c.Provider.Name = ProviderOllama
			c.Analysis.Concurrency = -1
		}, want: ErrInvalidConcurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

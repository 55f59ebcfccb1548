package config

import "errors"

// Returned by Config.Validate. ErrMissingCredential is fatal at startup for
// providers that need an API key.
var (
	ErrMissingCredential  = errors.New("missing API key for vision provider")
	ErrUnknownProvider    = errors.New("unknown vision provider: must be openai, gemini or ollama")
	ErrUnknownBackend     = errors.New("unknown cache backend: must be file, sqlite or redis")
	ErrInvalidPort        = errors.New("invalid port: must be between 1 and 65535")
	ErrInvalidTimeout     = errors.New("invalid timeout: must be positive")
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")
	ErrEmptyColumn        = errors.New("column names must not be empty")
	ErrUnsupportedFile    = errors.New("unsupported config file: use .yaml, .yml or .toml")
)

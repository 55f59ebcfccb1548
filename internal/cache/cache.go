package cache

import (
	"context"
	"fmt"
)

// Store is a durable mapping from image URL to the raw analysis text returned
// for it. Entries never expire; Put persists before returning.
type Store interface {
	Get(ctx context.Context, imageURL string) (string, bool, error)
	Put(ctx context.Context, imageURL, text string) error
	Delete(ctx context.Context, imageURL string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a cache backend
type Options struct {
	Backend string
	// Path is the JSON document for the file backend and the database file
	// for the sqlite backend.
	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// Open returns the configured Store
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Path), nil
	case BackendSQLite:
		store, err := OpenSQLite(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendRedis:
		store, err := NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisKey)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", opts.Backend)
	}
}

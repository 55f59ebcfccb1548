package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	redisv9 "github.com/redis/go-redis/v9"
)

const defaultRedisKey = "imagereview:analysis"

// RedisStore keeps all entries in one Redis hash with no TTL, so it can be
// shared by several reviewer processes pointed at the same server.
type RedisStore struct {
	client *redisv9.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection
func NewRedisStore(ctx context.Context, addr, password string, db int, key string) (*RedisStore, error) {
	if key == "" {
		key = defaultRedisKey
	}
	client := redisv9.NewClient(&redisv9.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Get(ctx context.Context, imageURL string) (string, bool, error) {
	text, err := s.client.HGet(ctx, s.key, imageURL).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get analysis failed: %w", err)
	}
	return text, true, nil
}

func (s *RedisStore) Put(ctx context.Context, imageURL, text string) error {
	if err := s.client.HSet(ctx, s.key, imageURL, text).Err(); err != nil {
		return fmt.Errorf("redis set analysis failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, imageURL string) error {
	if err := s.client.HDel(ctx, s.key, imageURL).Err(); err != nil {
		return fmt.Errorf("redis delete analysis failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list analysis failed: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

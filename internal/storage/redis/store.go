package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"

	"day2do/internal/storage"
)

// DefaultPrefix namespaces planner keys inside a shared Redis database.
const DefaultPrefix = "day2do:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps planner blobs as plain Redis string values.
type Store struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

var _ storage.BlobStore = (*Store)(nil)

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("empty redis address")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	logger.Debug("redis blob store ready", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return NewWithClient(client, opts.Prefix, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

// Close releases the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the value stored under key or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		s.logger.Warn("get blob failed", slog.String("key", s.prefix+key), slog.String("error", err.Error()))
		return nil, fmt.Errorf("get blob %q: %w", key, err)
	}
	return value, nil
}

// Set overwrites the value stored under key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		s.logger.Warn("set blob failed", slog.String("key", s.prefix+key), slog.String("error", err.Error()))
		return fmt.Errorf("set blob %q: %w", key, err)
	}
	return nil
}

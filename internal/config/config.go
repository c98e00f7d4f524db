package config

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"day2do/internal/util"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// RedisConfig holds the connection settings for the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Config is the process configuration. Flags win over environment variables,
// which win over defaults.
type Config struct {
	Addr           string
	Storage        string
	DBPath         string
	Redis          RedisConfig
	LogLevel       string
	PersistRetries int
	PersistBackoff time.Duration
}

// Load parses args (without the program name) on top of the environment.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("day2do", flag.ContinueOnError)

	fs.StringVar(&cfg.Addr, "addr", util.EnvOrDefault("DAY2DO_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.Storage, "storage", util.EnvOrDefault("DAY2DO_STORAGE", StorageSQLite), "Blob store backend: sqlite or redis")
	fs.StringVar(&cfg.DBPath, "db", util.EnvOrDefault("DAY2DO_DB_PATH", "data/day2do.db"), "Path to sqlite database file")
	fs.StringVar(&cfg.Redis.Addr, "redis-addr", util.EnvOrDefault("DAY2DO_REDIS_ADDR", "localhost:6379"), "Redis address")
	fs.StringVar(&cfg.Redis.Password, "redis-password", util.EnvOrDefault("DAY2DO_REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.Redis.DB, "redis-db", util.EnvIntOrDefault("DAY2DO_REDIS_DB", 0), "Redis database number")
	fs.StringVar(&cfg.Redis.Prefix, "redis-prefix", util.EnvOrDefault("DAY2DO_REDIS_PREFIX", "day2do:"), "Prefix for redis keys")
	fs.StringVar(&cfg.LogLevel, "log-level", util.EnvOrDefault("DAY2DO_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.IntVar(&cfg.PersistRetries, "persist-retries", util.EnvIntOrDefault("DAY2DO_PERSIST_RETRIES", 3), "Write attempts per snapshot")
	fs.DurationVar(&cfg.PersistBackoff, "persist-backoff", util.EnvDurationOrDefault("DAY2DO_PERSIST_BACKOFF", 200*time.Millisecond), "Initial delay between write attempts")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	switch c.Storage {
	case StorageSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("sqlite storage needs a database path")
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis storage needs an address")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.PersistRetries < 1 {
		return fmt.Errorf("persist retries must be at least 1, got %d", c.PersistRetries)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level converts LogLevel into a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

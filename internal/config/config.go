package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
	ErrMissingOllamaURL   = errors.New("OLLAMA_URL is required")
)

type Config struct {
	Server ServerConfig
	Ollama OllamaConfig
	DB     DBConfig
	Redis  RedisConfig
	Stream StreamConfig
	Log    LogConfig
}

type ServerConfig struct {
	ListenAddr  string
	HealthPath  string
	MetricsPath string
	ReadTimeout time.Duration
}

type OllamaConfig struct {
	BaseURL       string
	ClientTimeout time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ModelCacheTTL time.Duration
}

type StreamConfig struct {
	// ChunkTimeout bounds the wait for the next chunk of a generation.
	ChunkTimeout time.Duration
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:  mustEnv("LISTEN_ADDR", ":8080"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
			ReadTimeout: mustDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		},
		Ollama: OllamaConfig{
			BaseURL:       mustEnv("OLLAMA_URL", "http://127.0.0.1:11434"),
			ClientTimeout: mustDuration("OLLAMA_TIMEOUT", 30*time.Second),
			MaxRetries:    mustInt("OLLAMA_MAX_RETRIES", 2),
			BackoffBase:   mustDuration("OLLAMA_BACKOFF_BASE", 400*time.Millisecond),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:         mustEnv("DB_DSN", "file:instance/alpaca.db?_pragma=foreign_keys(1)"),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:          mustEnv("REDIS_ADDR", ""),
			Password:      mustEnv("REDIS_PASSWORD", ""),
			DB:            mustInt("REDIS_DB", 0),
			ModelCacheTTL: mustDuration("MODEL_CACHE_TTL", 30*time.Second),
		},
		Stream: StreamConfig{
			ChunkTimeout: mustDuration("STREAM_CHUNK_TIMEOUT", 2*time.Minute),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.Ollama.BaseURL == "" {
		return nil, ErrMissingOllamaURL
	}
	switch cfg.DB.Driver {
	case "sqlite", "sqlite3", "postgres", "pgx":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

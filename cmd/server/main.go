package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"alpaca/internal/cache"
	"alpaca/internal/config"
	"alpaca/internal/metrics"
	"alpaca/internal/provider/ollama"
	"alpaca/internal/session"
	"alpaca/internal/storage"
	"alpaca/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("listen_addr", cfg.Server.ListenAddr).
		Str("ollama_url", cfg.Ollama.BaseURL).
		Str("db_driver", cfg.DB.Driver).
		Msg("starting alpaca")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	var modelCache *cache.ModelCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, model list caching disabled")
			_ = rdb.Close()
		} else {
			defer rdb.Close()
			modelCache = cache.NewModelCache(rdb, cfg.Redis.ModelCacheTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.ModelCacheTTL).Msg("model list cache enabled")
		}
	}

	backend := ollama.New(ollama.Config{
		BaseURL:     cfg.Ollama.BaseURL,
		HTTPClient:  &http.Client{Timeout: cfg.Ollama.ClientTimeout},
		MaxRetries:  cfg.Ollama.MaxRetries,
		BackoffBase: cfg.Ollama.BackoffBase,
	})

	m := metrics.Global()
	runner := session.New(session.Config{
		Store:        store,
		Backend:      backend,
		ChunkTimeout: cfg.Stream.ChunkTimeout,
		Logger:       log.Logger,
		Metrics:      m,
	})

	router := web.NewRouter(web.Config{
		Store:       store,
		Backend:     backend,
		Runner:      runner,
		ModelCache:  modelCache,
		Logger:      log.Logger,
		Metrics:     m,
		ExchangeCtx: ctx,
		HealthPath:  cfg.Server.HealthPath,
		MetricsPath: cfg.Server.MetricsPath,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

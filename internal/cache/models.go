package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"alpaca/internal/provider"
)

const modelListKey = "alpaca:models"

// ModelCache keeps the backend's model tag list in redis for a short
// TTL so the models endpoint does not hit Ollama on every request.
// A nil cache is valid and always misses.
type ModelCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewModelCache(rdb *redis.Client, ttl time.Duration) *ModelCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ModelCache{redis: rdb, ttl: ttl}
}

func (c *ModelCache) Get(ctx context.Context) ([]provider.ModelInfo, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	raw, err := c.redis.Get(ctx, modelListKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get model cache: %w", err)
	}
	var models []provider.ModelInfo
	if err := json.Unmarshal(raw, &models); err != nil {
		// Stale or corrupt payload, treat as a miss.
		return nil, false, nil
	}
	return models, true, nil
}

func (c *ModelCache) Set(ctx context.Context, models []provider.ModelInfo) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("marshal model cache: %w", err)
	}
	if err := c.redis.Set(ctx, modelListKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set model cache: %w", err)
	}
	return nil
}

func (c *ModelCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.redis.Del(ctx, modelListKey).Err(); err != nil {
		return fmt.Errorf("invalidate model cache: %w", err)
	}
	return nil
}

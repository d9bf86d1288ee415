package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"alpaca/internal/provider"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ModelCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewModelCache(rdb, ttl), mr
}

func TestModelCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, hit, err := c.Get(ctx); err != nil || hit {
		t.Fatalf("expected clean miss, hit=%v err=%v", hit, err)
	}

	models := []provider.ModelInfo{{Name: "llama3:latest", SizeBytes: 123, Family: "llama"}}
	if err := c.Set(ctx, models); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, hit, err := c.Get(ctx)
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if len(got) != 1 || got[0].Name != "llama3:latest" || got[0].SizeBytes != 123 {
		t.Fatalf("unexpected cached models: %+v", got)
	}
}

func TestModelCacheExpires(t *testing.T) {
	c, mr := newTestCache(t, time.Second)
	ctx := context.Background()

	if err := c.Set(ctx, []provider.ModelInfo{{Name: "llama3"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, hit, err := c.Get(ctx); err != nil || hit {
		t.Fatalf("expected expiry miss, hit=%v err=%v", hit, err)
	}
}

func TestNilModelCacheAlwaysMisses(t *testing.T) {
	var c *ModelCache
	ctx := context.Background()

	if _, hit, err := c.Get(ctx); err != nil || hit {
		t.Fatalf("nil cache should miss silently, hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, nil); err != nil {
		t.Fatalf("nil cache set: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("nil cache invalidate: %v", err)
	}
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	detailKeyPrefix = "catalog:product:"
	listKeyPrefix   = "catalog:products:"
	listVersionKey  = "catalog:products:version"
)

// Cache stores catalog views as JSON in Redis. A nil *Cache or one without a
// client is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// ListVersion returns the generation counter embedded in list page keys.
func (c *Cache) ListVersion(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	v, err := c.client.Get(ctx, listVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Invalidate drops the detail entry for slug and retires every cached list page.
func (c *Cache) Invalidate(ctx context.Context, slugs ...string) error {
	if !c.enabled() {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, slug := range slugs {
		if slug != "" {
			pipe.Del(ctx, detailKey(slug))
		}
	}
	pipe.Incr(ctx, listVersionKey)
	_, err := pipe.Exec(ctx)
	return err
}

func detailKey(slug string) string { return detailKeyPrefix + slug }

func listKey(version int64, p ListParams) string {
	return listKeyPrefix + strconv.FormatInt(version, 10) + ":" +
		p.Query + "|" + p.Brand + "|" + p.Sort + "|" +
		strconv.Itoa(p.Page) + "|" + strconv.Itoa(p.Limit)
}

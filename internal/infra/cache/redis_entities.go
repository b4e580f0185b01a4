package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"feedsync/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisEntityCache stores records as JSON strings under "<prefix><kind>:<id>".
type RedisEntityCache struct {
	rdb    *RedisCache
	prefix string
	ttl    time.Duration
}

// NewRedisEntities builds an EntityCache on rdb. A ttl of zero keeps records
// until Clear.
func NewRedisEntities(rdb *RedisCache, prefix string, ttl time.Duration) *RedisEntityCache {
	return &RedisEntityCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisEntityCache) GetContent(ctx context.Context, id int64) (models.ContentItem, bool, error) {
	var c models.ContentItem
	ok, err := r.load(ctx, Key(KindContent, id), &c)
	return c, ok, err
}

func (r *RedisEntityCache) PutContent(ctx context.Context, c models.ContentItem) error {
	return r.store(ctx, Key(KindContent, c.ID), c)
}

func (r *RedisEntityCache) GetIdentity(ctx context.Context, id int64) (models.Identity, bool, error) {
	var u models.Identity
	ok, err := r.load(ctx, Key(KindIdentity, id), &u)
	return u, ok, err
}

func (r *RedisEntityCache) PutIdentity(ctx context.Context, u models.Identity) error {
	return r.store(ctx, Key(KindIdentity, u.ID), u)
}

func (r *RedisEntityCache) Clear(ctx context.Context) error {
	for _, kind := range []Kind{KindContent, KindIdentity} {
		if err := r.rdb.ClearCacheByPattern(ctx, r.prefix+string(kind)+":*"); err != nil {
			return fmt.Errorf("clear %s: %w", kind, err)
		}
	}
	return nil
}

func (r *RedisEntityCache) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+key)
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisEntityCache) store(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.rdb.SetWithRandomTTL(ctx, r.prefix+key, string(b), r.ttl)
}

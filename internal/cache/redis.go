package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// tagKey is the set holding the keys written under a tag.
func tagKey(tag string) string { return "cache:tag:" + tag }

// Redis backs the cache with a shared redis instance so all API instances
// see the same entries and invalidations.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

var _ Cache = (*Redis)(nil)

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set implements Cache. Tag sets outlive their members by an hour so a tag
// registered just before its entries expire still invalidates cleanly.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, tagKey(tag), key)
		pipe.Expire(ctx, tagKey(tag), ttl+time.Hour)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Delete implements Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// InvalidateTag implements Cache.
func (r *Redis) InvalidateTag(ctx context.Context, tag string) (int, error) {
	keys, err := r.client.SMembers(ctx, tagKey(tag)).Result()
	if err != nil {
		return 0, err
	}
	pipe := r.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, tagKey(tag))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Flush implements Cache.
func (r *Redis) Flush(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

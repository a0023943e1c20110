package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Client, backed by a go-redis connection pool.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a Redis-backed client.
func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{rdb: rdb}
}

// NewRedisFromClient wraps an existing go-redis client. Useful when the host
// application already manages the connection.
func NewRedisFromClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Get retrieves a value by key.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable("get", err)
	}
	return val, true, nil
}

// MGet fetches many keys in one MGET round trip, preserving key order.
func (r *Redis) MGet(ctx context.Context, keys ...string) ([]Result, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("mget", err)
	}
	out := make([]Result, len(keys))
	for i, v := range raw {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[i] = Result{Value: s, Found: true}
	}
	return out, nil
}

// Set stores a value with no expiry.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// SetTTL stores a value and its expiry in a single SET, so the entry can
// never exist without its TTL.
func (r *Redis) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Expire re-arms the expiry of an existing key.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return unavailable("expire", err)
	}
	return nil
}

// Del removes keys.
func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

package kv

import (
	"context"
	"time"
)

// promoteTTL bounds how long a value promoted from Redis may live in the
// memory tier. Redis remains the authoritative holder of the real TTL; the
// near tier only ever keeps a short-lived copy, so a ban that expires in
// Redis is stale in process for at most this long.
const promoteTTL = 30 * time.Second

// Tiered combines the in-process Memory tier with the shared Redis tier.
// Reads check memory first; hits from Redis are promoted into memory with a
// short bounded TTL. Writes and deletes go to Redis first so the shared
// tier is never behind the local one.
type Tiered struct {
	near *Memory
	far  *Redis
}

// NewTiered creates a two-tier client.
func NewTiered(near *Memory, far *Redis) *Tiered {
	return &Tiered{near: near, far: far}
}

// Get checks the memory tier, then Redis, promoting Redis hits.
func (t *Tiered) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok, _ := t.near.Get(ctx, key); ok {
		return v, true, nil
	}
	v, ok, err := t.far.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	_ = t.near.SetTTL(ctx, key, v, promoteTTL)
	return v, true, nil
}

// MGet answers what it can from the memory tier and fetches the remainder
// from Redis in one round trip, preserving the input order.
func (t *Tiered) MGet(ctx context.Context, keys ...string) ([]Result, error) {
	out := make([]Result, len(keys))

	var missing []string
	var missingIdx []int
	for i, k := range keys {
		if v, ok, _ := t.near.Get(ctx, k); ok {
			out[i] = Result{Value: v, Found: true}
			continue
		}
		missing = append(missing, k)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	far, err := t.far.MGet(ctx, missing...)
	if err != nil {
		return nil, err
	}
	for j, r := range far {
		if !r.Found {
			continue
		}
		out[missingIdx[j]] = r
		_ = t.near.SetTTL(ctx, missing[j], r.Value, promoteTTL)
	}
	return out, nil
}

// Set writes to Redis, then memory.
func (t *Tiered) Set(ctx context.Context, key, value string) error {
	if err := t.far.Set(ctx, key, value); err != nil {
		return err
	}
	return t.near.Set(ctx, key, value)
}

// SetTTL writes to Redis, then memory. The memory copy is capped at
// promoteTTL so only Redis enforces the real expiry.
func (t *Tiered) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := t.far.SetTTL(ctx, key, value, ttl); err != nil {
		return err
	}
	nearTTL := ttl
	if nearTTL <= 0 || nearTTL > promoteTTL {
		nearTTL = promoteTTL
	}
	return t.near.SetTTL(ctx, key, value, nearTTL)
}

// Expire re-arms the expiry on both tiers.
func (t *Tiered) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := t.far.Expire(ctx, key, ttl); err != nil {
		return err
	}
	nearTTL := ttl
	if nearTTL <= 0 || nearTTL > promoteTTL {
		nearTTL = promoteTTL
	}
	return t.near.Expire(ctx, key, nearTTL)
}

// Del drops the local copy first so this process cannot serve a stale hit
// even if the Redis delete fails, then deletes from Redis.
func (t *Tiered) Del(ctx context.Context, keys ...string) error {
	_ = t.near.Del(ctx, keys...)
	return t.far.Del(ctx, keys...)
}

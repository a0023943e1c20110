package kv

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Memory is an in-process Client backed by ristretto. It exists for
// embedded deployments and local development, and as the near tier of
// Tiered. It can never return ErrUnavailable.
type Memory struct {
	rc *ristretto.Cache[string, string]
}

// NewMemory creates an in-process client. maxCost bounds the number of
// entries (each entry has a cost of 1).
func NewMemory(maxCost int64) (*Memory, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{rc: rc}, nil
}

// Get retrieves a value by key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.rc.Get(key)
	if !ok {
		return "", false, nil
	}
	return v, true, nil
}

// MGet looks up each key in order. There is no batching to exploit in
// process, but the order contract is the same as for Redis.
func (m *Memory) MGet(ctx context.Context, keys ...string) ([]Result, error) {
	out := make([]Result, len(keys))
	for i, k := range keys {
		v, ok, _ := m.Get(ctx, k)
		out[i] = Result{Value: v, Found: ok}
	}
	return out, nil
}

// Set stores a value with no expiry.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	return m.SetTTL(ctx, key, value, 0)
}

// SetTTL stores a value that expires after ttl. Ristretto associates the
// TTL with the entry in the same write, so value and expiry are atomic.
func (m *Memory) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	m.rc.SetWithTTL(key, value, 1, ttl)
	// Wait so a subsequent Get observes the write (read-your-writes).
	m.rc.Wait()
	return nil
}

// Expire re-arms the expiry of an existing key by rewriting the entry.
func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	v, ok := m.rc.Get(key)
	if !ok {
		return nil
	}
	return m.SetTTL(ctx, key, v, ttl)
}

// Del removes keys.
func (m *Memory) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.rc.Del(k)
	}
	m.rc.Wait()
	return nil
}

// Close releases the ristretto cache.
func (m *Memory) Close() {
	m.rc.Close()
}

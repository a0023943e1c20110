// Package kv defines the key-value cache client consumed by the lookup
// layer, with a Redis-backed implementation, an in-process implementation
// backed by ristretto, and a tiered combination of the two.
//
// All values are strings. Unlike a generic cache, implementations here do
// NOT fail soft: a backend that cannot be reached surfaces ErrUnavailable
// instead of pretending the key was a miss, because the caller must be able
// to tell "not cached" apart from "cache is down" (treating an outage as a
// miss would route every request to the store).
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable indicates the cache backend could not be reached. Check
// for it with errors.Is.
var ErrUnavailable = errors.New("kv: backend unavailable")

// unavailable wraps a backend error so that errors.Is(err, ErrUnavailable)
// holds while keeping the underlying cause visible.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// Result is a single MGet slot: the value and whether the key was present.
type Result struct {
	Value string
	Found bool
}

// Client is the cache contract the lookup layer is written against.
//
// Implementations must be safe for concurrent use. Set with a positive TTL
// must write the value and its expiry atomically (never value first, expiry
// later) so a crash cannot leave an entry that outlives its fact.
type Client interface {
	// Get returns the value for key. The boolean reports presence; an
	// absent key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// MGet returns one Result per key in a single round trip. The result
	// slice always has len(keys) entries and index i corresponds to keys[i].
	MGet(ctx context.Context, keys ...string) ([]Result, error)

	// Set stores value under key with no expiry.
	Set(ctx context.Context, key, value string) error

	// SetTTL stores value under key, expiring after ttl. A non-positive ttl
	// behaves like Set.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Expire re-arms the expiry of an existing key. Missing keys are a no-op.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
}

package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Keksclan/goNutStash/breaker"
	"github.com/Keksclan/goNutStash/kv"
	"github.com/Keksclan/goNutStash/metrics"
)

// ErrStoreUnavailable is returned when a store fallback cannot run because
// the store guard (circuit breaker) is open. Store query errors themselves
// propagate unwrapped so callers keep the driver's error detail.
var ErrStoreUnavailable = errors.New("lookup: store unavailable")

// Fetcher runs the cache-aside protocol against a kv.Client. The zero
// options are fine: metrics, the store guard and logging are all optional.
//
// Fetcher holds no mutable state of its own and is safe for concurrent use.
// Two callers racing on the same cold key will both run the fallback and
// both write the same value back; that duplicate work is accepted instead
// of a lock.
type Fetcher struct {
	kv    kv.Client
	mset  *metrics.Set
	guard *breaker.Breaker
	log   zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMetrics installs lookup counters.
func WithMetrics(s *metrics.Set) Option {
	return func(f *Fetcher) { f.mset = s }
}

// WithStoreGuard installs a circuit breaker around store fallbacks. When
// the breaker is open, fallbacks fail fast with ErrStoreUnavailable instead
// of queueing on a struggling store.
func WithStoreGuard(b *breaker.Breaker) Option {
	return func(f *Fetcher) { f.guard = b }
}

// WithLogger installs a logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

// New creates a Fetcher on top of the given cache client.
func New(c kv.Client, opts ...Option) *Fetcher {
	f := &Fetcher{kv: c, log: zerolog.Nop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Lookup reads one key and classifies the result. It performs exactly one
// cache round trip and never touches the store.
func (f *Fetcher) Lookup(ctx context.Context, key string) (Value, error) {
	raw, present, err := f.kv.Get(ctx, key)
	if err != nil {
		return Value{}, err
	}
	v := FromCache(raw, present)
	f.mset.Lookup(v.State().String())
	return v, nil
}

// MultiLookup reads many keys in a single cache round trip. The result
// slice has exactly one Value per input key, in input order.
func (f *Fetcher) MultiLookup(ctx context.Context, cacheKeys ...string) ([]Value, error) {
	res, err := f.kv.MGet(ctx, cacheKeys...)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(cacheKeys))
	for i, r := range res {
		out[i] = FromCache(r.Value, r.Found)
		f.mset.Lookup(out[i].State().String())
	}
	return out, nil
}

// StoreHit writes a value confirmed by the store, together with its TTL, as
// one atomic cache write. A non-positive ttl skips the write entirely: an
// entry without an expiry would outlive the fact it caches.
func (f *Fetcher) StoreHit(ctx context.Context, key, raw string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return f.kv.SetTTL(ctx, key, raw, ttl)
}

// StoreMiss records a store-confirmed absence by caching the sentinel.
func (f *Fetcher) StoreMiss(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return f.kv.SetTTL(ctx, key, Sentinel, ttl)
}

// Invalidate deletes keys. Writers call this after changing the underlying
// fact; invalidation is always deletion, never an in-place update.
func (f *Fetcher) Invalidate(ctx context.Context, cacheKeys ...string) error {
	return f.kv.Del(ctx, cacheKeys...)
}

// Fallback runs a store query under the optional guard and records its
// outcome. Callers that implement their own walk (ban resolution, domain
// resolution) route every store access through here so guarding and metrics
// stay in one place.
func (f *Fetcher) Fallback(ctx context.Context, fn func(context.Context) error) error {
	if f.guard != nil && !f.guard.Allow() {
		f.mset.Fallback("rejected")
		return ErrStoreUnavailable
	}
	err := fn(ctx)
	if err != nil {
		if f.guard != nil {
			f.guard.OnFailure()
		}
		f.mset.Fallback("error")
		return err
	}
	if f.guard != nil {
		f.guard.OnSuccess()
	}
	f.mset.Fallback("ok")
	return nil
}

// String resolves a string-valued fact: cache first, then fallback, writing
// the answer (value or sentinel) back with ttl. The returned value is the
// store's answer, never re-read from cache. found is false both for a
// cached sentinel and for a fallback miss.
func (f *Fetcher) String(ctx context.Context, key string, ttl time.Duration, fallback func(context.Context) (string, bool, error)) (string, bool, error) {
	v, err := f.Lookup(ctx, key)
	if err != nil {
		return "", false, err
	}
	switch v.State() {
	case Found:
		return v.Raw(), true, nil
	case NotFound:
		return "", false, nil
	}
	return f.fillString(ctx, key, ttl, fallback)
}

// Bool resolves a boolean fact. A cached value that is not one of the two
// boolean tokens counts as malformed and falls through to the store, which
// rewrites the entry.
func (f *Fetcher) Bool(ctx context.Context, key string, ttl time.Duration, fallback func(context.Context) (bool, bool, error)) (bool, bool, error) {
	v, err := f.Lookup(ctx, key)
	if err != nil {
		return false, false, err
	}
	switch v.State() {
	case Found:
		if b, ok := decodeBool(v.Raw()); ok {
			return b, true, nil
		}
		f.malformed(key, v.Raw())
	case NotFound:
		return false, false, nil
	}
	var (
		out   bool
		found bool
	)
	ferr := f.Fallback(ctx, func(ctx context.Context) error {
		b, ok, err := fallback(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return f.StoreMiss(ctx, key, ttl)
		}
		out, found = b, true
		return f.StoreHit(ctx, key, EncodeBool(b), ttl)
	})
	if ferr != nil {
		return false, false, ferr
	}
	return out, found, nil
}

// Int64 resolves an integer fact, with the same malformed-value handling as
// Bool.
func (f *Fetcher) Int64(ctx context.Context, key string, ttl time.Duration, fallback func(context.Context) (int64, bool, error)) (int64, bool, error) {
	v, err := f.Lookup(ctx, key)
	if err != nil {
		return 0, false, err
	}
	switch v.State() {
	case Found:
		if n, ok := decodeInt64(v.Raw()); ok {
			return n, true, nil
		}
		f.malformed(key, v.Raw())
	case NotFound:
		return 0, false, nil
	}
	var (
		out   int64
		found bool
	)
	ferr := f.Fallback(ctx, func(ctx context.Context) error {
		n, ok, err := fallback(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return f.StoreMiss(ctx, key, ttl)
		}
		out, found = n, true
		return f.StoreHit(ctx, key, EncodeInt64(n), ttl)
	})
	if ferr != nil {
		return 0, false, ferr
	}
	return out, found, nil
}

// fillString runs the string fallback and write-back for a NotCached key.
func (f *Fetcher) fillString(ctx context.Context, key string, ttl time.Duration, fallback func(context.Context) (string, bool, error)) (string, bool, error) {
	var (
		out   string
		found bool
	)
	err := f.Fallback(ctx, func(ctx context.Context) error {
		s, ok, err := fallback(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return f.StoreMiss(ctx, key, ttl)
		}
		out, found = s, true
		return f.StoreHit(ctx, key, s, ttl)
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

// malformed records a cached value that failed typed decoding. The cache is
// allowed to be wrong; the subsequent fallback rewrites the entry.
func (f *Fetcher) malformed(key, raw string) {
	f.mset.Malformed()
	f.log.Warn().Str("key", key).Str("raw", raw).Msg("malformed cached value, refetching")
}

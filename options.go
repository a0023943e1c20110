package gonutstash

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/goNutStash/breaker"
	"github.com/Keksclan/goNutStash/kv"
	"github.com/Keksclan/goNutStash/metrics"
	"github.com/Keksclan/goNutStash/tracing"
	"github.com/Keksclan/goNutStash/ttl"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	injected   kv.Client
	redis      *kv.Redis
	memEntries int64

	logger     zerolog.Logger
	metrics    *metrics.Set
	guard      *breaker.Breaker
	trace      *tracing.Config
	policy     *ttl.Policy
	banMissTTL time.Duration
}

// Option configures a Layer.
type Option func(*config)

// WithKV injects a caller-managed cache client. It takes precedence over
// WithRedis and WithMemory.
func WithKV(c kv.Client) Option {
	return func(cfg *config) { cfg.injected = c }
}

// WithRedis uses a Redis cache at the given address.
func WithRedis(addr, password string, db int) Option {
	return func(cfg *config) { cfg.redis = kv.NewRedis(addr, password, db) }
}

// WithRedisClient uses an existing Redis-backed client.
func WithRedisClient(r *kv.Redis) Option {
	return func(cfg *config) { cfg.redis = r }
}

// WithMemory uses an in-process cache bounded to maxEntries entries.
// Combined with WithRedis it becomes the near tier of a tiered cache.
func WithMemory(maxEntries int64) Option {
	return func(cfg *config) { cfg.memEntries = maxEntries }
}

// WithLogger installs a logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(cfg *config) { cfg.logger = log }
}

// WithMetrics registers lookup counters on reg. Pass
// prometheus.DefaultRegisterer for the usual global registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *config) { cfg.metrics = metrics.NewSet(reg) }
}

// WithTracing enables OpenTelemetry spans around resolution calls. tp may
// be nil to use the global tracer provider.
func WithTracing(tp trace.TracerProvider) Option {
	return func(cfg *config) { cfg.trace = &tracing.Config{TracerProvider: tp} }
}

// WithStoreBreaker guards store fallbacks with a circuit breaker. With the
// breaker open, cold lookups fail fast with lookup.ErrStoreUnavailable
// instead of queueing on a struggling store.
func WithStoreBreaker(cfg breaker.Config) Option {
	return func(c *config) { c.guard = breaker.New(cfg) }
}

// WithTTLPolicy overrides the TTL policy of every resolver.
func WithTTLPolicy(p *ttl.Policy) Option {
	return func(cfg *config) { cfg.policy = p }
}

// WithBanMissTTL overrides how long a confirmed "no ban" is cached.
func WithBanMissTTL(d time.Duration) Option {
	return func(cfg *config) { cfg.banMissTTL = d }
}

// buildKV resolves the configured cache backends into one client, plus the
// close functions for backends constructed here.
func (cfg *config) buildKV() (kv.Client, []func(), error) {
	if cfg.injected != nil {
		return cfg.injected, nil, nil
	}

	var (
		mem     *kv.Memory
		closers []func()
		err     error
	)
	entries := cfg.memEntries
	if entries == 0 && cfg.redis == nil {
		entries = DefaultMemoryEntries
	}
	if entries > 0 {
		mem, err = kv.NewMemory(entries)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, mem.Close)
	}
	if cfg.redis != nil {
		closers = append(closers, func() { _ = cfg.redis.Close() })
		// Both tiers configured: combine them into a tiered cache.
		if mem != nil {
			return kv.NewTiered(mem, cfg.redis), closers, nil
		}
		return cfg.redis, closers, nil
	}
	return mem, closers, nil
}

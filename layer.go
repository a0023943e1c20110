package gonutstash

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Keksclan/goNutStash/bans"
	"github.com/Keksclan/goNutStash/domains"
	"github.com/Keksclan/goNutStash/kv"
	"github.com/Keksclan/goNutStash/lookup"
	"github.com/Keksclan/goNutStash/objects"
	"github.com/Keksclan/goNutStash/users"
)

// Store is the authoritative backing store: the union of the per-resolver
// queriers. pgstore.Store implements it; tests supply fakes per resolver.
type Store interface {
	users.Querier
	bans.Querier
	domains.Querier
	objects.Querier
}

// Layer is the assembled cache layer. The zero value is not usable;
// construct it with [New].
type Layer struct {
	kv      kv.Client
	fetcher *lookup.Fetcher

	users   *users.Facts
	bans    *bans.Resolver
	domains *domains.Resolver
	objects *objects.Resolver

	closers []func()
}

// New assembles a Layer over the given store by applying the supplied
// functional [Option] values. Without a cache option an in-process memory
// cache is used; with both [WithMemory] and [WithRedis] the two are
// combined into a tiered cache.
func New(store Store, opts ...Option) (*Layer, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	l := &Layer{}

	client, closers, err := cfg.buildKV()
	if err != nil {
		return nil, err
	}
	l.kv = client
	l.closers = closers

	fetcherOpts := []lookup.Option{lookup.WithLogger(cfg.logger)}
	if cfg.metrics != nil {
		fetcherOpts = append(fetcherOpts, lookup.WithMetrics(cfg.metrics))
	}
	if cfg.guard != nil {
		fetcherOpts = append(fetcherOpts, lookup.WithStoreGuard(cfg.guard))
	}
	l.fetcher = lookup.New(client, fetcherOpts...)

	var userOpts []users.Option
	var banOpts []bans.Option
	var domainOpts []domains.Option
	var objectOpts []objects.Option
	if cfg.policy != nil {
		userOpts = append(userOpts, users.WithTTLPolicy(cfg.policy))
		banOpts = append(banOpts, bans.WithTTLPolicy(cfg.policy))
		domainOpts = append(domainOpts, domains.WithTTLPolicy(cfg.policy))
		objectOpts = append(objectOpts, objects.WithTTLPolicy(cfg.policy))
	}
	if cfg.banMissTTL > 0 {
		banOpts = append(banOpts, bans.WithMissTTL(cfg.banMissTTL))
	}
	if cfg.trace != nil {
		banOpts = append(banOpts, bans.WithTracing(cfg.trace))
		domainOpts = append(domainOpts, domains.WithTracing(cfg.trace))
	}

	l.users = users.New(l.fetcher, store, userOpts...)
	l.bans = bans.NewResolver(l.fetcher, store, banOpts...)
	l.domains = domains.NewResolver(l.fetcher, store, domainOpts...)
	l.objects = objects.New(l.fetcher, store, objectOpts...)

	return l, nil
}

// Users returns the user facts resolver.
func (l *Layer) Users() *users.Facts { return l.users }

// Bans returns the ban resolver.
func (l *Layer) Bans() *bans.Resolver { return l.bans }

// Domains returns the domain resolver.
func (l *Layer) Domains() *domains.Resolver { return l.domains }

// Objects returns the shortname resolver.
func (l *Layer) Objects() *objects.Resolver { return l.objects }

// Invalidate deletes raw cache keys. It implements the admin service
// backend; in-process writers normally use the typed Invalidate methods on
// the individual resolvers instead.
func (l *Layer) Invalidate(ctx context.Context, cacheKeys ...string) error {
	return l.fetcher.Invalidate(ctx, cacheKeys...)
}

// InvalidateUser deletes the cached facts of one user. An empty fields list
// means every cached field.
func (l *Layer) InvalidateUser(ctx context.Context, uid int64, fields ...string) error {
	typed := make([]users.Field, len(fields))
	for i, f := range fields {
		typed[i] = users.Field(f)
	}
	return l.users.Invalidate(ctx, uid, typed...)
}

// Expire re-arms the TTL of an existing cache key.
func (l *Layer) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return l.kv.Expire(ctx, key, ttl)
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func (l *Layer) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Close releases cache backends the Layer constructed itself. Backends
// injected via [WithKV] stay open; their owner closes them.
func (l *Layer) Close() {
	for _, c := range l.closers {
		c()
	}
}

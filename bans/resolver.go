// Package bans resolves active bans for users and IP addresses through the
// cache-aside layer. IP bans are stored at network-prefix granularity, so a
// single address is checked against several CIDR aggregation levels; the
// common case (no ban anywhere) is answered with one batched cache read.
package bans

import (
	"context"
	"net/netip"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Keksclan/goNutStash/keys"
	"github.com/Keksclan/goNutStash/lookup"
	"github.com/Keksclan/goNutStash/tracing"
	"github.com/Keksclan/goNutStash/ttl"
)

// Ban is an active ban row: a free-text reason and when it ends. A zero
// ExpiresAt means the ban has no expiry.
type Ban struct {
	Reason    string
	ExpiresAt time.Time
}

// IPBan is a ban row scoped to a network.
type IPBan struct {
	Ban
	Network netip.Prefix
}

// Querier is the authoritative store behind the resolver.
type Querier interface {
	// UserBan returns the unexpired ban for a user, if any.
	UserBan(ctx context.Context, uid int64) (Ban, bool, error)

	// IPBanContaining returns the unexpired ban on the narrowest stored
	// network that contains the given network, if any. "Contains" is the
	// CIDR superset relation; with several matching rows the one with the
	// longest prefix must sort first.
	IPBanContaining(ctx context.Context, network netip.Prefix) (IPBan, bool, error)
}

// Resolver answers "is this target banned, and why".
type Resolver struct {
	f       *lookup.Fetcher
	q       Querier
	policy  *ttl.Policy
	missTTL time.Duration
	trace   *tracing.Config
	nowFunc func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMissTTL overrides how long a confirmed "no ban at this aggregation
// level" is cached.
func WithMissTTL(d time.Duration) Option {
	return func(r *Resolver) { r.missTTL = d }
}

// WithTracing enables spans around resolution calls.
func WithTracing(tc *tracing.Config) Option {
	return func(r *Resolver) { r.trace = tc }
}

// WithTTLPolicy overrides the TTL policy used for bans without an expiry.
func WithTTLPolicy(p *ttl.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// NewResolver creates a ban resolver.
func NewResolver(f *lookup.Fetcher, q Querier, opts ...Option) *Resolver {
	r := &Resolver{
		f:       f,
		q:       q,
		policy:  ttl.DefaultPolicy(),
		missTTL: ttl.BanMiss,
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ResolveUser returns the ban reason for a user, or found=false when the
// user is not banned.
func (r *Resolver) ResolveUser(ctx context.Context, uid int64) (reason string, found bool, err error) {
	ctx, finish := r.trace.Start(ctx, "bans.resolve_user",
		attribute.String("user.id", strconv.FormatInt(uid, 10)))
	defer func() { finish(err) }()

	key := keys.UserBan(uid)
	v, err := r.f.Lookup(ctx, key)
	if err != nil {
		return "", false, err
	}
	switch v.State() {
	case lookup.Found:
		return v.Raw(), true, nil
	case lookup.NotFound:
		return "", false, nil
	}

	err = r.f.Fallback(ctx, func(ctx context.Context) error {
		ban, ok, qerr := r.q.UserBan(ctx, uid)
		if qerr != nil {
			return qerr
		}
		if !ok {
			return r.f.StoreMiss(ctx, key, r.missTTL)
		}
		reason, found = ban.Reason, true
		return r.f.StoreHit(ctx, key, ban.Reason, r.remaining(ban.ExpiresAt, key))
	})
	if err != nil {
		return "", false, err
	}
	return reason, found, nil
}

// ResolveIP returns the ban reason covering an address, or found=false when
// no aggregation level holds a ban.
//
// The candidate networks are checked strictly in Candidates order. All
// candidate keys are read in one batched cache round trip; the walk then
// consults the store only for levels the cache had no opinion on. A store
// hit is cached under the key of the network the ban is actually stored on
// (which may be wider than the candidate that triggered the query), with a
// TTL equal to the ban's remaining lifetime; a store miss is cached under
// the candidate's own key with the short miss TTL. The asymmetry is
// deliberate: a hit is a fact about the matched network, but a miss is only
// known for the exact candidate that was probed, and caching it more
// broadly would suppress bans inserted moments later.
func (r *Resolver) ResolveIP(ctx context.Context, addr netip.Addr) (reason string, found bool, err error) {
	ctx, finish := r.trace.Start(ctx, "bans.resolve_ip",
		attribute.String("net.peer.addr", addr.String()))
	defer func() { finish(err) }()

	cands := Candidates(addr)
	cacheKeys := make([]string, len(cands))
	for i, c := range cands {
		cacheKeys[i] = keys.IPBan(c)
	}

	vals, err := r.f.MultiLookup(ctx, cacheKeys...)
	if err != nil {
		return "", false, err
	}

	// Cache-only pass: the first candidate with a cached answer wins. A ban
	// cached at a wider level must be served without a store round trip even
	// when a narrower candidate has no cache entry yet.
	var uncached []int
	for i, v := range vals {
		switch v.State() {
		case lookup.Found:
			return v.Raw(), true, nil
		case lookup.NotFound:
			continue
		default:
			uncached = append(uncached, i)
		}
	}

	for _, i := range uncached {
		// Ask the store for the narrowest ban covering this candidate level.
		err = r.f.Fallback(ctx, func(ctx context.Context) error {
			row, ok, qerr := r.q.IPBanContaining(ctx, cands[i])
			if qerr != nil {
				return qerr
			}
			if !ok {
				return r.f.StoreMiss(ctx, cacheKeys[i], r.missTTL)
			}
			matched := keys.IPBan(row.Network)
			reason, found = row.Reason, true
			return r.f.StoreHit(ctx, matched, row.Reason, r.remaining(row.ExpiresAt, matched))
		})
		if err != nil {
			return "", false, err
		}
		if found {
			return reason, true, nil
		}
	}
	return "", false, nil
}

// remaining derives the cache TTL for a ban: the time until it expires,
// truncated to whole seconds, so the entry can never outlive the ban. Bans
// without an expiry fall back to the policy TTL for their key.
func (r *Resolver) remaining(expires time.Time, key string) time.Duration {
	if expires.IsZero() {
		return r.policy.For(key)
	}
	return expires.Sub(r.nowFunc()).Truncate(time.Second)
}

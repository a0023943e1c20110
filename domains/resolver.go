// Package domains resolves a request hostname to its internal domain id and
// effective subdomain. A hostname can be stored in three forms — a wildcard
// of itself, the plain domain, or a wildcard of its parent — and resolution
// must pick the stored one deterministically.
package domains

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Keksclan/goNutStash/keys"
	"github.com/Keksclan/goNutStash/lookup"
	"github.com/Keksclan/goNutStash/tracing"
	"github.com/Keksclan/goNutStash/ttl"
)

// Resolution is a successfully resolved hostname.
type Resolution struct {
	// ID is the internal domain id.
	ID int64
	// Subdomain is the effective subdomain: the hostname's first label when
	// the matched stored domain is a wildcard, "" otherwise (a non-wildcard
	// domain never carries a meaningful subdomain).
	Subdomain string
}

// Querier is the authoritative store behind the resolver.
type Querier interface {
	// DomainByAny returns the id and stored domain string of any row whose
	// domain column equals one of the candidates, if such a row exists.
	DomainByAny(ctx context.Context, candidates []string) (id int64, domain string, ok bool, err error)
}

// Resolver maps hostnames to domain ids through the cache-aside layer.
type Resolver struct {
	f      *lookup.Fetcher
	q      Querier
	policy *ttl.Policy
	trace  *tracing.Config
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTLPolicy overrides the TTL policy.
func WithTTLPolicy(p *ttl.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithTracing enables spans around resolution calls.
func WithTracing(tc *tracing.Config) Option {
	return func(r *Resolver) { r.trace = tc }
}

// NewResolver creates a domain resolver.
func NewResolver(f *lookup.Fetcher, q Querier, opts ...Option) *Resolver {
	r := &Resolver{f: f, q: q, policy: ttl.DefaultPolicy()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Candidates returns the three stored forms a hostname can take, in the
// fixed order they are checked: wildcard of self, self, wildcard of parent.
// The order is part of the resolution contract, not an implementation
// detail.
//
// A hostname without a separator degrades gracefully: its "parent" is the
// hostname itself, so the third candidate repeats the first.
func Candidates(host string) [3]string {
	return [3]string{
		keys.WildcardPrefix + host,
		host,
		keys.WildcardPrefix + parent(host),
	}
}

// parent returns everything after the first label, or the host itself when
// there is no separator.
func parent(host string) string {
	if _, rest, ok := strings.Cut(host, "."); ok {
		return rest
	}
	return host
}

// label returns the naive subdomain label: the text before the first '.',
// or the whole host when there is none.
func label(host string) string {
	l, _, _ := strings.Cut(host, ".")
	return l
}

// Resolve maps a literal request hostname to its domain id and effective
// subdomain. found is false when no stored form of the hostname exists;
// whether that is fatal is the caller's decision.
func (r *Resolver) Resolve(ctx context.Context, host string) (res Resolution, found bool, err error) {
	ctx, finish := r.trace.Start(ctx, "domains.resolve",
		attribute.String("server.address", host))
	defer func() { finish(err) }()

	cands := Candidates(host)
	sub := label(host)

	// Cache pass, in candidate order. The first candidate the cache has a
	// real answer for wins; store-confirmed absences are skipped.
	sawUncached := false
	for _, cand := range cands {
		v, lerr := r.f.Lookup(ctx, keys.Domain(cand))
		if lerr != nil {
			return Resolution{}, false, lerr
		}
		switch v.State() {
		case lookup.Found:
			id, ok := decodeID(v.Raw())
			if !ok {
				// Malformed id: treat this candidate as uncached and let the
				// store pass rewrite it.
				sawUncached = true
				continue
			}
			return Resolution{ID: id, Subdomain: effectiveSubdomain(cand, sub)}, true, nil
		case lookup.NotCached:
			sawUncached = true
		}
	}

	// Every candidate is a store-confirmed absence: terminal negative
	// answer, no store round trip.
	if !sawUncached {
		return Resolution{}, false, nil
	}

	// Store pass: one query over all three candidates.
	var (
		id     int64
		domain string
		ok     bool
	)
	err = r.f.Fallback(ctx, func(ctx context.Context) error {
		var qerr error
		id, domain, ok, qerr = r.q.DomainByAny(ctx, cands[:])
		if qerr != nil {
			return qerr
		}
		if ok {
			// Cache only the one confirmed mapping. The other two candidates
			// are not known to be absent — a row for them simply was not the
			// one returned — so they must not be negative-cached here.
			key := keys.Domain(domain)
			return r.f.StoreHit(ctx, key, lookup.EncodeInt64(id), r.policy.For(key))
		}
		// The store has no row for any form of this hostname, which is a
		// fact about all three candidates.
		for _, cand := range cands {
			key := keys.Domain(cand)
			if werr := r.f.StoreMiss(ctx, key, r.policy.For(key)); werr != nil {
				return werr
			}
		}
		return nil
	})
	if err != nil {
		return Resolution{}, false, err
	}
	if !ok {
		return Resolution{}, false, nil
	}
	return Resolution{ID: id, Subdomain: effectiveSubdomain(domain, sub)}, true, nil
}

// effectiveSubdomain returns the naive label when the matched stored domain
// is a wildcard, "" otherwise.
func effectiveSubdomain(matched, naive string) string {
	if keys.IsWildcard(matched) {
		return naive
	}
	return ""
}

// decodeID parses a cached domain id.
func decodeID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

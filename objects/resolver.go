// Package objects resolves shortnames to their stored artifacts: the
// filesystem path of an uploaded file, or the target URL of a shortened
// link. Both live under a domain and an optional subdomain.
package objects

import (
	"context"

	"github.com/Keksclan/goNutStash/keys"
	"github.com/Keksclan/goNutStash/lookup"
	"github.com/Keksclan/goNutStash/ttl"
)

// Querier is the authoritative store behind the resolver.
type Querier interface {
	// FilePath returns the stored filesystem path for an uploaded file.
	FilePath(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error)

	// RedirectTarget returns the destination URL for a shortened link.
	RedirectTarget(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error)
}

// Resolver maps shortnames to file paths and redirect targets through the
// cache-aside layer. Misses are negative-cached: probing nonexistent
// shortnames is the single most common request this service sees.
type Resolver struct {
	f      *lookup.Fetcher
	q      Querier
	policy *ttl.Policy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTLPolicy overrides the TTL policy.
func WithTTLPolicy(p *ttl.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// New creates an object resolver.
func New(f *lookup.Fetcher, q Querier, opts ...Option) *Resolver {
	r := &Resolver{f: f, q: q, policy: ttl.DefaultPolicy()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// FilePath resolves a shortname to the stored file path.
func (r *Resolver) FilePath(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error) {
	key := keys.Object(keys.CategoryFile, domainID, sub, shortname)
	return r.f.String(ctx, key, r.policy.For(key), func(ctx context.Context) (string, bool, error) {
		return r.q.FilePath(ctx, domainID, sub, shortname)
	})
}

// RedirectTarget resolves a shortname to its redirect URL.
func (r *Resolver) RedirectTarget(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) (string, bool, error) {
	key := keys.Object(keys.CategoryRedirect, domainID, sub, shortname)
	return r.f.String(ctx, key, r.policy.For(key), func(ctx context.Context) (string, bool, error) {
		return r.q.RedirectTarget(ctx, domainID, sub, shortname)
	})
}

// InvalidateFile deletes the cached file-path entry for a shortname, for
// use after an upload or deletion under that name.
func (r *Resolver) InvalidateFile(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) error {
	return r.f.Invalidate(ctx, keys.Object(keys.CategoryFile, domainID, sub, shortname))
}

// InvalidateRedirect deletes the cached redirect entry for a shortname.
func (r *Resolver) InvalidateRedirect(ctx context.Context, domainID int64, sub keys.Subdomain, shortname string) error {
	return r.f.Invalidate(ctx, keys.Object(keys.CategoryRedirect, domainID, sub, shortname))
}

// Package users caches per-user identity facts: the active flag, the
// password hash, the username, and the username → id reverse mapping.
// These are the facts the authentication path reads on every request, so
// they are the highest-traffic keys in the layer.
package users

import (
	"context"

	"github.com/Keksclan/goNutStash/keys"
	"github.com/Keksclan/goNutStash/lookup"
	"github.com/Keksclan/goNutStash/ttl"
)

// Field names a cached per-user fact. The constants double as the key
// segment, so they are part of the invalidation contract.
type Field string

const (
	FieldActive       Field = "active"
	FieldPasswordHash Field = "password_hash"
	FieldUsername     Field = "username"
)

// Querier is the authoritative store behind the facts.
type Querier interface {
	Active(ctx context.Context, uid int64) (bool, bool, error)
	PasswordHash(ctx context.Context, uid int64) (string, bool, error)
	Username(ctx context.Context, uid int64) (string, bool, error)
	IDByUsername(ctx context.Context, name string) (int64, bool, error)
}

// Facts resolves user facts through the cache-aside layer. Each getter is a
// separate strongly-typed function rather than one generic fetch with a
// runtime type switch, so a boolean can never be mis-decoded as a string.
type Facts struct {
	f      *lookup.Fetcher
	q      Querier
	policy *ttl.Policy
}

// Option configures Facts.
type Option func(*Facts)

// WithTTLPolicy overrides the TTL policy.
func WithTTLPolicy(p *ttl.Policy) Option {
	return func(s *Facts) { s.policy = p }
}

// New creates the user facts resolver.
func New(f *lookup.Fetcher, q Querier, opts ...Option) *Facts {
	s := &Facts{f: f, q: q, policy: ttl.DefaultPolicy()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Active reports whether the user account is active. found is false for an
// unknown user id.
func (s *Facts) Active(ctx context.Context, uid int64) (active, found bool, err error) {
	key := keys.UserField(uid, string(FieldActive))
	return s.f.Bool(ctx, key, s.policy.For(key), func(ctx context.Context) (bool, bool, error) {
		return s.q.Active(ctx, uid)
	})
}

// PasswordHash returns the user's stored password hash.
func (s *Facts) PasswordHash(ctx context.Context, uid int64) (string, bool, error) {
	key := keys.UserField(uid, string(FieldPasswordHash))
	return s.f.String(ctx, key, s.policy.For(key), func(ctx context.Context) (string, bool, error) {
		return s.q.PasswordHash(ctx, uid)
	})
}

// Username returns the user's username.
func (s *Facts) Username(ctx context.Context, uid int64) (string, bool, error) {
	key := keys.UserField(uid, string(FieldUsername))
	return s.f.String(ctx, key, s.policy.For(key), func(ctx context.Context) (string, bool, error) {
		return s.q.Username(ctx, uid)
	})
}

// IDByUsername resolves a username to its user id. Unknown usernames are a
// frequent and legitimate outcome (typos, probes), so they are
// negative-cached.
func (s *Facts) IDByUsername(ctx context.Context, name string) (int64, bool, error) {
	key := keys.Username(name)
	return s.f.Int64(ctx, key, s.policy.For(key), func(ctx context.Context) (int64, bool, error) {
		return s.q.IDByUsername(ctx, name)
	})
}

// Invalidate deletes the cached entries for the given fields of a user.
// Callers that just wrote the underlying row must invalidate rather than
// wait out the TTL; with no fields given, every known field is dropped.
func (s *Facts) Invalidate(ctx context.Context, uid int64, fields ...Field) error {
	if len(fields) == 0 {
		fields = []Field{FieldActive, FieldPasswordHash, FieldUsername}
	}
	cacheKeys := make([]string, len(fields))
	for i, fld := range fields {
		cacheKeys[i] = keys.UserField(uid, string(fld))
	}
	return s.f.Invalidate(ctx, cacheKeys...)
}

// InvalidateUsername deletes the cached username → id mapping, for use
// after a rename or account deletion.
func (s *Facts) InvalidateUsername(ctx context.Context, name string) error {
	return s.f.Invalidate(ctx, keys.Username(name))
}

// Package ttl maps cache keys to time-to-live durations. TTLs are policy,
// not plumbing: how long an identity fact may be stale is decided here, in
// one place, instead of being re-derived at each call site.
package ttl

import (
	"strings"
	"time"
)

// Default durations. Identity facts (user fields, domain mappings, object
// paths) tolerate ten minutes of staleness; a negative ban candidate is
// cheap to re-derive and its underlying data can change at any moment, so
// it gets a much shorter lease.
const (
	Identity = 600 * time.Second
	BanMiss  = 60 * time.Second
)

// matchKind distinguishes the two matching strategies. Keys are structured
// strings, so exact and prefix rules cover everything.
type matchKind int

const (
	kindExact  matchKind = iota // highest priority
	kindPrefix
)

// Rule binds a key pattern to a duration.
type Rule struct {
	kind    matchKind
	pattern string
	ttl     time.Duration
}

// Exact creates a rule that applies to exactly one key.
func Exact(key string, d time.Duration) Rule {
	return Rule{kind: kindExact, pattern: key, ttl: d}
}

// Prefix creates a rule that applies to every key sharing a prefix,
// typically an entity namespace such as "uid:".
func Prefix(p string, d time.Duration) Rule {
	return Rule{kind: kindPrefix, pattern: p, ttl: d}
}

// Policy resolves a key to the TTL of its best-matching rule.
//
// Priority:
//   - Exact rules beat prefix rules.
//   - Among prefix rules the longest matching prefix wins.
//   - Ties keep the rule that was registered first (stable order).
//
// Keys matching no rule get the fallback duration.
type Policy struct {
	rules    []Rule
	fallback time.Duration
}

// NewPolicy creates a Policy with the given fallback duration and rules.
func NewPolicy(fallback time.Duration, rules ...Rule) *Policy {
	return &Policy{rules: rules, fallback: fallback}
}

// DefaultPolicy returns the stock policy for the lookup layer's key
// namespaces.
func DefaultPolicy() *Policy {
	return NewPolicy(Identity,
		Prefix("uid:", Identity),
		Prefix("uname:", Identity),
		Prefix("domain_id:", Identity),
		Prefix("fspath:", Identity),
		Prefix("redir:", Identity),
		Prefix("userban:", Identity),
		Prefix("ipban:", Identity),
	)
}

// For returns the TTL for key.
func (p *Policy) For(key string) time.Duration {
	bestKind := matchKind(-1)
	bestLen := -1
	best := p.fallback

	for _, r := range p.rules {
		matched, mLen := r.match(key)
		if !matched {
			continue
		}
		// A lower kind value means higher priority.
		better := bestKind < 0 ||
			r.kind < bestKind ||
			(r.kind == bestKind && mLen > bestLen)
		if better {
			bestKind = r.kind
			bestLen = mLen
			best = r.ttl
		}
	}
	return best
}

// match reports whether r applies to key and the length of the matched
// portion, used for tie-breaking among prefix rules.
func (r Rule) match(key string) (matched bool, length int) {
	switch r.kind {
	case kindExact:
		if key == r.pattern {
			return true, len(r.pattern)
		}
	case kindPrefix:
		if strings.HasPrefix(key, r.pattern) {
			return true, len(r.pattern)
		}
	}
	return false, 0
}

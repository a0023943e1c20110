// Package keys builds the cache key strings used by the lookup layer.
//
// Every key is assembled from a fixed entity prefix plus one or more
// identifying components joined with ':'. The construction functions are
// pure and total: any well-formed input yields a key, nothing panics.
//
// Key strings are a contract shared with external invalidation call sites
// (a handler that inserts a ban must delete the exact key this package
// would build), so the formats here must stay stable within a deployment.
package keys

import (
	"fmt"
	"net/netip"
	"strings"
)

// SubdomainPlaceholder is the key segment used when no subdomain was
// supplied at all. '@' cannot occur in a hostname label, so the placeholder
// can never collide with a real subdomain — including the empty string,
// which is itself a legal subdomain meaning "root".
const SubdomainPlaceholder = "@"

// WildcardPrefix marks a stored domain whose subdomain position matches any
// literal subdomain at request time.
const WildcardPrefix = "*."

// Category selects the object table a shortname resolves against.
type Category string

const (
	// CategoryFile maps a shortname to a stored file path.
	CategoryFile Category = "fspath"
	// CategoryRedirect maps a shortname to a redirect target URL.
	CategoryRedirect Category = "redir"
)

// Subdomain is an optional subdomain component. The zero value means "not
// supplied", which is distinct from Sub("") (the root subdomain).
type Subdomain struct {
	value   string
	present bool
}

// Sub wraps a literal subdomain, including the legal empty string.
func Sub(s string) Subdomain {
	return Subdomain{value: s, present: true}
}

// NoSubdomain is the absent subdomain.
var NoSubdomain = Subdomain{}

// Present reports whether a subdomain was supplied.
func (s Subdomain) Present() bool { return s.present }

// Value returns the literal subdomain. It is only meaningful when Present
// returns true.
func (s Subdomain) Value() string { return s.value }

// Segment returns the key segment for the subdomain: the literal value when
// present, the placeholder token otherwise.
func (s Subdomain) Segment() string {
	if !s.present {
		return SubdomainPlaceholder
	}
	return s.value
}

// UserField returns the key for a per-user cached fact such as the active
// flag or the password hash.
func UserField(uid int64, field string) string {
	return fmt.Sprintf("uid:%d:%s", uid, field)
}

// Username returns the key for the username → user-id reverse lookup.
func Username(name string) string {
	return "uname:" + name
}

// Object returns the key for a shortname lookup within a domain. The
// category keeps file-path and redirect-target entries in separate
// namespaces even when shortnames collide.
func Object(cat Category, domainID int64, sub Subdomain, shortname string) string {
	return fmt.Sprintf("%s:%d:%s:%s", cat, domainID, sub.Segment(), shortname)
}

// UserBan returns the key for a per-user ban entry.
func UserBan(uid int64) string {
	return fmt.Sprintf("userban:%d", uid)
}

// IPBan returns the key for a ban entry on the given network. The prefix is
// masked first so that "1.2.3.4/24" and "1.2.3.0/24" produce the same key.
func IPBan(network netip.Prefix) string {
	return "ipban:" + network.Masked().String()
}

// Domain returns the key holding the numeric id for a stored domain
// candidate (either a plain domain or a "*."-prefixed wildcard).
func Domain(candidate string) string {
	return "domain_id:" + candidate
}

// IsWildcard reports whether a stored domain string is a wildcard domain.
func IsWildcard(domain string) bool {
	return strings.HasPrefix(domain, WildcardPrefix)
}

// Package lookup implements the cache-aside engine: the found / not-found /
// not-cached resolution protocol, negative caching via a reserved sentinel,
// typed decoding, and batched multi-key reads.
package lookup

import "strconv"

// Sentinel is the reserved cache value meaning "the authoritative store was
// consulted and returned no row". It is the only source of the NotFound
// state. The token cannot occur in any legitimate field value (usernames,
// paths, domains and reasons never contain '!'); a future field whose legal
// values could collide must use the typed boolean path instead of raw
// string comparison.
const Sentinel = "!absent"

// Boolean cache tokens. Booleans are encoded and decoded through these two
// fixed literals on a typed path — never by identity comparison with the
// sentinel — so a cached "false" can never be mistaken for "no row".
const (
	tokenTrue  = "true"
	tokenFalse = "false"
)

// State classifies a cache read.
type State int

const (
	// NotCached means the cache had no opinion: the store must be asked.
	NotCached State = iota
	// NotFound means the cache holds the sentinel: the store was already
	// asked and had no row. Terminal negative answer, no store round trip.
	NotFound
	// Found means the cache holds a real value.
	Found
)

// String implements fmt.Stringer for log and metric labels.
func (s State) String() string {
	switch s {
	case NotCached:
		return "not_cached"
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	default:
		return "unknown"
	}
}

// Value is the outcome of a single cache read: a state plus, for Found, the
// raw cached string.
type Value struct {
	state State
	raw   string
}

// FromCache translates a kv read result into a Value, mapping the sentinel
// to NotFound.
func FromCache(raw string, present bool) Value {
	switch {
	case !present:
		return Value{state: NotCached}
	case raw == Sentinel:
		return Value{state: NotFound}
	default:
		return Value{state: Found, raw: raw}
	}
}

// State returns the resolution state.
func (v Value) State() State { return v.state }

// Raw returns the cached string. It is only meaningful in the Found state.
func (v Value) Raw() string { return v.raw }

// EncodeBool returns the cache token for a boolean.
func EncodeBool(b bool) string {
	if b {
		return tokenTrue
	}
	return tokenFalse
}

// decodeBool parses a cached boolean token. ok is false for anything that
// is not exactly one of the two tokens.
func decodeBool(raw string) (val, ok bool) {
	switch raw {
	case tokenTrue:
		return true, true
	case tokenFalse:
		return false, true
	default:
		return false, false
	}
}

// EncodeInt64 returns the cache representation of an integer.
func EncodeInt64(n int64) string {
	return strconv.FormatInt(n, 10)
}

// decodeInt64 parses a cached integer.
func decodeInt64(raw string) (int64, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

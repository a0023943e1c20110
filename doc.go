// Package gonutstash is the read-through cache layer of an image-hosting
// and link-shortening service. It sits between request handlers and the
// authoritative Postgres store and answers the questions every request
// asks: does this user exist and may they act, is this client banned, which
// domain is being addressed, and what does this shortname point to.
//
// Every cached fact distinguishes three resolution states — found,
// store-confirmed absent, and simply not cached — because for this workload
// "no such row" is itself a hot answer: unknown usernames, unbanned IPs and
// dead shortnames are probed constantly. Confirmed absences are cached
// under a reserved sentinel value so they cost one cache read instead of a
// store query.
//
// [Layer] is the assembled facade. Construct it over a [Store]
// implementation (pgstore provides the Postgres one) and a cache backend:
//
//	layer, err := gonutstash.New(store,
//		gonutstash.WithRedis("localhost:6379", "", 0),
//		gonutstash.WithLogger(log),
//	)
//
// The individual resolvers are also usable on their own; see the users,
// bans, domains and objects packages.
package gonutstash

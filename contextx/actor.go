package contextx

import "context"

// Actor represents the authenticated identity behind an admin call. It is
// populated by the authentication interceptor and stored in the request
// context via [WithActor]; handlers retrieve it with [ActorFromContext] so
// audit logs can name who invalidated what.
//
// Example:
//
//	actor := contextx.Actor{Subject: "ban-worker", ClientID: "web-backend"}
//	ctx = contextx.WithActor(ctx, actor)
type Actor struct {
	Subject  string
	Tenant   string
	ClientID string
	Scopes   []string
}

// WithActor returns a derived context that carries the given Actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext extracts the Actor stored in ctx.
// The boolean return value indicates whether an Actor was present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

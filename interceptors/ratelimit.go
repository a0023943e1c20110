package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Keksclan/goNutStash/ratelimit"
)

// errRateLimited is allocated once to avoid per-request allocations on the hot path.
var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// rateLimitState holds the global limiter plus optional per-method overrides.
// Invalidation endpoints are cheap individually but a buggy writer can flood
// them, so the admin surface gates every call through a token bucket.
type rateLimitState struct {
	global    *ratelimit.Limiter
	perMethod map[string]*ratelimit.Limiter
}

// limiterFor returns the override limiter for fullMethod when one exists,
// the global limiter otherwise.
func (s *rateLimitState) limiterFor(fullMethod string) *ratelimit.Limiter {
	if l, ok := s.perMethod[fullMethod]; ok {
		return l
	}
	return s.global
}

// RateLimitUnary returns a unary server interceptor that rejects requests
// when the applicable rate limiter has been exhausted. perMethod may be nil;
// entries in it override the global limiter for their full method name.
func RateLimitUnary(l *ratelimit.Limiter, perMethod map[string]*ratelimit.Limiter) grpc.UnaryServerInterceptor {
	st := &rateLimitState{global: l, perMethod: perMethod}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !st.limiterFor(info.FullMethod).Allow() {
			return nil, errRateLimited
		}
		return handler(ctx, req)
	}
}

// RateLimitStream returns a stream server interceptor that rejects requests
// when the applicable rate limiter has been exhausted.
func RateLimitStream(l *ratelimit.Limiter, perMethod map[string]*ratelimit.Limiter) grpc.StreamServerInterceptor {
	st := &rateLimitState{global: l, perMethod: perMethod}
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if !st.limiterFor(info.FullMethod).Allow() {
			return errRateLimited
		}
		return handler(srv, ss)
	}
}

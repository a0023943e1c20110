package admin

import (
	"net"

	"google.golang.org/grpc"

	"github.com/Keksclan/goNutStash/auth"
	"github.com/Keksclan/goNutStash/interceptors"
	"github.com/Keksclan/goNutStash/internal/core"
	"github.com/Keksclan/goNutStash/ratelimit"
	"github.com/Keksclan/goNutStash/security"
)

// Middleware execution order. Lower values run first; the order is fixed by
// these priorities, not by the order options are passed. Recovery wraps
// everything, the IP gate runs before any request body is looked at, and
// rate limiting runs last so rejected callers were at least authenticated.
const (
	orderRecovery = iota * 10
	orderIPBlock
	orderRequestID
	orderAuth
	orderRateLimit
)

// Server hosts the admin invalidation service on a gRPC server assembled
// from functional options.
type Server struct {
	grpcServer *grpc.Server
}

type serverConfig struct {
	mw core.MiddlewareBuilder
}

// Option configures a Server.
type Option func(*serverConfig)

// WithRecovery installs panic recovery so a panic inside a handler returns
// codes.Internal instead of crashing the process.
func WithRecovery() Option {
	return func(c *serverConfig) {
		c.mw.Add(orderRecovery, interceptors.RecoveryUnary(), interceptors.RecoveryStream())
	}
}

// WithIPBlocker restricts callers by peer address.
func WithIPBlocker(b *security.IPBlocker) Option {
	return func(c *serverConfig) {
		c.mw.Add(orderIPBlock, interceptors.IPBlockUnary(b), interceptors.IPBlockStream(b))
	}
}

// WithRequestID ensures every call carries a request id for audit logging.
func WithRequestID() Option {
	return func(c *serverConfig) {
		c.mw.Add(orderRequestID, interceptors.RequestIDUnary(), interceptors.RequestIDStream())
	}
}

// WithAuth authenticates every call through the supplied AuthFunc.
func WithAuth(fn auth.AuthFunc) Option {
	return func(c *serverConfig) {
		c.mw.Add(orderAuth, interceptors.AuthUnary(fn), interceptors.AuthStream(fn))
	}
}

// WithRateLimit gates all methods through one token bucket.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *serverConfig) {
		l := ratelimit.NewLimiter(rps, burst)
		c.mw.Add(orderRateLimit, interceptors.RateLimitUnary(l, nil), interceptors.RateLimitStream(l, nil))
	}
}

// WithUnaryInterceptor appends a custom unary interceptor after the built-in
// middleware.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *serverConfig) {
		c.mw.Add(orderRateLimit+10, i, nil)
	}
}

// NewServer builds a gRPC server with the configured middleware and the
// admin service registered on it.
func NewServer(h Handler, opts ...Option) *Server {
	var cfg serverConfig
	for _, o := range opts {
		o(&cfg)
	}

	unary, stream := cfg.mw.Build()
	serverOpts := core.BuildServerOptions(unary, stream, interceptors.ChainUnary, interceptors.ChainStream)

	s := &Server{grpcServer: grpc.NewServer(serverOpts...)}
	Register(s.grpcServer, h)
	return s
}

// GRPC returns the underlying *grpc.Server so callers can register
// additional services (health checks, reflection).
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Serve accepts connections on lis. It blocks until Stop or GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop stops the server immediately.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// GracefulStop drains in-flight calls before stopping.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

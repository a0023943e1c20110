// Package admin exposes cache invalidation over gRPC for external writers:
// the handler that inserts a ban, edits a user or deletes an upload calls
// this service so stale entries disappear immediately instead of waiting
// out their TTL.
//
// The service uses [grpc.ServiceDesc] registration so that no protobuf code
// generation is required. Because the request/response types are plain Go
// structs (not generated protobuf messages), the package registers a thin
// codec wrapper that JSON-encodes admin types while delegating all other
// messages to the standard proto codec.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// InvalidateRequest names raw cache keys to delete.
type InvalidateRequest struct {
	Keys []string `json:"keys"`
}

// InvalidateUserRequest invalidates cached facts of one user. An empty
// Fields list means every cached field.
type InvalidateUserRequest struct {
	UserID int64    `json:"user_id"`
	Fields []string `json:"fields,omitempty"`
}

// ExpireRequest re-arms the TTL of an existing key. Writers use it to
// shorten the lifetime of an entry they know will change soon.
type ExpireRequest struct {
	Key        string `json:"key"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// Ack is the empty success response shared by all admin methods.
type Ack struct{}

// adminMsg is a marker interface satisfied by the admin message types.
type adminMsg interface {
	isAdminMsg()
}

func (*InvalidateRequest) isAdminMsg()     {}
func (*InvalidateUserRequest) isAdminMsg() {}
func (*ExpireRequest) isAdminMsg()         {}
func (*Ack) isAdminMsg()                   {}

// Backend is what the service operates on. The cache layer's facade
// implements it.
type Backend interface {
	Invalidate(ctx context.Context, cacheKeys ...string) error
	InvalidateUser(ctx context.Context, uid int64, fields ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Handler is the interface an admin service implementation must satisfy.
type Handler interface {
	Invalidate(ctx context.Context, req *InvalidateRequest) (*Ack, error)
	InvalidateUser(ctx context.Context, req *InvalidateUserRequest) (*Ack, error)
	Expire(ctx context.Context, req *ExpireRequest) (*Ack, error)
}

// NewHandler returns a Handler that forwards to the given backend.
func NewHandler(b Backend) Handler { return backendHandler{b: b} }

type backendHandler struct {
	b Backend
}

func (h backendHandler) Invalidate(ctx context.Context, req *InvalidateRequest) (*Ack, error) {
	if len(req.Keys) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no keys")
	}
	if err := h.b.Invalidate(ctx, req.Keys...); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &Ack{}, nil
}

func (h backendHandler) InvalidateUser(ctx context.Context, req *InvalidateUserRequest) (*Ack, error) {
	if req.UserID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "missing user_id")
	}
	if err := h.b.InvalidateUser(ctx, req.UserID, req.Fields...); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &Ack{}, nil
}

func (h backendHandler) Expire(ctx context.Context, req *ExpireRequest) (*Ack, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "missing key")
	}
	if req.TTLSeconds <= 0 {
		return nil, status.Error(codes.InvalidArgument, "ttl_seconds must be positive")
	}
	if err := h.b.Expire(ctx, req.Key, time.Duration(req.TTLSeconds)*time.Second); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &Ack{}, nil
}

// ServiceDesc is the grpc.ServiceDesc for the nutstash.Admin service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nutstash.Admin",
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invalidate", Handler: invalidateHandler},
		{MethodName: "InvalidateUser", Handler: invalidateUserHandler},
		{MethodName: "Expire", Handler: expireHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nutstash/admin.proto",
}

func invalidateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(InvalidateRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Invalidate(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/nutstash.Admin/Invalidate",
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Invalidate(ctx, r.(*InvalidateRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func invalidateUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(InvalidateUserRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).InvalidateUser(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/nutstash.Admin/InvalidateUser",
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).InvalidateUser(ctx, r.(*InvalidateUserRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func expireHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ExpireRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Expire(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/nutstash.Admin/Expire",
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Expire(ctx, r.(*ExpireRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Register registers an admin service implementation on the given gRPC
// server.
func Register(s *grpc.Server, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}

// ---------- codec wrapper ----------

func init() {
	// Replace the default proto codec with a thin wrapper that JSON-encodes
	// admin types and delegates all other (protobuf) messages to proto.Marshal.
	grpcEncoding.RegisterCodec(adminCodec{})
}

// adminCodec wraps the default proto codec. It handles the admin message
// types via JSON, and delegates all other types to proto.Marshal/Unmarshal.
type adminCodec struct{}

func (adminCodec) Name() string { return "proto" }

func (adminCodec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(adminMsg); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("admin codec: unsupported message type %T", v)
}

func (adminCodec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(adminMsg); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("admin codec: unsupported message type %T", v)
}

package api

import (
	"context"
	"errors"

	"github.com/heysubinoy/pyazcell/pkg/kv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The store service carries well-known protobuf types so that no generated
// code is needed on either side:
//
//	Get(StringValue key) -> Struct{value: string, found: bool}
//	Set(Struct{key: string, value: string}) -> Empty
//	Delete(StringValue key) -> Empty
const (
	StoreServiceName = "pyazcell.v1.Store"

	GetMethod    = "/" + StoreServiceName + "/Get"
	SetMethod    = "/" + StoreServiceName + "/Set"
	DeleteMethod = "/" + StoreServiceName + "/Delete"
)

// StoreServer is the server API of the store service.
type StoreServer interface {
	Get(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Set(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Delete(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// StoreServiceDesc describes the store service for grpc.Server.RegisterService.
var StoreServiceDesc = grpc.ServiceDesc{
	ServiceName: StoreServiceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Set", Handler: setHandler},
		{MethodName: "Delete", Handler: deleteHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pyazcell/v1/store",
}

// RegisterStoreServer registers srv on s.
func RegisterStoreServer(s grpc.ServiceRegistrar, srv StoreServer) {
	s.RegisterService(&StoreServiceDesc, srv)
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StoreServer).Get(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func setHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreServer).Set(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StoreServer).Set(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DeleteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StoreServer).Delete(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer implements StoreServer.
// It wraps a kv.Store and exposes it over gRPC.
type GRPCServer struct {
	Store kv.Store
}

var _ StoreServer = (*GRPCServer)(nil)

// NewGRPCServer creates a new gRPC server with the given store.
func NewGRPCServer(store kv.Store) *GRPCServer {
	return &GRPCServer{
		Store: store,
	}
}

// Get retrieves a value by key.
func (s *GRPCServer) Get(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}

	value, found, err := s.Store.Get(req.GetValue())
	if err != nil {
		return nil, storeStatus(err, "failed to get key")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"value": structpb.NewStringValue(value),
		"found": structpb.NewBoolValue(found),
	}}, nil
}

// Set stores a key-value pair.
func (s *GRPCServer) Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	key := req.GetFields()["key"].GetStringValue()
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}

	if err := s.Store.Set(key, req.GetFields()["value"].GetStringValue()); err != nil {
		return nil, storeStatus(err, "failed to set key")
	}
	return &emptypb.Empty{}, nil
}

// Delete removes a key from the store.
func (s *GRPCServer) Delete(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}

	if err := s.Store.Delete(req.GetValue()); err != nil {
		return nil, storeStatus(err, "failed to delete key")
	}
	return &emptypb.Empty{}, nil
}

func storeStatus(err error, msg string) error {
	switch {
	case errors.Is(err, kv.ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, msg+": quota exceeded")
	case errors.Is(err, kv.ErrNotLeader):
		return status.Error(codes.FailedPrecondition, msg+": not leader")
	case errors.Is(err, kv.ErrUnavailable):
		return status.Error(codes.Unavailable, msg+": store unavailable")
	default:
		return status.Error(codes.Internal, msg)
	}
}

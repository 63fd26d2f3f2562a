package rpc

import (
	"context"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// UnaryFunc is a unary RPC whose request and response are Structs.
type UnaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Service is a gRPC service assembled at runtime from UnaryFuncs, so no
// generated stubs are needed.
type Service struct {
	Name    string
	Methods map[string]UnaryFunc
}

// Desc builds the grpc.ServiceDesc for s.
func (s *Service) Desc() *grpc.ServiceDesc {
	names := make([]string, 0, len(s.Methods))
	for name := range s.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	desc := &grpc.ServiceDesc{
		ServiceName: s.Name,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    s.Name,
	}
	for _, name := range names {
		desc.Methods = append(desc.Methods, s.method(name, s.Methods[name]))
	}
	return desc
}

// Register adds s to the server.
func (s *Service) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(s.Desc(), s)
}

func (s *Service) method(name string, fn UnaryFunc) grpc.MethodDesc {
	fullMethod := "/" + s.Name + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: s, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

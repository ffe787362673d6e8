// Package sessionpb describes the chronos.session.v1.SessionBridge service.
// Messages are well-known protobuf types, so no generated message code is
// needed: Current and Watch answer google.protobuf.Struct values with the
// fields id, name, email, is_logged_in and loading.
package sessionpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "chronos.session.v1.SessionBridge"

	SessionBridge_Current_FullMethodName = "/chronos.session.v1.SessionBridge/Current"
	SessionBridge_Watch_FullMethodName   = "/chronos.session.v1.SessionBridge/Watch"
)

// SessionBridgeServer is the server API for the SessionBridge service.
type SessionBridgeServer interface {
	Current(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, SessionBridge_WatchServer) error
}

// SessionBridge_WatchServer is the server side of the Watch stream.
type SessionBridge_WatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type sessionBridgeWatchServer struct {
	grpc.ServerStream
}

func (x *sessionBridgeWatchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterSessionBridgeServer registers srv on s.
func RegisterSessionBridgeServer(s grpc.ServiceRegistrar, srv SessionBridgeServer) {
	s.RegisterService(&SessionBridge_ServiceDesc, srv)
}

func _SessionBridge_Current_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionBridgeServer).Current(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SessionBridge_Current_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionBridgeServer).Current(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _SessionBridge_Watch_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SessionBridgeServer).Watch(m, &sessionBridgeWatchServer{ServerStream: stream})
}

// SessionBridge_ServiceDesc is the grpc.ServiceDesc for the SessionBridge service.
var SessionBridge_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionBridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Current",
			Handler:    _SessionBridge_Current_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       _SessionBridge_Watch_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chronos/session/v1/bridge.proto",
}

// SessionBridgeClient is the client API for the SessionBridge service.
type SessionBridgeClient interface {
	Current(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (SessionBridge_WatchClient, error)
}

// SessionBridge_WatchClient is the client side of the Watch stream.
type SessionBridge_WatchClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type sessionBridgeClient struct {
	cc grpc.ClientConnInterface
}

// NewSessionBridgeClient creates a client on cc.
func NewSessionBridgeClient(cc grpc.ClientConnInterface) SessionBridgeClient {
	return &sessionBridgeClient{cc: cc}
}

func (c *sessionBridgeClient) Current(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SessionBridge_Current_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sessionBridgeClient) Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (SessionBridge_WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &SessionBridge_ServiceDesc.Streams[0], SessionBridge_Watch_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &sessionBridgeWatchClient{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type sessionBridgeWatchClient struct {
	grpc.ClientStream
}

func (x *sessionBridgeWatchClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

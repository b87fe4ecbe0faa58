package adminpb

import (
	"context"

	"google.golang.org/grpc"
)

// BrokerAdminServer is the interface cmd/aldrin-broker's admin
// implementation satisfies; StreamBusEvents is handled generically
// since its payload type varies only in content, not in streaming
// shape.
type BrokerAdminServer interface {
	ListConnections(context.Context, *ListConnectionsRequest) (*ListConnectionsResponse, error)
	ListObjects(context.Context, *ListObjectsRequest) (*ListObjectsResponse, error)
	StreamBusEvents(*StreamBusEventsRequest, BrokerAdmin_StreamBusEventsServer) error
}

// BrokerAdmin_StreamBusEventsServer is the narrow send-only view of
// grpc.ServerStream StreamBusEvents needs, mirroring the shape
// protoc-gen-go-grpc would generate for a server-streaming RPC.
type BrokerAdmin_StreamBusEventsServer interface {
	Send(*BusEvent) error
	grpc.ServerStream
}

type brokerAdminStreamBusEventsServer struct {
	grpc.ServerStream
}

func (s *brokerAdminStreamBusEventsServer) Send(ev *BusEvent) error {
	return s.ServerStream.SendMsg(ev)
}

func _BrokerAdmin_ListConnections_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ListConnectionsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BrokerAdminServer).ListConnections(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/aldrin.admin.BrokerAdminService/ListConnections"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BrokerAdminServer).ListConnections(ctx, req.(*ListConnectionsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _BrokerAdmin_ListObjects_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ListObjectsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BrokerAdminServer).ListObjects(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/aldrin.admin.BrokerAdminService/ListObjects"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BrokerAdminServer).ListObjects(ctx, req.(*ListObjectsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func _BrokerAdmin_StreamBusEvents_Handler(srv any, stream grpc.ServerStream) error {
	req := new(StreamBusEventsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(BrokerAdminServer).StreamBusEvents(req, &brokerAdminStreamBusEventsServer{stream})
}

// ServiceDesc is the hand-authored equivalent of what protoc-gen-go-grpc
// would emit for BrokerAdminService, used since no protobuf compiler is
// available to generate it from a .proto source in this environment.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "aldrin.admin.BrokerAdminService",
	HandlerType: (*BrokerAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListConnections", Handler: _BrokerAdmin_ListConnections_Handler},
		{MethodName: "ListObjects", Handler: _BrokerAdmin_ListObjects_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamBusEvents", Handler: _BrokerAdmin_StreamBusEvents_Handler, ServerStreams: true},
	},
	Metadata: "aldrin/admin.proto",
}

// RegisterBrokerAdminServiceServer registers srv on s, mirroring the
// generated Register<Service>Server function protoc-gen-go-grpc emits.
func RegisterBrokerAdminServiceServer(s *grpc.Server, srv BrokerAdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

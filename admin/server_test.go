package admin_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/aldrin-bus/aldrin/admin"
	"github.com/aldrin-bus/aldrin/adminpb"
	"github.com/aldrin-bus/aldrin/broker"
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/config"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/transport"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// dialAdmin starts a broker and its admin server on an explicit
// ephemeral port obtained up front, then dials it.
func dialAdmin(t *testing.T) (*broker.Broker, context.Context, *grpc.ClientConn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := broker.New(config.DefaultBrokerConfig(), observability.NopLogger())
	go b.Run(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	srv, err := admin.Serve(addr, b, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(adminpb.JSONCodec{})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return b, ctx, conn
}

func dialWireClient(t *testing.T, ctx context.Context, b *broker.Broker) transport.Transport {
	t.Helper()
	clientSide, brokerSide := transport.NewPipe()
	go b.Accept(ctx, brokerSide)
	require.NoError(t, clientSide.Send(ctx, wire.Connect{Major: bus.ProtocolMajor, Minor: bus.MaxSupportedMinor}))
	reply, err := clientSide.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.ConnectOK, reply.(wire.ConnectReply).Result)
	return clientSide
}

func TestListConnectionsReflectsLiveWireConnections(t *testing.T) {
	b, ctx, conn := dialAdmin(t)
	_ = dialWireClient(t, ctx, b)
	_ = dialWireClient(t, ctx, b)

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out := new(adminpb.ListConnectionsResponse)
	require.Eventually(t, func() bool {
		err := conn.Invoke(callCtx, "/aldrin.admin.BrokerAdminService/ListConnections", &adminpb.ListConnectionsRequest{}, out)
		return err == nil && len(out.Connections) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestListObjectsReflectsLiveObjectsAndServices(t *testing.T) {
	b, ctx, conn := dialAdmin(t)
	clientSide := dialWireClient(t, ctx, b)

	objUUID := bus.ObjectUUID(uuid.New())
	require.NoError(t, clientSide.Send(ctx, wire.CreateObject{Serial: 1, UUID: objUUID}))
	reply, err := clientSide.Recv(ctx)
	require.NoError(t, err)
	objCookie := reply.(wire.CreateObjectReply).Cookie

	svcUUID := bus.ServiceUUID(uuid.New())
	require.NoError(t, clientSide.Send(ctx, wire.CreateService{Serial: 2, Object: objCookie, UUID: svcUUID, Version: 3}))
	reply, err = clientSide.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.CreateServiceOK, reply.(wire.CreateServiceReply).Result)

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out := new(adminpb.ListObjectsResponse)
	require.Eventually(t, func() bool {
		err := conn.Invoke(callCtx, "/aldrin.admin.BrokerAdminService/ListObjects", &adminpb.ListObjectsRequest{}, out)
		return err == nil && len(out.Objects) == 1 && len(out.Objects[0].Services) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, uint32(3), out.Objects[0].Services[0].Version)
}

func TestStreamBusEventsDeliversObjectCreation(t *testing.T) {
	b, ctx, conn := dialAdmin(t)

	streamCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	desc := &grpc.StreamDesc{StreamName: "StreamBusEvents", ServerStreams: true}
	stream, err := conn.NewStream(streamCtx, desc, "/aldrin.admin.BrokerAdminService/StreamBusEvents")
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&adminpb.StreamBusEventsRequest{}))
	require.NoError(t, stream.CloseSend())

	clientSide := dialWireClient(t, ctx, b)
	objUUID := bus.ObjectUUID(uuid.New())
	require.NoError(t, clientSide.Send(ctx, wire.CreateObject{Serial: 1, UUID: objUUID}))
	_, err = clientSide.Recv(ctx)
	require.NoError(t, err)

	ev := new(adminpb.BusEvent)
	require.NoError(t, stream.RecvMsg(ev))
	require.Equal(t, "object_created", ev.Kind)
	require.Equal(t, objUUID.String(), ev.ObjectUUID)
}

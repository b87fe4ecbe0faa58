package broker

import (
	"context"
	"testing"
	"time"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/config"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/transport"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) (*Broker, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b := New(config.DefaultBrokerConfig(), observability.NopLogger())
	go b.Run(ctx)
	return b, ctx
}

func dialClient(t *testing.T, ctx context.Context, b *Broker) transport.Transport {
	t.Helper()
	clientSide, brokerSide := transport.NewPipe()
	go b.Accept(ctx, brokerSide)

	require.NoError(t, clientSide.Send(ctx, wire.Connect{Major: bus.ProtocolMajor, Minor: bus.MaxSupportedMinor}))
	reply, err := clientSide.Recv(ctx)
	require.NoError(t, err)
	r, ok := reply.(wire.ConnectReply)
	require.True(t, ok)
	require.Equal(t, wire.ConnectOK, r.Result)
	return clientSide
}

func recvWithin(t *testing.T, ctx context.Context, tr transport.Transport, d time.Duration) wire.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	msg, err := tr.Recv(ctx)
	require.NoError(t, err)
	return msg
}

// S1: connect, create an object and a service, call a function on it,
// receive the reply.
func TestCallRoundTrip(t *testing.T) {
	b, ctx := newTestBroker(t)
	host := dialClient(t, ctx, b)
	caller := dialClient(t, ctx, b)

	objUUID := bus.ObjectUUID(uuid.New())
	require.NoError(t, host.Send(ctx, wire.CreateObject{Serial: 1, UUID: objUUID}))
	objReply := recvWithin(t, ctx, host, time.Second).(wire.CreateObjectReply)
	require.Equal(t, wire.CreateObjectOK, objReply.Result)

	svcUUID := bus.ServiceUUID(uuid.New())
	require.NoError(t, host.Send(ctx, wire.CreateService{Serial: 2, Object: objReply.Cookie, UUID: svcUUID, Version: 1}))
	svcReply := recvWithin(t, ctx, host, time.Second).(wire.CreateServiceReply)
	require.Equal(t, wire.CreateServiceOK, svcReply.Result)

	require.NoError(t, caller.Send(ctx, wire.CallFunction{Serial: 7, Service: svcReply.Cookie, Function: 3, Args: wire.SerializedValue{0xAA}}))

	inbound := recvWithin(t, ctx, host, time.Second).(wire.CallFunction)
	require.Equal(t, svcReply.Cookie, inbound.Service)
	require.Equal(t, uint32(3), inbound.Function)
	require.NotEqual(t, uint32(7), inbound.Serial) // broker reassigned the callee-side serial

	value := wire.SerializedValue{0xBB}
	require.NoError(t, host.Send(ctx, wire.CallFunctionReply{Serial: inbound.Serial, Result: wire.CallOK, Value: &value}))

	callerReply := recvWithin(t, ctx, caller, time.Second).(wire.CallFunctionReply)
	require.Equal(t, uint32(7), callerReply.Serial)
	require.Equal(t, wire.CallOK, callerReply.Result)
	require.Equal(t, value, *callerReply.Value)
}

// S5: a callee connection dies mid-call; the caller receives a
// synthesized Aborted reply instead of hanging forever.
func TestCallAbortedOnCalleeDeath(t *testing.T) {
	b, ctx := newTestBroker(t)
	host := dialClient(t, ctx, b)
	caller := dialClient(t, ctx, b)

	require.NoError(t, host.Send(ctx, wire.CreateObject{Serial: 1, UUID: bus.ObjectUUID(uuid.New())}))
	objReply := recvWithin(t, ctx, host, time.Second).(wire.CreateObjectReply)

	require.NoError(t, host.Send(ctx, wire.CreateService{Serial: 2, Object: objReply.Cookie, UUID: bus.ServiceUUID(uuid.New()), Version: 1}))
	svcReply := recvWithin(t, ctx, host, time.Second).(wire.CreateServiceReply)

	require.NoError(t, caller.Send(ctx, wire.CallFunction{Serial: 9, Service: svcReply.Cookie, Function: 1}))
	recvWithin(t, ctx, host, time.Second) // drain the forwarded CallFunction

	require.NoError(t, host.Close())

	reply := recvWithin(t, ctx, caller, time.Second).(wire.CallFunctionReply)
	require.Equal(t, uint32(9), reply.Serial)
	require.Equal(t, wire.CallAborted, reply.Result)
}

// S6: starting a bus listener with ScopeCurrent replays every live
// object/service that matches its filters, then signals completion.
func TestBusListenerCurrentScopeWalk(t *testing.T) {
	b, ctx := newTestBroker(t)
	host := dialClient(t, ctx, b)
	watcher := dialClient(t, ctx, b)

	objUUID := bus.ObjectUUID(uuid.New())
	require.NoError(t, host.Send(ctx, wire.CreateObject{Serial: 1, UUID: objUUID}))
	objReply := recvWithin(t, ctx, host, time.Second).(wire.CreateObjectReply)

	svcUUID := bus.ServiceUUID(uuid.New())
	require.NoError(t, host.Send(ctx, wire.CreateService{Serial: 2, Object: objReply.Cookie, UUID: svcUUID, Version: 1}))
	recvWithin(t, ctx, host, time.Second)

	require.NoError(t, watcher.Send(ctx, wire.CreateBusListener{Serial: 5}))
	listenerReply := recvWithin(t, ctx, watcher, time.Second).(wire.CreateBusListenerReply)

	// No filters added: an unfiltered listener matches every object and
	// service, so the walk replays both.
	require.NoError(t, watcher.Send(ctx, wire.StartBusListener{Serial: 6, Listener: listenerReply.Listener, Scope: wire.ScopeCurrent}))
	startReply := recvWithin(t, ctx, watcher, time.Second).(wire.StartBusListenerReply)
	require.Equal(t, wire.StartBusListenerOK, startReply.Result)

	objEvent := recvWithin(t, ctx, watcher, time.Second).(wire.EmitBusEvent)
	require.Equal(t, wire.BusEventObjectCreated, objEvent.Event)

	svcEvent := recvWithin(t, ctx, watcher, time.Second).(wire.EmitBusEvent)
	require.Equal(t, wire.BusEventServiceCreated, svcEvent.Event)
	require.NotNil(t, svcEvent.Service)

	finished := recvWithin(t, ctx, watcher, time.Second).(wire.BusListenerCurrentFinished)
	require.Equal(t, listenerReply.Listener, finished.Listener)
}

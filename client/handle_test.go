package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aldrin-bus/aldrin/broker"
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/client"
	"github.com/aldrin-bus/aldrin/config"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/transport"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func dialHandle(t *testing.T, ctx context.Context, b *broker.Broker) client.Handle {
	t.Helper()
	clientSide, brokerSide := transport.NewPipe()
	go b.Accept(ctx, brokerSide)

	require.NoError(t, clientSide.Send(ctx, wire.Connect{Major: bus.ProtocolMajor, Minor: bus.MaxSupportedMinor}))
	reply, err := clientSide.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.ConnectOK, reply.(wire.ConnectReply).Result)

	d := client.NewDispatcher(clientSide, config.DefaultClientConfig(), observability.NopLogger())
	return client.NewHandle(d)
}

func newTestBroker(t *testing.T) (*broker.Broker, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b := broker.New(config.DefaultBrokerConfig(), observability.NopLogger())
	go b.Run(ctx)
	return b, ctx
}

// S2: one event emission fans out to every distinct subscribing
// connection exactly once, regardless of how many local subscribers
// each connection aggregates it to.
func TestEventFanOutAcrossConnections(t *testing.T) {
	b, ctx := newTestBroker(t)
	host := dialHandle(t, ctx, b)
	defer host.Close()
	subA := dialHandle(t, ctx, b)
	defer subA.Close()
	subB := dialHandle(t, ctx, b)
	defer subB.Close()

	objCookie, err := host.CreateObject(ctx, bus.ObjectUUID(uuid.New()))
	require.NoError(t, err)
	svcCookie, err := host.CreateService(ctx, objCookie, bus.ServiceUUID(uuid.New()), 1, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var aCount, bSpecificCount, bAllCount int

	_, err = subA.SubscribeEvent(ctx, svcCookie, 42, func(wire.SerializedValue) {
		mu.Lock()
		aCount++
		mu.Unlock()
	})
	require.NoError(t, err)

	// subB aggregates the same event through both a specific subscription
	// and a subscribe-all: the broker still sends it one wire message,
	// but both local subscribers fire for it.
	_, err = subB.SubscribeEvent(ctx, svcCookie, 42, func(wire.SerializedValue) {
		mu.Lock()
		bSpecificCount++
		mu.Unlock()
	})
	require.NoError(t, err)
	_, err = subB.SubscribeAllEvents(ctx, svcCookie, func(wire.SerializedValue) {
		mu.Lock()
		bAllCount++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, host.EmitEvent(ctx, svcCookie, 42, wire.SerializedValue{0x01}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return aCount == 1 && bSpecificCount == 1 && bAllCount == 1
	}, time.Second, time.Millisecond)
}

// Unsubscribing the last subscriber on a connection stops further
// delivery without affecting other connections.
func TestUnsubscribeStopsDelivery(t *testing.T) {
	b, ctx := newTestBroker(t)
	host := dialHandle(t, ctx, b)
	defer host.Close()
	sub := dialHandle(t, ctx, b)
	defer sub.Close()

	objCookie, err := host.CreateObject(ctx, bus.ObjectUUID(uuid.New()))
	require.NoError(t, err)
	svcCookie, err := host.CreateService(ctx, objCookie, bus.ServiceUUID(uuid.New()), 1, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	unsubscribe, err := sub.SubscribeEvent(ctx, svcCookie, 7, func(wire.SerializedValue) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, host.EmitEvent(ctx, svcCookie, 7, nil))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, time.Millisecond)

	unsubscribe()
	require.NoError(t, sub.SyncClient(ctx))

	require.NoError(t, host.EmitEvent(ctx, svcCookie, 7, nil))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, count)
}

// A function call routed through the broker reaches the registered
// handler on the callee connection and the reply value round-trips.
func TestHandleCallReachesRegisteredFunction(t *testing.T) {
	b, ctx := newTestBroker(t)
	host := dialHandle(t, ctx, b)
	defer host.Close()
	caller := dialHandle(t, ctx, b)
	defer caller.Close()

	objCookie, err := host.CreateObject(ctx, bus.ObjectUUID(uuid.New()))
	require.NoError(t, err)
	svcCookie, err := host.CreateService(ctx, objCookie, bus.ServiceUUID(uuid.New()), 1, nil)
	require.NoError(t, err)

	host.RegisterFunction(svcCookie, 1, func(ctx context.Context, args wire.SerializedValue) (*wire.SerializedValue, wire.CallResult) {
		reply := wire.SerializedValue(append([]byte{}, args...))
		return &reply, wire.CallOK
	})

	value, err := caller.Call(ctx, svcCookie, 1, wire.SerializedValue{0x42})
	require.NoError(t, err)
	require.NotNil(t, value)
	require.Equal(t, wire.SerializedValue{0x42}, *value)
}

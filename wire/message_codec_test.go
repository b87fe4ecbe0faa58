package wire_test

import (
	"fmt"
	"testing"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip pushes msg through EncodeFrame, a Packetizer, and DecodeBody,
// exactly as a real transport.Transport does, and returns the decoded
// message.
func roundTrip(t *testing.T, msg wire.Message) wire.Message {
	t.Helper()
	pz := wire.NewPacketizer()
	pz.Feed(wire.EncodeFrame(msg))
	frame, ok := pz.NextFrame()
	require.True(t, ok)
	decoded, err := wire.DecodeBody(frame)
	require.NoError(t, err)
	return decoded
}

func TestMessageCodecRoundTrip(t *testing.T) {
	objUUID := bus.ObjectUUID(uuid.New())
	svcUUID := bus.ServiceUUID(uuid.New())
	objCookie := bus.NewObjectCookie()
	svcCookie := bus.NewServiceCookie()
	chCookie := bus.NewChannelCookie()
	listenerCookie := bus.NewBusListenerCookie()
	value := wire.SerializedValue{0x01, 0x02, 0x03}

	cases := []wire.Message{
		wire.Connect{Major: 1, Minor: 16},
		wire.ConnectReply{Result: wire.ConnectOK},
		wire.CreateObject{Serial: 1, UUID: objUUID},
		wire.CreateObjectReply{Serial: 1, Result: wire.CreateObjectOK, Cookie: objCookie},
		wire.DestroyObject{Serial: 2, Cookie: objCookie},
		wire.CreateService{Serial: 3, Object: objCookie, UUID: svcUUID, Version: 7},
		wire.CreateServiceReply{Serial: 3, Result: wire.CreateServiceOK, Cookie: svcCookie},
		wire.CallFunction{Serial: 9, Service: svcCookie, Function: 4, Args: value},
		wire.CallFunctionReply{Serial: 9, Result: wire.CallOK, Value: &value},
		wire.EmitEvent{Service: svcCookie, Event: 5, Args: value},
		wire.SubscribeEvent{Serial: 10, Service: svcCookie, Event: 5},
		wire.CreateChannel{Serial: 11, ClaimEnd: bus.ChannelEndSender},
		wire.CreateChannelReply{Serial: 11, Channel: chCookie},
		wire.ClaimChannelEnd{Serial: 12, Channel: chCookie, End: bus.ChannelEndReceiver, Capacity: 8},
		wire.SendItem{Channel: chCookie, Item: value},
		wire.AddChannelCapacity{Channel: chCookie, Delta: 4},
		wire.CreateBusListener{Serial: 13},
		wire.CreateBusListenerReply{Serial: 13, Listener: listenerCookie},
		wire.AddBusListenerFilter{Listener: listenerCookie, Filter: wire.BusListenerFilter{Kind: wire.FilterSpecificObject, Object: objUUID}},
		wire.StartBusListener{Serial: 14, Listener: listenerCookie, Scope: wire.ScopeAll},
		wire.EmitBusEvent{Listener: listenerCookie, Event: wire.BusEventObjectCreated, Object: bus.ObjectID{UUID: objUUID, Cookie: objCookie}},
		wire.SyncClient{Serial: 15},
		wire.Shutdown{},
	}

	for i, original := range cases {
		t.Run(fmt.Sprintf("%d_kind%d", i, original.Kind()), func(t *testing.T) {
			decoded := roundTrip(t, original)
			assert.Equal(t, original, decoded)
		})
	}
}

func TestPacketizerAccumulatesPartialReads(t *testing.T) {
	msg := wire.CreateObject{Serial: 1, UUID: bus.ObjectUUID(uuid.New())}
	frame := wire.EncodeFrame(msg)

	pz := wire.NewPacketizer()
	pz.Feed(frame[:2])
	_, ok := pz.NextFrame()
	require.False(t, ok)

	pz.Feed(frame[2:])
	out, ok := pz.NextFrame()
	require.True(t, ok)

	decoded, err := wire.DecodeBody(out)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

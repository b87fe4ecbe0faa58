package broker

import (
	"testing"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelClaimSenderThenReceiver(t *testing.T) {
	ch := newChannelWithClaimedSender(1)

	sender, result := ch.claimReceiver(2, 8)
	require.Equal(t, wire.ClaimChannelEndOK, result)
	assert.Equal(t, bus.ConnectionID(1), sender)
	assert.Equal(t, uint32(8), ch.sender.capacity)
	assert.Equal(t, uint32(8), ch.receiver.capacity)
}

func TestChannelClaimReceiverThenSender(t *testing.T) {
	ch := newChannelWithClaimedReceiver(1, 8)

	sender, capacity, result := ch.claimSender(2)
	require.Equal(t, wire.ClaimChannelEndOK, result)
	assert.Equal(t, bus.ConnectionID(1), sender)
	assert.Equal(t, uint32(8), capacity)
}

func TestChannelClaimAlreadyClaimed(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	_, _, result := ch.claimSender(2)
	assert.Equal(t, wire.ClaimChannelEndAlreadyClaimed, result)
}

func TestChannelSendItemCapacityExhausted(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	ch.claimReceiver(2, 0)

	_, _, _, errKind := ch.sendItem(1)
	assert.Equal(t, sendItemCapacityExhausted, errKind)
}

func TestChannelSendItemLowCapacityTriggersRefill(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	ch.claimReceiver(2, 10)
	// The receiver credits 5 more while the sender is still above the
	// low-water mark, so no refill yet: receiver 15, sender 10.
	ch.addCapacity(2, 5)

	// Five sends drain the sender to 5 (receiver 10); the sixth drops it
	// to 4, at the low-water mark, with the receiver at 9 and ahead, so a
	// refill of 5 fires.
	for i := 0; i < 5; i++ {
		ch.sendItem(1)
	}
	require.Equal(t, uint32(5), ch.sender.capacity)

	receiver, addCapacity, hasAdd, errKind := ch.sendItem(1)
	require.Equal(t, sendItemOK, errKind)
	assert.Equal(t, bus.ConnectionID(2), receiver)
	require.True(t, hasAdd)
	assert.Equal(t, ch.receiver.capacity, ch.sender.capacity)
	assert.Equal(t, uint32(5), addCapacity)
}

func TestChannelSendItemReceiverUnclaimed(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	_, _, _, errKind := ch.sendItem(1)
	assert.Equal(t, sendItemReceiverUnclaimed, errKind)
}

func TestChannelAddCapacityCreditsReceiverAndRefillsSender(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	ch.claimReceiver(2, 4)
	for ch.sender.capacity > 0 {
		ch.sendItem(1)
	}
	require.Equal(t, uint32(0), ch.sender.capacity)

	sender, delta, ok := ch.addCapacity(2, 6)
	require.True(t, ok)
	assert.Equal(t, bus.ConnectionID(1), sender)
	assert.Equal(t, uint32(6), delta)
	assert.Equal(t, ch.receiver.capacity, ch.sender.capacity)
}

func TestChannelCloseNotifiesClaimedPeer(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	ch.claimReceiver(2, 8)

	notify, shouldNotify := ch.close(bus.ChannelEndSender)
	require.True(t, shouldNotify)
	assert.Equal(t, bus.ConnectionID(2), notify)
	assert.Equal(t, endClosed, ch.sender.kind)
}

func TestChannelCloseUnclaimedPeerNoNotify(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	_, shouldNotify := ch.close(bus.ChannelEndSender)
	assert.False(t, shouldNotify)
}

func TestChannelCheckCloseAlreadyClosed(t *testing.T) {
	ch := newChannelWithClaimedSender(1)
	ch.close(bus.ChannelEndSender)
	result, live := ch.checkClose(1, bus.ChannelEndSender)
	assert.Equal(t, wire.CloseChannelEndInvalidChannel, result)
	assert.False(t, live)
}

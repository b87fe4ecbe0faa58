package broker

import (
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
)

// lowCapacity is the low-water mark at or below which send_item proactively
// tops the sender's local capacity back up to the receiver's, so a
// busy sender doesn't stall waiting on an explicit AddChannelCapacity
// round trip.
const lowCapacity = 4

type channelEndStateKind uint8

const (
	endUnclaimed channelEndStateKind = iota
	endClaimed
	endClosed
)

type channelEndState struct {
	kind     channelEndStateKind
	owner    bus.ConnectionID
	capacity uint32
}

// channel is the per-channel state machine, ported operation-for-operation
// from the reference broker's sender/receiver claim/close/send_item/
// add_capacity transitions.
type channel struct {
	sender   channelEndState
	receiver channelEndState
}

func newChannelWithClaimedSender(owner bus.ConnectionID) *channel {
	return &channel{
		sender:   channelEndState{kind: endClaimed, owner: owner},
		receiver: channelEndState{kind: endUnclaimed},
	}
}

func newChannelWithClaimedReceiver(owner bus.ConnectionID, capacity uint32) *channel {
	return &channel{
		sender:   channelEndState{kind: endUnclaimed},
		receiver: channelEndState{kind: endClaimed, owner: owner, capacity: capacity},
	}
}

func (c *channel) endState(end bus.ChannelEnd) *channelEndState {
	if end == bus.ChannelEndSender {
		return &c.sender
	}
	return &c.receiver
}

// checkClose reports the result of closing end and whether that end is
// currently claimed. Unclaimed and claimed ends both close with OK;
// only an already-closed end yields InvalidChannel. conn is not
// compared with the end's owner.
func (c *channel) checkClose(conn bus.ConnectionID, end bus.ChannelEnd) (wire.CloseChannelEndResult, bool) {
	state := c.endState(end)
	switch state.kind {
	case endUnclaimed:
		return wire.CloseChannelEndOK, false
	case endClaimed:
		return wire.CloseChannelEndOK, true
	default: // endClosed
		return wire.CloseChannelEndInvalidChannel, false
	}
}

// close marks end closed and reports the connection owning the other
// end, if any, that must be notified via ChannelEndClosed.
func (c *channel) close(end bus.ChannelEnd) (notify bus.ConnectionID, shouldNotify bool) {
	var owner, other *channelEndState
	if end == bus.ChannelEndSender {
		owner, other = &c.sender, &c.receiver
	} else {
		owner, other = &c.receiver, &c.sender
	}

	prevOwnerKind := owner.kind
	*owner = channelEndState{kind: endClosed}

	switch {
	case prevOwnerKind == endClaimed && other.kind == endUnclaimed:
		return bus.ConnectionID(0), false
	case prevOwnerKind == endClaimed && other.kind == endClosed:
		return bus.ConnectionID(0), false
	case other.kind == endClaimed:
		return other.owner, true
	default:
		return bus.ConnectionID(0), false
	}
}

func (c *channel) claimSender(conn bus.ConnectionID) (receiver bus.ConnectionID, capacity uint32, result wire.ClaimChannelEndResult) {
	switch c.sender.kind {
	case endClaimed:
		return 0, 0, wire.ClaimChannelEndAlreadyClaimed
	case endClosed:
		return 0, 0, wire.ClaimChannelEndInvalidChannel
	}
	// Unclaimed sender implies a claimed (possibly since-closed) receiver
	// minted it; a fully unclaimed channel never exists past creation.
	c.sender = channelEndState{kind: endClaimed, owner: conn, capacity: c.receiver.capacity}
	return c.receiver.owner, c.receiver.capacity, wire.ClaimChannelEndOK
}

func (c *channel) claimReceiver(conn bus.ConnectionID, capacity uint32) (sender bus.ConnectionID, result wire.ClaimChannelEndResult) {
	switch c.receiver.kind {
	case endClaimed:
		return 0, wire.ClaimChannelEndAlreadyClaimed
	case endClosed:
		return 0, wire.ClaimChannelEndInvalidChannel
	}
	c.receiver = channelEndState{kind: endClaimed, owner: conn, capacity: capacity}
	c.sender.capacity = capacity
	return c.sender.owner, wire.ClaimChannelEndOK
}

type sendItemError uint8

const (
	sendItemOK sendItemError = iota
	sendItemInvalidSender
	sendItemReceiverUnclaimed
	sendItemReceiverClosed
	sendItemCapacityExhausted
)

// sendItem decrements both ends' local capacity counters by one and
// reports whether the sender's capacity has dropped to the low-water
// mark, in which case the broker must push AddChannelCapacity to the
// sender to bring it back level with the receiver.
func (c *channel) sendItem(conn bus.ConnectionID) (receiver bus.ConnectionID, addCapacity uint32, hasAddCapacity bool, errKind sendItemError) {
	if c.sender.kind != endClaimed || c.sender.owner != conn {
		return 0, 0, false, sendItemInvalidSender
	}
	switch c.receiver.kind {
	case endUnclaimed:
		return 0, 0, false, sendItemReceiverUnclaimed
	case endClosed:
		return 0, 0, false, sendItemReceiverClosed
	}
	if c.receiver.capacity == 0 {
		return 0, 0, false, sendItemCapacityExhausted
	}

	c.sender.capacity--
	c.receiver.capacity--

	if c.sender.capacity <= lowCapacity && c.receiver.capacity > c.sender.capacity {
		diff := c.receiver.capacity - c.sender.capacity
		c.sender.capacity = c.receiver.capacity
		return c.receiver.owner, diff, true, sendItemOK
	}
	return c.receiver.owner, 0, false, sendItemOK
}

// addCapacity credits the receiver's local capacity and, if the sender
// has fallen to the low-water mark, reports the sender connection and
// the capacity delta it should be sent.
func (c *channel) addCapacity(conn bus.ConnectionID, capacity uint32) (sender bus.ConnectionID, delta uint32, ok bool) {
	if capacity == 0 {
		return 0, 0, false
	}
	if c.receiver.kind != endClaimed || c.receiver.owner != conn {
		return 0, 0, false
	}
	c.receiver.capacity += capacity

	if c.sender.kind != endClaimed {
		return 0, 0, false
	}
	if c.sender.capacity <= lowCapacity {
		diff := c.receiver.capacity - c.sender.capacity
		c.sender.capacity = c.receiver.capacity
		return c.sender.owner, diff, true
	}
	return 0, 0, false
}

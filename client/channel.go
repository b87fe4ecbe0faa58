package client

import (
	"context"
	"sync"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/wire"
)

// endpoint is the client-side half of one channel end: a sender tracks
// its own remaining capacity locally so send_item can fail fast without
// a round trip, a receiver buffers delivered items for next_item.
type endpoint struct {
	mu        sync.Mutex
	isSender  bool
	capacity  uint32 // sender: remaining sends available; receiver: unused
	closed    bool
	closeErr  error
	items     chan wire.SerializedValue
	claimedCh chan struct{} // closed once an initially-unclaimed end is claimed
	claimCap  uint32
}

func newSenderEndpoint(capacity uint32) *endpoint {
	return &endpoint{isSender: true, capacity: capacity, items: nil}
}

func newReceiverEndpoint(bufferSize int) *endpoint {
	return &endpoint{isSender: false, items: make(chan wire.SerializedValue, bufferSize)}
}

// Sender is the user-facing handle to a channel's send half.
type Sender struct {
	d      *Dispatcher
	cookie bus.ChannelCookie
}

// SendItem transmits item if local capacity allows, else reports
// CapacityExhausted without a round trip to the broker.
func (s *Sender) SendItem(ctx context.Context, item wire.SerializedValue) error {
	s.d.mu.Lock()
	ep, ok := s.d.channels[s.cookie]
	s.d.mu.Unlock()
	if !ok {
		return bus.New(bus.ErrInvalidChannel, "unknown channel")
	}

	ep.mu.Lock()
	if ep.closed {
		err := ep.closeErr
		ep.mu.Unlock()
		return err
	}
	if ep.capacity == 0 {
		ep.mu.Unlock()
		return bus.New(bus.ErrCapacityExhausted, "sender capacity exhausted")
	}
	ep.capacity--
	ep.mu.Unlock()

	return s.d.send(ctx, wire.SendItem{Channel: s.cookie, Item: item})
}

// Close closes the sender end.
func (s *Sender) Close(ctx context.Context) error {
	return closeChannelEnd(ctx, s.d, s.cookie, bus.ChannelEndSender)
}

// Receiver is the user-facing handle to a channel's receive half.
type Receiver struct {
	d      *Dispatcher
	cookie bus.ChannelCookie
}

// NextItem blocks for the next delivered item, or returns ctx's error,
// or the channel's terminal error once the sender end has closed.
func (r *Receiver) NextItem(ctx context.Context) (wire.SerializedValue, error) {
	r.d.mu.Lock()
	ep, ok := r.d.channels[r.cookie]
	r.d.mu.Unlock()
	if !ok {
		return nil, bus.New(bus.ErrInvalidChannel, "unknown channel")
	}

	select {
	case item, ok := <-ep.items:
		if !ok {
			ep.mu.Lock()
			err := ep.closeErr
			ep.mu.Unlock()
			return nil, err
		}
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AddCapacity sends AddChannelCapacity{delta} to the broker, which
// credits the receiver's capacity there and tops up a sender that has
// drained to the low-water mark. The receiver keeps no local count.
func (r *Receiver) AddCapacity(ctx context.Context, delta uint32) error {
	return r.d.send(ctx, wire.AddChannelCapacity{Channel: r.cookie, Delta: delta})
}

// Close closes the receiver end.
func (r *Receiver) Close(ctx context.Context) error {
	return closeChannelEnd(ctx, r.d, r.cookie, bus.ChannelEndReceiver)
}

func closeChannelEnd(ctx context.Context, d *Dispatcher, cookie bus.ChannelCookie, end bus.ChannelEnd) error {
	serial := d.nextSerialValue()
	reply, err := d.call(ctx, serial, wire.CloseChannelEnd{Serial: serial, Channel: cookie, End: end})
	if err != nil {
		return err
	}
	r := reply.(wire.CloseChannelEndReply)
	if r.Result != wire.CloseChannelEndOK {
		return bus.New(bus.ErrInvalidChannel, "channel already closed")
	}
	return nil
}

func (d *Dispatcher) handleItemReceived(m wire.ItemReceived) {
	d.mu.Lock()
	ep, ok := d.channels[m.Channel]
	d.mu.Unlock()
	if !ok {
		return
	}
	observability.RecordChannelItem()
	select {
	case ep.items <- m.Item:
	default:
		// Buffer full: the broker already accounted this against the
		// receiver's advertised capacity, so a slow consumer blocks the
		// connection's single reader rather than dropping data.
		ep.items <- m.Item
	}
}

func (d *Dispatcher) handleChannelEndClosed(m wire.ChannelEndClosed) {
	d.mu.Lock()
	ep, ok := d.channels[m.Channel]
	d.mu.Unlock()
	if !ok {
		return
	}
	ep.mu.Lock()
	ep.closed = true
	ep.closeErr = bus.New(bus.ErrInvalidChannel, "peer end closed")
	ep.mu.Unlock()
	if !ep.isSender {
		close(ep.items)
	}
}

func (d *Dispatcher) handleChannelEndClaimed(m wire.ChannelEndClaimed) {
	d.mu.Lock()
	ep, ok := d.channels[m.Channel]
	d.mu.Unlock()
	if !ok {
		return
	}
	ep.mu.Lock()
	if ep.isSender {
		ep.capacity = m.Capacity
	}
	ep.claimCap = m.Capacity
	if ep.claimedCh != nil {
		close(ep.claimedCh)
		ep.claimedCh = nil
	}
	ep.mu.Unlock()
}

func (d *Dispatcher) handleAddChannelCapacity(m wire.AddChannelCapacity) {
	d.mu.Lock()
	ep, ok := d.channels[m.Channel]
	d.mu.Unlock()
	if !ok || !ep.isSender {
		return
	}
	ep.mu.Lock()
	ep.capacity += m.Delta
	ep.mu.Unlock()
}

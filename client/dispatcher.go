// Package client implements the connection-side half of the protocol:
// a single Dispatcher multiplexes one Transport across every pending
// call, event subscription, channel endpoint, and bus listener a
// process holds, the way the reference message bus's InMemoryCommBus
// multiplexes one handler/subscriber table across every caller.
package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/config"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/transport"
	"github.com/aldrin-bus/aldrin/wire"
)

// FunctionHandler answers an inbound CallFunction for a service this
// process hosts.
type FunctionHandler func(ctx context.Context, args wire.SerializedValue) (*wire.SerializedValue, wire.CallResult)

// EventHandler observes an emitted event's arguments.
type EventHandler func(args wire.SerializedValue)

// BusEventHandler observes one EmitBusEvent delivered to a started listener.
type BusEventHandler func(ev wire.EmitBusEvent)

// Dispatcher owns the connection and demultiplexes every inbound
// message to whichever caller, subscriber, or channel endpoint is
// waiting on it. Exactly one goroutine (run) ever reads the transport.
type Dispatcher struct {
	t   transport.Transport
	cfg *config.ClientConfig
	log observability.Logger

	nextSerial atomic.Uint32

	mu       sync.Mutex
	pending  map[uint32]chan wire.Message // keyed by the serial this side assigned
	funcs    map[funcKey]FunctionHandler
	events   map[eventKey][]subscriber
	allEvts  map[bus.ServiceCookie][]subscriber
	channels map[bus.ChannelCookie]*endpoint
	busSubs  map[bus.BusListenerCookie]BusEventHandler

	closed   bool
	closeErr error
	doneCh   chan struct{}
}

type funcKey struct {
	service  bus.ServiceCookie
	function uint32
}

type eventKey struct {
	service bus.ServiceCookie
	event   uint32
}

type subscriber struct {
	id      uint64
	handler EventHandler
}

// NewDispatcher takes ownership of t (already past the Connect/ConnectReply
// handshake) and starts its single read loop.
func NewDispatcher(t transport.Transport, cfg *config.ClientConfig, log observability.Logger) *Dispatcher {
	if cfg == nil {
		cfg = config.DefaultClientConfig()
	}
	if log == nil {
		log = observability.NopLogger()
	}
	d := &Dispatcher{
		t:        t,
		cfg:      cfg,
		log:      log,
		pending:  make(map[uint32]chan wire.Message),
		funcs:    make(map[funcKey]FunctionHandler),
		events:   make(map[eventKey][]subscriber),
		allEvts:  make(map[bus.ServiceCookie][]subscriber),
		channels: make(map[bus.ChannelCookie]*endpoint),
		busSubs:  make(map[bus.BusListenerCookie]BusEventHandler),
		doneCh:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) nextSerialValue() uint32 { return d.nextSerial.Add(1) }

// call sends req (which must carry nextSerialValue() as its Serial) and
// blocks until the correlated reply arrives, ctx is canceled, or the
// connection dies.
func (d *Dispatcher) call(ctx context.Context, serial uint32, req wire.Message) (wire.Message, error) {
	replyCh := make(chan wire.Message, 1)
	d.mu.Lock()
	if d.closed {
		err := d.closeErr
		d.mu.Unlock()
		return nil, err
	}
	d.pending[serial] = replyCh
	d.mu.Unlock()

	if err := d.t.Send(ctx, req); err != nil {
		d.mu.Lock()
		delete(d.pending, serial)
		d.mu.Unlock()
		return nil, err
	}

	select {
	case reply, ok := <-replyCh:
		if !ok {
			d.mu.Lock()
			err := d.closeErr
			d.mu.Unlock()
			return nil, err
		}
		return reply, nil
	case <-ctx.Done():
		d.mu.Lock()
		delete(d.pending, serial)
		d.mu.Unlock()
		return nil, ctx.Err()
	case <-d.doneCh:
		d.mu.Lock()
		err := d.closeErr
		d.mu.Unlock()
		return nil, err
	}
}

// send transmits a message with no reply expected (EmitEvent, SendItem,
// AddChannelCapacity, UnsubscribeEvent, and similar fire-and-forget ops).
func (d *Dispatcher) send(ctx context.Context, msg wire.Message) error {
	return d.t.Send(ctx, msg)
}

func (d *Dispatcher) run() {
	ctx := context.Background()
	for {
		msg, err := d.t.Recv(ctx)
		if err != nil {
			d.shutdown(err)
			return
		}
		d.dispatch(ctx, msg)
	}
}

// shutdown fails every outstanding call and marks the dispatcher dead;
// subscribers simply stop receiving further deliveries.
func (d *Dispatcher) shutdown(err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.closeErr = err
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	close(d.doneCh)
	d.t.Close()
}

// Close shuts the dispatcher down from the local side.
func (d *Dispatcher) Close() {
	d.shutdown(bus.New(bus.ErrShutdown, "dispatcher closed"))
}

func (d *Dispatcher) dispatch(ctx context.Context, msg wire.Message) {
	switch m := msg.(type) {
	case wire.CreateObjectReply:
		d.resolve(m.Serial, m)
	case wire.DestroyObjectReply:
		d.resolve(m.Serial, m)
	case wire.CreateServiceReply:
		d.resolve(m.Serial, m)
	case wire.DestroyServiceReply:
		d.resolve(m.Serial, m)
	case wire.QueryServiceInfoReply:
		d.resolve(m.Serial, m)
	case wire.CallFunctionReply:
		d.resolve(m.Serial, m)
	case wire.SubscribeEventReply:
		d.resolve(m.Serial, m)
	case wire.SubscribeAllEventsReply:
		d.resolve(m.Serial, m)
	case wire.CreateChannelReply:
		d.resolve(m.Serial, m)
	case wire.CloseChannelEndReply:
		d.resolve(m.Serial, m)
	case wire.ClaimChannelEndReply:
		d.resolve(m.Serial, m)
	case wire.CreateBusListenerReply:
		d.resolve(m.Serial, m)
	case wire.DestroyBusListenerReply:
		d.resolve(m.Serial, m)
	case wire.StartBusListenerReply:
		d.resolve(m.Serial, m)
	case wire.StopBusListenerReply:
		d.resolve(m.Serial, m)
	case wire.SyncReply:
		d.resolve(m.Serial, m)
	case wire.QueryIntrospectionReply:
		d.resolve(m.Serial, m)

	case wire.CallFunction:
		d.handleInboundCall(ctx, m)
	case wire.AbortFunctionCall:
		d.log.Debug("call_aborted_by_caller", "serial", m.Serial)
	case wire.EmitEvent:
		d.handleEmitEvent(m)
	case wire.EmitBusEvent:
		d.handleEmitBusEvent(m)
	case wire.BusListenerCurrentFinished:
		d.log.Debug("bus_listener_current_finished", "listener", m.Listener)

	case wire.ItemReceived:
		d.handleItemReceived(m)
	case wire.ChannelEndClosed:
		d.handleChannelEndClosed(m)
	case wire.ChannelEndClaimed:
		d.handleChannelEndClaimed(m)
	case wire.AddChannelCapacity:
		d.handleAddChannelCapacity(m)

	case wire.Shutdown:
		d.shutdown(bus.New(bus.ErrShutdown, "broker is shutting down"))

	default:
		d.log.Debug("unhandled_message", "kind", msg.Kind())
	}
}

func (d *Dispatcher) resolve(serial uint32, msg wire.Message) {
	d.mu.Lock()
	ch, ok := d.pending[serial]
	if ok {
		delete(d.pending, serial)
	}
	d.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (d *Dispatcher) handleInboundCall(ctx context.Context, m wire.CallFunction) {
	d.mu.Lock()
	handler, ok := d.funcs[funcKey{service: m.Service, function: m.Function}]
	d.mu.Unlock()
	if !ok {
		d.send(ctx, wire.CallFunctionReply{Serial: m.Serial, Result: wire.CallInvalidFunction})
		return
	}
	value, result := handler(ctx, m.Args)
	d.send(ctx, wire.CallFunctionReply{Serial: m.Serial, Result: result, Value: value})
}

func (d *Dispatcher) handleEmitEvent(m wire.EmitEvent) {
	d.mu.Lock()
	subs := append([]subscriber(nil), d.events[eventKey{service: m.Service, event: m.Event}]...)
	subs = append(subs, d.allEvts[m.Service]...)
	d.mu.Unlock()
	for _, s := range subs {
		s.handler(m.Args)
	}
}

func (d *Dispatcher) handleEmitBusEvent(m wire.EmitBusEvent) {
	d.mu.Lock()
	handler, ok := d.busSubs[m.Listener]
	d.mu.Unlock()
	if ok {
		handler(m)
	}
}

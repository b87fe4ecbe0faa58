// Package broker implements the Aldrin broker: the single authoritative
// process that mediates every object, service, call, event, channel,
// and bus listener for the clients connected to it. Its dispatch loop
// is single-goroutine and cooperative; concurrency only enters at the
// connection boundary via per-connection reader/writer goroutines.
package broker

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

// Broker composes the six owned subsystems that together hold all
// bus state: connections, objects, services, channels, bus listeners,
// and introspection schemas.
type Broker struct {
	cfg    *config.BrokerConfig
	logger observability.Logger

	mu          sync.Mutex // protects everything below; taken by the dispatch loop, Accept, Shutdown and the admin accessors
	conns       map[bus.ConnectionID]*connState
	objects     *objectRegistry
	services    *serviceRegistry
	channels    map[bus.ChannelCookie]*channel
	busListener *busListenerRegistry
	intro       *introspectionRegistry

	nextConnID     atomic.Uint64
	nextCallSerial atomic.Uint32
	inbound        chan inboundEvent
	done           chan struct{}
	closeOnce      sync.Once

	adminSubs map[int]chan AdminEvent
	nextAdmin int
}

type inboundEvent struct {
	conn bus.ConnectionID
	msg  wire.Message
	err  error // non-nil signals the connection's reader/transport died
}

// New constructs a Broker with the given configuration and logger. Call
// Run to start its dispatch loop, and Accept for each new transport.
func New(cfg *config.BrokerConfig, logger observability.Logger) *Broker {
	if cfg == nil {
		cfg = config.DefaultBrokerConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Broker{
		cfg:         cfg,
		logger:      logger,
		conns:       make(map[bus.ConnectionID]*connState),
		objects:     newObjectRegistry(),
		services:    newServiceRegistry(),
		channels:    make(map[bus.ChannelCookie]*channel),
		busListener: newBusListenerRegistry(),
		intro:       newIntrospectionRegistry(),
		inbound:     make(chan inboundEvent, 64),
		done:        make(chan struct{}),
		adminSubs:   make(map[int]chan AdminEvent),
	}
}

// Run drives the dispatch loop until ctx is canceled or Shutdown is
// called. It is a three-way select over inbound messages, ctx.Done(),
// and the shutdown channel that Shutdown closes.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case ev := <-b.inbound:
			b.mu.Lock()
			b.handleEvent(ev)
			b.mu.Unlock()
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

// Shutdown stops the dispatch loop and closes every connection: each
// is sent wire.Shutdown and then torn down like a disconnect.
func (b *Broker) Shutdown() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		defer b.mu.Unlock()
		for id, conn := range b.conns {
			conn.send(wire.Shutdown{})
			b.disconnect(id)
		}
	})
}

// Accept performs the handshake on t and, if successful, starts the
// per-connection reader/writer goroutines feeding/draining the
// dispatch loop. It returns once the handshake completes or fails.
func (b *Broker) Accept(ctx context.Context, t transport.Transport) error {
	msg, err := t.Recv(ctx)
	if err != nil {
		return err
	}

	var major, peerMinor uint32
	switch m := msg.(type) {
	case wire.Connect:
		major, peerMinor = m.Major, m.Minor
	case wire.Connect2:
		major, peerMinor = m.Major, m.Minor
	default:
		t.Close()
		return bus.New(bus.ErrIncompatibleVersion, "first message was not Connect/Connect2")
	}

	if major != bus.ProtocolMajor {
		t.Send(ctx, wire.ConnectReply{Result: wire.ConnectIncompatibleVersion})
		t.Close()
		observability.RecordConnection("incompatible_version")
		return bus.New(bus.ErrIncompatibleVersion, "major version mismatch")
	}
	minor, ok := bus.NegotiateMinor(peerMinor)
	if !ok {
		t.Send(ctx, wire.ConnectReply{Result: wire.ConnectIncompatibleVersion})
		t.Close()
		observability.RecordConnection("incompatible_version")
		return bus.New(bus.ErrIncompatibleVersion, "no mutually supported minor version")
	}

	if _, isV2 := msg.(wire.Connect2); isV2 {
		t.Send(ctx, wire.ConnectReply2{Result: wire.ConnectOK, Minor: minor})
	} else {
		t.Send(ctx, wire.ConnectReply{Result: wire.ConnectOK})
	}
	observability.RecordConnection("accepted")

	id := bus.ConnectionID(b.nextConnID.Add(1))
	outbox := make(chan wire.Message, 256)

	b.mu.Lock()
	b.conns[id] = newConnState(id, minor, outbox)
	observability.SetConnectionsActive(len(b.conns))
	b.mu.Unlock()

	go b.writerLoop(t, outbox)
	go b.readerLoop(id, t)
	return nil
}

func (b *Broker) readerLoop(id bus.ConnectionID, t transport.Transport) {
	ctx := context.Background()
	for {
		msg, err := t.Recv(ctx)
		if err != nil {
			b.inbound <- inboundEvent{conn: id, err: err}
			return
		}
		b.inbound <- inboundEvent{conn: id, msg: msg}
	}
}

func (b *Broker) writerLoop(t transport.Transport, outbox <-chan wire.Message) {
	ctx := context.Background()
	for msg := range outbox {
		if err := t.Send(ctx, msg); err != nil {
			return
		}
	}
}

func (b *Broker) handleEvent(ev inboundEvent) {
	if ev.err != nil {
		b.disconnect(ev.conn)
		return
	}
	b.dispatch(ev.conn, ev.msg)
}

// disconnect tears down everything a connection owned: its objects
// (cascading their services), channel ends, event subscriptions, bus
// listeners, and in-flight calls, synthesizing Aborted to any peer
// still waiting on a call into or out of this connection.
func (b *Broker) disconnect(id bus.ConnectionID) {
	conn, ok := b.conns[id]
	if !ok {
		return
	}
	delete(b.conns, id)
	close(conn.outbox)
	observability.SetConnectionsActive(len(b.conns))

	for objCookie := range conn.objects {
		b.destroyObjectLocked(id, objCookie)
	}
	for ch := range conn.senders {
		b.closeChannelEndLocked(ch, bus.ChannelEndSender)
	}
	for ch := range conn.receivers {
		b.closeChannelEndLocked(ch, bus.ChannelEndReceiver)
	}
	for listener := range conn.busListeners {
		b.busListener.destroy(listener)
	}
	// id was the caller on these: tell each callee to give up.
	for _, route := range conn.calls {
		if callee, ok := b.conns[route.calleeConn]; ok {
			callee.send(wire.AbortFunctionCall{Serial: route.calleeSerial})
		}
	}
	// id was the callee on these, owned by other connections: synthesize
	// the Aborted reply those callers are waiting on.
	for _, callerConn := range b.conns {
		for callerSerial, route := range callerConn.calls {
			if route.calleeConn != id {
				continue
			}
			callerConn.removeCall(callerSerial)
			callerConn.send(wire.CallFunctionReply{Serial: callerSerial, Result: wire.CallAborted})
		}
	}
	for _, typeID := range b.intro.removeConn(id) {
		for _, pq := range b.intro.takePending(typeID) {
			if waiter, ok := b.conns[pq.conn]; ok {
				waiter.send(wire.QueryIntrospectionReply{Serial: pq.serial, Result: wire.QueryIntrospectionUnavailable})
			}
		}
	}
	observability.SetObjectsActive(b.objects.len())
	observability.SetServicesActive(b.services.len())

	b.logger.Info("connection_closed", "conn", id)
}

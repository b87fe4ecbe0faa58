package client

import (
	"context"
	"sync/atomic"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
)

// Handle is the small, cloneable, comparable value every caller holds.
// Cloning shares the underlying Dispatcher and bumps a reference count;
// Close decrements it and only tears the dispatcher down once the last
// clone lets go, mirroring the thin-public-struct-over-shared-engine
// shape the rest of this codebase uses for its server types.
type Handle struct {
	d      *Dispatcher
	clones *atomic.Int64
}

// NewHandle wraps a freshly constructed Dispatcher as the first live clone.
func NewHandle(d *Dispatcher) Handle {
	clones := &atomic.Int64{}
	clones.Store(1)
	return Handle{d: d, clones: clones}
}

// Clone returns a new reference to the same dispatcher.
func (h Handle) Clone() Handle {
	h.clones.Add(1)
	return h
}

// Close releases this reference; once every clone has been closed the
// underlying dispatcher is shut down and the transport closed.
func (h Handle) Close() {
	if h.clones.Add(-1) == 0 {
		h.d.Close()
	}
}

// CreateObject creates a new object with the given stable UUID.
func (h Handle) CreateObject(ctx context.Context, uuid bus.ObjectUUID) (bus.ObjectCookie, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.CreateObject{Serial: serial, UUID: uuid})
	if err != nil {
		return bus.ObjectCookie{}, err
	}
	r := reply.(wire.CreateObjectReply)
	if r.Result != wire.CreateObjectOK {
		return bus.ObjectCookie{}, bus.New(bus.ErrDuplicateObject, "object uuid already live")
	}
	return r.Cookie, nil
}

// DestroyObject destroys a previously created object and every service
// it hosts.
func (h Handle) DestroyObject(ctx context.Context, cookie bus.ObjectCookie) error {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.DestroyObject{Serial: serial, Cookie: cookie})
	if err != nil {
		return err
	}
	r := reply.(wire.DestroyObjectReply)
	if r.Result != wire.DestroyObjectOK {
		return bus.New(bus.ErrInvalidObject, "object not live")
	}
	return nil
}

// CreateService creates a service on object, optionally carrying a
// schema TypeID for introspection.
func (h Handle) CreateService(ctx context.Context, object bus.ObjectCookie, uuid bus.ServiceUUID, version uint32, typeID *bus.TypeID) (bus.ServiceCookie, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.CreateService{Serial: serial, Object: object, UUID: uuid, Version: version, TypeID: typeID})
	if err != nil {
		return bus.ServiceCookie{}, err
	}
	r := reply.(wire.CreateServiceReply)
	switch r.Result {
	case wire.CreateServiceOK:
		return r.Cookie, nil
	case wire.CreateServiceDuplicate:
		return bus.ServiceCookie{}, bus.New(bus.ErrDuplicateService, "service uuid already live on this object")
	default:
		return bus.ServiceCookie{}, bus.New(bus.ErrInvalidObject, "object not live")
	}
}

// DestroyService destroys a previously created service.
func (h Handle) DestroyService(ctx context.Context, cookie bus.ServiceCookie) error {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.DestroyService{Serial: serial, Cookie: cookie})
	if err != nil {
		return err
	}
	r := reply.(wire.DestroyServiceReply)
	if r.Result != wire.DestroyServiceOK {
		return bus.New(bus.ErrInvalidService, "service not live")
	}
	return nil
}

// RegisterFunction installs handler to answer calls to (service, function).
func (h Handle) RegisterFunction(service bus.ServiceCookie, function uint32, handler FunctionHandler) {
	h.d.mu.Lock()
	h.d.funcs[funcKey{service: service, function: function}] = handler
	h.d.mu.Unlock()
}

// UnregisterFunction removes a previously registered function handler.
func (h Handle) UnregisterFunction(service bus.ServiceCookie, function uint32) {
	h.d.mu.Lock()
	delete(h.d.funcs, funcKey{service: service, function: function})
	h.d.mu.Unlock()
}

// Call invokes function on service with args and blocks for the reply.
func (h Handle) Call(ctx context.Context, service bus.ServiceCookie, function uint32, args wire.SerializedValue) (*wire.SerializedValue, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.CallFunction{Serial: serial, Service: service, Function: function, Args: args})
	if err != nil {
		return nil, err
	}
	r := reply.(wire.CallFunctionReply)
	switch r.Result {
	case wire.CallOK:
		return r.Value, nil
	case wire.CallErr:
		return r.Value, bus.New(bus.ErrInvalidReply, "callee returned an error value")
	case wire.CallAborted:
		return nil, bus.New(bus.ErrCallAborted, "call aborted")
	case wire.CallInvalidFunction:
		return nil, bus.New(bus.ErrInvalidFunction, "function or service unknown")
	default:
		return nil, bus.New(bus.ErrInvalidArguments, "callee rejected arguments")
	}
}

// EmitEvent fires event on service with no expectation of a reply.
func (h Handle) EmitEvent(ctx context.Context, service bus.ServiceCookie, event uint32, args wire.SerializedValue) error {
	return h.d.send(ctx, wire.EmitEvent{Service: service, Event: event, Args: args})
}

// SubscribeEvent registers handler for one specific event on service.
func (h Handle) SubscribeEvent(ctx context.Context, service bus.ServiceCookie, event uint32, handler EventHandler) (func(), error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.SubscribeEvent{Serial: serial, Service: service, Event: event})
	if err != nil {
		return nil, err
	}
	if reply.(wire.SubscribeEventReply).Result != wire.SubscribeEventOK {
		return nil, bus.New(bus.ErrInvalidService, "service not live")
	}

	key := eventKey{service: service, event: event}
	id := h.d.nextSerial.Add(1)
	h.d.mu.Lock()
	h.d.events[key] = append(h.d.events[key], subscriber{id: uint64(id), handler: handler})
	h.d.mu.Unlock()

	return func() {
		h.d.mu.Lock()
		subs := h.d.events[key]
		for i, s := range subs {
			if s.id == uint64(id) {
				h.d.events[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		last := len(h.d.events[key]) == 0
		if last {
			delete(h.d.events, key)
		}
		h.d.mu.Unlock()
		if last {
			h.d.send(ctx, wire.UnsubscribeEvent{Service: service, Event: event})
		}
	}, nil
}

// SubscribeAllEvents registers handler for every event on service.
func (h Handle) SubscribeAllEvents(ctx context.Context, service bus.ServiceCookie, handler EventHandler) (func(), error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.SubscribeAllEvents{Serial: serial, Service: service})
	if err != nil {
		return nil, err
	}
	if reply.(wire.SubscribeAllEventsReply).Result != wire.SubscribeEventOK {
		return nil, bus.New(bus.ErrInvalidService, "service not live")
	}

	id := h.d.nextSerial.Add(1)
	h.d.mu.Lock()
	h.d.allEvts[service] = append(h.d.allEvts[service], subscriber{id: uint64(id), handler: handler})
	h.d.mu.Unlock()

	return func() {
		h.d.mu.Lock()
		subs := h.d.allEvts[service]
		for i, s := range subs {
			if s.id == uint64(id) {
				h.d.allEvts[service] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		last := len(h.d.allEvts[service]) == 0
		if last {
			delete(h.d.allEvts, service)
		}
		h.d.mu.Unlock()
		if last {
			h.d.send(ctx, wire.UnsubscribeAllEvents{Service: service})
		}
	}, nil
}

// QueryServiceInfo fetches a live service's version and introspection TypeID.
func (h Handle) QueryServiceInfo(ctx context.Context, service bus.ServiceCookie) (bus.ServiceInfo, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.QueryServiceInfo{Serial: serial, Service: service})
	if err != nil {
		return bus.ServiceInfo{}, err
	}
	r := reply.(wire.QueryServiceInfoReply)
	if r.Result != wire.QueryServiceInfoOK {
		return bus.ServiceInfo{}, bus.New(bus.ErrInvalidService, "service not live")
	}
	return r.Info, nil
}

// CreateChannel creates a new channel, claiming the named end locally.
// When claiming the receiver, capacity is the initial advertised window.
func (h Handle) CreateChannel(ctx context.Context, claimEnd bus.ChannelEnd, capacity uint32) (bus.ChannelCookie, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.CreateChannel{Serial: serial, ClaimEnd: claimEnd, Capacity: capacity})
	if err != nil {
		return bus.ChannelCookie{}, err
	}
	cookie := reply.(wire.CreateChannelReply).Channel

	h.d.mu.Lock()
	if claimEnd == bus.ChannelEndSender {
		h.d.channels[cookie] = newSenderEndpoint(0)
	} else {
		h.d.channels[cookie] = newReceiverEndpoint(h.d.cfg.ChannelItemBufferSize)
	}
	h.d.mu.Unlock()
	return cookie, nil
}

// ClaimSender claims the unclaimed sender end of an existing channel.
func (h Handle) ClaimSender(ctx context.Context, cookie bus.ChannelCookie) (*Sender, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.ClaimChannelEnd{Serial: serial, Channel: cookie, End: bus.ChannelEndSender})
	if err != nil {
		return nil, err
	}
	r := reply.(wire.ClaimChannelEndReply)
	if r.Result != wire.ClaimChannelEndOK {
		return nil, claimError(r.Result)
	}
	h.d.mu.Lock()
	h.d.channels[cookie] = newSenderEndpoint(r.Capacity)
	h.d.mu.Unlock()
	return &Sender{d: h.d, cookie: cookie}, nil
}

// ClaimReceiver claims the unclaimed receiver end, advertising capacity.
func (h Handle) ClaimReceiver(ctx context.Context, cookie bus.ChannelCookie, capacity uint32) (*Receiver, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.ClaimChannelEnd{Serial: serial, Channel: cookie, End: bus.ChannelEndReceiver, Capacity: capacity})
	if err != nil {
		return nil, err
	}
	r := reply.(wire.ClaimChannelEndReply)
	if r.Result != wire.ClaimChannelEndOK {
		return nil, claimError(r.Result)
	}
	h.d.mu.Lock()
	h.d.channels[cookie] = newReceiverEndpoint(h.d.cfg.ChannelItemBufferSize)
	h.d.mu.Unlock()
	return &Receiver{d: h.d, cookie: cookie}, nil
}

// Sender returns a handle to cookie's sender end, assuming this process
// already claimed it (via CreateChannel or ClaimSender).
func (h Handle) Sender(cookie bus.ChannelCookie) *Sender { return &Sender{d: h.d, cookie: cookie} }

// Receiver returns a handle to cookie's receiver end, assuming this
// process already claimed it.
func (h Handle) Receiver(cookie bus.ChannelCookie) *Receiver { return &Receiver{d: h.d, cookie: cookie} }

func claimError(r wire.ClaimChannelEndResult) error {
	if r == wire.ClaimChannelEndAlreadyClaimed {
		return bus.New(bus.ErrInvalidChannel, "end already claimed")
	}
	return bus.New(bus.ErrInvalidChannel, "channel not live")
}

// CreateBusListener creates a new, unstarted, unfiltered bus listener.
func (h Handle) CreateBusListener(ctx context.Context) (bus.BusListenerCookie, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.CreateBusListener{Serial: serial})
	if err != nil {
		return bus.BusListenerCookie{}, err
	}
	return reply.(wire.CreateBusListenerReply).Listener, nil
}

// AddFilter restricts cookie to additionally match filter.
func (h Handle) AddFilter(ctx context.Context, cookie bus.BusListenerCookie, filter wire.BusListenerFilter) error {
	return h.d.send(ctx, wire.AddBusListenerFilter{Listener: cookie, Filter: filter})
}

// StartBusListener starts delivery to handler under scope.
func (h Handle) StartBusListener(ctx context.Context, cookie bus.BusListenerCookie, scope wire.BusListenerScope, handler BusEventHandler) error {
	h.d.mu.Lock()
	h.d.busSubs[cookie] = handler
	h.d.mu.Unlock()

	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.StartBusListener{Serial: serial, Listener: cookie, Scope: scope})
	if err != nil {
		return err
	}
	r := reply.(wire.StartBusListenerReply)
	if r.Result != wire.StartBusListenerOK {
		h.d.mu.Lock()
		delete(h.d.busSubs, cookie)
		h.d.mu.Unlock()
		return bus.New(bus.ErrBusListenerAlreadyStarted, "listener already started")
	}
	return nil
}

// StopBusListener stops delivery to cookie's handler.
func (h Handle) StopBusListener(ctx context.Context, cookie bus.BusListenerCookie) error {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.StopBusListener{Serial: serial, Listener: cookie})
	if err != nil {
		return err
	}
	h.d.mu.Lock()
	delete(h.d.busSubs, cookie)
	h.d.mu.Unlock()
	if reply.(wire.StopBusListenerReply).Result != wire.StopBusListenerOK {
		return bus.New(bus.ErrBusListenerNotStarted, "listener not started")
	}
	return nil
}

// DestroyBusListener destroys cookie.
func (h Handle) DestroyBusListener(ctx context.Context, cookie bus.BusListenerCookie) error {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.DestroyBusListener{Serial: serial, Listener: cookie})
	if err != nil {
		return err
	}
	h.d.mu.Lock()
	delete(h.d.busSubs, cookie)
	h.d.mu.Unlock()
	if reply.(wire.DestroyBusListenerReply).Result != wire.DestroyBusListenerOK {
		return bus.New(bus.ErrInvalidBusListener, "listener not live")
	}
	return nil
}

// RegisterIntrospection advertises schema for typeID to the broker,
// resolving any queries already waiting on it.
func (h Handle) RegisterIntrospection(ctx context.Context, typeID bus.TypeID, schema wire.SerializedValue) error {
	return h.d.send(ctx, wire.RegisterIntrospection{TypeID: typeID, Schema: schema})
}

// QueryIntrospection fetches the schema registered for typeID.
func (h Handle) QueryIntrospection(ctx context.Context, typeID bus.TypeID) (wire.SerializedValue, error) {
	serial := h.d.nextSerialValue()
	reply, err := h.d.call(ctx, serial, wire.QueryIntrospection{Serial: serial, TypeID: typeID})
	if err != nil {
		return nil, err
	}
	r := reply.(wire.QueryIntrospectionReply)
	if r.Result != wire.QueryIntrospectionOK {
		return nil, bus.New(bus.ErrInvalidLifetime, "no schema registered for type")
	}
	return r.Schema, nil
}

// SyncClient round-trips a request through the broker, returning once
// every message sent before it has been fully processed.
func (h Handle) SyncClient(ctx context.Context) error {
	serial := h.d.nextSerialValue()
	_, err := h.d.call(ctx, serial, wire.SyncClient{Serial: serial})
	return err
}

// Shutdown tells the broker this connection is terminating and closes
// the underlying transport.
func (h Handle) Shutdown(ctx context.Context) error {
	err := h.d.send(ctx, wire.Shutdown{})
	h.d.Close()
	return err
}

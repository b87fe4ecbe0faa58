package broker

import (
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
)

// connState tracks everything a single connection owns, so teardown
// can find and release it all without consulting every other
// registry from scratch. Ported field-for-field from the reference
// broker's per-connection bookkeeping.
type connState struct {
	id      bus.ConnectionID
	minor   uint32
	outbox  chan<- wire.Message

	objects       map[bus.ObjectCookie]struct{}
	events        map[bus.ServiceCookie]map[uint32]struct{}
	allEvents     map[bus.ServiceCookie]struct{}
	subscriptions map[bus.ServiceCookie]struct{}
	senders       map[bus.ChannelCookie]struct{}
	receivers     map[bus.ChannelCookie]struct{}
	busListeners  map[bus.BusListenerCookie]struct{}

	// calls maps a caller-assigned serial to the callee connection and
	// the serial the broker re-assigned for that callee.
	calls map[uint32]callRoute
}

type callRoute struct {
	calleeSerial uint32
	calleeConn   bus.ConnectionID
	service      bus.ServiceCookie
}

func newConnState(id bus.ConnectionID, minor uint32, outbox chan<- wire.Message) *connState {
	return &connState{
		id:            id,
		minor:         minor,
		outbox:        outbox,
		objects:       make(map[bus.ObjectCookie]struct{}),
		events:        make(map[bus.ServiceCookie]map[uint32]struct{}),
		allEvents:     make(map[bus.ServiceCookie]struct{}),
		subscriptions: make(map[bus.ServiceCookie]struct{}),
		senders:       make(map[bus.ChannelCookie]struct{}),
		receivers:     make(map[bus.ChannelCookie]struct{}),
		busListeners:  make(map[bus.BusListenerCookie]struct{}),
		calls:         make(map[uint32]callRoute),
	}
}

func (c *connState) send(msg wire.Message) {
	// The outbox is a buffered channel of 256 messages (see Accept),
	// drained by the per-connection writer goroutine; while it is full,
	// a send blocks the dispatch loop. A closed outbox (peer torn down
	// mid-broadcast) is expected during teardown races and the message
	// is silently dropped.
	defer func() { recover() }()
	c.outbox <- msg
}

func (c *connState) addObject(cookie bus.ObjectCookie)    { c.objects[cookie] = struct{}{} }
func (c *connState) removeObject(cookie bus.ObjectCookie) { delete(c.objects, cookie) }

func (c *connState) subscribeEvent(svc bus.ServiceCookie, event uint32) {
	set, ok := c.events[svc]
	if !ok {
		set = make(map[uint32]struct{})
		c.events[svc] = set
	}
	set[event] = struct{}{}
}

func (c *connState) unsubscribeEvent(svc bus.ServiceCookie, event uint32) {
	if set, ok := c.events[svc]; ok {
		delete(set, event)
		if len(set) == 0 {
			delete(c.events, svc)
		}
	}
}

func (c *connState) isSubscribedToEvent(svc bus.ServiceCookie, event uint32) bool {
	if _, ok := c.allEvents[svc]; ok {
		return true
	}
	set, ok := c.events[svc]
	if !ok {
		return false
	}
	_, subscribed := set[event]
	return subscribed
}

func (c *connState) subscribeAllEvents(svc bus.ServiceCookie)   { c.allEvents[svc] = struct{}{} }
func (c *connState) unsubscribeAllEvents(svc bus.ServiceCookie) { delete(c.allEvents, svc) }

func (c *connState) subscribe(svc bus.ServiceCookie)   { c.subscriptions[svc] = struct{}{} }
func (c *connState) unsubscribe(svc bus.ServiceCookie) { delete(c.subscriptions, svc) }

func (c *connState) unsubscribeAll(svc bus.ServiceCookie) {
	delete(c.events, svc)
	delete(c.subscriptions, svc)
	delete(c.allEvents, svc)
}

func (c *connState) addSender(cookie bus.ChannelCookie)    { c.senders[cookie] = struct{}{} }
func (c *connState) removeSender(cookie bus.ChannelCookie) { delete(c.senders, cookie) }

func (c *connState) addReceiver(cookie bus.ChannelCookie)    { c.receivers[cookie] = struct{}{} }
func (c *connState) removeReceiver(cookie bus.ChannelCookie) { delete(c.receivers, cookie) }

func (c *connState) addBusListener(cookie bus.BusListenerCookie)    { c.busListeners[cookie] = struct{}{} }
func (c *connState) removeBusListener(cookie bus.BusListenerCookie) { delete(c.busListeners, cookie) }

// addCall records a pending call, returning false if callerSerial is
// already in flight (the caller reused a serial before its reply).
func (c *connState) addCall(callerSerial, calleeSerial uint32, calleeConn bus.ConnectionID, service bus.ServiceCookie) bool {
	if _, exists := c.calls[callerSerial]; exists {
		return false
	}
	c.calls[callerSerial] = callRoute{calleeSerial: calleeSerial, calleeConn: calleeConn, service: service}
	return true
}

func (c *connState) removeCall(callerSerial uint32) { delete(c.calls, callerSerial) }

func (c *connState) callRoute(callerSerial uint32) (callRoute, bool) {
	r, ok := c.calls[callerSerial]
	return r, ok
}

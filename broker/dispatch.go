package broker

import (
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/wire"
)

// dispatch is the single type-switch entry point for every inbound
// message, called with b.mu held.
func (b *Broker) dispatch(id bus.ConnectionID, msg wire.Message) {
	conn, ok := b.conns[id]
	if !ok {
		return
	}

	switch m := msg.(type) {
	case wire.CreateObject:
		b.handleCreateObject(id, conn, m)
	case wire.DestroyObject:
		b.handleDestroyObject(id, m)
		conn.send(wire.DestroyObjectReply{Serial: m.Serial, Result: wire.DestroyObjectOK})
	case wire.CreateService:
		b.handleCreateService(id, conn, m)
	case wire.DestroyService:
		b.handleDestroyService(conn, m)
	case wire.QueryServiceInfo:
		b.handleQueryServiceInfo(conn, m)

	case wire.CallFunction:
		b.handleCallFunction(conn, m)
	case wire.CallFunctionReply:
		b.handleCallFunctionReply(id, m)
	case wire.AbortFunctionCall:
		b.handleAbortFunctionCall(conn, m)
	case wire.EmitEvent:
		b.handleEmitEvent(m)
	case wire.SubscribeEvent:
		b.handleSubscribeEvent(conn, m)
	case wire.UnsubscribeEvent:
		conn.unsubscribeEvent(m.Service, m.Event)
	case wire.SubscribeAllEvents:
		b.handleSubscribeAllEvents(conn, m)
	case wire.UnsubscribeAllEvents:
		conn.unsubscribeAllEvents(m.Service)

	case wire.CreateChannel:
		b.handleCreateChannel(id, conn, m)
	case wire.CloseChannelEnd:
		b.handleCloseChannelEnd(id, conn, m)
	case wire.ClaimChannelEnd:
		b.handleClaimChannelEnd(id, conn, m)
	case wire.SendItem:
		b.handleSendItem(id, m)
	case wire.AddChannelCapacity:
		b.handleAddChannelCapacity(id, m)

	case wire.CreateBusListener:
		cookie := b.busListener.create(id)
		conn.addBusListener(cookie)
		conn.send(wire.CreateBusListenerReply{Serial: m.Serial, Listener: cookie})
	case wire.DestroyBusListener:
		b.handleDestroyBusListener(conn, m)
	case wire.AddBusListenerFilter:
		b.busListener.addFilter(m.Listener, m.Filter)
	case wire.RemoveBusListenerFilter:
		b.busListener.removeFilter(m.Listener, m.Filter)
	case wire.ClearBusListenerFilters:
		b.busListener.clearFilters(m.Listener)
	case wire.StartBusListener:
		b.handleStartBusListener(conn, m)
	case wire.StopBusListener:
		b.handleStopBusListener(conn, m)

	case wire.SyncClient:
		conn.send(wire.SyncReply{Serial: m.Serial})

	case wire.RegisterIntrospection:
		b.handleRegisterIntrospection(id, m)
	case wire.QueryIntrospection:
		b.handleQueryIntrospection(id, conn, m)

	default:
		b.logger.Debug("unhandled_message", "conn", id, "kind", msg.Kind())
	}
}

// ---- objects ----

func (b *Broker) handleCreateObject(id bus.ConnectionID, conn *connState, m wire.CreateObject) {
	cookie, dup := b.objects.create(m.UUID, id)
	if dup {
		conn.send(wire.CreateObjectReply{Serial: m.Serial, Result: wire.CreateObjectDuplicate})
		return
	}
	conn.addObject(cookie)
	observability.SetObjectsActive(b.objects.len())
	b.logger.Debug("object_created", "uuid", m.UUID, "cookie", cookie, "conn", id)
	conn.send(wire.CreateObjectReply{Serial: m.Serial, Result: wire.CreateObjectOK, Cookie: cookie})
	b.emitBusEvent(wire.BusEventObjectCreated, b.objects.id(cookie), nil)
}

func (b *Broker) handleDestroyObject(id bus.ConnectionID, m wire.DestroyObject) {
	b.destroyObjectLocked(id, m.Cookie)
}

// destroyObjectLocked cascades an object's teardown to every service it
// hosts, used both by the explicit DestroyObject handler (which always
// replies OK, matching the reference broker treating an unknown cookie
// as a no-op rather than an error) and by disconnect's cleanup of
// everything a dying connection owned.
func (b *Broker) destroyObjectLocked(owner bus.ConnectionID, cookie bus.ObjectCookie) {
	if _, ok := b.objects.get(cookie); !ok {
		return
	}
	objID := b.objects.id(cookie)
	services, ok := b.objects.destroy(cookie)
	if !ok {
		return
	}
	if conn, ok := b.conns[owner]; ok {
		conn.removeObject(cookie)
	}
	for _, svcCookie := range services {
		b.destroyServiceLocked(objID, svcCookie)
	}
	observability.SetObjectsActive(b.objects.len())
	b.emitBusEvent(wire.BusEventObjectDestroyed, objID, nil)
}

// ---- services ----

func (b *Broker) handleCreateService(id bus.ConnectionID, conn *connState, m wire.CreateService) {
	if obj, ok := b.objects.get(m.Object); !ok || obj.owner != id {
		conn.send(wire.CreateServiceReply{Serial: m.Serial, Result: wire.CreateServiceInvalidObject})
		return
	}
	cookie, dup := b.services.create(m.Object, m.UUID, id, m.Version, m.TypeID)
	if dup {
		conn.send(wire.CreateServiceReply{Serial: m.Serial, Result: wire.CreateServiceDuplicate})
		return
	}
	b.objects.addService(m.Object, cookie)
	observability.SetServicesActive(b.services.len())
	svcID := b.services.id(b.objects, cookie)
	b.logger.Debug("service_created", "uuid", m.UUID, "cookie", cookie, "object", m.Object, "conn", id)
	conn.send(wire.CreateServiceReply{Serial: m.Serial, Result: wire.CreateServiceOK, Cookie: cookie})
	b.emitBusEvent(wire.BusEventServiceCreated, b.objects.id(m.Object), &svcID)
}

func (b *Broker) handleDestroyService(conn *connState, m wire.DestroyService) {
	entry, ok := b.services.get(m.Cookie)
	if !ok {
		conn.send(wire.DestroyServiceReply{Serial: m.Serial, Result: wire.DestroyServiceInvalidService})
		return
	}
	objID := b.objects.id(entry.object)
	b.destroyServiceLocked(objID, m.Cookie)
	b.objects.removeService(entry.object, m.Cookie)
	conn.send(wire.DestroyServiceReply{Serial: m.Serial, Result: wire.DestroyServiceOK})
}

// destroyServiceLocked removes a service, drops every connection's
// subscriptions to it, and synthesizes InvalidFunction replies for any
// call still in flight toward it (the caller-visible mapping of the
// wire-level InvalidService outcome, per the call-routing rules). When
// the callee connection is already gone (disconnect removes it before
// tearing down its objects), those calls are answered Aborted instead.
func (b *Broker) destroyServiceLocked(objID bus.ObjectID, cookie bus.ServiceCookie) {
	entry, ok := b.services.get(cookie)
	if !ok {
		return
	}
	svcID := bus.ServiceID{Object: objID, UUID: entry.uuid, Cookie: cookie}
	b.services.destroy(cookie)

	for _, conn := range b.conns {
		conn.unsubscribeAll(cookie)
		for callerSerial, route := range conn.calls {
			if route.service != cookie {
				continue
			}
			conn.removeCall(callerSerial)
			result := wire.CallInvalidFunction
			if _, alive := b.conns[route.calleeConn]; !alive {
				result = wire.CallAborted
			}
			conn.send(wire.CallFunctionReply{Serial: callerSerial, Result: result})
		}
	}

	observability.SetServicesActive(b.services.len())
	b.emitBusEvent(wire.BusEventServiceDestroyed, objID, &svcID)
}

func (b *Broker) handleQueryServiceInfo(conn *connState, m wire.QueryServiceInfo) {
	if _, ok := b.services.get(m.Service); !ok {
		conn.send(wire.QueryServiceInfoReply{Serial: m.Serial, Result: wire.QueryServiceInfoInvalidService})
		return
	}
	conn.send(wire.QueryServiceInfoReply{Serial: m.Serial, Result: wire.QueryServiceInfoOK, Info: b.services.info(m.Service)})
}

// ---- calls ----

func (b *Broker) handleCallFunction(conn *connState, m wire.CallFunction) {
	entry, ok := b.services.get(m.Service)
	if !ok {
		conn.send(wire.CallFunctionReply{Serial: m.Serial, Result: wire.CallInvalidFunction})
		return
	}
	callee, ok := b.conns[entry.owner]
	if !ok {
		conn.send(wire.CallFunctionReply{Serial: m.Serial, Result: wire.CallAborted})
		return
	}
	calleeSerial := b.nextCallSerial.Add(1)
	if !conn.addCall(m.Serial, calleeSerial, entry.owner, m.Service) {
		conn.send(wire.CallFunctionReply{Serial: m.Serial, Result: wire.CallInvalidArgs})
		return
	}
	callee.send(wire.CallFunction{Serial: calleeSerial, Service: m.Service, Function: m.Function, Args: m.Args})
}

// handleCallFunctionReply looks up which caller is owed this reply by
// scanning for a pending route whose callee matches (conn, serial); the
// broker never learns the caller's identity any other way since the
// reply only carries the callee-side serial.
func (b *Broker) handleCallFunctionReply(id bus.ConnectionID, m wire.CallFunctionReply) {
	for _, callerConn := range b.conns {
		for callerSerial, route := range callerConn.calls {
			if route.calleeConn != id || route.calleeSerial != m.Serial {
				continue
			}
			callerConn.removeCall(callerSerial)
			callerConn.send(wire.CallFunctionReply{Serial: callerSerial, Result: m.Result, Value: m.Value})
			observability.RecordCall(callResultLabel(m.Result), 0)
			return
		}
	}
}

func callResultLabel(r wire.CallResult) string {
	switch r {
	case wire.CallOK:
		return "ok"
	case wire.CallErr:
		return "err"
	case wire.CallAborted:
		return "aborted"
	case wire.CallInvalidFunction:
		return "invalid_function"
	default:
		return "invalid_args"
	}
}

func (b *Broker) handleAbortFunctionCall(conn *connState, m wire.AbortFunctionCall) {
	route, ok := conn.callRoute(m.Serial)
	if !ok {
		return
	}
	conn.removeCall(m.Serial)
	if callee, ok := b.conns[route.calleeConn]; ok {
		callee.send(wire.AbortFunctionCall{Serial: route.calleeSerial})
	}
}

// ---- events ----

func (b *Broker) handleEmitEvent(m wire.EmitEvent) {
	observability.RecordEventEmitted()
	for _, conn := range b.conns {
		if conn.isSubscribedToEvent(m.Service, m.Event) {
			conn.send(wire.EmitEvent{Service: m.Service, Event: m.Event, Args: m.Args})
		}
	}
}

func (b *Broker) handleSubscribeEvent(conn *connState, m wire.SubscribeEvent) {
	if _, ok := b.services.get(m.Service); !ok {
		conn.send(wire.SubscribeEventReply{Serial: m.Serial, Result: wire.SubscribeEventInvalidService})
		return
	}
	conn.subscribeEvent(m.Service, m.Event)
	conn.subscribe(m.Service)
	conn.send(wire.SubscribeEventReply{Serial: m.Serial, Result: wire.SubscribeEventOK})
}

func (b *Broker) handleSubscribeAllEvents(conn *connState, m wire.SubscribeAllEvents) {
	if _, ok := b.services.get(m.Service); !ok {
		conn.send(wire.SubscribeAllEventsReply{Serial: m.Serial, Result: wire.SubscribeEventInvalidService})
		return
	}
	conn.subscribeAllEvents(m.Service)
	conn.subscribe(m.Service)
	conn.send(wire.SubscribeAllEventsReply{Serial: m.Serial, Result: wire.SubscribeEventOK})
}

// ---- channels ----

func (b *Broker) handleCreateChannel(id bus.ConnectionID, conn *connState, m wire.CreateChannel) {
	cookie := bus.NewChannelCookie()
	var ch *channel
	if m.ClaimEnd == bus.ChannelEndSender {
		ch = newChannelWithClaimedSender(id)
		conn.addSender(cookie)
	} else {
		ch = newChannelWithClaimedReceiver(id, m.Capacity)
		conn.addReceiver(cookie)
	}
	b.channels[cookie] = ch
	observability.SetChannelsActive(len(b.channels))
	conn.send(wire.CreateChannelReply{Serial: m.Serial, Channel: cookie})
}

func (b *Broker) handleCloseChannelEnd(id bus.ConnectionID, conn *connState, m wire.CloseChannelEnd) {
	ch, ok := b.channels[m.Channel]
	if !ok {
		conn.send(wire.CloseChannelEndReply{Serial: m.Serial, Result: wire.CloseChannelEndInvalidChannel})
		return
	}
	result, _ := ch.checkClose(id, m.End)
	if result == wire.CloseChannelEndInvalidChannel {
		conn.send(wire.CloseChannelEndReply{Serial: m.Serial, Result: result})
		return
	}
	b.closeChannelEndLocked(m.Channel, m.End)
	conn.send(wire.CloseChannelEndReply{Serial: m.Serial, Result: wire.CloseChannelEndOK})
}

// closeChannelEndLocked wraps channel.close with the broker-level
// bookkeeping it implies: releasing the closed end from its owning
// connection's tracked set, notifying the other end's owner, and
// retiring the channel entirely once both ends are closed. Shared by
// the explicit CloseChannelEnd handler and by disconnect's cleanup of
// a dying connection's channel ends.
func (b *Broker) closeChannelEndLocked(chCookie bus.ChannelCookie, end bus.ChannelEnd) {
	ch, ok := b.channels[chCookie]
	if !ok {
		return
	}
	state := ch.endState(end)
	owner, wasClaimed := state.owner, state.kind == endClaimed

	notify, shouldNotify := ch.close(end)

	if wasClaimed {
		if ownerConn, ok := b.conns[owner]; ok {
			if end == bus.ChannelEndSender {
				ownerConn.removeSender(chCookie)
			} else {
				ownerConn.removeReceiver(chCookie)
			}
		}
	}
	if shouldNotify {
		if other, ok := b.conns[notify]; ok {
			other.send(wire.ChannelEndClosed{Channel: chCookie, End: end})
		}
	}
	if ch.sender.kind == endClosed && ch.receiver.kind == endClosed {
		delete(b.channels, chCookie)
	}
	observability.SetChannelsActive(len(b.channels))
}

func (b *Broker) handleClaimChannelEnd(id bus.ConnectionID, conn *connState, m wire.ClaimChannelEnd) {
	ch, ok := b.channels[m.Channel]
	if !ok {
		conn.send(wire.ClaimChannelEndReply{Serial: m.Serial, Result: wire.ClaimChannelEndInvalidChannel})
		return
	}

	if m.End == bus.ChannelEndSender {
		receiverOwner, capacity, result := ch.claimSender(id)
		if result == wire.ClaimChannelEndOK {
			conn.addSender(m.Channel)
		}
		conn.send(wire.ClaimChannelEndReply{Serial: m.Serial, Result: result, Capacity: capacity})
		if result == wire.ClaimChannelEndOK {
			if receiverConn, ok := b.conns[receiverOwner]; ok {
				receiverConn.send(wire.ChannelEndClaimed{Channel: m.Channel, End: bus.ChannelEndSender})
			}
		}
		return
	}

	senderOwner, result := ch.claimReceiver(id, m.Capacity)
	if result == wire.ClaimChannelEndOK {
		conn.addReceiver(m.Channel)
	}
	conn.send(wire.ClaimChannelEndReply{Serial: m.Serial, Result: result})
	if result == wire.ClaimChannelEndOK {
		if senderConn, ok := b.conns[senderOwner]; ok {
			senderConn.send(wire.ChannelEndClaimed{Channel: m.Channel, End: bus.ChannelEndReceiver, Capacity: m.Capacity})
		}
	}
}

func (b *Broker) handleSendItem(id bus.ConnectionID, m wire.SendItem) {
	ch, ok := b.channels[m.Channel]
	if !ok {
		return
	}
	receiver, addCap, hasAddCap, errKind := ch.sendItem(id)
	if errKind != sendItemOK {
		return
	}
	observability.RecordChannelItem()
	if recvConn, ok := b.conns[receiver]; ok {
		recvConn.send(wire.ItemReceived{Channel: m.Channel, Item: m.Item})
	}
	if hasAddCap {
		if senderConn, ok := b.conns[id]; ok {
			senderConn.send(wire.AddChannelCapacity{Channel: m.Channel, Delta: addCap})
		}
	}
}

func (b *Broker) handleAddChannelCapacity(id bus.ConnectionID, m wire.AddChannelCapacity) {
	ch, ok := b.channels[m.Channel]
	if !ok {
		return
	}
	sender, delta, ok := ch.addCapacity(id, m.Delta)
	if !ok {
		return
	}
	if senderConn, ok := b.conns[sender]; ok {
		senderConn.send(wire.AddChannelCapacity{Channel: m.Channel, Delta: delta})
	}
}

// ---- bus listeners ----

func (b *Broker) handleDestroyBusListener(conn *connState, m wire.DestroyBusListener) {
	if _, ok := b.busListener.get(m.Listener); !ok {
		conn.send(wire.DestroyBusListenerReply{Serial: m.Serial, Result: wire.DestroyBusListenerInvalid})
		return
	}
	b.busListener.destroy(m.Listener)
	conn.removeBusListener(m.Listener)
	conn.send(wire.DestroyBusListenerReply{Serial: m.Serial, Result: wire.DestroyBusListenerOK})
}

func (b *Broker) handleStartBusListener(conn *connState, m wire.StartBusListener) {
	entry, ok := b.busListener.get(m.Listener)
	if !ok {
		conn.send(wire.StartBusListenerReply{Serial: m.Serial, Result: wire.StartBusListenerInvalid})
		return
	}
	if !b.busListener.start(m.Listener, m.Scope) {
		conn.send(wire.StartBusListenerReply{Serial: m.Serial, Result: wire.StartBusListenerAlreadyStarted})
		return
	}
	conn.send(wire.StartBusListenerReply{Serial: m.Serial, Result: wire.StartBusListenerOK})

	if m.Scope == wire.ScopeCurrent || m.Scope == wire.ScopeAll {
		b.walkCurrent(m.Listener, entry)
		conn.send(wire.BusListenerCurrentFinished{Listener: m.Listener})
	}
}

// walkCurrent replays ObjectCreated/ServiceCreated for every live
// object/service matching entry's filters, used by Current and All
// scope starts to bring a new listener up to date before it starts
// receiving live events.
func (b *Broker) walkCurrent(cookie bus.BusListenerCookie, entry *busListenerEntry) {
	conn, ok := b.conns[entry.owner]
	if !ok {
		return
	}
	for objCookie, obj := range b.objects.byCookie {
		objID := bus.ObjectID{UUID: obj.uuid, Cookie: objCookie}
		if entry.matches(obj.uuid, nil) {
			conn.send(wire.EmitBusEvent{Listener: cookie, Event: wire.BusEventObjectCreated, Object: objID})
		}
		for svcCookie := range obj.services {
			svc, ok := b.services.byCookie[svcCookie]
			if !ok || !entry.matches(obj.uuid, &svc.uuid) {
				continue
			}
			svcID := bus.ServiceID{Object: objID, UUID: svc.uuid, Cookie: svcCookie}
			conn.send(wire.EmitBusEvent{Listener: cookie, Event: wire.BusEventServiceCreated, Object: objID, Service: &svcID})
		}
	}
}

func (b *Broker) handleStopBusListener(conn *connState, m wire.StopBusListener) {
	if _, ok := b.busListener.get(m.Listener); !ok {
		conn.send(wire.StopBusListenerReply{Serial: m.Serial, Result: wire.StopBusListenerInvalid})
		return
	}
	if !b.busListener.stop(m.Listener) {
		conn.send(wire.StopBusListenerReply{Serial: m.Serial, Result: wire.StopBusListenerNotStarted})
		return
	}
	conn.send(wire.StopBusListenerReply{Serial: m.Serial, Result: wire.StopBusListenerOK})
}

// emitBusEvent fans a lifecycle event out to every started listener
// whose filters match, regardless of which connection owns the
// object/service involved.
func (b *Broker) emitBusEvent(kind wire.BusEventKind, object bus.ObjectID, service *bus.ServiceID) {
	var svcUUID *bus.ServiceUUID
	if service != nil {
		svcUUID = &service.UUID
	}
	for cookie, entry := range b.busListener.listeners {
		if entry.state != listenerStarted {
			continue
		}
		if !entry.matches(object.UUID, svcUUID) {
			continue
		}
		if conn, ok := b.conns[entry.owner]; ok {
			conn.send(wire.EmitBusEvent{Listener: cookie, Event: kind, Object: object, Service: service})
		}
	}
	b.publishAdminEvent(AdminEvent{Kind: kind, Object: object, Service: service})
}

// ---- introspection ----

func (b *Broker) handleRegisterIntrospection(id bus.ConnectionID, m wire.RegisterIntrospection) {
	waiting := b.intro.register(m.TypeID, id, m.Schema)
	for _, pq := range waiting {
		if waiter, ok := b.conns[pq.conn]; ok {
			waiter.send(wire.QueryIntrospectionReply{Serial: pq.serial, Result: wire.QueryIntrospectionOK, Schema: m.Schema})
		}
	}
}

func (b *Broker) handleQueryIntrospection(id bus.ConnectionID, conn *connState, m wire.QueryIntrospection) {
	schema, ok := b.intro.query(m.TypeID, id, m.Serial)
	if ok {
		conn.send(wire.QueryIntrospectionReply{Serial: m.Serial, Result: wire.QueryIntrospectionOK, Schema: schema})
	}
	// else: held pending until handleRegisterIntrospection answers it
	// when a schema for m.TypeID is registered; there is no timeout.
}

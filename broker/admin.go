package broker

import (
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
)

// AdminConnection is a read-only snapshot of one live connection, for
// operational tooling outside the wire protocol.
type AdminConnection struct {
	ID bus.ConnectionID
}

// AdminService is a read-only snapshot of one live service.
type AdminService struct {
	Cookie  bus.ServiceCookie
	UUID    bus.ServiceUUID
	Owner   bus.ConnectionID
	Version uint32
}

// AdminObject is a read-only snapshot of one live object and the
// services it currently hosts.
type AdminObject struct {
	Cookie   bus.ObjectCookie
	UUID     bus.ObjectUUID
	Owner    bus.ConnectionID
	Services []AdminService
}

// AdminEvent mirrors wire.EmitBusEvent's payload for delivery to
// out-of-band (non wire-protocol) subscribers such as the admin gRPC
// surface, reusing the same emitBusEvent call site the internal bus
// listener fan-out uses.
type AdminEvent struct {
	Kind    wire.BusEventKind
	Object  bus.ObjectID
	Service *bus.ServiceID
}

// ListConnections returns every currently connected connection ID.
func (b *Broker) ListConnections() []AdminConnection {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AdminConnection, 0, len(b.conns))
	for id := range b.conns {
		out = append(out, AdminConnection{ID: id})
	}
	return out
}

// ListObjects returns every currently live object and the services it
// hosts, as of the moment of the call.
func (b *Broker) ListObjects() []AdminObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AdminObject, 0, b.objects.len())
	for cookie, obj := range b.objects.byCookie {
		entry := AdminObject{Cookie: cookie, UUID: obj.uuid, Owner: obj.owner}
		for svcCookie := range obj.services {
			svc, ok := b.services.byCookie[svcCookie]
			if !ok {
				continue
			}
			entry.Services = append(entry.Services, AdminService{
				Cookie:  svcCookie,
				UUID:    svc.uuid,
				Owner:   svc.owner,
				Version: svc.version,
			})
		}
		out = append(out, entry)
	}
	return out
}

// SubscribeAdminEvents registers a buffered channel that receives every
// bus event broker-wide, regardless of any wire-protocol bus listener's
// filters. Call the returned func to unsubscribe; the channel is closed
// once unsubscribe completes.
func (b *Broker) SubscribeAdminEvents(buffer int) (<-chan AdminEvent, func()) {
	ch := make(chan AdminEvent, buffer)
	b.mu.Lock()
	id := b.nextAdmin
	b.nextAdmin++
	b.adminSubs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.adminSubs, id)
		b.mu.Unlock()
		close(ch)
	}
}

// publishAdminEvent fans ev out to every live admin subscriber,
// dropping it for a subscriber whose buffer is full rather than
// blocking the dispatch loop on a slow admin client.
func (b *Broker) publishAdminEvent(ev AdminEvent) {
	for _, ch := range b.adminSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

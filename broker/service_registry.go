package broker

import "github.com/aldrin-bus/aldrin/bus"

type serviceEntry struct {
	object  bus.ObjectCookie
	uuid    bus.ServiceUUID
	owner   bus.ConnectionID
	version uint32
	typeID  *bus.TypeID
}

// serviceRegistry mirrors objectRegistry's shape, keyed by
// (object, serviceUUID) for duplicate detection since service UUIDs
// only need to be unique within their owning object.
type serviceRegistry struct {
	byCookie map[bus.ServiceCookie]*serviceEntry
	byKey    map[serviceKey]bus.ServiceCookie
}

type serviceKey struct {
	object bus.ObjectCookie
	uuid   bus.ServiceUUID
}

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{
		byCookie: make(map[bus.ServiceCookie]*serviceEntry),
		byKey:    make(map[serviceKey]bus.ServiceCookie),
	}
}

func (r *serviceRegistry) create(object bus.ObjectCookie, uuid bus.ServiceUUID, owner bus.ConnectionID, version uint32, typeID *bus.TypeID) (cookie bus.ServiceCookie, duplicate bool) {
	key := serviceKey{object: object, uuid: uuid}
	if _, exists := r.byKey[key]; exists {
		return bus.ServiceCookie{}, true
	}
	cookie = bus.NewServiceCookie()
	r.byCookie[cookie] = &serviceEntry{object: object, uuid: uuid, owner: owner, version: version, typeID: typeID}
	r.byKey[key] = cookie
	return cookie, false
}

func (r *serviceRegistry) get(cookie bus.ServiceCookie) (*serviceEntry, bool) {
	e, ok := r.byCookie[cookie]
	return e, ok
}

func (r *serviceRegistry) destroy(cookie bus.ServiceCookie) bool {
	e, ok := r.byCookie[cookie]
	if !ok {
		return false
	}
	delete(r.byCookie, cookie)
	delete(r.byKey, serviceKey{object: e.object, uuid: e.uuid})
	return true
}

func (r *serviceRegistry) info(cookie bus.ServiceCookie) bus.ServiceInfo {
	e := r.byCookie[cookie]
	return bus.ServiceInfo{Version: e.version, TypeID: e.typeID}
}

func (r *serviceRegistry) id(objects *objectRegistry, cookie bus.ServiceCookie) bus.ServiceID {
	e := r.byCookie[cookie]
	return bus.ServiceID{Object: objects.id(e.object), UUID: e.uuid, Cookie: cookie}
}

func (r *serviceRegistry) len() int { return len(r.byCookie) }

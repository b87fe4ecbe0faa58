package broker

import "github.com/aldrin-bus/aldrin/bus"

// objectEntry is one live object: its stable UUID, the connection that
// created it, and the cookies of services it currently hosts.
type objectEntry struct {
	uuid     bus.ObjectUUID
	owner    bus.ConnectionID
	services map[bus.ServiceCookie]struct{}
}

// objectRegistry is the objects table plus its UUID->cookie reverse
// index, generalized from the teacher's single global ServiceRegistry
// (_examples/Jeeves-Cluster-Organization-jeeves-core/coreengine/kernel/services.go)
// into per-object CRUD with a uniqueness check on the user-chosen UUID.
type objectRegistry struct {
	byCookie map[bus.ObjectCookie]*objectEntry
	byUUID   map[bus.ObjectUUID]bus.ObjectCookie
}

func newObjectRegistry() *objectRegistry {
	return &objectRegistry{
		byCookie: make(map[bus.ObjectCookie]*objectEntry),
		byUUID:   make(map[bus.ObjectUUID]bus.ObjectCookie),
	}
}

// create mints a cookie for uuid and records owner, or reports
// duplicate=true if uuid is already live.
func (r *objectRegistry) create(uuid bus.ObjectUUID, owner bus.ConnectionID) (cookie bus.ObjectCookie, duplicate bool) {
	if _, exists := r.byUUID[uuid]; exists {
		return bus.ObjectCookie{}, true
	}
	cookie = bus.NewObjectCookie()
	r.byCookie[cookie] = &objectEntry{uuid: uuid, owner: owner, services: make(map[bus.ServiceCookie]struct{})}
	r.byUUID[uuid] = cookie
	return cookie, false
}

func (r *objectRegistry) get(cookie bus.ObjectCookie) (*objectEntry, bool) {
	e, ok := r.byCookie[cookie]
	return e, ok
}

// destroy removes the object and reports the service cookies it was
// still hosting, so the caller can cascade service teardown.
func (r *objectRegistry) destroy(cookie bus.ObjectCookie) (services []bus.ServiceCookie, ok bool) {
	e, exists := r.byCookie[cookie]
	if !exists {
		return nil, false
	}
	for svc := range e.services {
		services = append(services, svc)
	}
	delete(r.byCookie, cookie)
	delete(r.byUUID, e.uuid)
	return services, true
}

func (r *objectRegistry) addService(objCookie bus.ObjectCookie, svcCookie bus.ServiceCookie) {
	r.byCookie[objCookie].services[svcCookie] = struct{}{}
}

func (r *objectRegistry) removeService(objCookie bus.ObjectCookie, svcCookie bus.ServiceCookie) {
	if e, ok := r.byCookie[objCookie]; ok {
		delete(e.services, svcCookie)
	}
}

func (r *objectRegistry) id(cookie bus.ObjectCookie) bus.ObjectID {
	return bus.ObjectID{UUID: r.byCookie[cookie].uuid, Cookie: cookie}
}

func (r *objectRegistry) len() int { return len(r.byCookie) }

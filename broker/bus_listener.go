package broker

import (
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
)

type busListenerState uint8

const (
	listenerStopped busListenerState = iota
	listenerStarted
)

// busListenerEntry is one registered bus listener: the connection that
// owns it, its OR-evaluated filter set, and whether it has been
// started (and with which scope).
type busListenerEntry struct {
	owner   bus.ConnectionID
	filters []wire.BusListenerFilter
	state   busListenerState
	scope   wire.BusListenerScope
}

// busListenerRegistry owns every live bus listener and evaluates
// whether a given (object, service) event matches a listener's filter
// set, matching any one of the six filter kinds being sufficient.
type busListenerRegistry struct {
	listeners map[bus.BusListenerCookie]*busListenerEntry
}

func newBusListenerRegistry() *busListenerRegistry {
	return &busListenerRegistry{listeners: make(map[bus.BusListenerCookie]*busListenerEntry)}
}

func (r *busListenerRegistry) create(owner bus.ConnectionID) bus.BusListenerCookie {
	cookie := bus.NewBusListenerCookie()
	r.listeners[cookie] = &busListenerEntry{owner: owner, state: listenerStopped}
	return cookie
}

func (r *busListenerRegistry) get(cookie bus.BusListenerCookie) (*busListenerEntry, bool) {
	e, ok := r.listeners[cookie]
	return e, ok
}

func (r *busListenerRegistry) destroy(cookie bus.BusListenerCookie) {
	delete(r.listeners, cookie)
}

func (r *busListenerRegistry) addFilter(cookie bus.BusListenerCookie, f wire.BusListenerFilter) {
	e := r.listeners[cookie]
	e.filters = append(e.filters, f)
}

func (r *busListenerRegistry) removeFilter(cookie bus.BusListenerCookie, f wire.BusListenerFilter) {
	e := r.listeners[cookie]
	out := e.filters[:0]
	for _, existing := range e.filters {
		if existing != f {
			out = append(out, existing)
		}
	}
	e.filters = out
}

func (r *busListenerRegistry) clearFilters(cookie bus.BusListenerCookie) {
	r.listeners[cookie].filters = nil
}

func (r *busListenerRegistry) start(cookie bus.BusListenerCookie, scope wire.BusListenerScope) bool {
	e := r.listeners[cookie]
	if e.state == listenerStarted {
		return false
	}
	e.state = listenerStarted
	e.scope = scope
	return true
}

func (r *busListenerRegistry) stop(cookie bus.BusListenerCookie) bool {
	e := r.listeners[cookie]
	if e.state != listenerStarted {
		return false
	}
	e.state = listenerStopped
	return true
}

// matches reports whether object/service satisfies any filter on e, OR
// the listener has no filters at all (an unfiltered listener matches
// every event, mirroring the "any object, any service" default).
func (e *busListenerEntry) matches(object bus.ObjectUUID, service *bus.ServiceUUID) bool {
	if len(e.filters) == 0 {
		return true
	}
	for _, f := range e.filters {
		if filterMatches(f, object, service) {
			return true
		}
	}
	return false
}

func filterMatches(f wire.BusListenerFilter, object bus.ObjectUUID, service *bus.ServiceUUID) bool {
	switch f.Kind {
	case wire.FilterAnyObject:
		return true
	case wire.FilterSpecificObject:
		return f.Object == object
	case wire.FilterAnyObjectAnyService:
		return service != nil
	case wire.FilterAnyObjectSpecificService:
		return service != nil && *service == f.Service
	case wire.FilterSpecificObjectAnyService:
		return f.Object == object && service != nil
	case wire.FilterSpecificObjectSpecificService:
		return f.Object == object && service != nil && *service == f.Service
	default:
		return false
	}
}

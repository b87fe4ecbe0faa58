package broker

import (
	"github.com/aldrin-bus/aldrin/bus"
	"github.com/aldrin-bus/aldrin/wire"
)

// pendingQuery is a QueryIntrospection that arrived before any
// connection had registered a schema for the requested type.
type pendingQuery struct {
	conn   bus.ConnectionID
	serial uint32
}

// introspectionRegistry caches introspection schemas by TypeID and
// queues queries that arrive before a schema is registered. A queued
// query waits until some connection registers that TypeID, with no
// timeout; nothing answers it Unavailable while no registration
// arrives. removeConn reports TypeIDs whose last holder left, and
// disconnect answers queries pending on them Unavailable, but register
// hands back every pending query at once, so a TypeID that had a
// holder has no queries pending when it is vacated.
type introspectionRegistry struct {
	schemas map[bus.TypeID]registeredSchema
	pending map[bus.TypeID][]pendingQuery
}

type registeredSchema struct {
	schema wire.SerializedValue
	conns  map[bus.ConnectionID]struct{}
}

func newIntrospectionRegistry() *introspectionRegistry {
	return &introspectionRegistry{
		schemas: make(map[bus.TypeID]registeredSchema),
		pending: make(map[bus.TypeID][]pendingQuery),
	}
}

// register records conn as a holder of typeID's schema, returning any
// queries that were waiting on it.
func (r *introspectionRegistry) register(typeID bus.TypeID, conn bus.ConnectionID, schema wire.SerializedValue) []pendingQuery {
	entry, ok := r.schemas[typeID]
	if !ok {
		entry = registeredSchema{schema: schema, conns: make(map[bus.ConnectionID]struct{})}
	}
	entry.conns[conn] = struct{}{}
	r.schemas[typeID] = entry

	waiting := r.pending[typeID]
	delete(r.pending, typeID)
	return waiting
}

// query resolves typeID immediately if known, or enqueues the query
// and reports ok=false so the caller holds its reply.
func (r *introspectionRegistry) query(typeID bus.TypeID, conn bus.ConnectionID, serial uint32) (wire.SerializedValue, bool) {
	if entry, ok := r.schemas[typeID]; ok {
		return entry.schema, true
	}
	r.pending[typeID] = append(r.pending[typeID], pendingQuery{conn: conn, serial: serial})
	return nil, false
}

// removeConn drops conn as a holder of every schema it registered,
// and reports which TypeIDs are now unreachable (no registered holder
// left) so pending queries on them can be resolved Unavailable.
func (r *introspectionRegistry) removeConn(conn bus.ConnectionID) []bus.TypeID {
	var vacated []bus.TypeID
	for typeID, entry := range r.schemas {
		if _, ok := entry.conns[conn]; !ok {
			continue
		}
		delete(entry.conns, conn)
		if len(entry.conns) == 0 {
			delete(r.schemas, typeID)
			vacated = append(vacated, typeID)
		}
	}
	return vacated
}

// takePending removes and returns all queries queued against typeID.
func (r *introspectionRegistry) takePending(typeID bus.TypeID) []pendingQuery {
	p := r.pending[typeID]
	delete(r.pending, typeID)
	return p
}

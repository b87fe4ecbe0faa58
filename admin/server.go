// Package admin implements BrokerAdminService, the narrow gRPC
// control-plane cmd/aldrin-broker exposes next to the wire protocol:
// list live connections, list live objects/services, and stream bus
// events broker-wide. Grounded on the teacher's CommBusServer
// (_examples/Jeeves-Cluster-Organization-jeeves-core/coreengine/grpc/commbus_server.go)
// — a thin struct wrapping a bus reference, unary RPCs answered
// straight from it, and one server-streaming RPC fed by a
// per-subscriber buffered channel.
package admin

import (
	"context"

	"github.com/aldrin-bus/aldrin/adminpb"
	"github.com/aldrin-bus/aldrin/broker"
	"github.com/aldrin-bus/aldrin/observability"
	"github.com/aldrin-bus/aldrin/wire"
)

// eventStreamBuffer bounds how many bus events a slow admin subscriber
// can fall behind before further events are dropped for it, mirroring
// the teacher's per-subscriber channel in notifySubscribers.
const eventStreamBuffer = 256

// Server implements adminpb.BrokerAdminServer against a live broker.
type Server struct {
	b   *broker.Broker
	log observability.Logger
}

// NewServer wraps b for admin queries, logging through log.
func NewServer(b *broker.Broker, log observability.Logger) *Server {
	if log == nil {
		log = observability.NopLogger()
	}
	return &Server{b: b, log: log}
}

// ListConnections answers every currently connected connection.
func (s *Server) ListConnections(ctx context.Context, req *adminpb.ListConnectionsRequest) (*adminpb.ListConnectionsResponse, error) {
	conns := s.b.ListConnections()
	resp := &adminpb.ListConnectionsResponse{Connections: make([]adminpb.Connection, 0, len(conns))}
	for _, c := range conns {
		resp.Connections = append(resp.Connections, adminpb.Connection{ID: uint64(c.ID)})
	}
	return resp, nil
}

// ListObjects answers every currently live object and its services.
func (s *Server) ListObjects(ctx context.Context, req *adminpb.ListObjectsRequest) (*adminpb.ListObjectsResponse, error) {
	objs := s.b.ListObjects()
	resp := &adminpb.ListObjectsResponse{Objects: make([]adminpb.Object, 0, len(objs))}
	for _, o := range objs {
		entry := adminpb.Object{
			Cookie:      o.Cookie.String(),
			UUID:        o.UUID.String(),
			OwnerConnID: uint64(o.Owner),
		}
		for _, svc := range o.Services {
			entry.Services = append(entry.Services, adminpb.Service{
				Cookie:      svc.Cookie.String(),
				UUID:        svc.UUID.String(),
				OwnerConnID: uint64(svc.Owner),
				Version:     svc.Version,
			})
		}
		resp.Objects = append(resp.Objects, entry)
	}
	return resp, nil
}

// StreamBusEvents streams every bus event broker-wide to the caller
// until the stream's context is canceled (which includes the
// connection dropping) or a Send fails. Broker.Shutdown does not end
// the stream.
func (s *Server) StreamBusEvents(req *adminpb.StreamBusEventsRequest, stream adminpb.BrokerAdmin_StreamBusEventsServer) error {
	events, unsubscribe := s.b.SubscribeAdminEvents(eventStreamBuffer)
	defer unsubscribe()

	ctx := stream.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.Send(toProtoEvent(ev)); err != nil {
				s.log.Warn("admin_stream_send_failed", "error", err)
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func toProtoEvent(ev broker.AdminEvent) *adminpb.BusEvent {
	out := &adminpb.BusEvent{
		Kind:         busEventKindString(ev.Kind),
		ObjectUUID:   ev.Object.UUID.String(),
		ObjectCookie: ev.Object.Cookie.String(),
	}
	if ev.Service != nil {
		out.ServiceUUID = ev.Service.UUID.String()
		out.ServiceCookie = ev.Service.Cookie.String()
	}
	return out
}

func busEventKindString(k wire.BusEventKind) string {
	switch k {
	case wire.BusEventObjectCreated:
		return "object_created"
	case wire.BusEventObjectDestroyed:
		return "object_destroyed"
	case wire.BusEventServiceCreated:
		return "service_created"
	case wire.BusEventServiceDestroyed:
		return "service_destroyed"
	default:
		return "unknown"
	}
}

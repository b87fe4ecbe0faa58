// Package adminpb holds the wire messages for BrokerAdminService, the
// narrow gRPC control-plane cmd/aldrin-broker exposes alongside the
// binary wire protocol. It answers questions operational tooling needs
// (what is connected, what is live, what happened) without granting
// any of the capabilities the wire protocol reserves for clients that
// speak it directly: it cannot call functions or claim channels.
package adminpb

// ListConnectionsRequest takes no arguments; every live connection is
// always returned.
type ListConnectionsRequest struct{}

// ListConnectionsResponse enumerates currently connected connections.
type ListConnectionsResponse struct {
	Connections []Connection `json:"connections"`
}

// Connection identifies one live connection by its broker-assigned ID.
type Connection struct {
	ID uint64 `json:"id"`
}

// ListObjectsRequest takes no arguments; every live object is always
// returned.
type ListObjectsRequest struct{}

// ListObjectsResponse enumerates currently live objects and the
// services they host.
type ListObjectsResponse struct {
	Objects []Object `json:"objects"`
}

// Object is one live object and its hosted services.
type Object struct {
	Cookie       string    `json:"cookie"`
	UUID         string    `json:"uuid"`
	OwnerConnID  uint64    `json:"owner_conn_id"`
	Services     []Service `json:"services"`
}

// Service is one live service hosted by an Object.
type Service struct {
	Cookie      string `json:"cookie"`
	UUID        string `json:"uuid"`
	OwnerConnID uint64 `json:"owner_conn_id"`
	Version     uint32 `json:"version"`
}

// StreamBusEventsRequest takes no arguments; the stream carries every
// bus event broker-wide from the moment the call is accepted.
type StreamBusEventsRequest struct{}

// BusEvent is one broker-wide lifecycle event, a thin projection of
// the same event the internal bus-listener fan-out delivers to wire
// clients.
type BusEvent struct {
	Kind          string  `json:"kind"`
	ObjectUUID    string  `json:"object_uuid"`
	ObjectCookie  string  `json:"object_cookie"`
	ServiceUUID   string  `json:"service_uuid,omitempty"`
	ServiceCookie string  `json:"service_cookie,omitempty"`
}

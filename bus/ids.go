// Package bus holds identifier types, protocol version tables, and the
// error taxonomy shared by the wire codec, the broker, and the client
// dispatcher.
package bus

import (
	"fmt"

	"github.com/google/uuid"
)

// ObjectUUID is a user-chosen stable identity for an object.
type ObjectUUID uuid.UUID

// ServiceUUID is a user-chosen stable identity for a service within an object.
type ServiceUUID uuid.UUID

// TypeID identifies an introspection schema.
type TypeID uuid.UUID

// ObjectCookie is a broker-minted per-lifetime token for a live object.
type ObjectCookie uuid.UUID

// ServiceCookie is a broker-minted per-lifetime token for a live service.
type ServiceCookie uuid.UUID

// ChannelCookie is a broker-minted per-lifetime token for a live channel.
type ChannelCookie uuid.UUID

// BusListenerCookie is a broker-minted per-lifetime token for a bus listener.
type BusListenerCookie uuid.UUID

func (u ObjectUUID) String() string         { return uuid.UUID(u).String() }
func (u ServiceUUID) String() string        { return uuid.UUID(u).String() }
func (u TypeID) String() string             { return uuid.UUID(u).String() }
func (c ObjectCookie) String() string       { return uuid.UUID(c).String() }
func (c ServiceCookie) String() string      { return uuid.UUID(c).String() }
func (c ChannelCookie) String() string      { return uuid.UUID(c).String() }
func (c BusListenerCookie) String() string  { return uuid.UUID(c).String() }

// IsNil reports whether the identifier is the reserved nil UUID.
func (u ObjectUUID) IsNil() bool { return uuid.UUID(u) == uuid.Nil }

// IsNil reports whether the identifier is the reserved nil UUID.
func (u ServiceUUID) IsNil() bool { return uuid.UUID(u) == uuid.Nil }

// NewObjectCookie mints a fresh object cookie.
func NewObjectCookie() ObjectCookie { return ObjectCookie(uuid.New()) }

// NewServiceCookie mints a fresh service cookie.
func NewServiceCookie() ServiceCookie { return ServiceCookie(uuid.New()) }

// NewChannelCookie mints a fresh channel cookie.
func NewChannelCookie() ChannelCookie { return ChannelCookie(uuid.New()) }

// NewBusListenerCookie mints a fresh bus listener cookie.
func NewBusListenerCookie() BusListenerCookie { return BusListenerCookie(uuid.New()) }

// ParseObjectUUID parses a textual UUID as an ObjectUUID.
func ParseObjectUUID(s string) (ObjectUUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ObjectUUID{}, fmt.Errorf("parse object uuid: %w", err)
	}
	return ObjectUUID(id), nil
}

// ParseServiceUUID parses a textual UUID as a ServiceUUID.
func ParseServiceUUID(s string) (ServiceUUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ServiceUUID{}, fmt.Errorf("parse service uuid: %w", err)
	}
	return ServiceUUID(id), nil
}

// ObjectID is the pair identifying an object: its stable UUID and its
// current per-lifetime cookie.
type ObjectID struct {
	UUID   ObjectUUID
	Cookie ObjectCookie
}

// ServiceID is the pair identifying a service: the object it belongs to
// and its own UUID/cookie pair.
type ServiceID struct {
	Object ObjectID
	UUID   ServiceUUID
	Cookie ServiceCookie
}

// ServiceInfo carries the service version and an optional introspection
// type id, as recorded at CreateService time.
type ServiceInfo struct {
	Version uint32
	TypeID  *TypeID
}

// ConnectionID identifies one connection within a single broker instance.
// It is broker-local and never transmitted on the wire.
type ConnectionID uint64

// ChannelEnd distinguishes the two halves of a channel.
type ChannelEnd uint8

const (
	ChannelEndSender ChannelEnd = iota
	ChannelEndReceiver
)

func (e ChannelEnd) String() string {
	switch e {
	case ChannelEndSender:
		return "sender"
	case ChannelEndReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}

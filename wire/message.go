package wire

import "github.com/aldrin-bus/aldrin/bus"

// MessageKind is the 1-byte discriminant following the 4-byte length
// prefix of every framed message.
type MessageKind uint8

const (
	MsgConnect MessageKind = iota
	MsgConnect2
	MsgConnectReply
	MsgConnectReply2
	MsgShutdown

	MsgCreateObject
	MsgCreateObjectReply
	MsgDestroyObject
	MsgDestroyObjectReply
	MsgCreateService
	MsgCreateServiceReply
	MsgDestroyService
	MsgDestroyServiceReply
	MsgServiceCreatedEvent
	MsgServiceDestroyedEvent
	MsgQueryServiceInfo
	MsgQueryServiceInfoReply

	MsgCallFunction
	MsgCallFunctionReply
	MsgEmitEvent
	MsgSubscribeEvent
	MsgSubscribeEventReply
	MsgUnsubscribeEvent
	MsgSubscribeAllEvents
	MsgSubscribeAllEventsReply
	MsgUnsubscribeAllEvents
	MsgAbortFunctionCall

	MsgCreateChannel
	MsgCreateChannelReply
	MsgCloseChannelEnd
	MsgCloseChannelEndReply
	MsgChannelEndClosed
	MsgClaimChannelEnd
	MsgClaimChannelEndReply
	MsgChannelEndClaimed
	MsgSendItem
	MsgAddChannelCapacity
	MsgItemReceived

	MsgCreateBusListener
	MsgCreateBusListenerReply
	MsgDestroyBusListener
	MsgDestroyBusListenerReply
	MsgAddBusListenerFilter
	MsgRemoveBusListenerFilter
	MsgClearBusListenerFilters
	MsgStartBusListener
	MsgStartBusListenerReply
	MsgStopBusListener
	MsgStopBusListenerReply
	MsgEmitBusEvent
	MsgBusListenerCurrentFinished

	MsgSyncClient
	MsgSyncBroker
	MsgSyncReply

	MsgRegisterIntrospection
	MsgQueryIntrospection
	MsgQueryIntrospectionReply
)

// Message is the closed polymorphic message set. Every concrete type
// below implements it; dispatch anywhere in the broker or client is a
// single type switch on the runtime type, never open polymorphism.
type Message interface {
	Kind() MessageKind
}

// SerializedValue is an already-encoded Value, carried opaquely by
// messages that only route it rather than interpret it — exactly the
// "broker never rejects values it does not interpret" rule from the
// error handling design.
type SerializedValue []byte

// ---- connection ----

type Connect struct {
	Major uint32
	Minor uint32
}

func (Connect) Kind() MessageKind { return MsgConnect }

type Connect2 struct {
	Major uint32
	Minor uint32
	Data  *SerializedValue
}

func (Connect2) Kind() MessageKind { return MsgConnect2 }

type ConnectResult uint8

const (
	ConnectOK ConnectResult = iota
	ConnectRejected
	ConnectIncompatibleVersion
)

type ConnectReply struct {
	Result ConnectResult
}

func (ConnectReply) Kind() MessageKind { return MsgConnectReply }

type ConnectReply2 struct {
	Result ConnectResult
	Minor  uint32 // valid iff Result == ConnectOK
	Data   *SerializedValue
}

func (ConnectReply2) Kind() MessageKind { return MsgConnectReply2 }

type Shutdown struct{}

func (Shutdown) Kind() MessageKind { return MsgShutdown }

// ---- objects / services ----

type CreateObject struct {
	Serial uint32
	UUID   bus.ObjectUUID
}

func (CreateObject) Kind() MessageKind { return MsgCreateObject }

type CreateObjectResult uint8

const (
	CreateObjectOK CreateObjectResult = iota
	CreateObjectDuplicate
)

type CreateObjectReply struct {
	Serial uint32
	Result CreateObjectResult
	Cookie bus.ObjectCookie
}

func (CreateObjectReply) Kind() MessageKind { return MsgCreateObjectReply }

type DestroyObject struct {
	Serial uint32
	Cookie bus.ObjectCookie
}

func (DestroyObject) Kind() MessageKind { return MsgDestroyObject }

type DestroyObjectResult uint8

const (
	DestroyObjectOK DestroyObjectResult = iota
	DestroyObjectInvalidObject
)

type DestroyObjectReply struct {
	Serial uint32
	Result DestroyObjectResult
}

func (DestroyObjectReply) Kind() MessageKind { return MsgDestroyObjectReply }

type CreateService struct {
	Serial  uint32
	Object  bus.ObjectCookie
	UUID    bus.ServiceUUID
	Version uint32
	TypeID  *bus.TypeID
}

func (CreateService) Kind() MessageKind { return MsgCreateService }

type CreateServiceResult uint8

const (
	CreateServiceOK CreateServiceResult = iota
	CreateServiceDuplicate
	CreateServiceInvalidObject
)

type CreateServiceReply struct {
	Serial uint32
	Result CreateServiceResult
	Cookie bus.ServiceCookie
}

func (CreateServiceReply) Kind() MessageKind { return MsgCreateServiceReply }

type DestroyService struct {
	Serial uint32
	Cookie bus.ServiceCookie
}

func (DestroyService) Kind() MessageKind { return MsgDestroyService }

type DestroyServiceResult uint8

const (
	DestroyServiceOK DestroyServiceResult = iota
	DestroyServiceInvalidService
)

type DestroyServiceReply struct {
	Serial uint32
	Result DestroyServiceResult
}

func (DestroyServiceReply) Kind() MessageKind { return MsgDestroyServiceReply }

type ServiceCreatedEvent struct {
	Object  bus.ObjectID
	Service bus.ServiceID
}

func (ServiceCreatedEvent) Kind() MessageKind { return MsgServiceCreatedEvent }

type ServiceDestroyedEvent struct {
	Object  bus.ObjectID
	Service bus.ServiceID
}

func (ServiceDestroyedEvent) Kind() MessageKind { return MsgServiceDestroyedEvent }

type QueryServiceInfo struct {
	Serial  uint32
	Service bus.ServiceCookie
}

func (QueryServiceInfo) Kind() MessageKind { return MsgQueryServiceInfo }

type QueryServiceInfoResult uint8

const (
	QueryServiceInfoOK QueryServiceInfoResult = iota
	QueryServiceInfoInvalidService
)

type QueryServiceInfoReply struct {
	Serial uint32
	Result QueryServiceInfoResult
	Info   bus.ServiceInfo
}

func (QueryServiceInfoReply) Kind() MessageKind { return MsgQueryServiceInfoReply }

// ---- calls / events ----

type CallFunction struct {
	Serial   uint32 // caller-assigned, echoed on CallFunctionReply
	Service  bus.ServiceCookie
	Function uint32
	Args     SerializedValue
}

func (CallFunction) Kind() MessageKind { return MsgCallFunction }

type CallResult uint8

const (
	CallOK CallResult = iota
	CallErr
	CallAborted
	CallInvalidFunction
	CallInvalidArgs
)

type CallFunctionReply struct {
	Serial uint32
	Result CallResult
	Value  *SerializedValue // present iff Result is CallOK or CallErr
}

func (CallFunctionReply) Kind() MessageKind { return MsgCallFunctionReply }

type EmitEvent struct {
	Service bus.ServiceCookie
	Event   uint32
	Args    SerializedValue
}

func (EmitEvent) Kind() MessageKind { return MsgEmitEvent }

type SubscribeEvent struct {
	Serial  uint32
	Service bus.ServiceCookie
	Event   uint32
}

func (SubscribeEvent) Kind() MessageKind { return MsgSubscribeEvent }

type SubscribeEventResult uint8

const (
	SubscribeEventOK SubscribeEventResult = iota
	SubscribeEventInvalidService
)

type SubscribeEventReply struct {
	Serial uint32
	Result SubscribeEventResult
}

func (SubscribeEventReply) Kind() MessageKind { return MsgSubscribeEventReply }

type UnsubscribeEvent struct {
	Service bus.ServiceCookie
	Event   uint32
}

func (UnsubscribeEvent) Kind() MessageKind { return MsgUnsubscribeEvent }

type SubscribeAllEvents struct {
	Serial  uint32
	Service bus.ServiceCookie
}

func (SubscribeAllEvents) Kind() MessageKind { return MsgSubscribeAllEvents }

type SubscribeAllEventsReply struct {
	Serial uint32
	Result SubscribeEventResult
}

func (SubscribeAllEventsReply) Kind() MessageKind { return MsgSubscribeAllEventsReply }

type UnsubscribeAllEvents struct {
	Service bus.ServiceCookie
}

func (UnsubscribeAllEvents) Kind() MessageKind { return MsgUnsubscribeAllEvents }

type AbortFunctionCall struct {
	Serial uint32 // callee-side serial
}

func (AbortFunctionCall) Kind() MessageKind { return MsgAbortFunctionCall }

// ---- channels ----

type CreateChannel struct {
	Serial      uint32
	ClaimEnd    bus.ChannelEnd
	Capacity    uint32 // valid iff ClaimEnd == ChannelEndReceiver
}

func (CreateChannel) Kind() MessageKind { return MsgCreateChannel }

type CreateChannelReply struct {
	Serial  uint32
	Channel bus.ChannelCookie
}

func (CreateChannelReply) Kind() MessageKind { return MsgCreateChannelReply }

type CloseChannelEnd struct {
	Serial  uint32
	Channel bus.ChannelCookie
	End     bus.ChannelEnd
}

func (CloseChannelEnd) Kind() MessageKind { return MsgCloseChannelEnd }

type CloseChannelEndResult uint8

const (
	CloseChannelEndOK CloseChannelEndResult = iota
	CloseChannelEndInvalidChannel
)

type CloseChannelEndReply struct {
	Serial uint32
	Result CloseChannelEndResult
}

func (CloseChannelEndReply) Kind() MessageKind { return MsgCloseChannelEndReply }

type ChannelEndClosed struct {
	Channel bus.ChannelCookie
	End     bus.ChannelEnd
}

func (ChannelEndClosed) Kind() MessageKind { return MsgChannelEndClosed }

type ClaimChannelEnd struct {
	Serial   uint32
	Channel  bus.ChannelCookie
	End      bus.ChannelEnd
	Capacity uint32 // valid iff End == ChannelEndReceiver
}

func (ClaimChannelEnd) Kind() MessageKind { return MsgClaimChannelEnd }

type ClaimChannelEndResult uint8

const (
	ClaimChannelEndOK ClaimChannelEndResult = iota
	ClaimChannelEndAlreadyClaimed
	ClaimChannelEndInvalidChannel
)

type ClaimChannelEndReply struct {
	Serial   uint32
	Result   ClaimChannelEndResult
	Capacity uint32 // valid iff claiming the sender end (echoes receiver's capacity)
}

func (ClaimChannelEndReply) Kind() MessageKind { return MsgClaimChannelEndReply }

type ChannelEndClaimed struct {
	Channel  bus.ChannelCookie
	End      bus.ChannelEnd
	Capacity uint32 // valid iff End == ChannelEndReceiver
}

func (ChannelEndClaimed) Kind() MessageKind { return MsgChannelEndClaimed }

type SendItem struct {
	Channel bus.ChannelCookie
	Item    SerializedValue
}

func (SendItem) Kind() MessageKind { return MsgSendItem }

type AddChannelCapacity struct {
	Channel bus.ChannelCookie
	Delta   uint32
}

func (AddChannelCapacity) Kind() MessageKind { return MsgAddChannelCapacity }

type ItemReceived struct {
	Channel bus.ChannelCookie
	Item    SerializedValue
}

func (ItemReceived) Kind() MessageKind { return MsgItemReceived }

// ---- bus listeners ----

type BusListenerFilterKind uint8

const (
	FilterAnyObject BusListenerFilterKind = iota
	FilterSpecificObject
	FilterAnyObjectAnyService
	FilterAnyObjectSpecificService
	FilterSpecificObjectAnyService
	FilterSpecificObjectSpecificService
)

type BusListenerFilter struct {
	Kind    BusListenerFilterKind
	Object  bus.ObjectUUID  // valid for SpecificObject* kinds
	Service bus.ServiceUUID // valid for *SpecificService kinds
}

type BusListenerScope uint8

const (
	ScopeCurrent BusListenerScope = iota
	ScopeNew
	ScopeAll
)

type CreateBusListener struct {
	Serial uint32
}

func (CreateBusListener) Kind() MessageKind { return MsgCreateBusListener }

type CreateBusListenerReply struct {
	Serial   uint32
	Listener bus.BusListenerCookie
}

func (CreateBusListenerReply) Kind() MessageKind { return MsgCreateBusListenerReply }

type DestroyBusListener struct {
	Serial   uint32
	Listener bus.BusListenerCookie
}

func (DestroyBusListener) Kind() MessageKind { return MsgDestroyBusListener }

type DestroyBusListenerResult uint8

const (
	DestroyBusListenerOK DestroyBusListenerResult = iota
	DestroyBusListenerInvalid
)

type DestroyBusListenerReply struct {
	Serial uint32
	Result DestroyBusListenerResult
}

func (DestroyBusListenerReply) Kind() MessageKind { return MsgDestroyBusListenerReply }

type AddBusListenerFilter struct {
	Listener bus.BusListenerCookie
	Filter   BusListenerFilter
}

func (AddBusListenerFilter) Kind() MessageKind { return MsgAddBusListenerFilter }

type RemoveBusListenerFilter struct {
	Listener bus.BusListenerCookie
	Filter   BusListenerFilter
}

func (RemoveBusListenerFilter) Kind() MessageKind { return MsgRemoveBusListenerFilter }

type ClearBusListenerFilters struct {
	Listener bus.BusListenerCookie
}

func (ClearBusListenerFilters) Kind() MessageKind { return MsgClearBusListenerFilters }

type StartBusListener struct {
	Serial   uint32
	Listener bus.BusListenerCookie
	Scope    BusListenerScope
}

func (StartBusListener) Kind() MessageKind { return MsgStartBusListener }

type StartBusListenerResult uint8

const (
	StartBusListenerOK StartBusListenerResult = iota
	StartBusListenerAlreadyStarted
	StartBusListenerInvalid
)

type StartBusListenerReply struct {
	Serial uint32
	Result StartBusListenerResult
}

func (StartBusListenerReply) Kind() MessageKind { return MsgStartBusListenerReply }

type StopBusListener struct {
	Serial   uint32
	Listener bus.BusListenerCookie
}

func (StopBusListener) Kind() MessageKind { return MsgStopBusListener }

type StopBusListenerResult uint8

const (
	StopBusListenerOK StopBusListenerResult = iota
	StopBusListenerNotStarted
	StopBusListenerInvalid
)

type StopBusListenerReply struct {
	Serial uint32
	Result StopBusListenerResult
}

func (StopBusListenerReply) Kind() MessageKind { return MsgStopBusListenerReply }

type BusEventKind uint8

const (
	BusEventObjectCreated BusEventKind = iota
	BusEventObjectDestroyed
	BusEventServiceCreated
	BusEventServiceDestroyed
)

type EmitBusEvent struct {
	Listener bus.BusListenerCookie
	Event    BusEventKind
	Object   bus.ObjectID
	Service  *bus.ServiceID // present iff Event is one of the Service* kinds
}

func (EmitBusEvent) Kind() MessageKind { return MsgEmitBusEvent }

type BusListenerCurrentFinished struct {
	Listener bus.BusListenerCookie
}

func (BusListenerCurrentFinished) Kind() MessageKind { return MsgBusListenerCurrentFinished }

// ---- sync ----

type SyncClient struct {
	Serial uint32
}

func (SyncClient) Kind() MessageKind { return MsgSyncClient }

type SyncBroker struct {
	Serial uint32
}

func (SyncBroker) Kind() MessageKind { return MsgSyncBroker }

type SyncReply struct {
	Serial uint32
}

func (SyncReply) Kind() MessageKind { return MsgSyncReply }

// ---- introspection ----

type RegisterIntrospection struct {
	TypeID bus.TypeID
	Schema SerializedValue
}

func (RegisterIntrospection) Kind() MessageKind { return MsgRegisterIntrospection }

type QueryIntrospection struct {
	Serial uint32
	TypeID bus.TypeID
}

func (QueryIntrospection) Kind() MessageKind { return MsgQueryIntrospection }

type QueryIntrospectionResult uint8

const (
	QueryIntrospectionOK QueryIntrospectionResult = iota
	QueryIntrospectionUnavailable
)

type QueryIntrospectionReply struct {
	Serial uint32
	Result QueryIntrospectionResult
	Schema SerializedValue
}

func (QueryIntrospectionReply) Kind() MessageKind { return MsgQueryIntrospectionReply }

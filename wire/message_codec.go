package wire

import (
	"fmt"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/google/uuid"
)

// EncodeFrame serializes msg into a complete wire frame: a 4-byte
// little-endian length prefix (counting itself) followed by the 1-byte
// kind discriminant and the kind-specific payload.
func EncodeFrame(msg Message) []byte {
	w := &valueWriter{}
	w.writeByte(byte(msg.Kind()))
	encodeMessageBody(w, msg)
	body := w.bytes()
	total := len(body) + 4
	out := make([]byte, 4, total)
	out[0] = byte(total)
	out[1] = byte(total >> 8)
	out[2] = byte(total >> 16)
	out[3] = byte(total >> 24)
	out = append(out, body...)
	return out
}

// DecodeBody decodes a message from frame bytes that already had the
// 4-byte length prefix stripped (as produced by the Packetizer).
func DecodeBody(frame []byte) (Message, error) {
	r := newValueReader(frame)
	kindByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	msg, err := decodeMessageBody(r, MessageKind(kindByte))
	if err != nil {
		return nil, err
	}
	if err := r.requireEmpty(); err != nil {
		return nil, err
	}
	return msg, nil
}

func writeUUID(w *valueWriter, u [16]byte) { w.write(u[:]) }

func writeObjectUUID(w *valueWriter, v bus.ObjectUUID)   { writeUUID(w, uuid.UUID(v)) }
func writeServiceUUID(w *valueWriter, v bus.ServiceUUID) { writeUUID(w, uuid.UUID(v)) }
func writeTypeID(w *valueWriter, v bus.TypeID)           { writeUUID(w, uuid.UUID(v)) }
func writeObjectCookie(w *valueWriter, v bus.ObjectCookie)           { writeUUID(w, uuid.UUID(v)) }
func writeServiceCookie(w *valueWriter, v bus.ServiceCookie)         { writeUUID(w, uuid.UUID(v)) }
func writeChannelCookie(w *valueWriter, v bus.ChannelCookie)         { writeUUID(w, uuid.UUID(v)) }
func writeBusListenerCookie(w *valueWriter, v bus.BusListenerCookie) { writeUUID(w, uuid.UUID(v)) }

func writeObjectID(w *valueWriter, id bus.ObjectID) {
	writeObjectUUID(w, id.UUID)
	writeObjectCookie(w, id.Cookie)
}

func writeServiceID(w *valueWriter, id bus.ServiceID) {
	writeObjectID(w, id.Object)
	writeServiceUUID(w, id.UUID)
	writeServiceCookie(w, id.Cookie)
}

func writeServiceInfo(w *valueWriter, info bus.ServiceInfo) {
	putVarintU32LE(w, info.Version)
	if info.TypeID != nil {
		w.writeByte(1)
		writeTypeID(w, *info.TypeID)
	} else {
		w.writeByte(0)
	}
}

func writeSerializedValue(w *valueWriter, v SerializedValue) {
	putVarintU32LE(w, uint32(len(v)))
	w.write(v)
}

func writeOptionalSerializedValue(w *valueWriter, v *SerializedValue) {
	if v == nil {
		w.writeByte(0)
		return
	}
	w.writeByte(1)
	writeSerializedValue(w, *v)
}

func readObjectUUID(r *valueReader) (bus.ObjectUUID, error) {
	u, err := readUUID(r)
	return bus.ObjectUUID(u), err
}
func readServiceUUID(r *valueReader) (bus.ServiceUUID, error) {
	u, err := readUUID(r)
	return bus.ServiceUUID(u), err
}
func readTypeID(r *valueReader) (bus.TypeID, error) {
	u, err := readUUID(r)
	return bus.TypeID(u), err
}
func readObjectCookie(r *valueReader) (bus.ObjectCookie, error) {
	u, err := readUUID(r)
	return bus.ObjectCookie(u), err
}
func readServiceCookie(r *valueReader) (bus.ServiceCookie, error) {
	u, err := readUUID(r)
	return bus.ServiceCookie(u), err
}
func readChannelCookie(r *valueReader) (bus.ChannelCookie, error) {
	u, err := readUUID(r)
	return bus.ChannelCookie(u), err
}
func readBusListenerCookie(r *valueReader) (bus.BusListenerCookie, error) {
	u, err := readUUID(r)
	return bus.BusListenerCookie(u), err
}

func readObjectID(r *valueReader) (bus.ObjectID, error) {
	u, err := readObjectUUID(r)
	if err != nil {
		return bus.ObjectID{}, err
	}
	c, err := readObjectCookie(r)
	if err != nil {
		return bus.ObjectID{}, err
	}
	return bus.ObjectID{UUID: u, Cookie: c}, nil
}

func readServiceID(r *valueReader) (bus.ServiceID, error) {
	obj, err := readObjectID(r)
	if err != nil {
		return bus.ServiceID{}, err
	}
	u, err := readServiceUUID(r)
	if err != nil {
		return bus.ServiceID{}, err
	}
	c, err := readServiceCookie(r)
	if err != nil {
		return bus.ServiceID{}, err
	}
	return bus.ServiceID{Object: obj, UUID: u, Cookie: c}, nil
}

func readServiceInfo(r *valueReader) (bus.ServiceInfo, error) {
	version, err := getVarintU32LE(r)
	if err != nil {
		return bus.ServiceInfo{}, err
	}
	has, err := r.readByte()
	if err != nil {
		return bus.ServiceInfo{}, err
	}
	if has == 0 {
		return bus.ServiceInfo{Version: version}, nil
	}
	tid, err := readTypeID(r)
	if err != nil {
		return bus.ServiceInfo{}, err
	}
	return bus.ServiceInfo{Version: version, TypeID: &tid}, nil
}

func readSerializedValue(r *valueReader) (SerializedValue, error) {
	n, err := getVarintU32LE(r)
	if err != nil {
		return nil, err
	}
	b, err := r.readN(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return SerializedValue(out), nil
}

func readOptionalSerializedValue(r *valueReader) (*SerializedValue, error) {
	has, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if has == 0 {
		return nil, nil
	}
	v, err := readSerializedValue(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func encodeMessageBody(w *valueWriter, msg Message) {
	switch m := msg.(type) {
	case Connect:
		putVarintU32LE(w, m.Major)
		putVarintU32LE(w, m.Minor)
	case Connect2:
		putVarintU32LE(w, m.Major)
		putVarintU32LE(w, m.Minor)
		writeOptionalSerializedValue(w, m.Data)
	case ConnectReply:
		w.writeByte(byte(m.Result))
	case ConnectReply2:
		w.writeByte(byte(m.Result))
		if m.Result == ConnectOK {
			putVarintU32LE(w, m.Minor)
		}
		writeOptionalSerializedValue(w, m.Data)
	case Shutdown:
		// no payload

	case CreateObject:
		putVarintU32LE(w, m.Serial)
		writeObjectUUID(w, m.UUID)
	case CreateObjectReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
		if m.Result == CreateObjectOK {
			writeObjectCookie(w, m.Cookie)
		}
	case DestroyObject:
		putVarintU32LE(w, m.Serial)
		writeObjectCookie(w, m.Cookie)
	case DestroyObjectReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case CreateService:
		putVarintU32LE(w, m.Serial)
		writeObjectCookie(w, m.Object)
		writeServiceUUID(w, m.UUID)
		putVarintU32LE(w, m.Version)
		if m.TypeID != nil {
			w.writeByte(1)
			writeTypeID(w, *m.TypeID)
		} else {
			w.writeByte(0)
		}
	case CreateServiceReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
		if m.Result == CreateServiceOK {
			writeServiceCookie(w, m.Cookie)
		}
	case DestroyService:
		putVarintU32LE(w, m.Serial)
		writeServiceCookie(w, m.Cookie)
	case DestroyServiceReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case ServiceCreatedEvent:
		writeObjectID(w, m.Object)
		writeServiceID(w, m.Service)
	case ServiceDestroyedEvent:
		writeObjectID(w, m.Object)
		writeServiceID(w, m.Service)
	case QueryServiceInfo:
		putVarintU32LE(w, m.Serial)
		writeServiceCookie(w, m.Service)
	case QueryServiceInfoReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
		if m.Result == QueryServiceInfoOK {
			writeServiceInfo(w, m.Info)
		}

	case CallFunction:
		putVarintU32LE(w, m.Serial)
		writeServiceCookie(w, m.Service)
		putVarintU32LE(w, m.Function)
		writeSerializedValue(w, m.Args)
	case CallFunctionReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
		if m.Result == CallOK || m.Result == CallErr {
			writeSerializedValue(w, *m.Value)
		}
	case EmitEvent:
		writeServiceCookie(w, m.Service)
		putVarintU32LE(w, m.Event)
		writeSerializedValue(w, m.Args)
	case SubscribeEvent:
		putVarintU32LE(w, m.Serial)
		writeServiceCookie(w, m.Service)
		putVarintU32LE(w, m.Event)
	case SubscribeEventReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case UnsubscribeEvent:
		writeServiceCookie(w, m.Service)
		putVarintU32LE(w, m.Event)
	case SubscribeAllEvents:
		putVarintU32LE(w, m.Serial)
		writeServiceCookie(w, m.Service)
	case SubscribeAllEventsReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case UnsubscribeAllEvents:
		writeServiceCookie(w, m.Service)
	case AbortFunctionCall:
		putVarintU32LE(w, m.Serial)

	case CreateChannel:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.ClaimEnd))
		if m.ClaimEnd == bus.ChannelEndReceiver {
			putVarintU32LE(w, m.Capacity)
		}
	case CreateChannelReply:
		putVarintU32LE(w, m.Serial)
		writeChannelCookie(w, m.Channel)
	case CloseChannelEnd:
		putVarintU32LE(w, m.Serial)
		writeChannelCookie(w, m.Channel)
		w.writeByte(byte(m.End))
	case CloseChannelEndReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case ChannelEndClosed:
		writeChannelCookie(w, m.Channel)
		w.writeByte(byte(m.End))
	case ClaimChannelEnd:
		putVarintU32LE(w, m.Serial)
		writeChannelCookie(w, m.Channel)
		w.writeByte(byte(m.End))
		if m.End == bus.ChannelEndReceiver {
			putVarintU32LE(w, m.Capacity)
		}
	case ClaimChannelEndReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
		if m.Result == ClaimChannelEndOK {
			putVarintU32LE(w, m.Capacity)
		}
	case ChannelEndClaimed:
		writeChannelCookie(w, m.Channel)
		w.writeByte(byte(m.End))
		if m.End == bus.ChannelEndReceiver {
			putVarintU32LE(w, m.Capacity)
		}
	case SendItem:
		writeChannelCookie(w, m.Channel)
		writeSerializedValue(w, m.Item)
	case AddChannelCapacity:
		writeChannelCookie(w, m.Channel)
		putVarintU32LE(w, m.Delta)
	case ItemReceived:
		writeChannelCookie(w, m.Channel)
		writeSerializedValue(w, m.Item)

	case CreateBusListener:
		putVarintU32LE(w, m.Serial)
	case CreateBusListenerReply:
		putVarintU32LE(w, m.Serial)
		writeBusListenerCookie(w, m.Listener)
	case DestroyBusListener:
		putVarintU32LE(w, m.Serial)
		writeBusListenerCookie(w, m.Listener)
	case DestroyBusListenerReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case AddBusListenerFilter:
		writeBusListenerCookie(w, m.Listener)
		writeBusListenerFilter(w, m.Filter)
	case RemoveBusListenerFilter:
		writeBusListenerCookie(w, m.Listener)
		writeBusListenerFilter(w, m.Filter)
	case ClearBusListenerFilters:
		writeBusListenerCookie(w, m.Listener)
	case StartBusListener:
		putVarintU32LE(w, m.Serial)
		writeBusListenerCookie(w, m.Listener)
		w.writeByte(byte(m.Scope))
	case StartBusListenerReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case StopBusListener:
		putVarintU32LE(w, m.Serial)
		writeBusListenerCookie(w, m.Listener)
	case StopBusListenerReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
	case EmitBusEvent:
		writeBusListenerCookie(w, m.Listener)
		w.writeByte(byte(m.Event))
		writeObjectID(w, m.Object)
		if m.Service != nil {
			w.writeByte(1)
			writeServiceID(w, *m.Service)
		} else {
			w.writeByte(0)
		}
	case BusListenerCurrentFinished:
		writeBusListenerCookie(w, m.Listener)

	case SyncClient:
		putVarintU32LE(w, m.Serial)
	case SyncBroker:
		putVarintU32LE(w, m.Serial)
	case SyncReply:
		putVarintU32LE(w, m.Serial)

	case RegisterIntrospection:
		writeTypeID(w, m.TypeID)
		writeSerializedValue(w, m.Schema)
	case QueryIntrospection:
		putVarintU32LE(w, m.Serial)
		writeTypeID(w, m.TypeID)
	case QueryIntrospectionReply:
		putVarintU32LE(w, m.Serial)
		w.writeByte(byte(m.Result))
		if m.Result == QueryIntrospectionOK {
			writeSerializedValue(w, m.Schema)
		}

	default:
		panic(fmt.Sprintf("wire: unknown message type %T", msg))
	}
}

func writeBusListenerFilter(w *valueWriter, f BusListenerFilter) {
	w.writeByte(byte(f.Kind))
	switch f.Kind {
	case FilterSpecificObject:
		writeObjectUUID(w, f.Object)
	case FilterAnyObjectSpecificService:
		writeServiceUUID(w, f.Service)
	case FilterSpecificObjectAnyService:
		writeObjectUUID(w, f.Object)
	case FilterSpecificObjectSpecificService:
		writeObjectUUID(w, f.Object)
		writeServiceUUID(w, f.Service)
	}
}

func readBusListenerFilter(r *valueReader) (BusListenerFilter, error) {
	kindByte, err := r.readByte()
	if err != nil {
		return BusListenerFilter{}, err
	}
	f := BusListenerFilter{Kind: BusListenerFilterKind(kindByte)}
	switch f.Kind {
	case FilterSpecificObject:
		f.Object, err = readObjectUUID(r)
	case FilterAnyObjectSpecificService:
		f.Service, err = readServiceUUID(r)
	case FilterSpecificObjectAnyService:
		f.Object, err = readObjectUUID(r)
	case FilterSpecificObjectSpecificService:
		if f.Object, err = readObjectUUID(r); err == nil {
			f.Service, err = readServiceUUID(r)
		}
	}
	return f, err
}

func decodeMessageBody(r *valueReader, kind MessageKind) (Message, error) {
	switch kind {
	case MsgConnect:
		major, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		minor, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return Connect{Major: major, Minor: minor}, nil
	case MsgConnect2:
		major, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		minor, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		data, err := readOptionalSerializedValue(r)
		if err != nil {
			return nil, err
		}
		return Connect2{Major: major, Minor: minor, Data: data}, nil
	case MsgConnectReply:
		result, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return ConnectReply{Result: ConnectResult(result)}, nil
	case MsgConnectReply2:
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		result := ConnectResult(resultByte)
		var minor uint32
		if result == ConnectOK {
			minor, err = getVarintU32LE(r)
			if err != nil {
				return nil, err
			}
		}
		data, err := readOptionalSerializedValue(r)
		if err != nil {
			return nil, err
		}
		return ConnectReply2{Result: result, Minor: minor, Data: data}, nil
	case MsgShutdown:
		return Shutdown{}, nil

	case MsgCreateObject:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		id, err := readObjectUUID(r)
		if err != nil {
			return nil, err
		}
		return CreateObject{Serial: serial, UUID: id}, nil
	case MsgCreateObjectReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		result := CreateObjectResult(resultByte)
		var cookie bus.ObjectCookie
		if result == CreateObjectOK {
			cookie, err = readObjectCookie(r)
			if err != nil {
				return nil, err
			}
		}
		return CreateObjectReply{Serial: serial, Result: result, Cookie: cookie}, nil
	case MsgDestroyObject:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		cookie, err := readObjectCookie(r)
		if err != nil {
			return nil, err
		}
		return DestroyObject{Serial: serial, Cookie: cookie}, nil
	case MsgDestroyObjectReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return DestroyObjectReply{Serial: serial, Result: DestroyObjectResult(resultByte)}, nil
	case MsgCreateService:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		obj, err := readObjectCookie(r)
		if err != nil {
			return nil, err
		}
		svcUUID, err := readServiceUUID(r)
		if err != nil {
			return nil, err
		}
		version, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		has, err := r.readByte()
		if err != nil {
			return nil, err
		}
		var typeID *bus.TypeID
		if has != 0 {
			tid, err := readTypeID(r)
			if err != nil {
				return nil, err
			}
			typeID = &tid
		}
		return CreateService{Serial: serial, Object: obj, UUID: svcUUID, Version: version, TypeID: typeID}, nil
	case MsgCreateServiceReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		result := CreateServiceResult(resultByte)
		var cookie bus.ServiceCookie
		if result == CreateServiceOK {
			cookie, err = readServiceCookie(r)
			if err != nil {
				return nil, err
			}
		}
		return CreateServiceReply{Serial: serial, Result: result, Cookie: cookie}, nil
	case MsgDestroyService:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		cookie, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		return DestroyService{Serial: serial, Cookie: cookie}, nil
	case MsgDestroyServiceReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return DestroyServiceReply{Serial: serial, Result: DestroyServiceResult(resultByte)}, nil
	case MsgServiceCreatedEvent:
		obj, err := readObjectID(r)
		if err != nil {
			return nil, err
		}
		svc, err := readServiceID(r)
		if err != nil {
			return nil, err
		}
		return ServiceCreatedEvent{Object: obj, Service: svc}, nil
	case MsgServiceDestroyedEvent:
		obj, err := readObjectID(r)
		if err != nil {
			return nil, err
		}
		svc, err := readServiceID(r)
		if err != nil {
			return nil, err
		}
		return ServiceDestroyedEvent{Object: obj, Service: svc}, nil
	case MsgQueryServiceInfo:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		svc, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		return QueryServiceInfo{Serial: serial, Service: svc}, nil
	case MsgQueryServiceInfoReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		result := QueryServiceInfoResult(resultByte)
		var info bus.ServiceInfo
		if result == QueryServiceInfoOK {
			info, err = readServiceInfo(r)
			if err != nil {
				return nil, err
			}
		}
		return QueryServiceInfoReply{Serial: serial, Result: result, Info: info}, nil

	case MsgCallFunction:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		svc, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		fn, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		args, err := readSerializedValue(r)
		if err != nil {
			return nil, err
		}
		return CallFunction{Serial: serial, Service: svc, Function: fn, Args: args}, nil
	case MsgCallFunctionReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		result := CallResult(resultByte)
		var value *SerializedValue
		if result == CallOK || result == CallErr {
			v, err := readSerializedValue(r)
			if err != nil {
				return nil, err
			}
			value = &v
		}
		return CallFunctionReply{Serial: serial, Result: result, Value: value}, nil
	case MsgEmitEvent:
		svc, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		ev, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		args, err := readSerializedValue(r)
		if err != nil {
			return nil, err
		}
		return EmitEvent{Service: svc, Event: ev, Args: args}, nil
	case MsgSubscribeEvent:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		svc, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		ev, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return SubscribeEvent{Serial: serial, Service: svc, Event: ev}, nil
	case MsgSubscribeEventReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return SubscribeEventReply{Serial: serial, Result: SubscribeEventResult(resultByte)}, nil
	case MsgUnsubscribeEvent:
		svc, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		ev, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return UnsubscribeEvent{Service: svc, Event: ev}, nil
	case MsgSubscribeAllEvents:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		svc, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		return SubscribeAllEvents{Serial: serial, Service: svc}, nil
	case MsgSubscribeAllEventsReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return SubscribeAllEventsReply{Serial: serial, Result: SubscribeEventResult(resultByte)}, nil
	case MsgUnsubscribeAllEvents:
		svc, err := readServiceCookie(r)
		if err != nil {
			return nil, err
		}
		return UnsubscribeAllEvents{Service: svc}, nil
	case MsgAbortFunctionCall:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return AbortFunctionCall{Serial: serial}, nil

	case MsgCreateChannel:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		endByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		end := bus.ChannelEnd(endByte)
		var capacity uint32
		if end == bus.ChannelEndReceiver {
			capacity, err = getVarintU32LE(r)
			if err != nil {
				return nil, err
			}
		}
		return CreateChannel{Serial: serial, ClaimEnd: end, Capacity: capacity}, nil
	case MsgCreateChannelReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		return CreateChannelReply{Serial: serial, Channel: ch}, nil
	case MsgCloseChannelEnd:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		endByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return CloseChannelEnd{Serial: serial, Channel: ch, End: bus.ChannelEnd(endByte)}, nil
	case MsgCloseChannelEndReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return CloseChannelEndReply{Serial: serial, Result: CloseChannelEndResult(resultByte)}, nil
	case MsgChannelEndClosed:
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		endByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return ChannelEndClosed{Channel: ch, End: bus.ChannelEnd(endByte)}, nil
	case MsgClaimChannelEnd:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		endByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		end := bus.ChannelEnd(endByte)
		var capacity uint32
		if end == bus.ChannelEndReceiver {
			capacity, err = getVarintU32LE(r)
			if err != nil {
				return nil, err
			}
		}
		return ClaimChannelEnd{Serial: serial, Channel: ch, End: end, Capacity: capacity}, nil
	case MsgClaimChannelEndReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		result := ClaimChannelEndResult(resultByte)
		var capacity uint32
		if result == ClaimChannelEndOK {
			capacity, err = getVarintU32LE(r)
			if err != nil {
				return nil, err
			}
		}
		return ClaimChannelEndReply{Serial: serial, Result: result, Capacity: capacity}, nil
	case MsgChannelEndClaimed:
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		endByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		end := bus.ChannelEnd(endByte)
		var capacity uint32
		if end == bus.ChannelEndReceiver {
			capacity, err = getVarintU32LE(r)
			if err != nil {
				return nil, err
			}
		}
		return ChannelEndClaimed{Channel: ch, End: end, Capacity: capacity}, nil
	case MsgSendItem:
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		item, err := readSerializedValue(r)
		if err != nil {
			return nil, err
		}
		return SendItem{Channel: ch, Item: item}, nil
	case MsgAddChannelCapacity:
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		delta, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return AddChannelCapacity{Channel: ch, Delta: delta}, nil
	case MsgItemReceived:
		ch, err := readChannelCookie(r)
		if err != nil {
			return nil, err
		}
		item, err := readSerializedValue(r)
		if err != nil {
			return nil, err
		}
		return ItemReceived{Channel: ch, Item: item}, nil

	case MsgCreateBusListener:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return CreateBusListener{Serial: serial}, nil
	case MsgCreateBusListenerReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		return CreateBusListenerReply{Serial: serial, Listener: listener}, nil
	case MsgDestroyBusListener:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		return DestroyBusListener{Serial: serial, Listener: listener}, nil
	case MsgDestroyBusListenerReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return DestroyBusListenerReply{Serial: serial, Result: DestroyBusListenerResult(resultByte)}, nil
	case MsgAddBusListenerFilter:
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		filter, err := readBusListenerFilter(r)
		if err != nil {
			return nil, err
		}
		return AddBusListenerFilter{Listener: listener, Filter: filter}, nil
	case MsgRemoveBusListenerFilter:
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		filter, err := readBusListenerFilter(r)
		if err != nil {
			return nil, err
		}
		return RemoveBusListenerFilter{Listener: listener, Filter: filter}, nil
	case MsgClearBusListenerFilters:
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		return ClearBusListenerFilters{Listener: listener}, nil
	case MsgStartBusListener:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		scopeByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return StartBusListener{Serial: serial, Listener: listener, Scope: BusListenerScope(scopeByte)}, nil
	case MsgStartBusListenerReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return StartBusListenerReply{Serial: serial, Result: StartBusListenerResult(resultByte)}, nil
	case MsgStopBusListener:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		return StopBusListener{Serial: serial, Listener: listener}, nil
	case MsgStopBusListenerReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return StopBusListenerReply{Serial: serial, Result: StopBusListenerResult(resultByte)}, nil
	case MsgEmitBusEvent:
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		eventByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		obj, err := readObjectID(r)
		if err != nil {
			return nil, err
		}
		has, err := r.readByte()
		if err != nil {
			return nil, err
		}
		var svc *bus.ServiceID
		if has != 0 {
			s, err := readServiceID(r)
			if err != nil {
				return nil, err
			}
			svc = &s
		}
		return EmitBusEvent{Listener: listener, Event: BusEventKind(eventByte), Object: obj, Service: svc}, nil
	case MsgBusListenerCurrentFinished:
		listener, err := readBusListenerCookie(r)
		if err != nil {
			return nil, err
		}
		return BusListenerCurrentFinished{Listener: listener}, nil

	case MsgSyncClient:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return SyncClient{Serial: serial}, nil
	case MsgSyncBroker:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return SyncBroker{Serial: serial}, nil
	case MsgSyncReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return SyncReply{Serial: serial}, nil

	case MsgRegisterIntrospection:
		tid, err := readTypeID(r)
		if err != nil {
			return nil, err
		}
		schema, err := readSerializedValue(r)
		if err != nil {
			return nil, err
		}
		return RegisterIntrospection{TypeID: tid, Schema: schema}, nil
	case MsgQueryIntrospection:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		tid, err := readTypeID(r)
		if err != nil {
			return nil, err
		}
		return QueryIntrospection{Serial: serial, TypeID: tid}, nil
	case MsgQueryIntrospectionReply:
		serial, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		resultByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		result := QueryIntrospectionResult(resultByte)
		var schema SerializedValue
		if result == QueryIntrospectionOK {
			schema, err = readSerializedValue(r)
			if err != nil {
				return nil, err
			}
		}
		return QueryIntrospectionReply{Serial: serial, Result: result, Schema: schema}, nil

	default:
		return nil, fmt.Errorf("%w: message kind %d", ErrInvalidSerialization, kind)
	}
}

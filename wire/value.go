package wire

import (
	"fmt"
	"math"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/google/uuid"
)

// Kind is the 1-byte discriminant prefixing every encoded value.
type Kind uint8

const (
	KindNone Kind = iota
	KindSome
	KindBool
	KindU8
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindU64
	KindI64
	KindF32
	KindF64
	KindString
	KindUUID
	KindObjectID
	KindServiceID
	KindVec1
	KindVec2
	KindBytes
	KindMap
	KindSet
	KindSender
	KindReceiver
	KindStruct
	KindEnum
	KindLifetime
	KindUnit
	kindFieldEnd   // sentinel terminating a struct's field-id stream
	kindUnknownBag // tag for the opaque unknown-fields bag
)

// Value is the closed set of wire-representable value kinds. Concrete
// types below each implement it; decoding returns one of them based on
// the leading discriminant byte.
type Value interface {
	Kind() Kind
}

type (
	Bool   bool
	U8     uint8
	I8     int8
	U16    uint16
	I16    int16
	U32    uint32
	I32    int32
	U64    uint64
	I64    int64
	F32    float32
	F64    float64
	Str    string
	Bytes  []byte
	Unit   struct{}
	Lifetime struct{ Token uint32 }
)

func (Bool) Kind() Kind     { return KindBool }
func (U8) Kind() Kind       { return KindU8 }
func (I8) Kind() Kind       { return KindI8 }
func (U16) Kind() Kind      { return KindU16 }
func (I16) Kind() Kind      { return KindI16 }
func (U32) Kind() Kind      { return KindU32 }
func (I32) Kind() Kind      { return KindI32 }
func (U64) Kind() Kind      { return KindU64 }
func (I64) Kind() Kind      { return KindI64 }
func (F32) Kind() Kind      { return KindF32 }
func (F64) Kind() Kind      { return KindF64 }
func (Str) Kind() Kind      { return KindString }
func (Bytes) Kind() Kind    { return KindBytes }
func (Unit) Kind() Kind     { return KindUnit }
func (Lifetime) Kind() Kind { return KindLifetime }

// UUIDValue wraps a raw uuid.UUID value (used when a value is an opaque
// UUID, not an ObjectUUID/ServiceUUID with owning semantics).
type UUIDValue uuid.UUID

func (UUIDValue) Kind() Kind { return KindUUID }

// ObjectIDValue and ServiceIDValue carry the UUID/cookie pairs for
// object and service identifiers embedded in call arguments or replies.
type ObjectIDValue bus.ObjectID
type ServiceIDValue bus.ServiceID

func (ObjectIDValue) Kind() Kind  { return KindObjectID }
func (ServiceIDValue) Kind() Kind { return KindServiceID }

// Optional represents Some(Value) or None.
type Optional struct {
	Value Value // nil iff None
}

func (Optional) Kind() Kind { return KindNone } // written specially, see EncodeValue

// Array is the decoded form of either wire array encoding (Vec1 or
// Vec2); decoders normalize both to this slice per testable property 6.
// PreferVec2 controls which wire form Encode chooses.
type Array struct {
	Elements  []Value
	PreferVec2 bool
}

func (Array) Kind() Kind { return KindVec1 }

// MapValue and SetValue carry a key-kind discriminant (one of KindU8,
// KindI8, ... integer kinds, KindString, or KindUUID) alongside entries.
type MapEntry struct {
	Key Value
	Val Value
}

type MapValue struct {
	KeyKind Kind
	Entries []MapEntry
}

func (MapValue) Kind() Kind { return KindMap }

type SetValue struct {
	KeyKind Kind
	Entries []Value
}

func (SetValue) Kind() Kind { return KindSet }

// Sender and Receiver are channel-endpoint references that may be
// transmitted as call arguments, event payloads, or call replies.
type Sender bus.ChannelCookie
type Receiver bus.ChannelCookie

func (Sender) Kind() Kind   { return KindSender }
func (Receiver) Kind() Kind { return KindReceiver }

// StructField is one (field id, value) pair in a struct's field stream.
type StructField struct {
	ID    uint32
	Value Value
}

// UnknownField preserves a field id and its raw encoded payload for a
// struct type that opted into collecting unrecognized fields instead of
// silently dropping them.
type UnknownField struct {
	ID  uint32
	Raw []byte
}

type StructValue struct {
	Fields  []StructField
	Unknown []UnknownField // populated only if the target type collects them
}

func (StructValue) Kind() Kind { return KindStruct }

// EnumValue is (variant id, payload). FallbackRaw is set instead of
// Value when the target type preserved an unrecognized variant as an
// opaque fallback rather than rejecting it.
type EnumValue struct {
	VariantID   uint32
	Value       Value
	FallbackRaw []byte
}

func (EnumValue) Kind() Kind { return KindEnum }

// ---- encode ----

// EncodeValue serializes v for transmission at the given negotiated
// minor protocol version. Vec2 is only emitted for minor >=
// bus.MinorIntroducingVec2; earlier peers always receive Vec1.
func EncodeValue(v Value, minor uint32) []byte {
	w := &valueWriter{}
	encodeValue(w, v, minor)
	return w.bytes()
}

func encodeValue(w *valueWriter, v Value, minor uint32) {
	switch val := v.(type) {
	case nil:
		w.writeByte(byte(KindUnit))
	case Unit:
		w.writeByte(byte(KindUnit))
	case Bool:
		w.writeByte(byte(KindBool))
		if val {
			w.writeByte(1)
		} else {
			w.writeByte(0)
		}
	case U8:
		w.writeByte(byte(KindU8))
		w.writeByte(byte(val))
	case I8:
		w.writeByte(byte(KindI8))
		w.writeByte(byte(val))
	case U16:
		w.writeByte(byte(KindU16))
		putVarintU16LE(w, uint16(val))
	case I16:
		w.writeByte(byte(KindI16))
		putVarintI16LE(w, int16(val))
	case U32:
		w.writeByte(byte(KindU32))
		putVarintU32LE(w, uint32(val))
	case I32:
		w.writeByte(byte(KindI32))
		putVarintI32LE(w, int32(val))
	case U64:
		w.writeByte(byte(KindU64))
		putVarintU64LE(w, uint64(val))
	case I64:
		w.writeByte(byte(KindI64))
		putVarintI64LE(w, int64(val))
	case F32:
		w.writeByte(byte(KindF32))
		bits := math.Float32bits(float32(val))
		w.write([]byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)})
	case F64:
		w.writeByte(byte(KindF64))
		bits := math.Float64bits(float64(val))
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(bits >> (8 * i))
		}
		w.write(b[:])
	case Str:
		w.writeByte(byte(KindString))
		encodeLenPrefixedBytes(w, []byte(val))
	case Bytes:
		w.writeByte(byte(KindBytes))
		encodeLenPrefixedBytes(w, []byte(val))
	case UUIDValue:
		w.writeByte(byte(KindUUID))
		w.write(val[:])
	case ObjectIDValue:
		w.writeByte(byte(KindObjectID))
		w.write(uuid.UUID(val.UUID)[:])
		w.write(uuid.UUID(val.Cookie)[:])
	case ServiceIDValue:
		w.writeByte(byte(KindServiceID))
		w.write(uuid.UUID(val.Object.UUID)[:])
		w.write(uuid.UUID(val.Object.Cookie)[:])
		w.write(uuid.UUID(val.UUID)[:])
		w.write(uuid.UUID(val.Cookie)[:])
	case Optional:
		if val.Value == nil {
			w.writeByte(byte(KindNone))
		} else {
			w.writeByte(byte(KindSome))
			encodeValue(w, val.Value, minor)
		}
	case Array:
		encodeArray(w, val, minor)
	case MapValue:
		encodeMap(w, val, minor)
	case SetValue:
		encodeSet(w, val, minor)
	case Sender:
		w.writeByte(byte(KindSender))
		w.write(uuid.UUID(val)[:])
	case Receiver:
		w.writeByte(byte(KindReceiver))
		w.write(uuid.UUID(val)[:])
	case StructValue:
		encodeStruct(w, val, minor)
	case EnumValue:
		encodeEnum(w, val, minor)
	case Lifetime:
		w.writeByte(byte(KindLifetime))
		putVarintU32LE(w, val.Token)
	default:
		panic(fmt.Sprintf("wire: unknown value type %T", v))
	}
}

func encodeLenPrefixedBytes(w *valueWriter, b []byte) {
	putVarintU32LE(w, uint32(len(b)))
	w.write(b)
}

func encodeArray(w *valueWriter, a Array, minor uint32) {
	useVec2 := a.PreferVec2 && minor >= bus.MinorIntroducingVec2
	if useVec2 {
		w.writeByte(byte(KindVec2))
		for _, el := range a.Elements {
			w.writeByte(byte(KindSome))
			encodeValue(w, el, minor)
		}
		w.writeByte(byte(KindNone))
		return
	}
	w.writeByte(byte(KindVec1))
	putVarintU32LE(w, uint32(len(a.Elements)))
	for _, el := range a.Elements {
		encodeValue(w, el, minor)
	}
}

func encodeMap(w *valueWriter, m MapValue, minor uint32) {
	w.writeByte(byte(KindMap))
	w.writeByte(byte(m.KeyKind))
	putVarintU32LE(w, uint32(len(m.Entries)))
	for _, e := range m.Entries {
		encodeMapKey(w, m.KeyKind, e.Key)
		encodeValue(w, e.Val, minor)
	}
}

func encodeSet(w *valueWriter, s SetValue, minor uint32) {
	w.writeByte(byte(KindSet))
	w.writeByte(byte(s.KeyKind))
	putVarintU32LE(w, uint32(len(s.Entries)))
	for _, el := range s.Entries {
		encodeMapKey(w, s.KeyKind, el)
	}
}

// encodeMapKey writes a map/set key without its own discriminant byte;
// the container's KeyKind already pins the type for every entry.
func encodeMapKey(w *valueWriter, keyKind Kind, v Value) {
	switch keyKind {
	case KindU8:
		w.writeByte(byte(v.(U8)))
	case KindI8:
		w.writeByte(byte(v.(I8)))
	case KindU16:
		putVarintU16LE(w, uint16(v.(U16)))
	case KindI16:
		putVarintI16LE(w, int16(v.(I16)))
	case KindU32:
		putVarintU32LE(w, uint32(v.(U32)))
	case KindI32:
		putVarintI32LE(w, int32(v.(I32)))
	case KindU64:
		putVarintU64LE(w, uint64(v.(U64)))
	case KindI64:
		putVarintI64LE(w, int64(v.(I64)))
	case KindString:
		encodeLenPrefixedBytes(w, []byte(v.(Str)))
	case KindUUID:
		u := uuid.UUID(v.(UUIDValue))
		w.write(u[:])
	default:
		panic(fmt.Sprintf("wire: unsupported map/set key kind %v", keyKind))
	}
}

// Struct field streams are framed as a sequence of (continue=1, field
// id, value) entries terminated by a single continue=0 byte, so the
// terminator can never be confused with a varint-encoded field id.
func encodeStruct(w *valueWriter, s StructValue, minor uint32) {
	w.writeByte(byte(KindStruct))
	for _, f := range s.Fields {
		w.writeByte(1)
		putVarintU32LE(w, f.ID)
		encodeValue(w, f.Value, minor)
	}
	for _, u := range s.Unknown {
		w.writeByte(1)
		putVarintU32LE(w, u.ID)
		w.write(u.Raw)
	}
	w.writeByte(0)
}

func encodeEnum(w *valueWriter, e EnumValue, minor uint32) {
	w.writeByte(byte(KindEnum))
	putVarintU32LE(w, e.VariantID)
	if e.FallbackRaw != nil {
		w.write(e.FallbackRaw)
		return
	}
	encodeValue(w, e.Value, minor)
}

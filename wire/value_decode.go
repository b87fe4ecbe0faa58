package wire

import (
	"fmt"
	"math"

	"github.com/aldrin-bus/aldrin/bus"
	"github.com/google/uuid"
)

// DecodeValue parses one self-describing value from b and reports
// trailing data as an error (callers that want to decode multiple
// values back to back should use newValueReader directly).
func DecodeValue(b []byte) (Value, error) {
	r := newValueReader(b)
	v, err := decodeValue(r)
	if err != nil {
		return nil, err
	}
	if err := r.requireEmpty(); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeValue(r *valueReader) (Value, error) {
	disc, err := r.readByte()
	if err != nil {
		return nil, err
	}
	return decodeValueWithKind(r, Kind(disc))
}

func decodeValueWithKind(r *valueReader, kind Kind) (Value, error) {
	switch kind {
	case KindUnit, KindNone:
		return Unit{}, nil
	case KindBool:
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return Bool(b != 0), nil
	case KindU8:
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return U8(b), nil
	case KindI8:
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return I8(int8(b)), nil
	case KindU16:
		v, err := getVarintU16LE(r)
		if err != nil {
			return nil, err
		}
		return U16(v), nil
	case KindI16:
		v, err := getVarintI16LE(r)
		if err != nil {
			return nil, err
		}
		return I16(v), nil
	case KindU32:
		v, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return U32(v), nil
	case KindI32:
		v, err := getVarintI32LE(r)
		if err != nil {
			return nil, err
		}
		return I32(v), nil
	case KindU64:
		v, err := getVarintU64LE(r)
		if err != nil {
			return nil, err
		}
		return U64(v), nil
	case KindI64:
		v, err := getVarintI64LE(r)
		if err != nil {
			return nil, err
		}
		return I64(v), nil
	case KindF32:
		b, err := r.readN(4)
		if err != nil {
			return nil, err
		}
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return F32(math.Float32frombits(bits)), nil
	case KindF64:
		b, err := r.readN(8)
		if err != nil {
			return nil, err
		}
		var bits uint64
		for i := 7; i >= 0; i-- {
			bits = bits<<8 | uint64(b[i])
		}
		return F64(math.Float64frombits(bits)), nil
	case KindString:
		b, err := decodeLenPrefixedBytes(r)
		if err != nil {
			return nil, err
		}
		return Str(b), nil
	case KindBytes:
		b, err := decodeLenPrefixedBytes(r)
		if err != nil {
			return nil, err
		}
		return Bytes(b), nil
	case KindUUID:
		id, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		return UUIDValue(id), nil
	case KindObjectID:
		objUUID, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		objCookie, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		return ObjectIDValue{UUID: bus.ObjectUUID(objUUID), Cookie: bus.ObjectCookie(objCookie)}, nil
	case KindServiceID:
		objUUID, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		objCookie, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		svcUUID, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		svcCookie, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		return ServiceIDValue{
			Object: bus.ObjectID{UUID: bus.ObjectUUID(objUUID), Cookie: bus.ObjectCookie(objCookie)},
			UUID:   bus.ServiceUUID(svcUUID),
			Cookie: bus.ServiceCookie(svcCookie),
		}, nil
	case KindSome:
		inner, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		return Optional{Value: inner}, nil
	case KindVec1:
		return decodeVec1(r)
	case KindVec2:
		return decodeVec2(r)
	case KindMap:
		return decodeMap(r)
	case KindSet:
		return decodeSet(r)
	case KindSender:
		id, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		return Sender(bus.ChannelCookie(id)), nil
	case KindReceiver:
		id, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		return Receiver(bus.ChannelCookie(id)), nil
	case KindStruct:
		return decodeStruct(r)
	case KindEnum:
		return decodeEnum(r)
	case KindLifetime:
		tok, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		return Lifetime{Token: tok}, nil
	default:
		return nil, fmt.Errorf("%w: discriminant %d", ErrInvalidSerialization, kind)
	}
}

func decodeLenPrefixedBytes(r *valueReader) ([]byte, error) {
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
	return out, nil
}

func readUUID(r *valueReader) (uuid.UUID, error) {
	b, err := r.readN(16)
	if err != nil {
		return uuid.Nil, err
	}
	var u uuid.UUID
	copy(u[:], b)
	return u, nil
}

func decodeVec1(r *valueReader) (Value, error) {
	n, err := getVarintU32LE(r)
	if err != nil {
		return nil, err
	}
	elems := make([]Value, 0, n)
	for i := uint32(0); i < n; i++ {
		el, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
	return Array{Elements: elems}, nil
}

func decodeVec2(r *valueReader) (Value, error) {
	var elems []Value
	for {
		disc, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if Kind(disc) == KindNone {
			break
		}
		if Kind(disc) != KindSome {
			return nil, fmt.Errorf("%w: vec2 element tag %d", ErrInvalidSerialization, disc)
		}
		el, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
	return Array{Elements: elems, PreferVec2: true}, nil
}

func decodeMapKey(r *valueReader, keyKind Kind) (Value, error) {
	switch keyKind {
	case KindU8:
		b, err := r.readByte()
		return U8(b), err
	case KindI8:
		b, err := r.readByte()
		return I8(int8(b)), err
	case KindU16:
		v, err := getVarintU16LE(r)
		return U16(v), err
	case KindI16:
		v, err := getVarintI16LE(r)
		return I16(v), err
	case KindU32:
		v, err := getVarintU32LE(r)
		return U32(v), err
	case KindI32:
		v, err := getVarintI32LE(r)
		return I32(v), err
	case KindU64:
		v, err := getVarintU64LE(r)
		return U64(v), err
	case KindI64:
		v, err := getVarintI64LE(r)
		return I64(v), err
	case KindString:
		b, err := decodeLenPrefixedBytes(r)
		return Str(b), err
	case KindUUID:
		id, err := readUUID(r)
		return UUIDValue(id), err
	default:
		return nil, fmt.Errorf("%w: unsupported map/set key kind %d", ErrInvalidSerialization, keyKind)
	}
}

func decodeMap(r *valueReader) (Value, error) {
	keyKindByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	keyKind := Kind(keyKindByte)
	n, err := getVarintU32LE(r)
	if err != nil {
		return nil, err
	}
	entries := make([]MapEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		key, err := decodeMapKey(r, keyKind)
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, MapEntry{Key: key, Val: val})
	}
	return MapValue{KeyKind: keyKind, Entries: entries}, nil
}

func decodeSet(r *valueReader) (Value, error) {
	keyKindByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	keyKind := Kind(keyKindByte)
	n, err := getVarintU32LE(r)
	if err != nil {
		return nil, err
	}
	entries := make([]Value, 0, n)
	for i := uint32(0); i < n; i++ {
		el, err := decodeMapKey(r, keyKind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, el)
	}
	return SetValue{KeyKind: keyKind, Entries: entries}, nil
}

func decodeStruct(r *valueReader) (Value, error) {
	var fields []StructField
	for {
		cont, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if cont == 0 {
			break
		}
		id, err := getVarintU32LE(r)
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, StructField{ID: id, Value: val})
	}
	return StructValue{Fields: fields}, nil
}

func decodeEnum(r *valueReader) (Value, error) {
	id, err := getVarintU32LE(r)
	if err != nil {
		return nil, err
	}
	val, err := decodeValue(r)
	if err != nil {
		return nil, err
	}
	return EnumValue{VariantID: id, Value: val}, nil
}

// FieldByID returns the value for fieldID, reporting ok=false if absent
// (either never sent, or skipped by a decoder that does not collect
// unknown fields).
func (s StructValue) FieldByID(fieldID uint32) (Value, bool) {
	for _, f := range s.Fields {
		if f.ID == fieldID {
			return f.Value, true
		}
	}
	return nil, false
}

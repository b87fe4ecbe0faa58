package wire

import "errors"

// Structural decode errors, per the value codec's error taxonomy.
// These are distinct from bus.Error: they describe malformed bytes,
// not semantic bus-level failures; callers at the broker/client
// boundary translate them into bus.Error{Kind: ErrDeserialize, ...}.
var (
	ErrUnexpectedEOI        = errors.New("wire: unexpected end of input")
	ErrTrailingData         = errors.New("wire: trailing data after value")
	ErrInvalidSerialization = errors.New("wire: invalid serialization")
	ErrUnexpectedValue      = errors.New("wire: discriminant does not match target type")
	ErrMoreElementsRemain   = errors.New("wire: structured decoder dropped before consuming all elements")
	ErrOverflow             = errors.New("wire: value does not fit target integer width")
)

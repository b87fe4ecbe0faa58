package bus

import "fmt"

// ErrorKind enumerates the closed error taxonomy of the bus.
type ErrorKind int

const (
	ErrShutdown ErrorKind = iota
	ErrDuplicateObject
	ErrInvalidObject
	ErrDuplicateService
	ErrInvalidService
	ErrInvalidFunction
	ErrInvalidArguments
	ErrInvalidReply
	ErrInvalidItem
	ErrInvalidEvent
	ErrCallAborted
	ErrInvalidChannel
	ErrCapacityExhausted
	ErrInvalidBusListener
	ErrBusListenerAlreadyStarted
	ErrBusListenerNotStarted
	ErrInvalidLifetime
	ErrNotSupported
	ErrSerialize
	ErrDeserialize
	ErrTransport
	ErrIncompatibleVersion
	ErrRejected
)

var errorKindNames = map[ErrorKind]string{
	ErrShutdown:                  "shutdown",
	ErrDuplicateObject:           "duplicate_object",
	ErrInvalidObject:             "invalid_object",
	ErrDuplicateService:          "duplicate_service",
	ErrInvalidService:            "invalid_service",
	ErrInvalidFunction:           "invalid_function",
	ErrInvalidArguments:          "invalid_arguments",
	ErrInvalidReply:              "invalid_reply",
	ErrInvalidItem:               "invalid_item",
	ErrInvalidEvent:              "invalid_event",
	ErrCallAborted:               "call_aborted",
	ErrInvalidChannel:            "invalid_channel",
	ErrCapacityExhausted:         "capacity_exhausted",
	ErrInvalidBusListener:        "invalid_bus_listener",
	ErrBusListenerAlreadyStarted: "bus_listener_already_started",
	ErrBusListenerNotStarted:     "bus_listener_not_started",
	ErrInvalidLifetime:           "invalid_lifetime",
	ErrNotSupported:              "not_supported",
	ErrSerialize:                 "serialize",
	ErrDeserialize:               "deserialize",
	ErrTransport:                 "transport",
	ErrIncompatibleVersion:       "incompatible_version",
	ErrRejected:                  "rejected",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the bus's uniform error type. Every semantic error surfaced
// to a caller, and every terminal wire error, is a *Error.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, bus.New(kind, "")) to match on kind alone.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs a bare *Error of the given kind.
func New(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a *Error of the given kind wrapping cause.
func Wrap(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// IsTerminal reports whether an error of this kind always tears down
// the connection it occurred on, per the propagation policy in the
// error handling design.
func IsTerminal(kind ErrorKind) bool {
	switch kind {
	case ErrShutdown, ErrTransport, ErrSerialize, ErrDeserialize,
		ErrIncompatibleVersion, ErrRejected:
		return true
	default:
		return false
	}
}

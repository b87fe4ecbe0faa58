package bus

// ProtocolMajor is the fixed major protocol version. Connections with a
// mismatched major version are always rejected.
const ProtocolMajor = 1

// MinSupportedMinor and MaxSupportedMinor bound the minor versions this
// broker/client generation understands.
const (
	MinSupportedMinor = 14
	MaxSupportedMinor = 20
)

// MinorIntroducingVec2 is the first minor version at which the Vec2
// null-terminated array encoding is emitted by default. Earlier peers
// still decode Vec2 but only ever receive Vec1 from us.
const MinorIntroducingVec2 = 17

// NegotiateMinor picks the highest mutually supported minor version.
// It returns ok=false if the peer's offer is below MinSupportedMinor.
func NegotiateMinor(peerOffered uint32) (minor uint32, ok bool) {
	if peerOffered < MinSupportedMinor {
		return 0, false
	}
	negotiated := peerOffered
	if negotiated > MaxSupportedMinor {
		negotiated = MaxSupportedMinor
	}
	return negotiated, true
}

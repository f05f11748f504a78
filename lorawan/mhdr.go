//go:generate stringer -type=MType
//go:generate stringer -type=Major

package lorawan

// MType represents the message type.
type MType byte

// Supported message types (MType).
const (
	JoinRequest MType = iota
	JoinAccept
	UnconfirmedDataUp
	UnconfirmedDataDown
	ConfirmedDataUp
	ConfirmedDataDown
	RejoinRequest
	Proprietary
)

// MarshalText implements encoding.TextMarshaler.
func (m MType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Major defines the major version of the data message.
type Major byte

// Supported major versions.
const (
	LoRaWANR1 Major = 0
)

// MarshalText implements encoding.TextMarshaler.
func (m Major) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MHDR represents the MAC header.
type MHDR struct {
	MType MType `json:"mType"`
	Major Major `json:"major"`
}

// MarshalBinary marshals the object in binary form.
func (h MHDR) MarshalBinary() ([]byte, error) {
	return []byte{byte(h.Major)&0x03 | byte(h.MType)<<5}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (h *MHDR) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return parseError("mhdr", ErrTruncatedInput)
	}
	h.Major = Major(data[0] & 0x03)
	h.MType = MType(data[0] >> 5)
	return nil
}

// isUplink returns true when the message type is sent by the end-device.
// Proprietary frames can't be classified, these are handled as downlink.
func (h MHDR) isUplink() bool {
	switch h.MType {
	case JoinRequest, UnconfirmedDataUp, ConfirmedDataUp, RejoinRequest:
		return true
	default:
		return false
	}
}

// isDataFrame returns true for the four data message types.
func (h MHDR) isDataFrame() bool {
	switch h.MType {
	case UnconfirmedDataUp, UnconfirmedDataDown, ConfirmedDataUp, ConfirmedDataDown:
		return true
	default:
		return false
	}
}

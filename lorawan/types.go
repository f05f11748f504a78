package lorawan

import (
	"encoding/hex"
	"fmt"
)

// EUI64 data type.
type EUI64 [8]byte

// String implements fmt.Stringer.
func (e EUI64) String() string {
	return hex.EncodeToString(e[:])
}

// MarshalText implements encoding.TextMarshaler.
func (e EUI64) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EUI64) UnmarshalText(text []byte) error {
	return decodeHexInto(e[:], text)
}

// MarshalBinary encodes the EUI in the over-the-air (LSB first) form.
func (e EUI64) MarshalBinary() ([]byte, error) {
	return appendReversed(nil, e[:]), nil
}

// DevAddr represents the device address.
type DevAddr [4]byte

// NwkID returns the NwkID bits of the DevAddr (7 MSB).
func (a DevAddr) NwkID() byte {
	return a[0] >> 1
}

// String implements fmt.Stringer.
func (a DevAddr) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a DevAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *DevAddr) UnmarshalText(text []byte) error {
	return decodeHexInto(a[:], text)
}

// MarshalBinary encodes the DevAddr in the over-the-air (LSB first) form.
func (a DevAddr) MarshalBinary() ([]byte, error) {
	return appendReversed(nil, a[:]), nil
}

// NetID represents the NetID.
type NetID [3]byte

// String implements fmt.Stringer.
func (n NetID) String() string {
	return hex.EncodeToString(n[:])
}

// MarshalText implements encoding.TextMarshaler.
func (n NetID) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NetID) UnmarshalText(text []byte) error {
	return decodeHexInto(n[:], text)
}

// AES128Key represents a 128 bit AES key.
type AES128Key [16]byte

// String implements fmt.Stringer.
func (k AES128Key) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText implements encoding.TextMarshaler.
func (k AES128Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *AES128Key) UnmarshalText(text []byte) error {
	return decodeHexInto(k[:], text)
}

// MIC represents the message integrity code.
type MIC [4]byte

// String implements fmt.Stringer.
func (m MIC) String() string {
	return hex.EncodeToString(m[:])
}

// MarshalText implements encoding.TextMarshaler.
func (m MIC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// HEXBytes is a byte slice which is encoded as hex string in JSON and text.
type HEXBytes []byte

// String implements fmt.Stringer.
func (h HEXBytes) String() string {
	return hex.EncodeToString(h)
}

// MarshalText implements encoding.TextMarshaler.
func (h HEXBytes) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HEXBytes) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*h = b
	return nil
}

func decodeHexInto(dst []byte, text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("lorawan: exactly %d bytes are expected", len(dst))
	}
	copy(dst, b)
	return nil
}

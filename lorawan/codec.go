package lorawan

import "encoding/binary"

// reader is a bounds-checked cursor over a byte slice. Every read advances
// the cursor or fails with ErrTruncatedInput.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

// remaining returns the number of unread bytes.
func (r *reader) remaining() int {
	return len(r.b) - r.pos
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncatedInput
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

// readBytes returns a copy of the next n bytes.
func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncatedInput
	}
	out := make([]byte, n)
	copy(out, r.b[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// readRest returns a copy of all unread bytes.
func (r *reader) readRest() []byte {
	b, _ := r.readBytes(r.remaining())
	return b
}

func (r *reader) readUint16LE() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrTruncatedInput
	}
	v := binary.LittleEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) readUint24LE() (uint32, error) {
	if r.remaining() < 3 {
		return 0, ErrTruncatedInput
	}
	v := uint32(r.b[r.pos]) | uint32(r.b[r.pos+1])<<8 | uint32(r.b[r.pos+2])<<16
	r.pos += 3
	return v, nil
}

func (r *reader) readUint32LE() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncatedInput
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

// readReversed reads n bytes and returns them in reversed order. LoRaWAN
// transmits EUIs, DevAddr and NetID LSB first.
func (r *reader) readReversed(n int) ([]byte, error) {
	b, err := r.readBytes(n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b, nil
}

func (r *reader) readEUI64() (EUI64, error) {
	var e EUI64
	b, err := r.readReversed(len(e))
	if err != nil {
		return e, err
	}
	copy(e[:], b)
	return e, nil
}

func (r *reader) readDevAddr() (DevAddr, error) {
	var a DevAddr
	b, err := r.readReversed(len(a))
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

func (r *reader) readNetID() (NetID, error) {
	var n NetID
	b, err := r.readReversed(len(n))
	if err != nil {
		return n, err
	}
	copy(n[:], b)
	return n, nil
}

// appendReversed appends b in reversed order to out.
func appendReversed(out []byte, b []byte) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		out = append(out, b[i])
	}
	return out
}

func appendUint16LE(out []byte, v uint16) []byte {
	return append(out, byte(v), byte(v>>8))
}

func appendUint24LE(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16))
}

func appendUint32LE(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

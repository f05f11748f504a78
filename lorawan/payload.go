package lorawan

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
)

// Payload is the interface that every payload needs to implement. The
// FOpts and FRMPayload regions of a data frame hold one of *DataPayload,
// *PlaintextPayload or *MACCommandSet.
type Payload interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DataPayload holds the bytes of a region as they were received. For the
// FRMPayload these are still encrypted.
type DataPayload struct {
	Bytes HEXBytes `json:"bytes"`
}

// MarshalBinary marshals the object in binary form.
func (p DataPayload) MarshalBinary() ([]byte, error) {
	return p.Bytes, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DataPayload) UnmarshalBinary(data []byte) error {
	p.Bytes = make([]byte, len(data))
	copy(p.Bytes, data)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p DataPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string   `json:"type"`
		Bytes HEXBytes `json:"bytes"`
	}{"raw", p.Bytes})
}

// PlaintextPayload holds a decrypted (or already plaintext) FRMPayload.
type PlaintextPayload struct {
	Bytes HEXBytes `json:"bytes"`
}

// MarshalBinary marshals the object in binary form.
func (p PlaintextPayload) MarshalBinary() ([]byte, error) {
	return p.Bytes, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *PlaintextPayload) UnmarshalBinary(data []byte) error {
	p.Bytes = make([]byte, len(data))
	copy(p.Bytes, data)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p PlaintextPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string   `json:"type"`
		Bytes HEXBytes `json:"bytes"`
	}{"plaintext", p.Bytes})
}

// JoinRequestPayload represents the join-request message payload.
type JoinRequestPayload struct {
	JoinEUI  EUI64  `json:"joinEUI"`
	DevEUI   EUI64  `json:"devEUI"`
	DevNonce uint16 `json:"devNonce"`
}

// MarshalBinary marshals the object in binary form.
func (p JoinRequestPayload) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 18)
	out = appendReversed(out, p.JoinEUI[:])
	out = appendReversed(out, p.DevEUI[:])
	out = appendUint16LE(out, p.DevNonce)
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *JoinRequestPayload) UnmarshalBinary(data []byte) error {
	if len(data) > 18 {
		return ErrMalformedFrame
	}

	r := newReader(data)
	var err error
	if p.JoinEUI, err = r.readEUI64(); err != nil {
		return err
	}
	if p.DevEUI, err = r.readEUI64(); err != nil {
		return err
	}
	if p.DevNonce, err = r.readUint16LE(); err != nil {
		return err
	}
	return nil
}

// DLSettings represents the DLSettings fields (downlink settings).
type DLSettings struct {
	OptNeg      bool  `json:"optNeg"`
	RX2DataRate uint8 `json:"rx2DataRate"`
	RX1DROffset uint8 `json:"rx1DROffset"`
}

// MarshalBinary marshals the object in binary form.
func (s DLSettings) MarshalBinary() ([]byte, error) {
	if s.RX2DataRate > 15 {
		return nil, errors.New("lorawan: max value of RX2DataRate is 15")
	}
	if s.RX1DROffset > 7 {
		return nil, errors.New("lorawan: max value of RX1DROffset is 7")
	}
	b := s.RX2DataRate | s.RX1DROffset<<4
	if s.OptNeg {
		b |= 1 << 7
	}
	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (s *DLSettings) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return lengthError(len(data), 1)
	}
	s.RX2DataRate = data[0] & 0x0f
	s.RX1DROffset = (data[0] >> 4) & 0x07
	s.OptNeg = data[0]&(1<<7) != 0
	return nil
}

// CFListType defines the CFList payload type.
type CFListType uint8

// Possible CFList types.
const (
	CFListChannel     CFListType = 0
	CFListChannelMask CFListType = 1
)

// CFList represents the optional list of channel frequencies (type 0) or
// channel-masks (type 1) of a join-accept.
type CFList struct {
	CFListType  CFListType `json:"cfListType"`
	Frequencies []uint32   `json:"frequencies,omitempty"`
	ChMasks     HEXBytes   `json:"chMasks,omitempty"`
}

// MarshalBinary marshals the object in binary form.
func (l CFList) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 16)
	switch l.CFListType {
	case CFListChannel:
		if len(l.Frequencies) > 5 {
			return nil, errors.New("lorawan: max number of CFList frequencies is 5")
		}
		for _, f := range l.Frequencies {
			if f%100 != 0 {
				return nil, errors.New("lorawan: frequency must be a multiple of 100")
			}
			out = appendUint24LE(out, f/100)
		}
	case CFListChannelMask:
		if len(l.ChMasks) > 15 {
			return nil, errors.New("lorawan: max length of CFList channel-masks is 15 bytes")
		}
		out = append(out, l.ChMasks...)
	default:
		return nil, fmt.Errorf("lorawan: unknown CFList type %d", l.CFListType)
	}
	for len(out) < 15 {
		out = append(out, 0)
	}
	return append(out, byte(l.CFListType)), nil
}

// UnmarshalBinary decodes the object from binary form.
func (l *CFList) UnmarshalBinary(data []byte) error {
	if len(data) != 16 {
		return ErrMalformedJoinAccept
	}
	l.CFListType = CFListType(data[15])
	l.Frequencies = nil
	l.ChMasks = nil

	switch l.CFListType {
	case CFListChannel:
		r := newReader(data[:15])
		for i := 0; i < 5; i++ {
			f, err := r.readUint24LE()
			if err != nil {
				return err
			}
			if f == 0 {
				continue
			}
			l.Frequencies = append(l.Frequencies, f*100)
		}
	case CFListChannelMask:
		l.ChMasks = append(HEXBytes{}, data[:15]...)
	default:
		return ErrMalformedJoinAccept
	}
	return nil
}

// JoinAcceptPayload represents the (decrypted) join-accept message payload.
type JoinAcceptPayload struct {
	JoinNonce  uint32     `json:"joinNonce"`
	HomeNetID  NetID      `json:"homeNetID"`
	DevAddr    DevAddr    `json:"devAddr"`
	DLSettings DLSettings `json:"dlSettings"`
	RXDelay    uint8      `json:"rxDelay"`
	CFList     *CFList    `json:"cFlist"`
}

// MarshalBinary marshals the object in binary form.
func (p JoinAcceptPayload) MarshalBinary() ([]byte, error) {
	if p.JoinNonce >= 1<<24 {
		return nil, errors.New("lorawan: max value of JoinNonce is 2^24 - 1")
	}

	out := make([]byte, 0, 28)
	out = appendUint24LE(out, p.JoinNonce)
	out = appendReversed(out, p.HomeNetID[:])
	out = appendReversed(out, p.DevAddr[:])

	b, err := p.DLSettings.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)
	out = append(out, p.RXDelay)

	if p.CFList != nil {
		b, err = p.CFList.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}

	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *JoinAcceptPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 12 && len(data) != 28 {
		return ErrMalformedJoinAccept
	}

	r := newReader(data)
	p.JoinNonce, _ = r.readUint24LE()
	p.HomeNetID, _ = r.readNetID()
	p.DevAddr, _ = r.readDevAddr()
	dl, _ := r.readByte()
	if err := p.DLSettings.UnmarshalBinary([]byte{dl}); err != nil {
		return err
	}
	p.RXDelay, _ = r.readByte()

	p.CFList = nil
	if r.remaining() == 16 {
		p.CFList = &CFList{}
		if err := p.CFList.UnmarshalBinary(r.readRest()); err != nil {
			return err
		}
	}

	return nil
}

// RejoinType defines the rejoin-request type.
type RejoinType uint8

// Available rejoin types.
const (
	RejoinRequestType0 RejoinType = 0
	RejoinRequestType1 RejoinType = 1
	RejoinRequestType2 RejoinType = 2
)

// RejoinRequestType02Payload implements the rejoin-request payload for
// rejoin types 0 and 2.
type RejoinRequestType02Payload struct {
	RejoinType RejoinType `json:"rejoinType"`
	NetID      NetID      `json:"netID"`
	DevEUI     EUI64      `json:"devEUI"`
	RJCount0   uint16     `json:"rjCount0"`
}

// MarshalBinary marshals the object in binary form.
func (p RejoinRequestType02Payload) MarshalBinary() ([]byte, error) {
	if p.RejoinType != RejoinRequestType0 && p.RejoinType != RejoinRequestType2 {
		return nil, errors.New("lorawan: RejoinType must be 0 or 2")
	}
	out := make([]byte, 0, 14)
	out = append(out, byte(p.RejoinType))
	out = appendReversed(out, p.NetID[:])
	out = appendReversed(out, p.DevEUI[:])
	out = appendUint16LE(out, p.RJCount0)
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RejoinRequestType02Payload) UnmarshalBinary(data []byte) error {
	if len(data) != 14 {
		return lengthError(len(data), 14)
	}
	r := newReader(data)
	t, _ := r.readByte()
	p.RejoinType = RejoinType(t)
	p.NetID, _ = r.readNetID()
	p.DevEUI, _ = r.readEUI64()
	p.RJCount0, _ = r.readUint16LE()
	return nil
}

// RejoinRequestType1Payload implements the rejoin-request payload for
// rejoin type 1.
type RejoinRequestType1Payload struct {
	RejoinType RejoinType `json:"rejoinType"`
	JoinEUI    EUI64      `json:"joinEUI"`
	DevEUI     EUI64      `json:"devEUI"`
	RJCount1   uint16     `json:"rjCount1"`
}

// MarshalBinary marshals the object in binary form.
func (p RejoinRequestType1Payload) MarshalBinary() ([]byte, error) {
	if p.RejoinType != RejoinRequestType1 {
		return nil, errors.New("lorawan: RejoinType must be 1")
	}
	out := make([]byte, 0, 19)
	out = append(out, byte(p.RejoinType))
	out = appendReversed(out, p.JoinEUI[:])
	out = appendReversed(out, p.DevEUI[:])
	out = appendUint16LE(out, p.RJCount1)
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RejoinRequestType1Payload) UnmarshalBinary(data []byte) error {
	if len(data) != 19 {
		return lengthError(len(data), 19)
	}
	r := newReader(data)
	t, _ := r.readByte()
	p.RejoinType = RejoinType(t)
	p.JoinEUI, _ = r.readEUI64()
	p.DevEUI, _ = r.readEUI64()
	p.RJCount1, _ = r.readUint16LE()
	return nil
}

// lengthError classifies a fixed-size body of the wrong length.
func lengthError(got, want int) error {
	if got < want {
		return ErrTruncatedInput
	}
	return ErrMalformedFrame
}

package lorawan

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// PHYPayload represents the physical payload.
//
// MACPayload holds *MACPayload for the data message types,
// *JoinRequestPayload for join-requests, *RejoinRequestType02Payload or
// *RejoinRequestType1Payload for rejoin-requests and *DataPayload for
// (still encrypted) join-accepts and proprietary frames.
type PHYPayload struct {
	MHDR       MHDR    `json:"mhdr"`
	MACPayload Payload `json:"macPayload"`
	MIC        MIC     `json:"mic"`
}

// Parse decodes the given bytes into a PHYPayload. The FOpts and
// FRMPayload regions are left as *DataPayload. On error a *ParseError is
// returned and no PHYPayload.
func Parse(b []byte) (*PHYPayload, error) {
	var p PHYPayload
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseText decodes the hex or base64 encoded PHYPayload.
func ParseText(text string) (*PHYPayload, error) {
	b, err := hex.DecodeString(text)
	if err != nil {
		b, err = base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, errors.New("lorawan: payload must be hex or base64 encoded")
		}
	}
	return Parse(b)
}

// IsUplink returns true when the PHYPayload is sent by the end-device.
func (p PHYPayload) IsUplink() bool {
	return p.MHDR.isUplink()
}

// MarshalBinary marshals the object in binary form.
func (p PHYPayload) MarshalBinary() ([]byte, error) {
	if p.MACPayload == nil {
		return nil, errors.New("lorawan: MACPayload should not be empty")
	}

	out, err := p.MHDR.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var b []byte
	if mac, ok := p.MACPayload.(*MACPayload); ok {
		b, err = mac.marshal(p.IsUplink())
	} else {
		b, err = p.MACPayload.MarshalBinary()
	}
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	return append(out, p.MIC[:]...), nil
}

// UnmarshalBinary decodes the object from binary form. Every byte of data
// must be accounted for. On error p is left in an undefined state, use
// Parse to avoid exposing it.
func (p *PHYPayload) UnmarshalBinary(data []byte) error {
	if len(data) < 5 {
		return parseError("phypayload", ErrTruncatedInput)
	}

	if err := p.MHDR.UnmarshalBinary(data[0:1]); err != nil {
		return err
	}
	if p.MHDR.Major != LoRaWANR1 {
		return parseError("mhdr", ErrUnsupportedVersion)
	}

	body := data[1 : len(data)-4]

	switch p.MHDR.MType {
	case JoinRequest:
		pl := &JoinRequestPayload{}
		if err := pl.UnmarshalBinary(body); err != nil {
			return parseError("join_request", err)
		}
		p.MACPayload = pl
	case JoinAccept:
		if len(body) != 12 && len(body) != 28 {
			return parseError("join_accept", ErrMalformedJoinAccept)
		}
		pl := &DataPayload{}
		if err := pl.UnmarshalBinary(body); err != nil {
			return parseError("join_accept", err)
		}
		p.MACPayload = pl
	case RejoinRequest:
		pl, err := unmarshalRejoinRequest(body)
		if err != nil {
			return parseError("rejoin_request", err)
		}
		p.MACPayload = pl
	case Proprietary:
		pl := &DataPayload{}
		if err := pl.UnmarshalBinary(body); err != nil {
			return parseError("proprietary", err)
		}
		p.MACPayload = pl
	default:
		pl := &MACPayload{}
		if err := pl.unmarshal(body, p.IsUplink()); err != nil {
			return err
		}
		p.MACPayload = pl
	}

	copy(p.MIC[:], data[len(data)-4:])
	return nil
}

func unmarshalRejoinRequest(body []byte) (Payload, error) {
	if len(body) == 0 {
		return nil, ErrTruncatedInput
	}

	switch RejoinType(body[0]) {
	case RejoinRequestType0, RejoinRequestType2:
		pl := &RejoinRequestType02Payload{}
		if err := pl.UnmarshalBinary(body); err != nil {
			return nil, err
		}
		return pl, nil
	case RejoinRequestType1:
		pl := &RejoinRequestType1Payload{}
		if err := pl.UnmarshalBinary(body); err != nil {
			return nil, err
		}
		return pl, nil
	default:
		return nil, ErrMalformedFrame
	}
}

// macPayload returns the *MACPayload of a data frame.
func (p *PHYPayload) macPayload() (*MACPayload, error) {
	if !p.MHDR.isDataFrame() {
		return nil, ErrNotDataFrame
	}
	mac, ok := p.MACPayload.(*MACPayload)
	if !ok {
		return nil, ErrNotDataFrame
	}
	return mac, nil
}

// ValidateMIC validates the LoRaWAN 1.0 MIC of a data frame, using the
// FNwkSIntKey of the given session-keys and the frame-counter restored from
// the last seen frame-counter. The FOpts and FRMPayload must still be in the
// form as received.
func (p PHYPayload) ValidateMIC(keys SessionKeys) (bool, error) {
	mac, err := p.macPayload()
	if err != nil {
		return false, err
	}
	if !isRaw(mac.FHDR.FOpts) || !isRaw(mac.FRMPayload) {
		return false, errors.New("lorawan: the MIC can only be validated on a frame that is not decoded")
	}

	msg, err := p.MarshalBinary()
	if err != nil {
		return false, err
	}
	msg = msg[:len(msg)-len(p.MIC)]

	lastFCnt := keys.FCntUp
	if !p.IsUplink() {
		lastFCnt = keys.FCntDown
	}

	mic, err := computeMIC(keys.FNwkSIntKey, p.IsUplink(), mac.FHDR.DevAddr, GetFullFCnt(lastFCnt, mac.FHDR.FCnt), msg)
	if err != nil {
		return false, err
	}
	return mic == p.MIC, nil
}

// ValidateJoinRequestMIC validates the MIC of a join-request using the
// given root key (AppKey for LoRaWAN 1.0, NwkKey for LoRaWAN 1.1).
func (p PHYPayload) ValidateJoinRequestMIC(key AES128Key) (bool, error) {
	if _, ok := p.MACPayload.(*JoinRequestPayload); !ok || p.MHDR.MType != JoinRequest {
		return false, errors.New("lorawan: MACPayload should be of type *JoinRequestPayload")
	}

	msg, err := p.MarshalBinary()
	if err != nil {
		return false, err
	}
	msg = msg[:len(msg)-len(p.MIC)]

	mic, err := computeJoinRequestMIC(key, msg)
	if err != nil {
		return false, err
	}
	return mic == p.MIC, nil
}

// DecryptJoinAcceptPayload decrypts the join-accept payload with the given
// key (AppKey or NwkKey) and replaces the *DataPayload by a
// *JoinAcceptPayload. As the payload and MIC are encrypted together, the
// MIC is replaced with its decrypted value.
func (p *PHYPayload) DecryptJoinAcceptPayload(key AES128Key) error {
	if p.MHDR.MType != JoinAccept {
		return fmt.Errorf("lorawan: expected %s, got %s", JoinAccept, p.MHDR.MType)
	}
	dp, ok := p.MACPayload.(*DataPayload)
	if !ok {
		return errors.New("lorawan: MACPayload should be of type *DataPayload")
	}

	// the device uses aes decrypt to encrypt the join-accept
	b, err := ecbEncrypt(key, append(append([]byte{}, dp.Bytes...), p.MIC[:]...))
	if err != nil {
		return err
	}

	pl := &JoinAcceptPayload{}
	if err := pl.UnmarshalBinary(b[:len(b)-4]); err != nil {
		return err
	}

	p.MACPayload = pl
	copy(p.MIC[:], b[len(b)-4:])
	return nil
}

func isRaw(pl Payload) bool {
	if pl == nil {
		return true
	}
	_, ok := pl.(*DataPayload)
	return ok
}

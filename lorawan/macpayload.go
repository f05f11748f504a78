package lorawan

import "errors"

// MACPayload represents the MAC payload of the four data message types.
// FPort is nil when the frame carries no FPort and FRMPayload, in which case
// FRMPayload is nil as well.
type MACPayload struct {
	FHDR       FHDR    `json:"fhdr"`
	FPort      *uint8  `json:"fPort"`
	FRMPayload Payload `json:"frmPayload"`
}

func (p MACPayload) marshal(uplink bool) ([]byte, error) {
	if p.FPort == nil && p.FRMPayload != nil {
		return nil, errors.New("lorawan: FPort must be set when FRMPayload is set")
	}

	out, err := p.FHDR.marshal(uplink)
	if err != nil {
		return nil, err
	}

	if p.FPort == nil {
		return out, nil
	}
	if *p.FPort == 0 && len(out) > 7 {
		return nil, errors.New("lorawan: FPort must not be 0 when FOpts are set")
	}
	out = append(out, *p.FPort)

	if p.FRMPayload != nil {
		b, err := p.FRMPayload.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}

	return out, nil
}

// unmarshal decodes the MACPayload from data, which must exclude the MHDR
// and MIC bytes.
func (p *MACPayload) unmarshal(data []byte, uplink bool) error {
	r := newReader(data)
	if err := p.FHDR.unmarshal(r, uplink); err != nil {
		return err
	}

	p.FPort = nil
	p.FRMPayload = nil
	if r.remaining() == 0 {
		return nil
	}

	fPort, _ := r.readByte()
	if fPort == 0 && p.FHDR.FCtrl.FOptsLen > 0 {
		return parseError("fport", ErrMalformedFrame)
	}
	p.FPort = &fPort

	if r.remaining() > 0 {
		p.FRMPayload = &DataPayload{Bytes: r.readRest()}
	}

	return nil
}

// MarshalBinary marshals the object in binary form, using the uplink
// interpretation of FCtrl bit 4. Use PHYPayload.MarshalBinary to take the
// direction from the MHDR.
func (p MACPayload) MarshalBinary() ([]byte, error) {
	return p.marshal(true)
}

// UnmarshalBinary decodes the object from binary form, using the uplink
// interpretation of FCtrl bit 4.
func (p *MACPayload) UnmarshalBinary(data []byte) error {
	return p.unmarshal(data, true)
}

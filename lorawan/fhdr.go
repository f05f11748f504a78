package lorawan

import "errors"

// FCtrl represents the FCtrl (frame control) field. Bit 4 is FPending for
// downlink frames and ClassB for uplink frames.
type FCtrl struct {
	ADR       bool  `json:"adr"`
	ADRACKReq bool  `json:"adrAckReq"`
	ACK       bool  `json:"ack"`
	FPending  bool  `json:"fPending"`
	ClassB    bool  `json:"classB"`
	FOptsLen  uint8 `json:"fOptsLen"`
}

func (c FCtrl) marshal(fOptsLen int, uplink bool) (byte, error) {
	if fOptsLen > 15 {
		return 0, errors.New("lorawan: max value of FOptsLen is 15")
	}
	b := byte(fOptsLen)
	if (uplink && c.ClassB) || (!uplink && c.FPending) {
		b |= 1 << 4
	}
	if c.ACK {
		b |= 1 << 5
	}
	if c.ADRACKReq {
		b |= 1 << 6
	}
	if c.ADR {
		b |= 1 << 7
	}
	return b, nil
}

func (c *FCtrl) unmarshal(b byte, uplink bool) {
	c.FOptsLen = b & 0x0f
	c.ADR = b&(1<<7) != 0
	c.ADRACKReq = b&(1<<6) != 0
	c.ACK = b&(1<<5) != 0
	if uplink {
		c.ClassB = b&(1<<4) != 0
	} else {
		c.FPending = b&(1<<4) != 0
	}
}

// FHDR represents the frame header.
type FHDR struct {
	DevAddr DevAddr `json:"devAddr"`
	FCtrl   FCtrl   `json:"fCtrl"`
	FCnt    uint16  `json:"fCnt"`
	FOpts   Payload `json:"fOpts"`
}

// marshal encodes the FHDR. FOptsLen is derived from the encoded FOpts.
func (h FHDR) marshal(uplink bool) ([]byte, error) {
	var fOpts []byte
	if h.FOpts != nil {
		b, err := h.FOpts.MarshalBinary()
		if err != nil {
			return nil, err
		}
		fOpts = b
	}

	fCtrl, err := h.FCtrl.marshal(len(fOpts), uplink)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 7+len(fOpts))
	out = appendReversed(out, h.DevAddr[:])
	out = append(out, fCtrl)
	out = appendUint16LE(out, h.FCnt)
	return append(out, fOpts...), nil
}

// unmarshal decodes the FHDR from the given reader. The FOpts are kept
// as *DataPayload.
func (h *FHDR) unmarshal(r *reader, uplink bool) error {
	if r.remaining() < 7 {
		return parseError("fhdr", ErrTruncatedInput)
	}

	h.DevAddr, _ = r.readDevAddr()
	fCtrl, _ := r.readByte()
	h.FCtrl.unmarshal(fCtrl, uplink)
	h.FCnt, _ = r.readUint16LE()

	h.FOpts = nil
	if h.FCtrl.FOptsLen > 0 {
		b, err := r.readBytes(int(h.FCtrl.FOptsLen))
		if err != nil {
			return parseError("fopts", err)
		}
		h.FOpts = &DataPayload{Bytes: b}
	}

	return nil
}

package lorawan

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CID defines the MAC command identifier. The same value identifies a
// different command in uplink and downlink direction.
type CID byte

// MAC commands as specified by the LoRaWAN 1.0.x, 1.1 and Class-B
// specifications.
const (
	ResetInd            CID = 0x01
	ResetConf           CID = 0x01
	LinkCheckReq        CID = 0x02
	LinkCheckAns        CID = 0x02
	LinkADRReq          CID = 0x03
	LinkADRAns          CID = 0x03
	DutyCycleReq        CID = 0x04
	DutyCycleAns        CID = 0x04
	RXParamSetupReq     CID = 0x05
	RXParamSetupAns     CID = 0x05
	DevStatusReq        CID = 0x06
	DevStatusAns        CID = 0x06
	NewChannelReq       CID = 0x07
	NewChannelAns       CID = 0x07
	RXTimingSetupReq    CID = 0x08
	RXTimingSetupAns    CID = 0x08
	TXParamSetupReq     CID = 0x09
	TXParamSetupAns     CID = 0x09
	DLChannelReq        CID = 0x0A
	DLChannelAns        CID = 0x0A
	RekeyInd            CID = 0x0B
	RekeyConf           CID = 0x0B
	ADRParamSetupReq    CID = 0x0C
	ADRParamSetupAns    CID = 0x0C
	DeviceTimeReq       CID = 0x0D
	DeviceTimeAns       CID = 0x0D
	ForceRejoinReq      CID = 0x0E
	RejoinParamSetupReq CID = 0x0F
	RejoinParamSetupAns CID = 0x0F
	PingSlotInfoReq     CID = 0x10
	PingSlotInfoAns     CID = 0x10
	PingSlotChannelReq  CID = 0x11
	PingSlotChannelAns  CID = 0x11
	BeaconTimingReq     CID = 0x12
	BeaconTimingAns     CID = 0x12
	BeaconFreqReq       CID = 0x13
	BeaconFreqAns       CID = 0x13
	DeviceModeInd       CID = 0x20
	DeviceModeConf      CID = 0x20
)

// MACCommandPayload is the interface that every MAC command payload
// must implement.
type MACCommandPayload interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

type macPayloadInfo struct {
	name    string
	size    int
	payload func() MACCommandPayload
}

// macPayloadRegistry contains the info for the MAC commands, keyed by
// direction (true = uplink) and CID. Commands without body have a nil
// payload constructor.
var macPayloadRegistry = map[bool]map[CID]macPayloadInfo{
	false: {
		ResetConf:           {"ResetConf", 1, func() MACCommandPayload { return &ResetConfPayload{} }},
		LinkCheckAns:        {"LinkCheckAns", 2, func() MACCommandPayload { return &LinkCheckAnsPayload{} }},
		LinkADRReq:          {"LinkADRReq", 4, func() MACCommandPayload { return &LinkADRReqPayload{} }},
		DutyCycleReq:        {"DutyCycleReq", 1, func() MACCommandPayload { return &DutyCycleReqPayload{} }},
		RXParamSetupReq:     {"RXParamSetupReq", 4, func() MACCommandPayload { return &RXParamSetupReqPayload{} }},
		DevStatusReq:        {"DevStatusReq", 0, nil},
		NewChannelReq:       {"NewChannelReq", 5, func() MACCommandPayload { return &NewChannelReqPayload{} }},
		RXTimingSetupReq:    {"RXTimingSetupReq", 1, func() MACCommandPayload { return &RXTimingSetupReqPayload{} }},
		TXParamSetupReq:     {"TXParamSetupReq", 1, func() MACCommandPayload { return &TXParamSetupReqPayload{} }},
		DLChannelReq:        {"DLChannelReq", 4, func() MACCommandPayload { return &DLChannelReqPayload{} }},
		RekeyConf:           {"RekeyConf", 1, func() MACCommandPayload { return &RekeyConfPayload{} }},
		ADRParamSetupReq:    {"ADRParamSetupReq", 1, func() MACCommandPayload { return &ADRParamSetupReqPayload{} }},
		DeviceTimeAns:       {"DeviceTimeAns", 5, func() MACCommandPayload { return &DeviceTimeAnsPayload{} }},
		ForceRejoinReq:      {"ForceRejoinReq", 2, func() MACCommandPayload { return &ForceRejoinReqPayload{} }},
		RejoinParamSetupReq: {"RejoinParamSetupReq", 1, func() MACCommandPayload { return &RejoinParamSetupReqPayload{} }},
		PingSlotInfoAns:     {"PingSlotInfoAns", 0, nil},
		PingSlotChannelReq:  {"PingSlotChannelReq", 4, func() MACCommandPayload { return &PingSlotChannelReqPayload{} }},
		BeaconTimingAns:     {"BeaconTimingAns", 3, func() MACCommandPayload { return &BeaconTimingAnsPayload{} }},
		BeaconFreqReq:       {"BeaconFreqReq", 3, func() MACCommandPayload { return &BeaconFreqReqPayload{} }},
		DeviceModeConf:      {"DeviceModeConf", 1, func() MACCommandPayload { return &DeviceModeConfPayload{} }},
	},
	true: {
		ResetInd:            {"ResetInd", 1, func() MACCommandPayload { return &ResetIndPayload{} }},
		LinkCheckReq:        {"LinkCheckReq", 0, nil},
		LinkADRAns:          {"LinkADRAns", 1, func() MACCommandPayload { return &LinkADRAnsPayload{} }},
		DutyCycleAns:        {"DutyCycleAns", 0, nil},
		RXParamSetupAns:     {"RXParamSetupAns", 1, func() MACCommandPayload { return &RXParamSetupAnsPayload{} }},
		DevStatusAns:        {"DevStatusAns", 2, func() MACCommandPayload { return &DevStatusAnsPayload{} }},
		NewChannelAns:       {"NewChannelAns", 1, func() MACCommandPayload { return &NewChannelAnsPayload{} }},
		RXTimingSetupAns:    {"RXTimingSetupAns", 0, nil},
		TXParamSetupAns:     {"TXParamSetupAns", 0, nil},
		DLChannelAns:        {"DLChannelAns", 1, func() MACCommandPayload { return &DLChannelAnsPayload{} }},
		RekeyInd:            {"RekeyInd", 1, func() MACCommandPayload { return &RekeyIndPayload{} }},
		ADRParamSetupAns:    {"ADRParamSetupAns", 0, nil},
		DeviceTimeReq:       {"DeviceTimeReq", 0, nil},
		RejoinParamSetupAns: {"RejoinParamSetupAns", 1, func() MACCommandPayload { return &RejoinParamSetupAnsPayload{} }},
		PingSlotInfoReq:     {"PingSlotInfoReq", 1, func() MACCommandPayload { return &PingSlotInfoReqPayload{} }},
		PingSlotChannelAns:  {"PingSlotChannelAns", 1, func() MACCommandPayload { return &PingSlotChannelAnsPayload{} }},
		BeaconTimingReq:     {"BeaconTimingReq", 0, nil},
		BeaconFreqAns:       {"BeaconFreqAns", 1, func() MACCommandPayload { return &BeaconFreqAnsPayload{} }},
		DeviceModeInd:       {"DeviceModeInd", 1, func() MACCommandPayload { return &DeviceModeIndPayload{} }},
	},
}

// GetMACPayloadAndSize returns a new MACCommandPayload instance and the
// body size of the given CID. The payload is nil for commands without body.
func GetMACPayloadAndSize(uplink bool, c CID) (MACCommandPayload, int, error) {
	v, ok := macPayloadRegistry[uplink][c]
	if !ok {
		return nil, 0, ErrUnknownMACCommand
	}
	if v.payload == nil {
		return nil, v.size, nil
	}
	return v.payload(), v.size, nil
}

// MACCommandName returns the name of the MAC command for the given
// direction, or an empty string when the CID is unknown.
func MACCommandName(uplink bool, c CID) string {
	return macPayloadRegistry[uplink][c].name
}

// MACCommand represents a MAC command with optional payload.
type MACCommand struct {
	CID     CID
	Payload MACCommandPayload
}

func (m MACCommand) marshal(uplink bool) ([]byte, error) {
	_, size, err := GetMACPayloadAndSize(uplink, m.CID)
	if err != nil {
		return nil, &MACCommandError{CID: m.CID, Err: err}
	}

	out := []byte{byte(m.CID)}
	if m.Payload != nil {
		b, err := m.Payload.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	if len(out)-1 != size {
		return nil, fmt.Errorf("lorawan: payload of %s must be %d bytes", MACCommandName(uplink, m.CID), size)
	}
	return out, nil
}

// MACCommandSet is a decoded sequence of MAC commands. It is either the
// content of the FOpts field or the content of the FRMPayload (FPort 0).
type MACCommandSet struct {
	Uplink   bool
	Commands []MACCommand
}

// MarshalBinary marshals the object in binary form.
func (s MACCommandSet) MarshalBinary() ([]byte, error) {
	var out []byte
	for _, cmd := range s.Commands {
		b, err := cmd.marshal(s.Uplink)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// UnmarshalBinary decodes the object from binary form, using the Uplink
// field to select the command table. On error the set is left unchanged.
func (s *MACCommandSet) UnmarshalBinary(data []byte) error {
	out, err := DecodeMACCommands(s.Uplink, data)
	if err != nil {
		return err
	}
	s.Commands = out.Commands
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s MACCommandSet) MarshalJSON() ([]byte, error) {
	type command struct {
		CID     string            `json:"cid"`
		Payload MACCommandPayload `json:"payload"`
	}
	out := struct {
		Type     string    `json:"type"`
		Commands []command `json:"commands"`
	}{Type: "macCommands", Commands: make([]command, 0, len(s.Commands))}

	for _, cmd := range s.Commands {
		name := MACCommandName(s.Uplink, cmd.CID)
		if name == "" {
			name = fmt.Sprintf("0x%02x", byte(cmd.CID))
		}
		out.Commands = append(out.Commands, command{CID: name, Payload: cmd.Payload})
	}
	return json.Marshal(out)
}

// DecodeMACCommands decodes the given bytes into a sequence of MAC commands.
// The uplink flag selects the command table. Decoding stops at the first
// unknown CID (ErrUnknownMACCommand) or at a command body that is shorter
// than its fixed size (ErrTruncatedMACCommand), in both cases no partial
// result is returned.
func DecodeMACCommands(uplink bool, data []byte) (*MACCommandSet, error) {
	set := MACCommandSet{Uplink: uplink}
	r := newReader(data)

	for r.remaining() > 0 {
		offset := r.pos
		b, _ := r.readByte()
		cid := CID(b)

		payload, size, err := GetMACPayloadAndSize(uplink, cid)
		if err != nil {
			return nil, &MACCommandError{Offset: offset, CID: cid, Err: err}
		}

		body, err := r.readBytes(size)
		if err != nil {
			return nil, &MACCommandError{Offset: offset, CID: cid, Err: ErrTruncatedMACCommand}
		}

		if payload != nil {
			if err := payload.UnmarshalBinary(body); err != nil {
				return nil, &MACCommandError{Offset: offset, CID: cid, Err: err}
			}
		}

		set.Commands = append(set.Commands, MACCommand{CID: cid, Payload: payload})
	}

	return &set, nil
}

// Version represents the LoRaWAN minor version as exchanged by the ResetInd
// and RekeyInd commands.
type Version struct {
	Minor uint8 `json:"minor"`
}

func (v Version) marshal() ([]byte, error) {
	if v.Minor > 15 {
		return nil, errors.New("lorawan: max value of Minor is 15")
	}
	return []byte{v.Minor}, nil
}

func (v *Version) unmarshal(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	v.Minor = data[0] & 0x0f
	return nil
}

// ResetIndPayload represents the ResetInd payload.
type ResetIndPayload struct {
	DevLoRaWANVersion Version `json:"devLoRaWANVersion"`
}

// MarshalBinary marshals the object in binary form.
func (p ResetIndPayload) MarshalBinary() ([]byte, error) {
	return p.DevLoRaWANVersion.marshal()
}

// UnmarshalBinary decodes the object from binary form.
func (p *ResetIndPayload) UnmarshalBinary(data []byte) error {
	return p.DevLoRaWANVersion.unmarshal(data)
}

// ResetConfPayload represents the ResetConf payload.
type ResetConfPayload struct {
	ServLoRaWANVersion Version `json:"servLoRaWANVersion"`
}

// MarshalBinary marshals the object in binary form.
func (p ResetConfPayload) MarshalBinary() ([]byte, error) {
	return p.ServLoRaWANVersion.marshal()
}

// UnmarshalBinary decodes the object from binary form.
func (p *ResetConfPayload) UnmarshalBinary(data []byte) error {
	return p.ServLoRaWANVersion.unmarshal(data)
}

// RekeyIndPayload represents the RekeyInd payload.
type RekeyIndPayload struct {
	DevLoRaWANVersion Version `json:"devLoRaWANVersion"`
}

// MarshalBinary marshals the object in binary form.
func (p RekeyIndPayload) MarshalBinary() ([]byte, error) {
	return p.DevLoRaWANVersion.marshal()
}

// UnmarshalBinary decodes the object from binary form.
func (p *RekeyIndPayload) UnmarshalBinary(data []byte) error {
	return p.DevLoRaWANVersion.unmarshal(data)
}

// RekeyConfPayload represents the RekeyConf payload.
type RekeyConfPayload struct {
	ServLoRaWANVersion Version `json:"servLoRaWANVersion"`
}

// MarshalBinary marshals the object in binary form.
func (p RekeyConfPayload) MarshalBinary() ([]byte, error) {
	return p.ServLoRaWANVersion.marshal()
}

// UnmarshalBinary decodes the object from binary form.
func (p *RekeyConfPayload) UnmarshalBinary(data []byte) error {
	return p.ServLoRaWANVersion.unmarshal(data)
}

// LinkCheckAnsPayload represents the LinkCheckAns payload.
type LinkCheckAnsPayload struct {
	Margin uint8 `json:"margin"`
	GwCnt  uint8 `json:"gwCnt"`
}

// MarshalBinary marshals the object in binary form.
func (p LinkCheckAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{p.Margin, p.GwCnt}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *LinkCheckAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return ErrTruncatedMACCommand
	}
	p.Margin = data[0]
	p.GwCnt = data[1]
	return nil
}

// ChMask encodes the channels usable for uplink access. 0 = channel 1,
// 15 = channel 16.
type ChMask [16]bool

// MarshalBinary marshals the object in binary form.
func (m ChMask) MarshalBinary() ([]byte, error) {
	var v uint16
	for i, set := range m {
		if set {
			v |= 1 << uint(i)
		}
	}
	return appendUint16LE(nil, v), nil
}

// UnmarshalBinary decodes the object from binary form.
func (m *ChMask) UnmarshalBinary(data []byte) error {
	r := newReader(data)
	v, err := r.readUint16LE()
	if err != nil || r.remaining() != 0 {
		return ErrTruncatedMACCommand
	}
	for i := range m {
		m[i] = v&(1<<uint(i)) != 0
	}
	return nil
}

// Redundancy represents the redundancy field of the LinkADRReq.
type Redundancy struct {
	ChMaskCntl uint8 `json:"chMaskCntl"`
	NbRep      uint8 `json:"nbRep"`
}

// LinkADRReqPayload represents the LinkADRReq payload.
type LinkADRReqPayload struct {
	DataRate   uint8      `json:"dataRate"`
	TXPower    uint8      `json:"txPower"`
	ChMask     ChMask     `json:"chMask"`
	Redundancy Redundancy `json:"redundancy"`
}

// MarshalBinary marshals the object in binary form.
func (p LinkADRReqPayload) MarshalBinary() ([]byte, error) {
	if p.DataRate > 15 {
		return nil, errors.New("lorawan: max value of DataRate is 15")
	}
	if p.TXPower > 15 {
		return nil, errors.New("lorawan: max value of TXPower is 15")
	}
	if p.Redundancy.ChMaskCntl > 7 {
		return nil, errors.New("lorawan: max value of ChMaskCntl is 7")
	}
	if p.Redundancy.NbRep > 15 {
		return nil, errors.New("lorawan: max value of NbRep is 15")
	}

	out := []byte{p.DataRate<<4 | p.TXPower}
	b, err := p.ChMask.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)
	return append(out, p.Redundancy.ChMaskCntl<<4|p.Redundancy.NbRep), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *LinkADRReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return ErrTruncatedMACCommand
	}
	p.DataRate = data[0] >> 4
	p.TXPower = data[0] & 0x0f
	if err := p.ChMask.UnmarshalBinary(data[1:3]); err != nil {
		return err
	}
	p.Redundancy.ChMaskCntl = (data[3] >> 4) & 0x07
	p.Redundancy.NbRep = data[3] & 0x0f
	return nil
}

// LinkADRAnsPayload represents the LinkADRAns payload.
type LinkADRAnsPayload struct {
	ChannelMaskACK bool `json:"channelMaskAck"`
	DataRateACK    bool `json:"dataRateAck"`
	PowerACK       bool `json:"powerAck"`
}

// MarshalBinary marshals the object in binary form.
func (p LinkADRAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{bits(p.ChannelMaskACK, p.DataRateACK, p.PowerACK)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *LinkADRAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.ChannelMaskACK = data[0]&(1<<0) != 0
	p.DataRateACK = data[0]&(1<<1) != 0
	p.PowerACK = data[0]&(1<<2) != 0
	return nil
}

// DutyCycleReqPayload represents the DutyCycleReq payload.
type DutyCycleReqPayload struct {
	MaxDCycle uint8 `json:"maxDCycle"`
}

// MarshalBinary marshals the object in binary form.
func (p DutyCycleReqPayload) MarshalBinary() ([]byte, error) {
	if p.MaxDCycle > 15 && p.MaxDCycle < 255 {
		return nil, errors.New("lorawan: only a MaxDCycle value of 0 - 15 and 255 is allowed")
	}
	return []byte{p.MaxDCycle}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DutyCycleReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.MaxDCycle = data[0]
	return nil
}

// RXParamSetupReqPayload represents the RXParamSetupReq payload.
type RXParamSetupReqPayload struct {
	Frequency  uint32     `json:"frequency"`
	DLSettings DLSettings `json:"dlSettings"`
}

// MarshalBinary marshals the object in binary form.
func (p RXParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	b, err := p.DLSettings.MarshalBinary()
	if err != nil {
		return nil, err
	}
	f, err := marshalFrequency(p.Frequency)
	if err != nil {
		return nil, err
	}
	return append(b, f...), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RXParamSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return ErrTruncatedMACCommand
	}
	if err := p.DLSettings.UnmarshalBinary(data[0:1]); err != nil {
		return err
	}
	p.Frequency = unmarshalFrequency(data[1:4])
	return nil
}

// RXParamSetupAnsPayload represents the RXParamSetupAns payload.
type RXParamSetupAnsPayload struct {
	ChannelACK     bool `json:"channelAck"`
	RX2DataRateACK bool `json:"rx2DataRateAck"`
	RX1DROffsetACK bool `json:"rx1DROffsetAck"`
}

// MarshalBinary marshals the object in binary form.
func (p RXParamSetupAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{bits(p.ChannelACK, p.RX2DataRateACK, p.RX1DROffsetACK)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RXParamSetupAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.ChannelACK = data[0]&(1<<0) != 0
	p.RX2DataRateACK = data[0]&(1<<1) != 0
	p.RX1DROffsetACK = data[0]&(1<<2) != 0
	return nil
}

// DevStatusAnsPayload represents the DevStatusAns payload. Margin is the
// demodulation SNR in dB (-32..31).
type DevStatusAnsPayload struct {
	Battery uint8 `json:"battery"`
	Margin  int8  `json:"margin"`
}

// MarshalBinary marshals the object in binary form.
func (p DevStatusAnsPayload) MarshalBinary() ([]byte, error) {
	if p.Margin < -32 || p.Margin > 31 {
		return nil, errors.New("lorawan: Margin must be in range -32 - 31")
	}
	return []byte{p.Battery, byte(p.Margin) & 0x3f}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DevStatusAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return ErrTruncatedMACCommand
	}
	p.Battery = data[0]
	// 6 bit two's complement
	m := data[1] & 0x3f
	if m&0x20 != 0 {
		p.Margin = int8(m) - 64
	} else {
		p.Margin = int8(m)
	}
	return nil
}

// NewChannelReqPayload represents the NewChannelReq payload.
type NewChannelReqPayload struct {
	ChIndex uint8  `json:"chIndex"`
	Freq    uint32 `json:"freq"`
	MaxDR   uint8  `json:"maxDR"`
	MinDR   uint8  `json:"minDR"`
}

// MarshalBinary marshals the object in binary form.
func (p NewChannelReqPayload) MarshalBinary() ([]byte, error) {
	if p.MaxDR > 15 || p.MinDR > 15 {
		return nil, errors.New("lorawan: max value of MaxDR and MinDR is 15")
	}
	out := []byte{p.ChIndex}
	f, err := marshalFrequency(p.Freq)
	if err != nil {
		return nil, err
	}
	out = append(out, f...)
	return append(out, p.MaxDR<<4|p.MinDR), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *NewChannelReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 5 {
		return ErrTruncatedMACCommand
	}
	p.ChIndex = data[0]
	p.Freq = unmarshalFrequency(data[1:4])
	p.MaxDR = data[4] >> 4
	p.MinDR = data[4] & 0x0f
	return nil
}

// NewChannelAnsPayload represents the NewChannelAns payload.
type NewChannelAnsPayload struct {
	ChannelFrequencyOK bool `json:"channelFrequencyOK"`
	DataRateRangeOK    bool `json:"dataRateRangeOK"`
}

// MarshalBinary marshals the object in binary form.
func (p NewChannelAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{bits(p.ChannelFrequencyOK, p.DataRateRangeOK)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *NewChannelAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.ChannelFrequencyOK = data[0]&(1<<0) != 0
	p.DataRateRangeOK = data[0]&(1<<1) != 0
	return nil
}

// RXTimingSetupReqPayload represents the RXTimingSetupReq payload.
type RXTimingSetupReqPayload struct {
	Delay uint8 `json:"delay"`
}

// MarshalBinary marshals the object in binary form.
func (p RXTimingSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.Delay > 15 {
		return nil, errors.New("lorawan: max value of Delay is 15")
	}
	return []byte{p.Delay}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RXTimingSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.Delay = data[0] & 0x0f
	return nil
}

// TXParamSetupReqPayload represents the TXParamSetupReq payload.
type TXParamSetupReqPayload struct {
	DownlinkDwellTime bool  `json:"downlinkDwellTime"`
	UplinkDwellTime   bool  `json:"uplinkDwellTime"`
	MaxEIRP           uint8 `json:"maxEIRP"`
}

// MarshalBinary marshals the object in binary form.
func (p TXParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.MaxEIRP > 15 {
		return nil, errors.New("lorawan: max value of MaxEIRP is 15")
	}
	b := p.MaxEIRP
	if p.UplinkDwellTime {
		b |= 1 << 4
	}
	if p.DownlinkDwellTime {
		b |= 1 << 5
	}
	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *TXParamSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.MaxEIRP = data[0] & 0x0f
	p.UplinkDwellTime = data[0]&(1<<4) != 0
	p.DownlinkDwellTime = data[0]&(1<<5) != 0
	return nil
}

// DLChannelReqPayload represents the DLChannelReq payload.
type DLChannelReqPayload struct {
	ChIndex uint8  `json:"chIndex"`
	Freq    uint32 `json:"freq"`
}

// MarshalBinary marshals the object in binary form.
func (p DLChannelReqPayload) MarshalBinary() ([]byte, error) {
	f, err := marshalFrequency(p.Freq)
	if err != nil {
		return nil, err
	}
	return append([]byte{p.ChIndex}, f...), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DLChannelReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return ErrTruncatedMACCommand
	}
	p.ChIndex = data[0]
	p.Freq = unmarshalFrequency(data[1:4])
	return nil
}

// DLChannelAnsPayload represents the DLChannelAns payload.
type DLChannelAnsPayload struct {
	UplinkFrequencyExists bool `json:"uplinkFrequencyExists"`
	ChannelFrequencyOK    bool `json:"channelFrequencyOK"`
}

// MarshalBinary marshals the object in binary form.
func (p DLChannelAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{bits(p.ChannelFrequencyOK, p.UplinkFrequencyExists)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DLChannelAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.ChannelFrequencyOK = data[0]&(1<<0) != 0
	p.UplinkFrequencyExists = data[0]&(1<<1) != 0
	return nil
}

// ADRParamSetupReqPayload represents the ADRParamSetupReq payload.
type ADRParamSetupReqPayload struct {
	LimitExp uint8 `json:"limitExp"`
	DelayExp uint8 `json:"delayExp"`
}

// MarshalBinary marshals the object in binary form.
func (p ADRParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.LimitExp > 15 || p.DelayExp > 15 {
		return nil, errors.New("lorawan: max value of LimitExp and DelayExp is 15")
	}
	return []byte{p.LimitExp<<4 | p.DelayExp}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *ADRParamSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.LimitExp = data[0] >> 4
	p.DelayExp = data[0] & 0x0f
	return nil
}

// DeviceTimeAnsPayload represents the DeviceTimeAns payload.
type DeviceTimeAnsPayload struct {
	TimeSinceGPSEpoch time.Duration `json:"timeSinceGPSEpoch"`
}

// MarshalBinary marshals the object in binary form.
func (p DeviceTimeAnsPayload) MarshalBinary() ([]byte, error) {
	secs := p.TimeSinceGPSEpoch / time.Second
	frac := (p.TimeSinceGPSEpoch % time.Second) * 256 / time.Second
	out := appendUint32LE(nil, uint32(secs))
	return append(out, byte(frac)), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DeviceTimeAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 5 {
		return ErrTruncatedMACCommand
	}
	r := newReader(data)
	secs, _ := r.readUint32LE()
	frac, _ := r.readByte()
	p.TimeSinceGPSEpoch = time.Duration(secs)*time.Second + time.Duration(frac)*time.Second/256
	return nil
}

// ForceRejoinReqPayload represents the ForceRejoinReq payload.
type ForceRejoinReqPayload struct {
	Period     uint8      `json:"period"`
	MaxRetries uint8      `json:"maxRetries"`
	RejoinType RejoinType `json:"rejoinType"`
	DR         uint8      `json:"dr"`
}

// MarshalBinary marshals the object in binary form.
func (p ForceRejoinReqPayload) MarshalBinary() ([]byte, error) {
	if p.Period > 7 || p.MaxRetries > 7 || p.RejoinType > 7 {
		return nil, errors.New("lorawan: max value of Period, MaxRetries and RejoinType is 7")
	}
	if p.DR > 15 {
		return nil, errors.New("lorawan: max value of DR is 15")
	}
	v := uint16(p.Period)<<11 | uint16(p.MaxRetries)<<8 | uint16(p.RejoinType)<<4 | uint16(p.DR)
	return appendUint16LE(nil, v), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *ForceRejoinReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return ErrTruncatedMACCommand
	}
	v, _ := newReader(data).readUint16LE()
	p.Period = uint8(v>>11) & 0x07
	p.MaxRetries = uint8(v>>8) & 0x07
	p.RejoinType = RejoinType(v>>4) & 0x07
	p.DR = uint8(v) & 0x0f
	return nil
}

// RejoinParamSetupReqPayload represents the RejoinParamSetupReq payload.
type RejoinParamSetupReqPayload struct {
	MaxTimeN  uint8 `json:"maxTimeN"`
	MaxCountN uint8 `json:"maxCountN"`
}

// MarshalBinary marshals the object in binary form.
func (p RejoinParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.MaxTimeN > 15 || p.MaxCountN > 15 {
		return nil, errors.New("lorawan: max value of MaxTimeN and MaxCountN is 15")
	}
	return []byte{p.MaxTimeN<<4 | p.MaxCountN}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RejoinParamSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.MaxTimeN = data[0] >> 4
	p.MaxCountN = data[0] & 0x0f
	return nil
}

// RejoinParamSetupAnsPayload represents the RejoinParamSetupAns payload.
type RejoinParamSetupAnsPayload struct {
	TimeOK bool `json:"timeOK"`
}

// MarshalBinary marshals the object in binary form.
func (p RejoinParamSetupAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{bits(p.TimeOK)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RejoinParamSetupAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.TimeOK = data[0]&(1<<0) != 0
	return nil
}

// PingSlotInfoReqPayload represents the PingSlotInfoReq payload.
type PingSlotInfoReqPayload struct {
	Periodicity uint8 `json:"periodicity"`
}

// MarshalBinary marshals the object in binary form.
func (p PingSlotInfoReqPayload) MarshalBinary() ([]byte, error) {
	if p.Periodicity > 7 {
		return nil, errors.New("lorawan: max value of Periodicity is 7")
	}
	return []byte{p.Periodicity}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *PingSlotInfoReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.Periodicity = data[0] & 0x07
	return nil
}

// PingSlotChannelReqPayload represents the PingSlotChannelReq payload.
type PingSlotChannelReqPayload struct {
	Frequency uint32 `json:"frequency"`
	DR        uint8  `json:"dr"`
}

// MarshalBinary marshals the object in binary form.
func (p PingSlotChannelReqPayload) MarshalBinary() ([]byte, error) {
	if p.DR > 15 {
		return nil, errors.New("lorawan: max value of DR is 15")
	}
	f, err := marshalFrequency(p.Frequency)
	if err != nil {
		return nil, err
	}
	return append(f, p.DR), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *PingSlotChannelReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return ErrTruncatedMACCommand
	}
	p.Frequency = unmarshalFrequency(data[0:3])
	p.DR = data[3] & 0x0f
	return nil
}

// PingSlotChannelAnsPayload represents the PingSlotChannelAns payload.
type PingSlotChannelAnsPayload struct {
	DataRateOK         bool `json:"dataRateOK"`
	ChannelFrequencyOK bool `json:"channelFrequencyOK"`
}

// MarshalBinary marshals the object in binary form.
func (p PingSlotChannelAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{bits(p.ChannelFrequencyOK, p.DataRateOK)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *PingSlotChannelAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.ChannelFrequencyOK = data[0]&(1<<0) != 0
	p.DataRateOK = data[0]&(1<<1) != 0
	return nil
}

// BeaconTimingAnsPayload represents the BeaconTimingAns payload.
type BeaconTimingAnsPayload struct {
	Delay   uint16 `json:"delay"`
	Channel uint8  `json:"channel"`
}

// MarshalBinary marshals the object in binary form.
func (p BeaconTimingAnsPayload) MarshalBinary() ([]byte, error) {
	return append(appendUint16LE(nil, p.Delay), p.Channel), nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *BeaconTimingAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 3 {
		return ErrTruncatedMACCommand
	}
	r := newReader(data)
	p.Delay, _ = r.readUint16LE()
	p.Channel, _ = r.readByte()
	return nil
}

// BeaconFreqReqPayload represents the BeaconFreqReq payload.
type BeaconFreqReqPayload struct {
	Frequency uint32 `json:"frequency"`
}

// MarshalBinary marshals the object in binary form.
func (p BeaconFreqReqPayload) MarshalBinary() ([]byte, error) {
	return marshalFrequency(p.Frequency)
}

// UnmarshalBinary decodes the object from binary form.
func (p *BeaconFreqReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 3 {
		return ErrTruncatedMACCommand
	}
	p.Frequency = unmarshalFrequency(data)
	return nil
}

// BeaconFreqAnsPayload represents the BeaconFreqAns payload.
type BeaconFreqAnsPayload struct {
	BeaconFrequencyOK bool `json:"beaconFrequencyOK"`
}

// MarshalBinary marshals the object in binary form.
func (p BeaconFreqAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{bits(p.BeaconFrequencyOK)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *BeaconFreqAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.BeaconFrequencyOK = data[0]&(1<<0) != 0
	return nil
}

// DeviceModeClass defines the requested device class.
type DeviceModeClass uint8

// Available device classes.
const (
	DeviceModeClassA DeviceModeClass = 0x00
	DeviceModeRFU    DeviceModeClass = 0x01
	DeviceModeClassC DeviceModeClass = 0x02
)

// DeviceModeIndPayload represents the DeviceModeInd payload.
type DeviceModeIndPayload struct {
	Class DeviceModeClass `json:"class"`
}

// MarshalBinary marshals the object in binary form.
func (p DeviceModeIndPayload) MarshalBinary() ([]byte, error) {
	return []byte{byte(p.Class)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DeviceModeIndPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.Class = DeviceModeClass(data[0])
	return nil
}

// DeviceModeConfPayload represents the DeviceModeConf payload.
type DeviceModeConfPayload struct {
	Class DeviceModeClass `json:"class"`
}

// MarshalBinary marshals the object in binary form.
func (p DeviceModeConfPayload) MarshalBinary() ([]byte, error) {
	return []byte{byte(p.Class)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DeviceModeConfPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrTruncatedMACCommand
	}
	p.Class = DeviceModeClass(data[0])
	return nil
}

// bits packs the given flags, the first flag being bit 0.
func bits(flags ...bool) byte {
	var b byte
	for i, f := range flags {
		if f {
			b |= 1 << uint(i)
		}
	}
	return b
}

// marshalFrequency encodes a frequency (Hz) as 24 bit LE in 100 Hz steps.
func marshalFrequency(f uint32) ([]byte, error) {
	if f%100 != 0 {
		return nil, errors.New("lorawan: frequency must be a multiple of 100")
	}
	if f/100 >= 1<<24 {
		return nil, errors.New("lorawan: max value of frequency is 2^24 - 1")
	}
	return appendUint24LE(nil, f/100), nil
}

func unmarshalFrequency(b []byte) uint32 {
	f, _ := newReader(b).readUint24LE()
	return f * 100
}

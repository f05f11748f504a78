package lorawan

import "fmt"

// DecodeFOptsToMACCommands decodes the raw FOpts bytes of a data frame into
// a *MACCommandSet. The FOpts are only replaced when all bytes decode into
// known MAC commands.
func (p *PHYPayload) DecodeFOptsToMACCommands() error {
	mac, err := p.macPayload()
	if err != nil {
		return err
	}

	raw, ok := mac.FHDR.FOpts.(*DataPayload)
	if !ok {
		// nothing to decode, or already decoded
		return nil
	}

	set, err := DecodeMACCommands(p.IsUplink(), raw.Bytes)
	if err != nil {
		return err
	}
	mac.FHDR.FOpts = set
	return nil
}

// DecryptFRMPayload decrypts the FRMPayload of a data frame using the
// session-keys returned by ks. The AppSKey is used for FPort > 0, the
// NwkSEncKey for FPort 0 in which case the plaintext is decoded into a
// *MACCommandSet. The FRMPayload is only replaced on success.
func (p *PHYPayload) DecryptFRMPayload(ks KeyStore) error {
	mac, err := p.macPayload()
	if err != nil {
		return err
	}
	if mac.FPort == nil {
		return ErrMissingFPort
	}

	raw, ok := mac.FRMPayload.(*DataPayload)
	if !ok {
		return nil
	}
	if ks == nil {
		return ErrKeyUnavailable
	}

	keys, err := ks.GetSessionKeys(mac.FHDR.DevAddr)
	if err != nil {
		return fmt.Errorf("lorawan: get session-keys for %s: %w", mac.FHDR.DevAddr, err)
	}

	key := keys.AppSKey
	if *mac.FPort == 0 {
		key = keys.NwkSEncKey
	}

	lastFCnt := keys.FCntUp
	if !p.IsUplink() {
		lastFCnt = keys.FCntDown
	}

	b, err := EncryptFRMPayload(key, p.IsUplink(), mac.FHDR.DevAddr, GetFullFCnt(lastFCnt, mac.FHDR.FCnt), raw.Bytes)
	if err != nil {
		return err
	}

	return p.setFRMPayload(mac, b)
}

// DecodeFRMPayload interprets a FRMPayload that is already in plaintext
// (e.g. as published in frame-logs) without decrypting it.
func (p *PHYPayload) DecodeFRMPayload() error {
	mac, err := p.macPayload()
	if err != nil {
		return err
	}
	if mac.FPort == nil {
		return ErrMissingFPort
	}

	raw, ok := mac.FRMPayload.(*DataPayload)
	if !ok {
		return nil
	}
	return p.setFRMPayload(mac, raw.Bytes)
}

func (p *PHYPayload) setFRMPayload(mac *MACPayload, plaintext []byte) error {
	if *mac.FPort == 0 {
		set, err := DecodeMACCommands(p.IsUplink(), plaintext)
		if err != nil {
			return err
		}
		mac.FRMPayload = set
		return nil
	}

	pl := &PlaintextPayload{}
	if err := pl.UnmarshalBinary(plaintext); err != nil {
		return err
	}
	mac.FRMPayload = pl
	return nil
}

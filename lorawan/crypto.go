package lorawan

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/jacobsa/crypto/cmac"
)

// EncryptFRMPayload encrypts (or decrypts, the operation is symmetric) the
// FRMPayload bytes using the LoRaWAN AES-128 counter-mode scheme. fCnt must
// be the full 32 bit frame-counter.
func EncryptFRMPayload(key AES128Key, uplink bool, devAddr DevAddr, fCnt uint32, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	// A1 block, the counter is stored in the last byte and starts at 1
	a := make([]byte, aes.BlockSize)
	a[0] = 0x01
	if !uplink {
		a[5] = 0x01
	}
	copy(a[6:10], appendReversed(nil, devAddr[:]))
	copy(a[10:14], appendUint32LE(nil, fCnt))
	a[15] = 0x01

	out := make([]byte, len(data))
	cipher.NewCTR(block, a).XORKeyStream(out, data)
	return out, nil
}

// GetFullFCnt returns the full 32 bit frame-counter, given the last seen
// 32 bit frame-counter and the 16 LSB as transmitted over the air. A frame
// counter that is lower than the 16 LSB of the last seen value is
// interpreted as a roll-over.
func GetFullFCnt(last uint32, fCnt uint16) uint32 {
	gap := uint32(fCnt - uint16(last%(1<<16)))
	return last + gap
}

// computeMIC computes the LoRaWAN 1.0 MIC over the B0 block followed by msg.
func computeMIC(key AES128Key, uplink bool, devAddr DevAddr, fCnt uint32, msg []byte) (MIC, error) {
	var mic MIC

	b0 := make([]byte, aes.BlockSize)
	b0[0] = 0x49
	if !uplink {
		b0[5] = 0x01
	}
	copy(b0[6:10], appendReversed(nil, devAddr[:]))
	copy(b0[10:14], appendUint32LE(nil, fCnt))
	b0[15] = byte(len(msg))

	hash, err := cmac.New(key[:])
	if err != nil {
		return mic, err
	}
	if _, err = hash.Write(b0); err != nil {
		return mic, err
	}
	if _, err = hash.Write(msg); err != nil {
		return mic, err
	}

	hb := hash.Sum([]byte{})
	if len(hb) < 4 {
		return mic, errors.New("lorawan: the hash returned less than 4 bytes")
	}
	copy(mic[:], hb[0:4])
	return mic, nil
}

// computeJoinRequestMIC computes the MIC of a join-request message.
func computeJoinRequestMIC(key AES128Key, msg []byte) (MIC, error) {
	var mic MIC

	hash, err := cmac.New(key[:])
	if err != nil {
		return mic, err
	}
	if _, err = hash.Write(msg); err != nil {
		return mic, err
	}

	hb := hash.Sum([]byte{})
	if len(hb) < 4 {
		return mic, errors.New("lorawan: the hash returned less than 4 bytes")
	}
	copy(mic[:], hb[0:4])
	return mic, nil
}

// ecbEncrypt encrypts data, which must be a multiple of the block size, in
// ECB mode.
func ecbEncrypt(key AES128Key, data []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("lorawan: data must be a multiple of 16 bytes")
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}
	return out, nil
}

// Package keystore provides the session-key stores used to decrypt the
// FRMPayload of data frames.
package keystore

import (
	"context"
	"crypto/aes"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	keywrap "github.com/NickBall/go-aes-key-wrap"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

// Key-store types.
const (
	TypeNone   = "none"
	TypeStatic = "static"
	TypeRedis  = "redis"
)

// DefaultMaxFCntGap is the LoRaWAN default MAX_FCNT_GAP.
const DefaultMaxFCntGap = 16384

// New returns the key-store configured in the given configuration. A nil
// KeyStore is returned for the none type, in which case FRMPayload
// decryption reports missing keys.
func New(c config.Config) (lorawan.KeyStore, error) {
	var kek []byte
	if c.KeyStore.KEK != "" {
		var err error
		kek, err = hex.DecodeString(c.KeyStore.KEK)
		if err != nil {
			return nil, errors.Wrap(err, "decode kek error")
		}
	}

	switch c.KeyStore.Type {
	case "", TypeNone:
		log.Info("keystore: no session-key store configured")
		return nil, nil
	case TypeStatic:
		log.WithField("count", len(c.KeyStore.Static)).Info("keystore: setting up static session-key store")
		ks, err := NewStaticKeyStore(kek, c.KeyStore.Static)
		if err != nil {
			return nil, err
		}
		if c.KeyStore.MaxFCntGap != 0 {
			ks.MaxFCntGap = c.KeyStore.MaxFCntGap
		}
		return ks, nil
	case TypeRedis:
		log.Info("keystore: setting up redis session-key store")
		return NewRedisKeyStore(kek, 2*time.Second), nil
	default:
		return nil, fmt.Errorf("unexpected keystore type: %s", c.KeyStore.Type)
	}
}

// StaticKeyStore holds a fixed set of session-keys.
type StaticKeyStore struct {
	// MaxFCntGap is the maximum accepted increment of a tracked
	// frame-counter. Frames outside this window do not update it.
	MaxFCntGap uint32

	mu   sync.RWMutex
	keys map[lorawan.DevAddr]lorawan.SessionKeys
}

// NewStaticKeyStore creates a StaticKeyStore. The keys are hex encoded and
// either plaintext (16 bytes) or wrapped using the kek (24 bytes).
func NewStaticKeyStore(kek []byte, keys []config.StaticSessionKeys) (*StaticKeyStore, error) {
	ks := StaticKeyStore{
		MaxFCntGap: DefaultMaxFCntGap,
		keys:       make(map[lorawan.DevAddr]lorawan.SessionKeys),
	}

	for _, k := range keys {
		var raw [3]lorawan.HEXBytes
		for i, s := range []string{k.FNwkSIntKey, k.NwkSEncKey, k.AppSKey} {
			if err := raw[i].UnmarshalText([]byte(s)); err != nil {
				return nil, errors.Wrapf(err, "decode session-key for %s error", k.DevAddr)
			}
		}

		sk, err := unwrapSessionKeys(kek, raw[0], raw[1], raw[2])
		if err != nil {
			return nil, errors.Wrapf(err, "session-keys for %s error", k.DevAddr)
		}
		sk.FCntUp = k.FCntUp
		sk.FCntDown = k.FCntDown

		ks.keys[k.DevAddr] = sk
	}

	return &ks, nil
}

// GetSessionKeys implements lorawan.KeyStore.
func (s *StaticKeyStore) GetSessionKeys(devAddr lorawan.DevAddr) (lorawan.SessionKeys, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sk, ok := s.keys[devAddr]
	if !ok {
		return sk, lorawan.ErrKeyUnavailable
	}
	return sk, nil
}

// FCntObserver is implemented by key-stores which track the frame-counters
// themselves.
type FCntObserver interface {
	ObserveFCnt(phy *lorawan.PHYPayload)
}

// ObserveFCnt updates the last seen frame-counter of the device sending or
// receiving the given data frame, so that the 32 bit frame-counter can
// still be restored after a 16 bit roll-over. A frame-counter which is not
// within MaxFCntGap of the last seen value is ignored.
func (s *StaticKeyStore) ObserveFCnt(phy *lorawan.PHYPayload) {
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sk, ok := s.keys[mac.FHDR.DevAddr]
	if !ok {
		return
	}

	last := &sk.FCntDown
	if phy.IsUplink() {
		last = &sk.FCntUp
	}

	full := lorawan.GetFullFCnt(*last, mac.FHDR.FCnt)
	if gap := full - *last; gap >= s.MaxFCntGap {
		log.WithFields(log.Fields{
			"dev_addr":  mac.FHDR.DevAddr,
			"f_cnt":     mac.FHDR.FCnt,
			"last_fcnt": *last,
			"gap":       gap,
		}).Warning("keystore: frame-counter gap too large, frame-counter not updated")
		return
	}

	*last = full
	s.keys[mac.FHDR.DevAddr] = sk
}

// RedisKeyStore reads the session-keys from Redis (see storage.SaveSessionKeys).
type RedisKeyStore struct {
	kek     []byte
	timeout time.Duration
}

// NewRedisKeyStore creates a RedisKeyStore.
func NewRedisKeyStore(kek []byte, timeout time.Duration) *RedisKeyStore {
	return &RedisKeyStore{
		kek:     kek,
		timeout: timeout,
	}
}

// GetSessionKeys implements lorawan.KeyStore.
func (r *RedisKeyStore) GetSessionKeys(devAddr lorawan.DevAddr) (lorawan.SessionKeys, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	sk, err := storage.GetSessionKeys(ctx, devAddr)
	if err != nil {
		if errors.Is(err, storage.ErrDoesNotExist) {
			return lorawan.SessionKeys{}, lorawan.ErrKeyUnavailable
		}
		return lorawan.SessionKeys{}, errors.Wrap(err, "get session-keys error")
	}

	out, err := unwrapSessionKeys(r.kek, sk.FNwkSIntKey, sk.NwkSEncKey, sk.AppSKey)
	if err != nil {
		return out, err
	}
	out.FCntUp = sk.FCntUp
	out.FCntDown = sk.FCntDown

	return out, nil
}

func unwrapSessionKeys(kek []byte, fNwkSIntKey, nwkSEncKey, appSKey []byte) (lorawan.SessionKeys, error) {
	var sk lorawan.SessionKeys
	var err error

	if sk.FNwkSIntKey, err = unwrapKey(kek, fNwkSIntKey); err != nil {
		return sk, errors.Wrap(err, "f_nwk_s_int_key")
	}
	if sk.NwkSEncKey, err = unwrapKey(kek, nwkSEncKey); err != nil {
		return sk, errors.Wrap(err, "nwk_s_enc_key")
	}
	if sk.AppSKey, err = unwrapKey(kek, appSKey); err != nil {
		return sk, errors.Wrap(err, "app_s_key")
	}

	return sk, nil
}

// unwrapKey returns the AES128 key. A 24 byte key is unwrapped using the
// kek (RFC 3394).
func unwrapKey(kek, b []byte) (lorawan.AES128Key, error) {
	var key lorawan.AES128Key

	switch len(b) {
	case len(key):
		copy(key[:], b)
		return key, nil
	case len(key) + 8:
		if len(kek) == 0 {
			return key, errors.New("wrapped key, but no kek configured")
		}

		block, err := aes.NewCipher(kek)
		if err != nil {
			return key, errors.Wrap(err, "new cipher error")
		}

		b, err = keywrap.Unwrap(block, b)
		if err != nil {
			return key, errors.Wrap(err, "unwrap key error")
		}

		copy(key[:], b)
		return key, nil
	default:
		return key, fmt.Errorf("invalid key length: %d", len(b))
	}
}

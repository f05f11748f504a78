package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

const sessionKeysKeyTempl = "lora:ti:device:%s:keys"

// SessionKeys holds the session-keys of a device. The keys are either 16
// bytes (plaintext) or 24 bytes (wrapped using the key-encryption key).
type SessionKeys struct {
	DevAddr     lorawan.DevAddr  `json:"devAddr"`
	DevEUI      lorawan.EUI64    `json:"devEUI"`
	FNwkSIntKey lorawan.HEXBytes `json:"fNwkSIntKey"`
	NwkSEncKey  lorawan.HEXBytes `json:"nwkSEncKey"`
	AppSKey     lorawan.HEXBytes `json:"appSKey"`
	FCntUp      uint32           `json:"fCntUp"`
	FCntDown    uint32           `json:"fCntDown"`
}

// SaveSessionKeys stores the session-keys for the DevAddr. A ttl of 0
// means that the keys do not expire.
func SaveSessionKeys(ctx context.Context, sk SessionKeys, ttl time.Duration) error {
	for _, k := range []lorawan.HEXBytes{sk.FNwkSIntKey, sk.NwkSEncKey, sk.AppSKey} {
		if len(k) != 16 && len(k) != 24 {
			return ErrInvalidKey
		}
	}

	b, err := json.Marshal(sk)
	if err != nil {
		return errors.Wrap(err, "marshal json error")
	}

	key := GetRedisKey(sessionKeysKeyTempl, sk.DevAddr)
	if err := RedisClient().Set(ctx, key, b, ttl).Err(); err != nil {
		return errors.Wrap(err, "set error")
	}

	log.WithFields(log.Fields{
		"dev_addr": sk.DevAddr,
		"dev_eui":  sk.DevEUI,
		"ctx_id":   ctx.Value(logging.ContextIDKey),
	}).Info("storage: session-keys saved")

	return nil
}

// GetSessionKeys returns the session-keys for the given DevAddr.
func GetSessionKeys(ctx context.Context, devAddr lorawan.DevAddr) (SessionKeys, error) {
	var sk SessionKeys

	b, err := RedisClient().Get(ctx, GetRedisKey(sessionKeysKeyTempl, devAddr)).Bytes()
	if err != nil {
		return sk, handleStorageError(err, "get error")
	}

	if err := json.Unmarshal(b, &sk); err != nil {
		return sk, errors.Wrap(err, "unmarshal json error")
	}

	return sk, nil
}

// DeleteSessionKeys removes the session-keys for the given DevAddr.
func DeleteSessionKeys(ctx context.Context, devAddr lorawan.DevAddr) error {
	n, err := RedisClient().Del(ctx, GetRedisKey(sessionKeysKeyTempl, devAddr)).Result()
	if err != nil {
		return errors.Wrap(err, "delete error")
	}
	if n == 0 {
		return ErrDoesNotExist
	}

	log.WithFields(log.Fields{
		"dev_addr": devAddr,
		"ctx_id":   ctx.Value(logging.ContextIDKey),
	}).Info("storage: session-keys deleted")

	return nil
}

package lorawan

// SessionKeys holds the key material of an activated device. FCntUp and
// FCntDown hold the last seen 32 bit frame-counters, used to restore the
// 16 MSB of the frame-counter that are not transmitted over the air.
type SessionKeys struct {
	FNwkSIntKey AES128Key
	NwkSEncKey  AES128Key
	AppSKey     AES128Key
	FCntUp      uint32
	FCntDown    uint32
}

// KeyStore provides the session-keys for a device address. Implementations
// must return an error wrapping ErrKeyUnavailable when no keys are known.
type KeyStore interface {
	GetSessionKeys(devAddr DevAddr) (SessionKeys, error)
}

// KeyStoreFunc is an adapter to allow the use of ordinary functions as
// KeyStore.
type KeyStoreFunc func(devAddr DevAddr) (SessionKeys, error)

// GetSessionKeys calls f(devAddr).
func (f KeyStoreFunc) GetSessionKeys(devAddr DevAddr) (SessionKeys, error) {
	return f(devAddr)
}

package keystore

import (
	"context"
	"crypto/aes"
	"encoding/hex"
	"testing"
	"time"

	keywrap "github.com/NickBall/go-aes-key-wrap"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/test"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

var (
	testKEK     = []byte{1, 2, 3, 4, 5, 6, 7, 8, 1, 2, 3, 4, 5, 6, 7, 8}
	testAppSKey = lorawan.AES128Key{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	testNwkSKey = lorawan.AES128Key{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
)

func wrap(t *testing.T, key lorawan.AES128Key) []byte {
	block, err := aes.NewCipher(testKEK)
	require.NoError(t, err)
	b, err := keywrap.Wrap(block, key[:])
	require.NoError(t, err)
	return b
}

func TestStaticKeyStore(t *testing.T) {
	assert := require.New(t)

	ks, err := NewStaticKeyStore(testKEK, []config.StaticSessionKeys{
		{
			DevAddr:     lorawan.DevAddr{1, 2, 3, 4},
			FNwkSIntKey: testNwkSKey.String(),
			NwkSEncKey:  testNwkSKey.String(),
			AppSKey:     hex.EncodeToString(wrap(t, testAppSKey)),
			FCntUp:      65535,
		},
	})
	assert.NoError(err)

	t.Run("Known DevAddr", func(t *testing.T) {
		assert := require.New(t)
		sk, err := ks.GetSessionKeys(lorawan.DevAddr{1, 2, 3, 4})
		assert.NoError(err)
		assert.Equal(lorawan.SessionKeys{
			FNwkSIntKey: testNwkSKey,
			NwkSEncKey:  testNwkSKey,
			AppSKey:     testAppSKey,
			FCntUp:      65535,
		}, sk)
	})

	t.Run("Unknown DevAddr", func(t *testing.T) {
		assert := require.New(t)
		_, err := ks.GetSessionKeys(lorawan.DevAddr{4, 3, 2, 1})
		assert.Equal(lorawan.ErrKeyUnavailable, err)
	})

	t.Run("Observe frame-counter roll-over", func(t *testing.T) {
		assert := require.New(t)

		ks.ObserveFCnt(&lorawan.PHYPayload{
			MHDR: lorawan.MHDR{MType: lorawan.UnconfirmedDataUp, Major: lorawan.LoRaWANR1},
			MACPayload: &lorawan.MACPayload{
				FHDR: lorawan.FHDR{DevAddr: lorawan.DevAddr{1, 2, 3, 4}, FCnt: 2},
			},
		})

		sk, err := ks.GetSessionKeys(lorawan.DevAddr{1, 2, 3, 4})
		assert.NoError(err)
		assert.Equal(uint32(65538), sk.FCntUp)
		assert.Equal(uint32(0), sk.FCntDown)
	})

	t.Run("Ignore out-of-order frame-counter", func(t *testing.T) {
		assert := require.New(t)

		for _, fCnt := range []uint16{1, 3} {
			ks.ObserveFCnt(&lorawan.PHYPayload{
				MHDR: lorawan.MHDR{MType: lorawan.UnconfirmedDataUp, Major: lorawan.LoRaWANR1},
				MACPayload: &lorawan.MACPayload{
					FHDR: lorawan.FHDR{DevAddr: lorawan.DevAddr{1, 2, 3, 4}, FCnt: fCnt},
				},
			})
		}

		sk, err := ks.GetSessionKeys(lorawan.DevAddr{1, 2, 3, 4})
		assert.NoError(err)
		assert.Equal(uint32(65539), sk.FCntUp)
	})
}

func observeFCnt(ks *StaticKeyStore, mType lorawan.MType, fCnt uint16) {
	ks.ObserveFCnt(&lorawan.PHYPayload{
		MHDR: lorawan.MHDR{MType: mType, Major: lorawan.LoRaWANR1},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{DevAddr: lorawan.DevAddr{1, 2, 3, 4}, FCnt: fCnt},
		},
	})
}

func TestStaticKeyStoreFCntGap(t *testing.T) {
	tests := []struct {
		name       string
		maxFCntGap uint32
		mType      lorawan.MType
		fCnts      []uint16

		expectedFCntUp   uint32
		expectedFCntDown uint32
	}{
		{
			name:           "in order",
			maxFCntGap:     DefaultMaxFCntGap,
			mType:          lorawan.UnconfirmedDataUp,
			fCnts:          []uint16{11, 12, 20},
			expectedFCntUp: 20,
		},
		{
			name:           "replayed uplink",
			maxFCntGap:     DefaultMaxFCntGap,
			mType:          lorawan.UnconfirmedDataUp,
			fCnts:          []uint16{9, 10, 11},
			expectedFCntUp: 11,
		},
		{
			name:             "replayed downlink",
			maxFCntGap:       DefaultMaxFCntGap,
			mType:            lorawan.ConfirmedDataDown,
			fCnts:            []uint16{4, 3},
			expectedFCntUp:   10,
			expectedFCntDown: 4,
		},
		{
			name:           "gap exceeds max gap",
			maxFCntGap:     100,
			mType:          lorawan.UnconfirmedDataUp,
			fCnts:          []uint16{110, 109},
			expectedFCntUp: 109,
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			assert := require.New(t)

			ks, err := NewStaticKeyStore(nil, []config.StaticSessionKeys{
				{
					DevAddr:     lorawan.DevAddr{1, 2, 3, 4},
					FNwkSIntKey: testNwkSKey.String(),
					NwkSEncKey:  testNwkSKey.String(),
					AppSKey:     testAppSKey.String(),
					FCntUp:      10,
				},
			})
			assert.NoError(err)
			ks.MaxFCntGap = tst.maxFCntGap

			for _, fCnt := range tst.fCnts {
				observeFCnt(ks, tst.mType, fCnt)
			}

			sk, err := ks.GetSessionKeys(lorawan.DevAddr{1, 2, 3, 4})
			assert.NoError(err)
			assert.Equal(tst.expectedFCntUp, sk.FCntUp)
			assert.Equal(tst.expectedFCntDown, sk.FCntDown)
		})
	}
}

func TestStaticKeyStoreErrors(t *testing.T) {
	tests := []struct {
		name string
		kek  []byte
		keys config.StaticSessionKeys
	}{
		{
			name: "invalid hex",
			keys: config.StaticSessionKeys{FNwkSIntKey: "zz", NwkSEncKey: testNwkSKey.String(), AppSKey: testAppSKey.String()},
		},
		{
			name: "invalid length",
			keys: config.StaticSessionKeys{FNwkSIntKey: "0102", NwkSEncKey: testNwkSKey.String(), AppSKey: testAppSKey.String()},
		},
		{
			name: "wrapped key without kek",
			keys: config.StaticSessionKeys{FNwkSIntKey: testNwkSKey.String(), NwkSEncKey: testNwkSKey.String(), AppSKey: "000102030405060708090a0b0c0d0e0f1011121314151617"},
		},
		{
			name: "wrapped key integrity check",
			kek:  testKEK,
			keys: config.StaticSessionKeys{FNwkSIntKey: testNwkSKey.String(), NwkSEncKey: testNwkSKey.String(), AppSKey: "000102030405060708090a0b0c0d0e0f1011121314151617"},
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			assert := require.New(t)
			_, err := NewStaticKeyStore(tst.kek, []config.StaticSessionKeys{tst.keys})
			assert.Error(err)
		})
	}
}

func TestNew(t *testing.T) {
	assert := require.New(t)

	var c config.Config
	ks, err := New(c)
	assert.NoError(err)
	assert.Nil(ks)

	c.KeyStore.Type = TypeStatic
	ks, err = New(c)
	assert.NoError(err)
	assert.IsType(&StaticKeyStore{}, ks)
	assert.Equal(uint32(DefaultMaxFCntGap), ks.(*StaticKeyStore).MaxFCntGap)

	c.KeyStore.MaxFCntGap = 100
	ks, err = New(c)
	assert.NoError(err)
	assert.Equal(uint32(100), ks.(*StaticKeyStore).MaxFCntGap)
	c.KeyStore.MaxFCntGap = 0

	c.KeyStore.Type = TypeRedis
	ks, err = New(c)
	assert.NoError(err)
	assert.IsType(&RedisKeyStore{}, ks)

	c.KeyStore.KEK = "zz"
	_, err = New(c)
	assert.Error(err)

	c.KeyStore.KEK = ""
	c.KeyStore.Type = "vault"
	_, err = New(c)
	assert.Error(err)
}

type RedisKeyStoreTestSuite struct {
	suite.Suite
}

func (ts *RedisKeyStoreTestSuite) SetupSuite() {
	conf := test.GetConfig()
	conf.PostgreSQL.DSN = ""
	ts.Require().NoError(storage.Setup(conf))
}

func (ts *RedisKeyStoreTestSuite) SetupTest() {
	ts.Require().NoError(storage.RedisClient().FlushAll(context.Background()).Err())
}

func (ts *RedisKeyStoreTestSuite) TestGetSessionKeys() {
	assert := require.New(ts.T())
	ks := NewRedisKeyStore(testKEK, time.Second)

	_, err := ks.GetSessionKeys(lorawan.DevAddr{1, 2, 3, 4})
	assert.Equal(lorawan.ErrKeyUnavailable, err)

	assert.NoError(storage.SaveSessionKeys(context.Background(), storage.SessionKeys{
		DevAddr:     lorawan.DevAddr{1, 2, 3, 4},
		FNwkSIntKey: testNwkSKey[:],
		NwkSEncKey:  testNwkSKey[:],
		AppSKey:     wrap(ts.T(), testAppSKey),
		FCntUp:      10,
		FCntDown:    3,
	}, 0))

	sk, err := ks.GetSessionKeys(lorawan.DevAddr{1, 2, 3, 4})
	assert.NoError(err)
	assert.Equal(lorawan.SessionKeys{
		FNwkSIntKey: testNwkSKey,
		NwkSEncKey:  testNwkSKey,
		AppSKey:     testAppSKey,
		FCntUp:      10,
		FCntDown:    3,
	}, sk)
}

func TestRedisKeyStore(t *testing.T) {
	suite.Run(t, new(RedisKeyStoreTestSuite))
}

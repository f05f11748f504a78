package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

func (ts *StorageTestSuite) TestSessionKeys() {
	assert := require.New(ts.T())
	ctx := context.Background()

	sk := SessionKeys{
		DevAddr:     lorawan.DevAddr{1, 2, 3, 4},
		DevEUI:      lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
		FNwkSIntKey: make(lorawan.HEXBytes, 16),
		NwkSEncKey:  make(lorawan.HEXBytes, 16),
		AppSKey:     make(lorawan.HEXBytes, 24),
		FCntUp:      10,
		FCntDown:    5,
	}

	ts.T().Run("Get non-existing", func(t *testing.T) {
		assert := require.New(t)
		_, err := GetSessionKeys(ctx, sk.DevAddr)
		assert.Equal(ErrDoesNotExist, err)
	})

	ts.T().Run("Invalid key length", func(t *testing.T) {
		assert := require.New(t)
		invalid := sk
		invalid.AppSKey = lorawan.HEXBytes{1, 2, 3}
		assert.Equal(ErrInvalidKey, SaveSessionKeys(ctx, invalid, 0))
	})

	assert.NoError(SaveSessionKeys(ctx, sk, 0))

	ts.T().Run("Get", func(t *testing.T) {
		assert := require.New(t)
		skGet, err := GetSessionKeys(ctx, sk.DevAddr)
		assert.NoError(err)
		assert.Equal(sk, skGet)
	})

	ts.T().Run("Delete", func(t *testing.T) {
		assert := require.New(t)
		assert.NoError(DeleteSessionKeys(ctx, sk.DevAddr))
		assert.Equal(ErrDoesNotExist, DeleteSessionKeys(ctx, sk.DevAddr))

		_, err := GetSessionKeys(ctx, sk.DevAddr)
		assert.Equal(ErrDoesNotExist, err)
	})
}

package tls

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("No files", func(t *testing.T) {
		assert := require.New(t)

		conf, err := NewConfig("", "", "")
		assert.NoError(err)
		assert.Nil(conf)

		creds, err := GetTransportCredentials("", "", "")
		assert.NoError(err)
		assert.Nil(creds)
	})

	t.Run("Missing CA certificate", func(t *testing.T) {
		assert := require.New(t)

		_, err := NewConfig("/does/not/exist.pem", "", "")
		assert.Error(err)
	})

	t.Run("Invalid CA certificate", func(t *testing.T) {
		assert := require.New(t)

		dir, err := ioutil.TempDir("", "tls")
		assert.NoError(err)
		defer os.RemoveAll(dir)

		caCert := filepath.Join(dir, "ca.pem")
		assert.NoError(ioutil.WriteFile(caCert, []byte("not a certificate"), 0600))

		_, err = NewConfig(caCert, "", "")
		assert.Error(err)
	})

	t.Run("Missing key-pair", func(t *testing.T) {
		assert := require.New(t)

		_, err := GetTransportCredentials("", "/does/not/exist.crt", "/does/not/exist.key")
		assert.Error(err)
	})
}

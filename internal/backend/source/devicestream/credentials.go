package devicestream

import (
	"context"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// tokenCredentials implements credentials.PerRPCCredentials, adding the
// API token as bearer token to each request.
type tokenCredentials struct {
	token  string
	secure bool
}

func newTokenCredentials(tokenFile string, secure bool) (*tokenCredentials, error) {
	b, err := ioutil.ReadFile(tokenFile)
	if err != nil {
		return nil, errors.Wrap(err, "read token file error")
	}

	token := strings.TrimSpace(string(b))
	if token == "" {
		return nil, errors.New("token file is empty")
	}

	return &tokenCredentials{
		token:  token,
		secure: secure,
	}, nil
}

func (t *tokenCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{
		"authorization": "Bearer " + t.token,
	}, nil
}

func (t *tokenCredentials) RequireTransportSecurity() bool {
	return t.secure
}

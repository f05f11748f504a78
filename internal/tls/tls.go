// Package tls implements the TLS helpers shared by the MQTT and gRPC
// clients.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"google.golang.org/grpc/credentials"
)

// NewConfig returns the TLS configuration for the given CA certificate and
// client certificate files. It returns nil when none of the files are set.
func NewConfig(caCert, tlsCert, tlsKey string) (*tls.Config, error) {
	if caCert == "" && tlsCert == "" && tlsKey == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{}

	if caCert != "" {
		rawCACert, err := ioutil.ReadFile(caCert)
		if err != nil {
			return nil, errors.Wrap(err, "load ca certificate error")
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(rawCACert) {
			return nil, fmt.Errorf("append ca certificate error: %s", caCert)
		}
		tlsConfig.RootCAs = caCertPool
	}

	if tlsCert != "" || tlsKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
		if err != nil {
			return nil, errors.Wrap(err, "load tls key-pair error")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// GetTransportCredentials returns the gRPC client transport credentials. It
// returns nil when none of the files are set, in which case the connection
// should be insecure.
func GetTransportCredentials(caCert, tlsCert, tlsKey string) (credentials.TransportCredentials, error) {
	tlsConfig, err := NewConfig(caCert, tlsCert, tlsKey)
	if err != nil || tlsConfig == nil {
		return nil, err
	}

	return credentials.NewTLS(tlsConfig), nil
}

// +build windows

package cmd

import (
	"github.com/pkg/errors"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
)

func setSyslog() error {
	if config.C.General.LogToSyslog {
		return errors.New("log_to_syslog is not supported on windows")
	}
	return nil
}

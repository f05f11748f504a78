// +build !windows

package cmd

import (
	"log/syslog"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
)

const syslogTag = "chirpstack-telemetry-ingester"

var syslogSeverity = map[log.Level]syslog.Priority{
	log.TraceLevel: syslog.LOG_DEBUG,
	log.DebugLevel: syslog.LOG_DEBUG,
	log.InfoLevel:  syslog.LOG_INFO,
	log.WarnLevel:  syslog.LOG_WARNING,
	log.ErrorLevel: syslog.LOG_ERR,
	log.FatalLevel: syslog.LOG_CRIT,
	log.PanicLevel: syslog.LOG_CRIT,
}

// setSyslog forwards the log output to the local syslog daemon, using the
// severity matching the configured log level.
func setSyslog() error {
	if !config.C.General.LogToSyslog {
		return nil
	}

	hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_DAEMON|syslogSeverity[log.GetLevel()], syslogTag)
	if err != nil {
		return errors.Wrap(err, "new syslog hook error")
	}
	log.AddHook(hook)

	log.WithField("tag", syslogTag).Info("logging to syslog")
	return nil
}

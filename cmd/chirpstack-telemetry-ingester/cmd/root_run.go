package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink/amqp"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink/azureservicebus"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink/gcppubsub"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink/influxdb"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink/mqtt"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink/postgresql"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/source"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/source/devicestream"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/source/redisstream"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/decoder"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/ingester"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/keystore"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/monitoring"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

var (
	keyStore    lorawan.KeyStore
	frameSource source.Source
	recordSink  sink.Sink
	ing         *ingester.Ingester
)

func run(cmd *cobra.Command, args []string) error {
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return errors.Wrap(err, "could not create cpu profile file")
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			return errors.Wrap(err, "could not start cpu profile")
		}
		defer pprof.StopCPUProfile()
	}

	tasks := []func() error{
		setLogLevel,
		setSyslog,
		printStartMessage,
		setupStorage,
		setupMonitoring,
		setupMetrics,
		setupKeyStore,
		setupSink,
		setupSource,
		startIngester,
	}

	for _, t := range tasks {
		if err := t(); err != nil {
			log.Fatal(err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	exitChan := make(chan struct{})
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	log.WithField("signal", <-sigChan).Info("signal received")
	go func() {
		log.Warning("stopping chirpstack-telemetry-ingester")
		if err := frameSource.Close(); err != nil {
			log.Fatal(err)
		}
		ing.Wait()
		if err := recordSink.Close(); err != nil {
			log.Fatal(err)
		}
		exitChan <- struct{}{}
	}()
	select {
	case <-exitChan:
	case s := <-sigChan:
		log.WithField("signal", s).Info("signal received, stopping immediately")
	}

	return nil
}

func setLogLevel() error {
	log.SetLevel(log.Level(uint8(config.C.General.LogLevel)))
	return nil
}

func printStartMessage() error {
	log.WithFields(log.Fields{
		"version": version,
		"source":  config.C.Source.Type,
		"sink":    config.C.Sink.Type,
		"docs":    "https://www.chirpstack.io/",
	}).Info("starting ChirpStack Telemetry Ingester")
	return nil
}

func setupStorage() error {
	if err := storage.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup storage error")
	}
	return nil
}

func setupMonitoring() error {
	if err := monitoring.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup monitoring error")
	}
	return nil
}

func setupMetrics() error {
	if err := storage.SetTimeLocation(config.C.Metrics.Timezone); err != nil {
		return errors.Wrap(err, "set time location error")
	}

	var intervals []storage.AggregationInterval
	for _, agg := range config.C.Metrics.Redis.AggregationIntervals {
		intervals = append(intervals, storage.AggregationInterval(agg))
	}
	if err := storage.SetAggregationIntervals(intervals); err != nil {
		return errors.Wrap(err, "set aggregation intervals error")
	}

	storage.SetMetricsTTL(
		config.C.Metrics.Redis.MinuteAggregationTTL,
		config.C.Metrics.Redis.HourAggregationTTL,
		config.C.Metrics.Redis.DayAggregationTTL,
		config.C.Metrics.Redis.MonthAggregationTTL,
	)

	return nil
}

func setupKeyStore() error {
	var err error
	keyStore, err = keystore.New(config.C)
	if err != nil {
		return errors.Wrap(err, "setup keystore error")
	}
	return nil
}

func setupSource() error {
	var err error

	switch config.C.Source.Type {
	case source.TypeRedisStream:
		frameSource, err = redisstream.New(config.C.Source.RedisStream)
	case source.TypeDeviceStream:
		frameSource, err = devicestream.New(config.C.Source.DeviceStream)
	default:
		return fmt.Errorf("unexpected source type: %s", config.C.Source.Type)
	}

	if err != nil {
		return errors.Wrap(err, "source setup failed")
	}

	return nil
}

func setupSink() error {
	var err error

	switch config.C.Sink.Type {
	case sink.TypePostgreSQL:
		recordSink, err = postgresql.New(config.C.Sink.PostgreSQL)
	case sink.TypeMQTT:
		recordSink, err = mqtt.New(config.C.Sink.MQTT)
	case sink.TypeAMQP:
		recordSink, err = amqp.New(config.C.Sink.AMQP)
	case sink.TypeGCPPubSub:
		recordSink, err = gcppubsub.New(config.C.Sink.GCPPubSub)
	case sink.TypeAzureServiceBus:
		recordSink, err = azureservicebus.New(config.C.Sink.AzureServiceBus)
	case sink.TypeInfluxDB:
		recordSink, err = influxdb.New(config.C.Sink.InfluxDB)
	default:
		return fmt.Errorf("unexpected sink type: %s", config.C.Sink.Type)
	}

	if err != nil {
		return errors.Wrap(err, "sink setup failed")
	}

	return nil
}

func startIngester() error {
	ing = ingester.New(
		frameSource,
		recordSink,
		formatter.Formatter{UplinkSummary: config.C.Formatter.UplinkSummary},
		decoder.OptionsFromConfig(config.C, keyStore),
	)
	ing.DeviceMetrics = len(config.C.Metrics.Redis.AggregationIntervals) != 0

	log.Info("starting ingester")
	ing.Start()

	return nil
}

// Package ingester implements the pipeline decoding the frame-logs of a
// source and writing the formatted records to a sink.
package ingester

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/source"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/decoder"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/keystore"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

const deviceMetricsName = "device:%s"

// Ingester reads the frame-logs from the source, decodes and formats them
// and writes the resulting records to the sink.
type Ingester struct {
	source    source.Source
	sink      sink.Sink
	formatter formatter.Formatter
	options   decoder.Options

	// DeviceMetrics enables the per-device metrics aggregation in Redis.
	DeviceMetrics bool

	wg sync.WaitGroup
}

// New creates a new Ingester.
func New(src source.Source, snk sink.Sink, f formatter.Formatter, opts decoder.Options) *Ingester {
	return &Ingester{
		source:    src,
		sink:      snk,
		formatter: f,
		options:   opts,
	}
}

// Start starts the ingest loop. The loop stops when the source closes its
// frame-log channel.
func (i *Ingester) Start() {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.run()
	}()
}

// Wait blocks until the ingest loop has stopped.
func (i *Ingester) Wait() {
	i.wg.Wait()
}

func (i *Ingester) run() {
	for fl := range i.source.FrameLogChan() {
		ctx, err := logging.NewContext(context.Background())
		if err != nil {
			log.WithError(err).Error("ingester: new context error")
			continue
		}

		if err := i.HandleFrameLog(ctx, fl); err != nil {
			frameLogCounter(fl.Direction(), "error").Inc()
			log.WithError(err).WithFields(log.Fields{
				"id":      fl.ID,
				"dev_eui": fl.DevEUI,
				"ctx_id":  ctx.Value(logging.ContextIDKey),
			}).Error("ingester: handle frame-log error")
			continue
		}
		frameLogCounter(fl.Direction(), "ok").Inc()
	}

	log.Info("ingester: source closed, ingest loop stopped")
}

// HandleFrameLog decodes, formats and writes the given frame-log. A
// PHYPayload which can not be decoded is still written using its raw
// representation.
func (i *Ingester) HandleFrameLog(ctx context.Context, fl framelog.FrameLog) error {
	res, decodeErr := decoder.DecodeWithContext(ctx, fl.PHYPayload(), i.options)
	if decodeErr != nil {
		log.WithError(decodeErr).WithFields(log.Fields{
			"id":      fl.ID,
			"dev_eui": fl.DevEUI,
			"ctx_id":  ctx.Value(logging.ContextIDKey),
		}).Warning("ingester: decode phypayload error")
	}

	if res.PHYPayload != nil {
		if o, ok := i.options.KeyStore.(keystore.FCntObserver); ok {
			o.ObserveFCnt(res.PHYPayload)
		}
	}

	if i.DeviceMetrics {
		if err := saveDeviceMetrics(ctx, fl, res, decodeErr); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"dev_eui": fl.DevEUI,
				"ctx_id":  ctx.Value(logging.ContextIDKey),
			}).Error("ingester: save device metrics error")
		}
	}

	records, err := i.formatter.Format(fl, res, decodeErr)
	if err != nil {
		return errors.Wrap(err, "format frame-log error")
	}

	start := time.Now()
	if err := i.sink.Write(ctx, records); err != nil {
		return errors.Wrap(err, "sink write error")
	}
	sinkWriteDuration().Observe(time.Since(start).Seconds())
	recordCounter().Add(float64(len(records)))

	log.WithFields(log.Fields{
		"id":        fl.ID,
		"direction": fl.Direction(),
		"dev_eui":   fl.DevEUI,
		"records":   len(records),
		"degraded":  res.Degraded(),
		"ctx_id":    ctx.Value(logging.ContextIDKey),
	}).Debug("ingester: frame-log ingested")

	return nil
}

func saveDeviceMetrics(ctx context.Context, fl framelog.FrameLog, res decoder.Result, decodeErr error) error {
	if fl.DevEUI == (lorawan.EUI64{}) {
		return nil
	}

	metrics := make(map[string]float64)
	if fl.IsUplink() {
		metrics["rx_count"] = 1
		metrics["gw_rx_count"] = float64(len(fl.UplinkFrame.RxInfo))
	} else {
		metrics["tx_count"] = 1
	}

	if decodeErr != nil {
		metrics["decode_error_count"] = 1
	} else if res.Degraded() {
		metrics["degraded_count"] = 1
	}

	return storage.SaveMetrics(ctx, fmt.Sprintf(deviceMetricsName, fl.DevEUI), storage.MetricsRecord{
		Time:    fl.Time,
		Metrics: metrics,
	})
}

// Package influxdb implements a sink writing the records as InfluxDB points.
package influxdb

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
)

// Sink implements the InfluxDB sink.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// New creates a new InfluxDB sink.
func New(c config.InfluxDBSink) (*Sink, error) {
	log.WithFields(log.Fields{
		"url":    c.URL,
		"org":    c.Org,
		"bucket": c.Bucket,
	}).Info("sink/influxdb: setting up client")

	if c.URL == "" {
		return nil, errors.New("sink/influxdb: url must be set")
	}

	client := influxdb2.NewClient(c.URL, c.Token)
	return &Sink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(c.Org, c.Bucket),
	}, nil
}

// Write writes the given records as points.
func (s *Sink) Write(ctx context.Context, records []formatter.Record) error {
	points := make([]*write.Point, 0, len(records))
	for _, r := range records {
		points = append(points, NewPoint(r))
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		influxPointCounter("error").Add(float64(len(points)))
		return errors.Wrap(err, "sink/influxdb: write points error")
	}
	influxPointCounter("ok").Add(float64(len(points)))

	return nil
}

// Close closes the client.
func (s *Sink) Close() error {
	log.Info("sink/influxdb: closing sink")
	s.client.Close()
	return nil
}

// NewPoint returns the point for the given record. Tags are converted to
// strings and the fields to their configured field type.
func NewPoint(r formatter.Record) *write.Point {
	tags := make(map[string]string, len(r.Tags)+1)
	for k, v := range r.Tags {
		if v == nil {
			continue
		}
		tags[k] = fmt.Sprint(v)
	}
	tags["dev_eui"] = r.DevEUI.String()

	fields := make(map[string]interface{}, len(r.Fields))
	for k, v := range r.Fields {
		if v == nil {
			continue
		}

		switch r.FieldTypes[k] {
		case formatter.FieldTypeFloat:
			if f, ok := toFloat(v); ok {
				fields[k] = f
				continue
			}
		case formatter.FieldTypeInteger:
			if f, ok := toFloat(v); ok {
				fields[k] = int64(f)
				continue
			}
		}
		fields[k] = v
	}

	return influxdb2.NewPoint(r.Measurement, tags, fields, r.Time)
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint32:
		return float64(t), true
	default:
		return 0, false
	}
}

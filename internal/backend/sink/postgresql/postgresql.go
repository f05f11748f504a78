// Package postgresql implements a sink storing the records in PostgreSQL.
package postgresql

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
)

// Sink implements the PostgreSQL sink.
type Sink struct {
	table string
}

// New creates a new PostgreSQL sink. The storage package must be set up
// with a PostgreSQL DSN.
func New(c config.PostgreSQLSink) (*Sink, error) {
	if storage.DB() == nil {
		return nil, errors.New("postgresql dsn is not configured")
	}

	if c.Table == "" {
		c.Table = storage.DefaultFrameLogRecordTable
	}

	log.WithField("table", c.Table).Info("sink/postgresql: writing records to table")

	return &Sink{
		table: c.Table,
	}, nil
}

// Write stores the given records in a single transaction.
func (s *Sink) Write(ctx context.Context, records []formatter.Record) error {
	rows := make([]storage.FrameLogRecord, 0, len(records))
	for _, r := range records {
		row, err := frameLogRecord(r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := storage.Transaction(ctx, func(tx *sqlx.Tx) error {
		return storage.CreateFrameLogRecords(ctx, tx, s.table, rows)
	})
	if err != nil {
		writeCounter("error").Add(float64(len(records)))
		return errors.Wrap(err, "create frame-log records error")
	}

	writeCounter("ok").Add(float64(len(records)))
	return nil
}

// Close closes the sink.
func (s *Sink) Close() error {
	return nil
}

func frameLogRecord(r formatter.Record) (storage.FrameLogRecord, error) {
	row := storage.FrameLogRecord{
		Time:        r.Time,
		Measurement: r.Measurement,
		DevEUI:      r.DevEUI[:],
	}

	for _, v := range []struct {
		target *types.JSONText
		value  interface{}
	}{
		{&row.Tags, r.Tags},
		{&row.Fields, r.Fields},
		{&row.FieldTypes, r.FieldTypes},
	} {
		b, err := json.Marshal(v.value)
		if err != nil {
			return row, errors.Wrap(err, "marshal json error")
		}
		*v.target = types.JSONText(b)
	}

	return row, nil
}

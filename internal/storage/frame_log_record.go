package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
)

// DefaultFrameLogRecordTable defines the table created by the migrations.
const DefaultFrameLogRecordTable = "frame_log_record"

// FrameLogRecord defines a formatted frame-log record.
type FrameLogRecord struct {
	ID          int64          `db:"id"`
	Time        time.Time      `db:"time"`
	Measurement string         `db:"measurement"`
	DevEUI      []byte         `db:"dev_eui"`
	Tags        types.JSONText `db:"tags"`
	Fields      types.JSONText `db:"fields"`
	FieldTypes  types.JSONText `db:"field_types"`
}

// CreateFrameLogRecords inserts the given records in the given table.
// The ID of each record is set on success.
func CreateFrameLogRecords(ctx context.Context, db sqlx.QueryerContext, table string, records []FrameLogRecord) error {
	if table == "" {
		table = DefaultFrameLogRecordTable
	}

	query := fmt.Sprintf(`
		insert into %s (
			time,
			measurement,
			dev_eui,
			tags,
			fields,
			field_types
		) values ($1, $2, $3, $4, $5, $6)
		returning id`, pq.QuoteIdentifier(table))

	for i := range records {
		r := &records[i]
		if r.Time.IsZero() {
			r.Time = time.Now()
		}

		err := sqlx.GetContext(ctx, db, &r.ID, query,
			r.Time,
			r.Measurement,
			r.DevEUI,
			r.Tags,
			r.Fields,
			r.FieldTypes,
		)
		if err != nil {
			return handleStorageError(err, "insert error")
		}
	}

	log.WithFields(log.Fields{
		"table":  table,
		"count":  len(records),
		"ctx_id": ctx.Value(logging.ContextIDKey),
	}).Debug("storage: frame-log records created")

	return nil
}

// GetFrameLogRecords returns the most recent records for the given DevEUI.
func GetFrameLogRecords(ctx context.Context, db sqlx.QueryerContext, table string, devEUI []byte, limit int) ([]FrameLogRecord, error) {
	if table == "" {
		table = DefaultFrameLogRecordTable
	}

	var out []FrameLogRecord
	err := sqlx.SelectContext(ctx, db, &out, fmt.Sprintf(`
		select
			*
		from
			%s
		where
			dev_eui = $1
		order by
			time desc, id desc
		limit $2`, pq.QuoteIdentifier(table)),
		devEUI,
		limit,
	)
	if err != nil {
		return nil, handleStorageError(err, "select error")
	}

	return out, nil
}

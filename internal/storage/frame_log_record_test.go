package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func (ts *StorageTestSuite) TestFrameLogRecords() {
	assert := require.New(ts.T())
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()
	devEUI := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	records := []FrameLogRecord{
		{
			Time:        now,
			Measurement: "device_uplink_frame_log",
			DevEUI:      devEUI,
			Tags:        types.JSONText(`{"dev_eui": "0102030405060708"}`),
			Fields:      types.JSONText(`{"rx_info.rssi": -60}`),
			FieldTypes:  types.JSONText(`{"rx_info.rssi": "float"}`),
		},
		{
			Time:        now.Add(time.Second),
			Measurement: "device_downlink_frame_log",
			DevEUI:      devEUI,
			Tags:        types.JSONText(`{"dev_eui": "0102030405060708"}`),
			Fields:      types.JSONText(`{"value": 1}`),
			FieldTypes:  types.JSONText(`{}`),
		},
	}

	assert.NoError(Transaction(ctx, func(tx *sqlx.Tx) error {
		return CreateFrameLogRecords(ctx, tx, "", records)
	}))
	assert.NotEqual(int64(0), records[0].ID)
	assert.NotEqual(records[0].ID, records[1].ID)

	out, err := GetFrameLogRecords(ctx, DB(), DefaultFrameLogRecordTable, devEUI, 10)
	assert.NoError(err)
	assert.Len(out, 2)

	// most recent first
	assert.Equal(records[1].ID, out[0].ID)
	assert.Equal("device_downlink_frame_log", out[0].Measurement)
	assert.True(records[1].Time.Equal(out[0].Time))

	var fields map[string]float64
	assert.NoError(out[1].Fields.Unmarshal(&fields))
	assert.Equal(map[string]float64{"rx_info.rssi": -60}, fields)

	out, err = GetFrameLogRecords(ctx, DB(), "", []byte{8, 7, 6, 5, 4, 3, 2, 1}, 10)
	assert.NoError(err)
	assert.Len(out, 0)
}

func (ts *StorageTestSuite) TestFrameLogRecordsUnknownTable() {
	assert := require.New(ts.T())
	ctx := context.Background()

	_, err := GetFrameLogRecords(ctx, DB(), "no_such_table", []byte{1, 2, 3, 4, 5, 6, 7, 8}, 10)
	assert.True(errors.Is(err, ErrUnknownTable), "unexpected error: %v", err)
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func (ts *StorageTestSuite) TestMetrics() {
	assert := require.New(ts.T())
	loc, err := time.LoadLocation("Europe/Amsterdam")
	assert.NoError(err)

	assert.NoError(SetTimeLocation("Europe/Amsterdam"))
	SetMetricsTTL(time.Minute, time.Minute, time.Minute, time.Minute)

	tests := []struct {
		Name        string
		Interval    AggregationInterval
		SaveMetrics []MetricsRecord
		GetStart    time.Time
		GetEnd      time.Time
		GetMetrics  []MetricsRecord
	}{
		{
			Name:     "minute aggregation",
			Interval: AggregationMinute,
			SaveMetrics: []MetricsRecord{
				{Time: time.Date(2018, 1, 1, 1, 1, 1, 0, loc), Metrics: map[string]float64{"rx_count": 1, "rssi_sum": -60}},
				{Time: time.Date(2018, 1, 1, 1, 1, 2, 0, loc), Metrics: map[string]float64{"rx_count": 1, "rssi_sum": -70}},
				{Time: time.Date(2018, 1, 1, 1, 2, 0, 0, loc), Metrics: map[string]float64{"rx_count": 1}},
			},
			GetStart: time.Date(2018, 1, 1, 1, 1, 1, 0, loc),
			GetEnd:   time.Date(2018, 1, 1, 1, 2, 1, 0, loc),
			GetMetrics: []MetricsRecord{
				{Time: time.Date(2018, 1, 1, 1, 1, 0, 0, loc), Metrics: map[string]float64{"rx_count": 2, "rssi_sum": -130}},
				{Time: time.Date(2018, 1, 1, 1, 2, 0, 0, loc), Metrics: map[string]float64{"rx_count": 1}},
			},
		},
		{
			Name:     "day aggregation with empty day",
			Interval: AggregationDay,
			SaveMetrics: []MetricsRecord{
				{Time: time.Date(2018, 1, 1, 1, 1, 1, 0, loc), Metrics: map[string]float64{"rx_count": 1}},
				{Time: time.Date(2018, 1, 3, 1, 1, 1, 0, loc), Metrics: map[string]float64{"rx_count": 3}},
			},
			GetStart: time.Date(2018, 1, 1, 12, 0, 0, 0, loc),
			GetEnd:   time.Date(2018, 1, 3, 12, 0, 0, 0, loc),
			GetMetrics: []MetricsRecord{
				{Time: time.Date(2018, 1, 1, 0, 0, 0, 0, loc), Metrics: map[string]float64{"rx_count": 1}},
				{Time: time.Date(2018, 1, 2, 0, 0, 0, 0, loc), Metrics: map[string]float64{}},
				{Time: time.Date(2018, 1, 3, 0, 0, 0, 0, loc), Metrics: map[string]float64{"rx_count": 3}},
			},
		},
		{
			Name:     "month aggregation",
			Interval: AggregationMonth,
			SaveMetrics: []MetricsRecord{
				{Time: time.Date(2018, 1, 1, 1, 1, 1, 0, loc), Metrics: map[string]float64{"rx_count": 1}},
				{Time: time.Date(2018, 1, 31, 1, 1, 1, 0, loc), Metrics: map[string]float64{"rx_count": 1}},
			},
			GetStart: time.Date(2018, 1, 1, 0, 0, 0, 0, loc),
			GetEnd:   time.Date(2018, 1, 31, 0, 0, 0, 0, loc),
			GetMetrics: []MetricsRecord{
				{Time: time.Date(2018, 1, 1, 0, 0, 0, 0, loc), Metrics: map[string]float64{"rx_count": 2}},
			},
		},
	}

	for _, tst := range tests {
		ts.T().Run(tst.Name, func(t *testing.T) {
			assert := require.New(t)
			assert.NoError(RedisClient().FlushAll(context.Background()).Err())
			assert.NoError(SetAggregationIntervals([]AggregationInterval{tst.Interval}))

			for _, m := range tst.SaveMetrics {
				assert.NoError(SaveMetrics(context.Background(), "device:0102030405060708", m))
			}

			metrics, err := GetMetrics(context.Background(), tst.Interval, "device:0102030405060708", tst.GetStart, tst.GetEnd)
			assert.NoError(err)
			assert.Len(metrics, len(tst.GetMetrics))
			for i := range metrics {
				assert.True(tst.GetMetrics[i].Time.Equal(metrics[i].Time))
				assert.Equal(tst.GetMetrics[i].Metrics, metrics[i].Metrics)
			}
		})
	}

	ts.T().Run("invalid interval", func(t *testing.T) {
		assert := require.New(t)
		assert.Error(SetAggregationIntervals([]AggregationInterval{"WEEK"}))
	})
}

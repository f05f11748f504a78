package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
)

// AggregationInterval defines the aggregation type.
type AggregationInterval string

// Metrics aggregation intervals.
const (
	AggregationMinute AggregationInterval = "MINUTE"
	AggregationHour   AggregationInterval = "HOUR"
	AggregationDay    AggregationInterval = "DAY"
	AggregationMonth  AggregationInterval = "MONTH"
)

const (
	metricsKeyTempl = "lora:ti:metrics:%s:%s:%d" // metrics key (identifier | aggregation | timestamp)
)

var (
	timeLocation         = time.Local
	aggregationIntervals []AggregationInterval
	metricsTTL           = map[AggregationInterval]time.Duration{}
)

// MetricsRecord holds a single metrics record.
type MetricsRecord struct {
	Time    time.Time
	Metrics map[string]float64
}

// SetTimeLocation sets the time location.
func SetTimeLocation(name string) error {
	var err error
	timeLocation, err = time.LoadLocation(name)
	if err != nil {
		return errors.Wrap(err, "load location error")
	}
	return nil
}

// SetAggregationIntervals sets the metrics aggregation to the given intervals.
func SetAggregationIntervals(intervals []AggregationInterval) error {
	for _, agg := range intervals {
		switch agg {
		case AggregationMinute, AggregationHour, AggregationDay, AggregationMonth:
		default:
			return fmt.Errorf("unexpected aggregation interval: %s", agg)
		}
	}
	aggregationIntervals = intervals
	return nil
}

// SetMetricsTTL sets the storage TTL.
func SetMetricsTTL(minute, hour, day, month time.Duration) {
	metricsTTL = map[AggregationInterval]time.Duration{
		AggregationMinute: minute,
		AggregationHour:   hour,
		AggregationDay:    day,
		AggregationMonth:  month,
	}
}

// SaveMetrics stores the given metrics into Redis for all the configured
// aggregation intervals.
func SaveMetrics(ctx context.Context, name string, metrics MetricsRecord) error {
	for _, agg := range aggregationIntervals {
		if err := SaveMetricsForInterval(ctx, agg, name, metrics); err != nil {
			return errors.Wrap(err, "save metrics for interval error")
		}
	}

	log.WithFields(log.Fields{
		"name":        name,
		"aggregation": aggregationIntervals,
		"ctx_id":      ctx.Value(logging.ContextIDKey),
	}).Debug("storage: metrics saved")

	return nil
}

// SaveMetricsForInterval aggregates and stores the given metrics.
func SaveMetricsForInterval(ctx context.Context, agg AggregationInterval, name string, metrics MetricsRecord) error {
	if len(metrics.Metrics) == 0 {
		return nil
	}

	ts, err := truncateTime(agg, metrics.Time, 0)
	if err != nil {
		return err
	}
	key := GetRedisKey(metricsKeyTempl, name, agg, ts.Unix())

	pipe := RedisClient().TxPipeline()
	for k, v := range metrics.Metrics {
		pipe.HIncrByFloat(ctx, key, k, v)
	}
	pipe.PExpire(ctx, key, metricsTTL[agg])

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "exec error")
	}

	return nil
}

// GetMetrics returns the metrics for the requested aggregation interval.
func GetMetrics(ctx context.Context, agg AggregationInterval, name string, start, end time.Time) ([]MetricsRecord, error) {
	end, err := truncateTime(agg, end, 0)
	if err != nil {
		return nil, err
	}

	var timestamps []time.Time
	for i := 0; ; i++ {
		ts, _ := truncateTime(agg, start, i)
		if ts.After(end) {
			break
		}
		timestamps = append(timestamps, ts)
	}

	if len(timestamps) == 0 {
		return nil, nil
	}

	pipe := RedisClient().Pipeline()
	var cmds []*redis.StringStringMapCmd
	for _, ts := range timestamps {
		cmds = append(cmds, pipe.HGetAll(ctx, GetRedisKey(metricsKeyTempl, name, agg, ts.Unix())))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "exec error")
	}

	var out []MetricsRecord
	for i, ts := range timestamps {
		metrics := MetricsRecord{
			Time:    ts,
			Metrics: make(map[string]float64),
		}

		vals, err := cmds[i].Result()
		if err != nil {
			return nil, errors.Wrap(err, "hgetall error")
		}

		for k, v := range vals {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errors.Wrap(err, "parse float error")
			}
			metrics.Metrics[k] = f
		}

		out = append(out, metrics)
	}

	return out, nil
}

// truncateTime truncates t to the start of the aggregation interval, moved
// by offset intervals.
func truncateTime(agg AggregationInterval, t time.Time, offset int) (time.Time, error) {
	t = t.In(timeLocation)

	switch agg {
	case AggregationMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()+offset, 0, 0, timeLocation), nil
	case AggregationHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+offset, 0, 0, 0, timeLocation), nil
	case AggregationDay:
		return time.Date(t.Year(), t.Month(), t.Day()+offset, 0, 0, 0, 0, timeLocation), nil
	case AggregationMonth:
		return time.Date(t.Year(), t.Month()+time.Month(offset), 1, 0, 0, 0, 0, timeLocation), nil
	default:
		return t, fmt.Errorf("unexpected aggregation interval: %s", agg)
	}
}

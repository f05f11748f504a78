package redisstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ec = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "source_redis_stream_entry_count",
		Help: "The number of frame-log entries read from the Redis Stream (per key and result).",
	}, []string{"key", "result"})

	rec = promauto.NewCounter(prometheus.CounterOpts{
		Name: "source_redis_stream_read_error_count",
		Help: "The number of failed Redis Stream reads.",
	})
)

func entryCounter(key, result string) prometheus.Counter {
	return ec.With(prometheus.Labels{"key": key, "result": result})
}

func readErrorCounter() prometheus.Counter {
	return rec
}

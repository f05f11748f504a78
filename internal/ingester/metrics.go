package ingester

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingester_frame_log_count",
		Help: "The number of frame-logs handled by the ingester (per direction and result).",
	}, []string{"direction", "result"})

	rc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingester_record_count",
		Help: "The number of records written to the sink.",
	})

	wd = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "ingester_sink_write_duration_seconds",
		Help: "The duration of the sink writes.",
	})
)

func frameLogCounter(direction, result string) prometheus.Counter {
	return fc.With(prometheus.Labels{"direction": direction, "result": result})
}

func recordCounter() prometheus.Counter {
	return rc
}

func sinkWriteDuration() prometheus.Observer {
	return wd
}

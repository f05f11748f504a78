package influxdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_influxdb_point_count",
		Help: "The number of points written by the InfluxDB sink (per result).",
	}, []string{"result"})
)

func influxPointCounter(r string) prometheus.Counter {
	return pc.With(prometheus.Labels{"result": r})
}

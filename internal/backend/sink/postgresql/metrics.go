package postgresql

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_postgresql_record_count",
		Help: "The number of records written to PostgreSQL (per result).",
	}, []string{"result"})
)

func writeCounter(result string) prometheus.Counter {
	return wc.With(prometheus.Labels{"result": result})
}

package decoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decoder_decode_count",
		Help: "The number of decode operations (per pass and result).",
	}, []string{"pass", "result"})
)

func decodeCounter(pass, result string) prometheus.Counter {
	return dc.With(prometheus.Labels{"pass": pass, "result": result})
}

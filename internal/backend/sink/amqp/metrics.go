package amqp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_amqp_publish_count",
		Help: "The number of records published by the AMQP / RabbitMQ sink (per measurement).",
	}, []string{"measurement"})
)

func amqpPublishCounter(m string) prometheus.Counter {
	return pc.With(prometheus.Labels{"measurement": m})
}

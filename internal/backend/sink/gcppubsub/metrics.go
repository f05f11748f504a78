package gcppubsub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_gcp_pub_sub_publish_count",
		Help: "The number of records published by the GCP Pub/Sub sink (per measurement).",
	}, []string{"measurement"})
)

func gcpPublishCounter(m string) prometheus.Counter {
	return pc.With(prometheus.Labels{"measurement": m})
}

package azureservicebus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_azure_service_bus_send_count",
		Help: "The number of records sent by the Azure Service Bus sink (per measurement).",
	}, []string{"measurement"})
)

func azureSendCounter(m string) prometheus.Counter {
	return sc.With(prometheus.Labels{"measurement": m})
}

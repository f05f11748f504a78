package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_mqtt_publish_count",
		Help: "The number of records published by the MQTT sink (per measurement).",
	}, []string{"measurement"})

	mqttc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sink_mqtt_connect_count",
		Help: "The number of times the MQTT sink connected to the MQTT broker.",
	})

	mqttd = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sink_mqtt_disconnect_count",
		Help: "The number of times the MQTT sink disconnected from the MQTT broker.",
	})
)

func mqttPublishCounter(m string) prometheus.Counter {
	return pc.With(prometheus.Labels{"measurement": m})
}

func mqttConnectCounter() prometheus.Counter {
	return mqttc
}

func mqttDisconnectCounter() prometheus.Counter {
	return mqttd
}

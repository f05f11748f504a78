package devicestream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "source_device_stream_devices",
		Help: "The number of devices for which a frame-log stream is open.",
	})

	fc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "source_device_stream_frame_log_count",
		Help: "The number of frame-logs received from the device streams (per direction).",
	}, []string{"direction"})

	sc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "source_device_stream_skipped_count",
		Help: "The number of backlog frame-logs skipped when opening a device stream.",
	})

	mqttc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "source_device_stream_mqtt_connect_count",
		Help: "The number of times the device-stream source connected to the MQTT broker.",
	})

	mqttd = promauto.NewCounter(prometheus.CounterOpts{
		Name: "source_device_stream_mqtt_disconnect_count",
		Help: "The number of times the device-stream source disconnected from the MQTT broker.",
	})
)

func devicesGauge() prometheus.Gauge {
	return dg
}

func frameLogCounter(direction string) prometheus.Counter {
	return fc.With(prometheus.Labels{"direction": direction})
}

func skippedCounter() prometheus.Counter {
	return sc
}

func mqttConnectCounter() prometheus.Counter {
	return mqttc
}

func mqttDisconnectCounter() prometheus.Counter {
	return mqttd
}

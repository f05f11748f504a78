// Package mqtt implements a sink publishing the records as JSON to a MQTT
// broker.
package mqtt

import (
	"context"
	"text/template"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/tls"
)

// Sink implements the MQTT sink.
type Sink struct {
	config        config.MQTTSink
	conn          paho.Client
	topicTemplate *template.Template
}

// New creates a new MQTT sink.
func New(c config.MQTTSink) (*Sink, error) {
	var err error
	s := Sink{
		config: c,
	}

	s.topicTemplate, err = template.New("topic").Parse(c.TopicTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "sink/mqtt: parse topic template error")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.Server)
	opts.SetUsername(c.Username)
	opts.SetPassword(c.Password)
	opts.SetCleanSession(c.CleanSession)
	opts.SetClientID(c.ClientID)
	opts.SetOnConnectHandler(s.onConnected)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	tlsconfig, err := tls.NewConfig(c.CACert, c.TLSCert, c.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "sink/mqtt: load tls config error")
	}
	if tlsconfig != nil {
		opts.SetTLSConfig(tlsconfig)
	}

	log.WithField("server", c.Server).Info("sink/mqtt: connecting to mqtt broker")
	s.conn = paho.NewClient(opts)
	for {
		if token := s.conn.Connect(); token.Wait() && token.Error() != nil {
			log.Errorf("sink/mqtt: connecting to mqtt broker failed, will retry in 2s: %s", token.Error())
			time.Sleep(2 * time.Second)
		} else {
			break
		}
	}

	return &s, nil
}

// Write publishes each record to the topic returned by the topic template.
func (s *Sink) Write(ctx context.Context, records []formatter.Record) error {
	for _, r := range records {
		topic, err := sink.ExecuteTemplate(s.topicTemplate, r)
		if err != nil {
			return errors.Wrap(err, "sink/mqtt: topic template error")
		}

		b, err := sink.MarshalRecord(r)
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"topic":  topic,
			"qos":    s.config.QOS,
			"ctx_id": ctx.Value(logging.ContextIDKey),
		}).Debug("sink/mqtt: publishing record")

		if token := s.conn.Publish(topic, s.config.QOS, false, b); token.Wait() && token.Error() != nil {
			return errors.Wrap(token.Error(), "sink/mqtt: publish record error")
		}

		mqttPublishCounter(r.Measurement).Inc()
	}

	return nil
}

// Close disconnects from the MQTT broker.
func (s *Sink) Close() error {
	log.Info("sink/mqtt: closing sink")
	s.conn.Disconnect(250)
	return nil
}

func (s *Sink) onConnected(c paho.Client) {
	mqttConnectCounter().Inc()
	log.Info("sink/mqtt: connected to mqtt server")
}

func (s *Sink) onConnectionLost(c paho.Client, reason error) {
	mqttDisconnectCounter().Inc()
	log.Errorf("sink/mqtt: mqtt connection error: %s", reason)
}

// Package azureservicebus implements a sink sending the records as JSON
// messages to an Azure Service Bus topic.
package azureservicebus

import (
	"context"
	"time"

	servicebus "github.com/Azure/azure-service-bus-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
)

const closeTimeout = 5 * time.Second

// Sink implements the Azure Service Bus sink.
type Sink struct {
	topic *servicebus.Topic
}

// New creates a new Azure Service Bus sink.
func New(c config.AzureServiceBusSink) (*Sink, error) {
	log.WithField("topic", c.Topic).Info("sink/azure_service_bus: setting up service-bus topic")

	ns, err := servicebus.NewNamespace(servicebus.NamespaceWithConnectionString(c.ConnectionString))
	if err != nil {
		return nil, errors.Wrap(err, "sink/azure_service_bus: new namespace error")
	}

	topic, err := ns.NewTopic(c.Topic)
	if err != nil {
		return nil, errors.Wrap(err, "sink/azure_service_bus: new topic error")
	}

	return &Sink{topic: topic}, nil
}

// Write sends the given records.
func (s *Sink) Write(ctx context.Context, records []formatter.Record) error {
	for _, r := range records {
		b, err := sink.MarshalRecord(r)
		if err != nil {
			return err
		}

		msg := newMessage(r, b)
		if err := s.topic.Send(ctx, msg); err != nil {
			return errors.Wrap(err, "sink/azure_service_bus: send message error")
		}
		azureSendCounter(r.Measurement).Inc()
	}

	return nil
}

// Close closes the topic sender.
func (s *Sink) Close() error {
	log.Info("sink/azure_service_bus: closing sink")
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return s.topic.Close(ctx)
}

func newMessage(r formatter.Record, b []byte) *servicebus.Message {
	msg := servicebus.NewMessage(b)
	msg.ContentType = "application/json"
	msg.UserProperties = map[string]interface{}{
		"measurement": r.Measurement,
		"dev_eui":     r.DevEUI.String(),
	}
	return msg
}

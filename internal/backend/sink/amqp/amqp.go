// Package amqp implements a sink publishing the records as JSON to an
// AMQP / RabbitMQ exchange.
package amqp

import (
	"context"
	"text/template"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/logging"
)

const poolSize = 10

// Sink implements the AMQP sink.
type Sink struct {
	chPool     *pool
	exchange   string
	routingKey *template.Template
}

// New creates a new AMQP sink.
func New(c config.AMQPSink) (*Sink, error) {
	var err error
	s := Sink{
		exchange: c.Exchange,
	}

	s.routingKey, err = template.New("routing_key").Parse(c.RoutingKeyTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "sink/amqp: parse routing-key template error")
	}

	log.Info("sink/amqp: connecting to AMQP server")
	s.chPool, err = newPool(poolSize, c.URL)
	if err != nil {
		return nil, errors.Wrap(err, "sink/amqp: new amqp channel pool error")
	}

	return &s, nil
}

// Write publishes the given records to the exchange, using the routing-key
// returned by the routing-key template.
func (s *Sink) Write(ctx context.Context, records []formatter.Record) error {
	ch, err := s.chPool.get()
	if err != nil {
		return errors.Wrap(err, "sink/amqp: get amqp channel from pool error")
	}
	defer ch.close()

	for _, r := range records {
		routingKey, err := sink.ExecuteTemplate(s.routingKey, r)
		if err != nil {
			return errors.Wrap(err, "sink/amqp: routing-key template error")
		}

		b, err := sink.MarshalRecord(r)
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"exchange":    s.exchange,
			"routing_key": routingKey,
			"ctx_id":      ctx.Value(logging.ContextIDKey),
		}).Debug("sink/amqp: publishing record")

		err = ch.ch.Publish(
			s.exchange,
			routingKey,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        b,
			},
		)
		if err != nil {
			ch.markUnusable()
			return errors.Wrap(err, "sink/amqp: publish record error")
		}

		amqpPublishCounter(r.Measurement).Inc()
	}

	return nil
}

// Close closes the channel pool and the AMQP connection.
func (s *Sink) Close() error {
	log.Info("sink/amqp: closing sink")
	return s.chPool.close()
}

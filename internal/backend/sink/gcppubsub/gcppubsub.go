// Package gcppubsub implements a sink publishing the records as JSON to a
// Google Cloud Pub/Sub topic.
package gcppubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/backend/sink"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
)

// Sink implements the Google Cloud Pub/Sub sink.
type Sink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New creates a new Google Cloud Pub/Sub sink. The topic must exist.
func New(c config.GCPPubSubSink, opts ...option.ClientOption) (*Sink, error) {
	var err error
	var s Sink
	ctx := context.Background()

	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}

	log.Info("sink/gcp_pub_sub: setting up client")
	s.client, err = pubsub.NewClient(ctx, c.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "sink/gcp_pub_sub: new pubsub client error")
	}

	log.WithField("topic", c.TopicName).Info("sink/gcp_pub_sub: setup topic")
	s.topic = s.client.Topic(c.TopicName)
	ok, err := s.topic.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "sink/gcp_pub_sub: topic exists error")
	}
	if !ok {
		return nil, fmt.Errorf("sink/gcp_pub_sub: topic '%s' does not exist", c.TopicName)
	}

	return &s, nil
}

// Write publishes the given records and waits until all records are
// published.
func (s *Sink) Write(ctx context.Context, records []formatter.Record) error {
	var results []*pubsub.PublishResult

	for _, r := range records {
		b, err := sink.MarshalRecord(r)
		if err != nil {
			return err
		}

		results = append(results, s.topic.Publish(ctx, &pubsub.Message{
			Data: b,
			Attributes: map[string]string{
				"measurement": r.Measurement,
				"dev_eui":     r.DevEUI.String(),
			},
		}))
	}

	for i, res := range results {
		if _, err := res.Get(ctx); err != nil {
			return errors.Wrap(err, "sink/gcp_pub_sub: publish record error")
		}
		gcpPublishCounter(records[i].Measurement).Inc()
	}

	return nil
}

// Close stops the topic publisher and closes the client.
func (s *Sink) Close() error {
	log.Info("sink/gcp_pub_sub: closing sink")
	s.topic.Stop()
	return s.client.Close()
}

// Package sink defines the record sink interface.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"text/template"

	"github.com/pkg/errors"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

// Sink types.
const (
	TypePostgreSQL = "postgresql"
	TypeMQTT       = "mqtt"
	TypeAMQP       = "amqp"
	TypeGCPPubSub  = "gcp_pub_sub"

	TypeAzureServiceBus = "azure_service_bus"
	TypeInfluxDB        = "influxdb"
)

// Sink is the interface of a record sink.
type Sink interface {
	Write(ctx context.Context, records []formatter.Record) error // write the given records
	Close() error                                                // close the sink
}

// TemplateContext holds the values which can be used in topic and
// routing-key templates.
type TemplateContext struct {
	Measurement string
	DevEUI      lorawan.EUI64
}

// ExecuteTemplate executes the given template for the given record.
func ExecuteTemplate(tmpl *template.Template, r formatter.Record) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buf, TemplateContext{
		Measurement: r.Measurement,
		DevEUI:      r.DevEUI,
	}); err != nil {
		return "", errors.Wrap(err, "execute template error")
	}
	return buf.String(), nil
}

// MarshalRecord returns the JSON representation of the given record.
func MarshalRecord(r formatter.Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal json error")
	}
	return b, nil
}

package amqp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/test"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

type SinkTestSuite struct {
	suite.Suite

	sink *Sink

	amqpConn     *amqp.Connection
	amqpChannel  *amqp.Channel
	deliveryChan <-chan amqp.Delivery
}

func (ts *SinkTestSuite) SetupSuite() {
	var err error
	assert := require.New(ts.T())
	conf := test.GetConfig()

	ts.sink, err = New(conf.Sink.AMQP)
	assert.NoError(err)

	ts.amqpConn, err = amqp.Dial(conf.Sink.AMQP.URL)
	assert.NoError(err)

	ts.amqpChannel, err = ts.amqpConn.Channel()
	assert.NoError(err)

	_, err = ts.amqpChannel.QueueDeclare(
		"test-telemetry-queue",
		true,
		false,
		false,
		false,
		nil,
	)
	assert.NoError(err)

	err = ts.amqpChannel.QueueBind(
		"test-telemetry-queue",
		"telemetry.#",
		conf.Sink.AMQP.Exchange,
		false,
		nil,
	)
	assert.NoError(err)

	ts.deliveryChan, err = ts.amqpChannel.Consume(
		"test-telemetry-queue",
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	assert.NoError(err)
}

func (ts *SinkTestSuite) TearDownSuite() {
	assert := require.New(ts.T())
	assert.NoError(ts.sink.Close())
	assert.NoError(ts.amqpConn.Close())
}

func (ts *SinkTestSuite) TestWrite() {
	assert := require.New(ts.T())
	devEUI := lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}

	assert.NoError(ts.sink.Write(context.Background(), []formatter.Record{
		{
			Time:        time.Now(),
			Measurement: formatter.MeasurementUplink,
			DevEUI:      devEUI,
			Tags:        map[string]interface{}{"m_type": "UnconfirmedDataUp"},
			Fields:      map[string]interface{}{formatter.FieldRSSI: -60.0},
			FieldTypes:  map[string]string{formatter.FieldRSSI: formatter.FieldTypeFloat},
		},
	}))

	select {
	case d := <-ts.deliveryChan:
		assert.Equal("telemetry.device_uplink_frame_log.0102030405060708", d.RoutingKey)
		assert.Equal("application/json", d.ContentType)

		var out map[string]interface{}
		assert.NoError(json.Unmarshal(d.Body, &out))
		assert.Equal("device_uplink_frame_log", out["measurement"])
	case <-time.After(time.Second):
		ts.T().Fatal("timeout waiting for delivery")
	}
}

func TestSink(t *testing.T) {
	suite.Run(t, new(SinkTestSuite))
}

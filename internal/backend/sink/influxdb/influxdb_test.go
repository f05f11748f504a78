package influxdb

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

func TestNewPoint(t *testing.T) {
	assert := require.New(t)

	p := NewPoint(formatter.Record{
		Time:        time.Unix(1600000000, 0),
		Measurement: formatter.MeasurementUplink,
		DevEUI:      lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
		Tags: map[string]interface{}{
			"m_type":          "UnconfirmedDataUp",
			"rx_info.channel": float64(2),
			"empty":           nil,
		},
		Fields: map[string]interface{}{
			formatter.FieldRSSI: -60,
			formatter.FieldSNR:  5.5,
			"rx_count":          float64(2),
		},
		FieldTypes: map[string]string{
			formatter.FieldRSSI: formatter.FieldTypeFloat,
			formatter.FieldSNR:  formatter.FieldTypeFloat,
			"rx_count":          formatter.FieldTypeInteger,
		},
	})

	assert.Equal("device_uplink_frame_log", p.Name())
	assert.Equal(time.Unix(1600000000, 0), p.Time())

	tags := make(map[string]string)
	for _, t := range p.TagList() {
		tags[t.Key] = t.Value
	}
	assert.Equal(map[string]string{
		"dev_eui":         "0102030405060708",
		"m_type":          "UnconfirmedDataUp",
		"rx_info.channel": "2",
	}, tags)

	fields := make(map[string]interface{})
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(map[string]interface{}{
		"rx_info.rssi":     float64(-60),
		"rx_info.lora_snr": 5.5,
		"rx_count":         int64(2),
	}, fields)
}

func TestSink(t *testing.T) {
	assert := require.New(t)

	type request struct {
		path   string
		org    string
		bucket string
		auth   string
		body   string
	}
	reqChan := make(chan request, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := ioutil.ReadAll(r.Body)
		reqChan <- request{
			path:   r.URL.Path,
			org:    r.URL.Query().Get("org"),
			bucket: r.URL.Query().Get("bucket"),
			auth:   r.Header.Get("Authorization"),
			body:   string(b),
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	s, err := New(config.InfluxDBSink{
		URL:    server.URL,
		Token:  "secret",
		Org:    "test-org",
		Bucket: "telemetry",
	})
	assert.NoError(err)

	assert.NoError(s.Write(context.Background(), []formatter.Record{
		{
			Time:        time.Unix(1600000000, 0),
			Measurement: formatter.MeasurementDownlink,
			DevEUI:      lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
			Fields:      map[string]interface{}{"value": 1},
			FieldTypes:  map[string]string{"value": formatter.FieldTypeInteger},
		},
	}))

	req := <-reqChan
	assert.Equal("/api/v2/write", req.path)
	assert.Equal("test-org", req.org)
	assert.Equal("telemetry", req.bucket)
	assert.Equal("Token secret", req.auth)
	assert.Contains(req.body, "device_downlink_frame_log,dev_eui=0102030405060708 value=1i 1600000000000000000")
	assert.NoError(s.Close())

	_, err = New(config.InfluxDBSink{})
	assert.Error(err)
}

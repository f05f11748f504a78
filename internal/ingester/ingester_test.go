package ingester

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/chirpstack-api/go/v3/ns"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/decoder"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/formatter"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/test"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

type testSource struct {
	frameLogChan chan framelog.FrameLog
}

func (s *testSource) FrameLogChan() chan framelog.FrameLog {
	return s.frameLogChan
}

func (s *testSource) Close() error {
	close(s.frameLogChan)
	return nil
}

type testSink struct {
	err     error
	records []formatter.Record
}

func (s *testSink) Write(ctx context.Context, records []formatter.Record) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *testSink) Close() error {
	return nil
}

type testKeyStore struct {
	observed []*lorawan.PHYPayload
}

func (k *testKeyStore) GetSessionKeys(devAddr lorawan.DevAddr) (lorawan.SessionKeys, error) {
	return lorawan.SessionKeys{}, lorawan.ErrKeyUnavailable
}

func (k *testKeyStore) ObserveFCnt(phy *lorawan.PHYPayload) {
	k.observed = append(k.observed, phy)
}

var devEUI = lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}

func uplinkFrameLog(phy string) framelog.FrameLog {
	b, err := hex.DecodeString(phy)
	if err != nil {
		panic(err)
	}

	return framelog.FrameLog{
		ID:     "1600000000000-0",
		Time:   time.Unix(1600000000, 0),
		DevEUI: devEUI,
		UplinkFrame: &ns.UplinkFrameLog{
			PhyPayload: b,
			TxInfo:     &gw.UplinkTXInfo{Frequency: 868100000},
			RxInfo: []*gw.UplinkRXInfo{
				{GatewayId: []byte{1, 1, 1, 1, 1, 1, 1, 1}, Rssi: -60, LoraSnr: 5.5},
				{GatewayId: []byte{2, 2, 2, 2, 2, 2, 2, 2}, Rssi: -80, LoraSnr: 1},
			},
		},
	}
}

func TestIngester(t *testing.T) {
	assert := require.New(t)

	src := &testSource{frameLogChan: make(chan framelog.FrameLog, 3)}
	snk := &testSink{}
	ks := &testKeyStore{}

	ing := New(src, snk, formatter.Formatter{}, decoder.Options{
		DecodeMACCommands: true,
		DecodeFRMPayload:  true,
		KeyStore:          ks,
	})
	ing.Start()

	// valid uplink, the frm-payload can not be decrypted
	src.frameLogChan <- uplinkFrameLog("4004030201000a000a0102030401020304")

	// structurally invalid phypayload
	src.frameLogChan <- uplinkFrameLog("4004")

	// empty frame-log, formatting fails but the loop continues
	src.frameLogChan <- framelog.FrameLog{ID: "1600000000001-0"}

	assert.NoError(src.Close())
	ing.Wait()

	assert.Len(ks.observed, 1)
	assert.Len(snk.records, 4)

	for _, r := range snk.records {
		assert.Equal(formatter.MeasurementUplink, r.Measurement)
		assert.Equal(devEUI, r.DevEUI)
	}

	assert.Contains(snk.records[0].Tags, "diagnostics.frm_payload")
	assert.NotContains(snk.records[0].Tags, "decode_error")
	assert.Contains(snk.records[2].Tags, "decode_error")
	assert.Equal("4004", snk.records[2].Tags["phy_payload"])
}

func TestHandleFrameLogSinkError(t *testing.T) {
	assert := require.New(t)

	snk := &testSink{err: errors.New("boom")}
	ing := New(&testSource{}, snk, formatter.Formatter{}, decoder.Options{})

	err := ing.HandleFrameLog(context.Background(), uplinkFrameLog("4004030201000a000a0102030401020304"))
	assert.Error(err)
	assert.Equal("sink write error: boom", err.Error())
}

type DeviceMetricsTestSuite struct {
	suite.Suite
}

func (ts *DeviceMetricsTestSuite) SetupSuite() {
	assert := require.New(ts.T())
	conf := test.GetConfig()
	conf.PostgreSQL.DSN = ""
	assert.NoError(storage.Setup(conf))

	storage.SetMetricsTTL(time.Minute, time.Minute, time.Minute, time.Minute)
	assert.NoError(storage.SetAggregationIntervals([]storage.AggregationInterval{storage.AggregationHour}))
}

func (ts *DeviceMetricsTestSuite) TearDownSuite() {
	assert := require.New(ts.T())
	assert.NoError(storage.SetAggregationIntervals(nil))
}

func (ts *DeviceMetricsTestSuite) SetupTest() {
	assert := require.New(ts.T())
	assert.NoError(storage.RedisClient().FlushAll(context.Background()).Err())
}

func (ts *DeviceMetricsTestSuite) TestSaveDeviceMetrics() {
	assert := require.New(ts.T())
	ctx := context.Background()

	ing := New(&testSource{}, &testSink{}, formatter.Formatter{}, decoder.Options{})
	ing.DeviceMetrics = true

	fl := uplinkFrameLog("4004030201000a000a0102030401020304")
	assert.NoError(ing.HandleFrameLog(ctx, fl))
	assert.NoError(ing.HandleFrameLog(ctx, uplinkFrameLog("4004")))

	metrics, err := storage.GetMetrics(ctx, storage.AggregationHour, fmt.Sprintf(deviceMetricsName, devEUI), fl.Time, fl.Time)
	assert.NoError(err)
	assert.Len(metrics, 1)
	assert.Equal(map[string]float64{
		"rx_count":           2,
		"gw_rx_count":        4,
		"decode_error_count": 1,
	}, metrics[0].Metrics)
}

func TestDeviceMetrics(t *testing.T) {
	suite.Run(t, new(DeviceMetricsTestSuite))
}

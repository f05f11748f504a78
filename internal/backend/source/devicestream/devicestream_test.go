package devicestream

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/protobuf/ptypes"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/chirpstack-api/go/v3/ns"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/config"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

type testStream struct {
	grpc.ClientStream

	ctx       context.Context
	responses chan *ns.StreamFrameLogsForDeviceResponse
}

func (s *testStream) Recv() (*ns.StreamFrameLogsForDeviceResponse, error) {
	select {
	case resp, ok := <-s.responses:
		if !ok {
			return nil, io.EOF
		}
		return resp, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

type testNetworkServerClient struct {
	ns.NetworkServerServiceClient

	requests  chan *ns.StreamFrameLogsForDeviceRequest
	responses chan *ns.StreamFrameLogsForDeviceResponse
}

func (c *testNetworkServerClient) StreamFrameLogsForDevice(ctx context.Context, in *ns.StreamFrameLogsForDeviceRequest, opts ...grpc.CallOption) (ns.NetworkServerService_StreamFrameLogsForDeviceClient, error) {
	c.requests <- in
	return &testStream{ctx: ctx, responses: c.responses}, nil
}

func uplinkResponse(t *testing.T, ts time.Time) *ns.StreamFrameLogsForDeviceResponse {
	pbTime, err := ptypes.TimestampProto(ts)
	require.NoError(t, err)

	return &ns.StreamFrameLogsForDeviceResponse{
		Frame: &ns.StreamFrameLogsForDeviceResponse_UplinkFrameSet{
			UplinkFrameSet: &ns.UplinkFrameLog{
				PhyPayload: []byte{0x40, 0x04, 0x03, 0x02, 0x01, 0x00, 0x0a, 0x00},
				RxInfo: []*gw.UplinkRXInfo{
					{Time: pbTime},
				},
			},
		},
	}
}

func TestSource(t *testing.T) {
	assert := require.New(t)
	devEUI := lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}

	client := testNetworkServerClient{
		requests:  make(chan *ns.StreamFrameLogsForDeviceRequest, 1),
		responses: make(chan *ns.StreamFrameLogsForDeviceResponse, 10),
	}

	s := newSource(config.DeviceStream{
		MaxBacklogAge: time.Second,
	}, &client)

	t.Run("Register device", func(t *testing.T) {
		assert := require.New(t)

		assert.True(s.register(devEUI))
		assert.False(s.register(devEUI))
		assert.Equal([]lorawan.EUI64{devEUI}, s.Devices())

		req := <-client.requests
		assert.Equal(devEUI[:], req.DevEui)
	})

	t.Run("Backlog frame-logs are skipped", func(t *testing.T) {
		assert := require.New(t)

		client.responses <- uplinkResponse(t, time.Now().Add(-time.Minute))
		client.responses <- uplinkResponse(t, time.Now().Add(-30*time.Second))
		client.responses <- uplinkResponse(t, time.Now())
		client.responses <- &ns.StreamFrameLogsForDeviceResponse{
			Frame: &ns.StreamFrameLogsForDeviceResponse_DownlinkFrame{
				DownlinkFrame: &ns.DownlinkFrameLog{},
			},
		}

		var fl framelog.FrameLog
		select {
		case fl = <-s.FrameLogChan():
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
		assert.True(fl.IsUplink())
		assert.Equal(devEUI, fl.DevEUI)
		assert.True(time.Since(fl.Time) < time.Second)

		select {
		case fl = <-s.FrameLogChan():
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
		assert.False(fl.IsUplink())
		assert.Equal(devEUI, fl.DevEUI)
	})

	t.Run("Device is unregistered when the stream ends", func(t *testing.T) {
		assert := require.New(t)

		close(client.responses)

		for i := 0; i < 10 && len(s.Devices()) != 0; i++ {
			time.Sleep(50 * time.Millisecond)
		}
		assert.Len(s.Devices(), 0)
	})

	assert.NoError(s.Close())
	_, ok := <-s.FrameLogChan()
	assert.False(ok)
	assert.False(s.register(devEUI))
}

func TestDevEUIFromTopic(t *testing.T) {
	tests := []struct {
		topic          string
		expectedDevEUI lorawan.EUI64
		expectedError  bool
	}{
		{
			topic:          "application/1/device/0102030405060708/event/up",
			expectedDevEUI: lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			topic:         "application/1/device",
			expectedError: true,
		},
		{
			topic:         "application/1/device/foo/event/up",
			expectedError: true,
		},
	}

	for _, tst := range tests {
		t.Run(tst.topic, func(t *testing.T) {
			assert := require.New(t)

			devEUI, err := devEUIFromTopic(tst.topic)
			if tst.expectedError {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tst.expectedDevEUI, devEUI)
		})
	}
}

func TestTokenCredentials(t *testing.T) {
	assert := require.New(t)

	dir, err := ioutil.TempDir("", "devicestream")
	assert.NoError(err)
	defer os.RemoveAll(dir)

	tokenFile := filepath.Join(dir, "token")
	assert.NoError(ioutil.WriteFile(tokenFile, []byte("secret-token\n"), 0600))

	tc, err := newTokenCredentials(tokenFile, true)
	assert.NoError(err)
	assert.True(tc.RequireTransportSecurity())

	md, err := tc.GetRequestMetadata(context.Background())
	assert.NoError(err)
	assert.Equal(map[string]string{"authorization": "Bearer secret-token"}, md)

	emptyFile := filepath.Join(dir, "empty")
	assert.NoError(ioutil.WriteFile(emptyFile, nil, 0600))
	_, err = newTokenCredentials(emptyFile, false)
	assert.Error(err)

	_, err = newTokenCredentials(filepath.Join(dir, "missing"), false)
	assert.Error(err)
}

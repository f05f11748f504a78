// Package framelog implements the frame-log model as published by the
// ChirpStack Network Server, either on the frame-log Redis Stream or the
// per-device frame-log API stream.
package framelog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	"github.com/pkg/errors"

	"github.com/brocaar/chirpstack-api/go/v3/ns"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/marshaler"
	"github.com/brocaar/chirpstack-telemetry-ingester/lorawan"
)

// Stream entry keys.
const (
	UplinkKey   = "up"
	DownlinkKey = "down"
)

// ErrUnknownKey is returned for stream entries with an unexpected key.
var ErrUnknownKey = errors.New("unknown frame-log stream key")

// FrameLog contains either an uplink or downlink frame-log.
type FrameLog struct {
	// ID holds the stream entry ID (when read from a Redis Stream).
	ID string

	// Time holds the time the frame-log was published.
	Time time.Time

	// DevEUI holds the DevEUI of the device (when known).
	DevEUI lorawan.EUI64

	UplinkFrame   *ns.UplinkFrameLog
	DownlinkFrame *ns.DownlinkFrameLog
}

// IsUplink returns true when the frame-log holds an uplink.
func (fl FrameLog) IsUplink() bool {
	return fl.UplinkFrame != nil
}

// PHYPayload returns the PHYPayload bytes.
func (fl FrameLog) PHYPayload() []byte {
	if fl.UplinkFrame != nil {
		return fl.UplinkFrame.PhyPayload
	}
	if fl.DownlinkFrame != nil {
		return fl.DownlinkFrame.PhyPayload
	}
	return nil
}

// Direction returns up or down.
func (fl FrameLog) Direction() string {
	if fl.IsUplink() {
		return UplinkKey
	}
	return DownlinkKey
}

// UnmarshalStreamEntry decodes the given stream entry field into a FrameLog.
// The value can be Protobuf or JSON encoded.
func UnmarshalStreamEntry(id, key string, b []byte) (FrameLog, error) {
	fl := FrameLog{
		ID:   id,
		Time: StreamIDTime(id),
	}

	switch key {
	case UplinkKey:
		fl.UplinkFrame = &ns.UplinkFrameLog{}
		if _, err := marshaler.UnmarshalUplinkFrameLog(b, fl.UplinkFrame); err != nil {
			return fl, errors.Wrap(err, "unmarshal uplink frame-log error")
		}
		copy(fl.DevEUI[:], fl.UplinkFrame.DevEui)
	case DownlinkKey:
		fl.DownlinkFrame = &ns.DownlinkFrameLog{}
		if _, err := marshaler.UnmarshalDownlinkFrameLog(b, fl.DownlinkFrame); err != nil {
			return fl, errors.Wrap(err, "unmarshal downlink frame-log error")
		}
		copy(fl.DevEUI[:], fl.DownlinkFrame.DevEui)
	default:
		return fl, errors.Wrapf(ErrUnknownKey, "key: %s", key)
	}

	return fl, nil
}

// MarshalStreamEntry returns the stream entry key and value for the given
// FrameLog.
func MarshalStreamEntry(t marshaler.Type, fl FrameLog) (string, []byte, error) {
	var m proto.Message
	if fl.UplinkFrame != nil {
		m = fl.UplinkFrame
	} else if fl.DownlinkFrame != nil {
		m = fl.DownlinkFrame
	} else {
		return "", nil, errors.New("frame-log is empty")
	}

	b, err := marshaler.Marshal(t, m)
	if err != nil {
		return "", nil, errors.Wrap(err, "marshal frame-log error")
	}

	return fl.Direction(), b, nil
}

// FromDeviceStreamResponse returns the FrameLog of the given device-stream
// response.
func FromDeviceStreamResponse(devEUI lorawan.EUI64, resp *ns.StreamFrameLogsForDeviceResponse) (FrameLog, error) {
	fl := FrameLog{
		Time:          time.Now(),
		DevEUI:        devEUI,
		UplinkFrame:   resp.GetUplinkFrameSet(),
		DownlinkFrame: resp.GetDownlinkFrame(),
	}

	if fl.UplinkFrame == nil && fl.DownlinkFrame == nil {
		return fl, errors.New("response does not contain a frame-log")
	}

	// the receive time of the first gateway is closer to the actual time
	// than the time the response was received
	if fl.UplinkFrame != nil && len(fl.UplinkFrame.RxInfo) != 0 && fl.UplinkFrame.RxInfo[0].Time != nil {
		if ts, err := ptypes.Timestamp(fl.UplinkFrame.RxInfo[0].Time); err == nil {
			fl.Time = ts
		}
	}

	return fl, nil
}

// StreamIDTime returns the time encoded in the Redis Stream ID
// (<milliseconds>-<sequence>). The zero time is returned when the ID can
// not be parsed.
func StreamIDTime(id string) time.Time {
	ms, err := strconv.ParseInt(strings.SplitN(id, "-", 2)[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}

// MarshalMap marshals the given protobuf message into a generic map, using
// the protobuf JSON mapping with the original field names and default
// values included.
func MarshalMap(m proto.Message) (map[string]interface{}, error) {
	if m == nil {
		return map[string]interface{}{}, nil
	}

	marshaler := jsonpb.Marshaler{
		EmitDefaults: true,
		OrigName:     true,
	}
	str, err := marshaler.MarshalToString(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal protobuf json error")
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(str), &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal json error")
	}

	return out, nil
}

// String implements fmt.Stringer.
func (fl FrameLog) String() string {
	return fmt.Sprintf("%s frame-log %s (dev_eui: %s)", fl.Direction(), fl.ID, fl.DevEUI)
}

// Package marshaler implements the frame-log (un)marshalers. Frame-logs can
// be encoded either as Protobuf or as JSON (using the Protobuf JSON mapping).
package marshaler

import (
	"bytes"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/brocaar/chirpstack-api/go/v3/ns"
)

// Type defines the marshaler type.
type Type int

// Marshaler types.
const (
	Protobuf Type = iota
	JSON
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case JSON:
		return "json"
	default:
		return "protobuf"
	}
}

// ParseType returns the Type for the given name.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "protobuf":
		return Protobuf, nil
	case "json":
		return JSON, nil
	default:
		return Protobuf, errors.Errorf("unknown marshaler: %s", s)
	}
}

// detect returns JSON when the payload looks like a JSON object. A
// Protobuf encoded frame-log never starts with '{' as 0x7b is not a valid
// key for any of the frame-log fields.
func detect(b []byte) Type {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) != 0 && b[0] == '{' {
		return JSON
	}
	return Protobuf
}

// UnmarshalUplinkFrameLog unmarshals an UplinkFrameLog.
func UnmarshalUplinkFrameLog(b []byte, fl *ns.UplinkFrameLog) (Type, error) {
	return unmarshal(b, fl)
}

// UnmarshalDownlinkFrameLog unmarshals a DownlinkFrameLog.
func UnmarshalDownlinkFrameLog(b []byte, fl *ns.DownlinkFrameLog) (Type, error) {
	return unmarshal(b, fl)
}

// Marshal marshals the given message using the given marshaler type.
func Marshal(t Type, msg proto.Message) ([]byte, error) {
	switch t {
	case JSON:
		m := jsonpb.Marshaler{}
		str, err := m.MarshalToString(msg)
		return []byte(str), err
	default:
		return proto.Marshal(msg)
	}
}

func unmarshal(b []byte, msg proto.Message) (Type, error) {
	t := detect(b)

	switch t {
	case JSON:
		m := jsonpb.Unmarshaler{
			AllowUnknownFields: true,
		}
		return t, m.Unmarshal(bytes.NewReader(b), msg)
	default:
		return t, proto.Unmarshal(b, msg)
	}
}

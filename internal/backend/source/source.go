// Package source defines the frame-log source interface.
package source

import "github.com/brocaar/chirpstack-telemetry-ingester/internal/framelog"

// Source types.
const (
	TypeRedisStream  = "redis_stream"
	TypeDeviceStream = "device_stream"
)

// Source is the interface of a frame-log source.
type Source interface {
	FrameLogChan() chan framelog.FrameLog // channel containing the received frame-logs
	Close() error                         // close the source, this closes the frame-log channel
}

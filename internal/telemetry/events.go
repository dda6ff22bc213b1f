package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Event is a telemetry message. Type is the last topic segment.
type Event interface {
	Type() string
}

// MarkerEvent reports a marker pose.
type MarkerEvent struct {
	InstanceID string      `json:"instance_id" msgpack:"instance_id"`
	SessionID  string      `json:"session_id" msgpack:"session_id"`
	UID        int         `json:"uid" msgpack:"uid"`
	Visible    bool        `json:"visible" msgpack:"visible"`
	Transform  [16]float32 `json:"transform" msgpack:"transform"`
	Timestamp  time.Time   `json:"timestamp" msgpack:"timestamp"`
}

func (MarkerEvent) Type() string { return "marker" }

// DistanceEvent reports the relation between a reference and a target marker.
type DistanceEvent struct {
	InstanceID string     `json:"instance_id" msgpack:"instance_id"`
	SessionID  string     `json:"session_id" msgpack:"session_id"`
	Reference  int        `json:"reference" msgpack:"reference"`
	Target     int        `json:"target" msgpack:"target"`
	Distance   float32    `json:"distance" msgpack:"distance"`
	Position   [4]float32 `json:"position" msgpack:"position"`
	Timestamp  time.Time  `json:"timestamp" msgpack:"timestamp"`
}

func (DistanceEvent) Type() string { return "distance" }

// StatusEvent is a periodic screen status report.
type StatusEvent struct {
	InstanceID      string    `json:"instance_id" msgpack:"instance_id"`
	SessionID       string    `json:"session_id" msgpack:"session_id"`
	State           string    `json:"state" msgpack:"state"`
	FramesOffered   uint64    `json:"frames_offered" msgpack:"frames_offered"`
	FramesProcessed uint64    `json:"frames_processed" msgpack:"frames_processed"`
	FramesTracked   uint64    `json:"frames_tracked" msgpack:"frames_tracked"`
	FramesDropped   uint64    `json:"frames_dropped" msgpack:"frames_dropped"`
	FramesRendered  uint64    `json:"frames_rendered" msgpack:"frames_rendered"`
	UptimeSeconds   int64     `json:"uptime_seconds" msgpack:"uptime_seconds"`
	Timestamp       time.Time `json:"timestamp" msgpack:"timestamp"`
}

func (StatusEvent) Type() string { return "status" }

// Encoding is a payload wire format.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding validates an encoding name.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingJSON, EncodingMsgpack:
		return Encoding(s), nil
	case "":
		return EncodingJSON, nil
	default:
		return "", fmt.Errorf("telemetry: unknown encoding %q", s)
	}
}

// Encode marshals ev in the given encoding.
func Encode(enc Encoding, ev Event) ([]byte, error) {
	switch enc {
	case EncodingMsgpack:
		return msgpack.Marshal(ev)
	default:
		return json.Marshal(ev)
	}
}

package mesh

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	pb "github.com/kabili207/meshtastic-go/core/proto"
)

var ErrMalformed = errors.New("malformed mesh payload")

// Event is a decoded broker message. Exactly one of the concrete event
// types below is returned by Decode.
type Event interface {
	Kind() Kind
	// Node is the sender node ID, empty if the envelope did not carry one.
	Node() string
}

type TextEvent struct {
	From    string
	Text    string
	Channel int
}

type PositionEvent struct {
	From      string
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
}

type NodeInfoEvent struct {
	From          string
	LongName      string
	ShortName     string
	HardwareModel string
}

type TelemetryEvent struct {
	From         string
	BatteryLevel *int
	Voltage      *float64
}

type UnknownEvent struct {
	From string
	Type string
}

func (e *TextEvent) Kind() Kind      { return KindText }
func (e *PositionEvent) Kind() Kind  { return KindPosition }
func (e *NodeInfoEvent) Kind() Kind  { return KindNodeInfo }
func (e *TelemetryEvent) Kind() Kind { return KindTelemetry }
func (e *UnknownEvent) Kind() Kind   { return KindUnknown }

func (e *TextEvent) Node() string      { return e.From }
func (e *PositionEvent) Node() string  { return e.From }
func (e *NodeInfoEvent) Node() string  { return e.From }
func (e *TelemetryEvent) Node() string { return e.From }
func (e *UnknownEvent) Node() string   { return e.From }

// HasPosition reports whether both coordinates are present.
func (e *PositionEvent) HasPosition() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// Decode parses a raw broker message into a typed event. Only a body that
// is not a JSON object is an error; mistyped or missing fields, in the
// envelope or the payload, are left absent.
func Decode(topic string, raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// json keeps decoding past a type mismatch
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) || typeErr.Field == "" {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	kind := Classify(topic, &env)
	from := string(env.From)

	var p rawPayload
	textPayload := ""
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			// A mistyped field leaves the others decoded
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				p = rawPayload{}
			}
			// Some publishers send text messages with a bare string payload
			_ = json.Unmarshal(env.Payload, &textPayload)
		}
	}

	switch kind {
	case KindText:
		text := p.Text
		if text == "" {
			text = textPayload
		}
		return &TextEvent{From: from, Text: text, Channel: env.Channel}, nil
	case KindPosition:
		return decodePosition(from, &p), nil
	case KindNodeInfo:
		return decodeNodeInfo(from, &p), nil
	case KindTelemetry:
		return decodeTelemetry(from, &p), nil
	default:
		return &UnknownEvent{From: from, Type: env.Type}, nil
	}
}

func decodePosition(from string, p *rawPayload) *PositionEvent {
	ev := &PositionEvent{From: from, Latitude: p.Latitude, Longitude: p.Longitude, Altitude: p.Altitude}
	if ev.Latitude == nil && p.LatitudeI != nil {
		ev.Latitude = scaleDegrees(*p.LatitudeI)
	}
	if ev.Longitude == nil && p.LongitudeI != nil {
		ev.Longitude = scaleDegrees(*p.LongitudeI)
	}
	return ev
}

func scaleDegrees(v int64) *float64 {
	f := float64(v) * 1e-7
	return &f
}

func decodeNodeInfo(from string, p *rawPayload) *NodeInfoEvent {
	ev := &NodeInfoEvent{From: from}
	if p.User != nil {
		ev.LongName = p.User.LongName
		ev.ShortName = p.User.ShortName
		ev.HardwareModel = hardwareName(p.User.HwModel)
	}
	if ev.LongName == "" {
		ev.LongName = p.LongName
	}
	if ev.ShortName == "" {
		ev.ShortName = p.ShortName
	}
	if ev.HardwareModel == "" {
		ev.HardwareModel = hardwareName(p.HwModel)
	}
	if ev.HardwareModel == "" {
		ev.HardwareModel = hardwareName(p.Hardware)
	}
	return ev
}

// hardwareName accepts either the enum name or its numeric value.
func hardwareName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	n, err := strconv.ParseInt(string(raw), 10, 32)
	if err != nil {
		return ""
	}
	return pb.HardwareModel(n).String()
}

func decodeTelemetry(from string, p *rawPayload) *TelemetryEvent {
	ev := &TelemetryEvent{From: from, Voltage: p.Voltage}
	level := p.BatteryLevel
	if level == nil {
		level = p.BatteryLevelSnake
	}
	if p.DeviceMetrics != nil {
		if level == nil {
			level = p.DeviceMetrics.BatteryLevel
		}
		if ev.Voltage == nil {
			ev.Voltage = p.DeviceMetrics.Voltage
		}
	}
	if level != nil {
		// Truncate so 19.6% still counts as below 20%
		b := int(math.Floor(*level))
		ev.BatteryLevel = &b
	}
	return ev
}

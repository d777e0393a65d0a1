package mesh

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BroadcastDestination addresses every node on the channel.
const BroadcastDestination = "^all"

// NodeID is a node identifier in the "!xxxxxxxx" form. Meshtastic JSON
// uplinks carry it as a number, hand-written publishers as a string.
type NodeID string

func (id *NodeID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = NodeID(s)
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 32)
	if err != nil {
		// Unusable sender, treat as absent
		*id = ""
		return nil
	}
	*id = FormatNodeNum(uint32(n))
	return nil
}

// FormatNodeNum renders a node number the way Meshtastic clients display it.
func FormatNodeNum(n uint32) NodeID {
	return NodeID(fmt.Sprintf("!%08x", n))
}

// Envelope is the outer JSON object published on the mesh topics.
type Envelope struct {
	From    NodeID          `json:"from"`
	Sender  string          `json:"sender"`
	Channel int             `json:"channel"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type rawUser struct {
	LongName  string          `json:"longName"`
	ShortName string          `json:"shortName"`
	HwModel   json.RawMessage `json:"hwModel"`
}

// rawPayload is the union of every payload shape the classifier accepts.
// Field lookup in encoding/json is case-insensitive, so "longName" also
// matches the "longname" key used by the firmware JSON uplink.
type rawPayload struct {
	Text string `json:"text"`

	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	LatitudeI  *int64   `json:"latitude_i"`
	LongitudeI *int64   `json:"longitude_i"`
	Altitude   *float64 `json:"altitude"`

	User      *rawUser        `json:"user"`
	LongName  string          `json:"longName"`
	ShortName string          `json:"shortName"`
	HwModel   json.RawMessage `json:"hwModel"`
	Hardware  json.RawMessage `json:"hardware"`

	BatteryLevel      *float64    `json:"batteryLevel"`
	BatteryLevelSnake *float64    `json:"battery_level"`
	Voltage           *float64    `json:"voltage"`
	DeviceMetrics     *rawMetrics `json:"deviceMetrics"`
}

type rawMetrics struct {
	BatteryLevel *float64 `json:"batteryLevel"`
	Voltage      *float64 `json:"voltage"`
}

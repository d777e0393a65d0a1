package models

import (
	"fmt"
	"time"
)

// MeshNode represents a Meshtastic node seen on the broker.
type MeshNode struct {
	NodeID        string     `db:"node_id" json:"node_id"`
	LongName      string     `db:"long_name" json:"long_name,omitempty"`
	ShortName     string     `db:"short_name" json:"short_name,omitempty"`
	HardwareModel string     `db:"hardware_model" json:"hardware_model,omitempty"`
	LastSeen      *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	BatteryLevel  *int       `db:"battery_level" json:"battery_level,omitempty"`
	Voltage       *float64   `db:"voltage" json:"voltage,omitempty"`
	Latitude      *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude     *float64   `db:"longitude" json:"longitude,omitempty"`
	Altitude      *float64   `db:"altitude" json:"altitude,omitempty"`
	MessageCount  int        `db:"message_count" json:"message_count"`
}

// HasLocation returns true if the node has location information.
func (n *MeshNode) HasLocation() bool {
	return n.Latitude != nil && n.Longitude != nil
}

// DisplayName returns the best known human readable name for the node.
func (n *MeshNode) DisplayName() string {
	if n.LongName != "" {
		return n.LongName
	}
	if n.ShortName != "" {
		return n.ShortName
	}
	return UnknownNodeName(n.NodeID)
}

// UnknownSender labels traffic that carried no node ID at all.
const UnknownSender = "unknown"

// UnknownNodeName is the label used for nodes that never sent their identity.
func UnknownNodeName(nodeID string) string {
	if nodeID == "" {
		return UnknownSender
	}
	return fmt.Sprintf("Node %s", nodeID)
}

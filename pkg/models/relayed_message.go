package models

import "time"

// Direction of a relayed message relative to the mesh.
type Direction string

const (
	DirectionToMesh   Direction = "to_mesh"
	DirectionFromMesh Direction = "from_mesh"
	DirectionCommand  Direction = "command"
)

// Message kinds recorded in the relay log.
const (
	MessageKindText     = "text"
	MessageKindPosition = "position"
	MessageKindCommand  = "command"
)

// RelayedMessage is an append-only record of traffic passing through the bridge.
type RelayedMessage struct {
	ID int64 `db:"id"`
	// Direction is one of to_mesh, from_mesh or command
	Direction Direction `db:"direction"`
	// ChatID is the Telegram chat, 0 for mesh originated traffic
	ChatID int64 `db:"chat_id"`
	// MeshNode is the originating node ID for mesh traffic
	MeshNode    *string   `db:"mesh_node"`
	Content     string    `db:"content"`
	MessageKind string    `db:"message_kind"`
	Created     time.Time `db:"created_at"`
}

package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
)

var selectMeshNodes = `SELECT * FROM mesh_nodes`

// MeshNodeStore persists snapshots of the node registry.
type MeshNodeStore interface {
	GetNode(nodeID string) (*models.MeshNode, error)
	SaveNode(node *models.MeshNode) error
	GetAllNodes() ([]*models.MeshNode, error)
}

type postgresMeshNodeStore struct {
	db *sqlx.DB
}

func NewMeshNodes(dbconn *sqlx.DB) MeshNodeStore {
	return &postgresMeshNodeStore{db: dbconn}
}

func (s *postgresMeshNodeStore) GetNode(nodeID string) (*models.MeshNode, error) {
	query := selectMeshNodes + " WHERE node_id = $1;"
	var node models.MeshNode
	err := s.db.Get(&node, query, nodeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// SaveNode inserts or replaces the stored snapshot of node.
func (s *postgresMeshNodeStore) SaveNode(node *models.MeshNode) error {
	stmt := `
	INSERT INTO mesh_nodes (node_id, long_name, short_name, hardware_model, last_seen,
		battery_level, voltage, latitude, longitude, altitude, message_count)
	VALUES (:node_id, :long_name, :short_name, :hardware_model, :last_seen,
		:battery_level, :voltage, :latitude, :longitude, :altitude, :message_count)
	ON CONFLICT (node_id)
	DO UPDATE SET
		long_name = :long_name,
		short_name = :short_name,
		hardware_model = :hardware_model,
		last_seen = GREATEST(mesh_nodes.last_seen, :last_seen),
		battery_level = :battery_level,
		voltage = :voltage,
		latitude = :latitude,
		longitude = :longitude,
		altitude = :altitude,
		message_count = :message_count
	;`

	_, err := s.db.NamedExec(stmt, node)
	return err
}

// GetAllNodes returns every stored node, most recently seen first.
func (s *postgresMeshNodeStore) GetAllNodes() ([]*models.MeshNode, error) {
	query := selectMeshNodes + " ORDER BY last_seen DESC NULLS LAST, node_id;"
	nodes := []*models.MeshNode{}
	err := s.db.Select(&nodes, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
)

// ActiveWindow is how recently a user must have sent something to count
// as active in the statistics.
const ActiveWindow = "24 hours"

type MessageStore interface {
	LogMessage(msg *models.RelayedMessage) error
	GetStats() (*models.Stats, error)
}

type postgresMessageStore struct {
	db *sqlx.DB
}

func NewMessages(dbconn *sqlx.DB) MessageStore {
	return &postgresMessageStore{db: dbconn}
}

// LogMessage appends msg to the relay log. Messages sent to the mesh also
// bump the sender's counters in the same transaction.
func (s *postgresMessageStore) LogMessage(msg *models.RelayedMessage) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := `
	INSERT INTO relayed_messages (direction, chat_id, mesh_node, content, message_kind, created_at)
	VALUES (:direction, :chat_id, :mesh_node, :content, :message_kind, :created_at);
	`
	if _, err := tx.NamedExec(stmt, msg); err != nil {
		return fmt.Errorf("inserting relayed message: %w", err)
	}

	if msg.Direction == models.DirectionToMesh {
		stmt := `
		UPDATE chat_users
		SET message_count = message_count + 1, last_active = $2
		WHERE chat_id = $1;
		`
		if _, err := tx.Exec(stmt, msg.ChatID, msg.Created); err != nil {
			return fmt.Errorf("updating user activity: %w", err)
		}
	}

	return tx.Commit()
}

func (s *postgresMessageStore) GetStats() (*models.Stats, error) {
	stmt := `
	SELECT
		(SELECT COUNT(*) FROM chat_users) AS total_users,
		(SELECT COUNT(*) FROM chat_users WHERE last_active > NOW() - INTERVAL '` + ActiveWindow + `') AS active_users,
		(SELECT COUNT(*) FROM relayed_messages WHERE direction = 'to_mesh') AS to_mesh,
		(SELECT COUNT(*) FROM relayed_messages WHERE direction = 'from_mesh') AS from_mesh,
		(SELECT COUNT(*) FROM relayed_messages WHERE direction = 'command') AS commands,
		(SELECT COUNT(*) FROM mesh_nodes) AS total_nodes;
	`
	var stats models.Stats
	if err := s.db.Get(&stats, stmt); err != nil {
		return nil, err
	}
	return &stats, nil
}

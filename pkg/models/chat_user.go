package models

import "time"

type ChatUser struct {
	ID           int        `db:"id"`
	ChatID       int64      `db:"chat_id"`
	UserName     *string    `db:"username"`
	FirstName    *string    `db:"first_name"`
	LastName     *string    `db:"last_name"`
	IsAdmin      bool       `db:"is_admin"`
	IsApproved   bool       `db:"is_approved"`
	MessageCount int        `db:"message_count"`
	Created      time.Time  `db:"created_at"`
	LastActive   *time.Time `db:"last_active"`
}

// Stats is the aggregate reported by the /stats command and the status API.
type Stats struct {
	TotalUsers  int `db:"total_users" json:"total_users"`
	ActiveUsers int `db:"active_users" json:"active_users"`
	ToMesh      int `db:"to_mesh" json:"to_mesh"`
	FromMesh    int `db:"from_mesh" json:"from_mesh"`
	Commands    int `db:"commands" json:"commands"`
	TotalNodes  int `db:"total_nodes" json:"total_nodes"`
}

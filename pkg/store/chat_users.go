package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jmoiron/sqlx"

	"github.com/kabili207/mesh-telegram-bridge/pkg/models"
)

var selectChatUsers = `SELECT u.* FROM chat_users u`

const adminCacheTTL = 15 * time.Minute

type ChatUserStore interface {
	AddOrGetUser(chatID int64, username, firstName, lastName string, isAdmin bool) (*models.ChatUser, error)
	GetByChatID(chatID int64) (*models.ChatUser, error)
	GetAll() ([]*models.ChatUser, error)
	IsAdmin(chatID int64) (bool, error)
	Close() error
}

type postgresChatUserStore struct {
	db         *sqlx.DB
	adminCache *ttlcache.Cache[int64, bool]
}

func NewChatUsers(dbconn *sqlx.DB) ChatUserStore {
	cache := ttlcache.New[int64, bool](
		ttlcache.WithTTL[int64, bool](adminCacheTTL),
	)
	go cache.Start()
	return &postgresChatUserStore{
		db:         dbconn,
		adminCache: cache,
	}
}

// AddOrGetUser registers the chat on first contact. Existing users are
// returned unchanged.
func (b *postgresChatUserStore) AddOrGetUser(chatID int64, username, firstName, lastName string, isAdmin bool) (*models.ChatUser, error) {
	stmt := `
	INSERT INTO chat_users (chat_id, username, first_name, last_name, is_admin)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (chat_id) DO NOTHING;
	`

	res, err := b.db.Exec(stmt, chatID, nullable(username), nullable(firstName), nullable(lastName), isAdmin)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("registered chat user", "chat_id", chatID, "username", username, "admin", isAdmin)
		b.adminCache.Delete(chatID)
	}
	return b.GetByChatID(chatID)
}

func (b *postgresChatUserStore) GetByChatID(chatID int64) (*models.ChatUser, error) {
	stmt := selectChatUsers + " WHERE u.chat_id = $1;"
	var user models.ChatUser
	err := b.db.Get(&user, stmt, chatID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAll returns every registered chat, the broadcast audience.
func (b *postgresChatUserStore) GetAll() ([]*models.ChatUser, error) {
	stmt := selectChatUsers + " ORDER BY u.created_at, u.id;"
	users := []*models.ChatUser{}
	err := b.db.Select(&users, stmt)
	if err == sql.ErrNoRows {
		return []*models.ChatUser{}, nil
	}
	return users, err
}

// IsAdmin reports the stored admin flag, false for unknown chats.
func (b *postgresChatUserStore) IsAdmin(chatID int64) (bool, error) {
	if isAdmin := b.adminCache.Get(chatID, ttlcache.WithDisableTouchOnHit[int64, bool]()); isAdmin != nil {
		return isAdmin.Value(), nil
	}
	slog.Debug("IsAdmin cache miss, querying database", "chat_id", chatID)
	u, err := b.GetByChatID(chatID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	b.adminCache.Set(chatID, u.IsAdmin, ttlcache.DefaultTTL)
	return u.IsAdmin, nil
}

func (b *postgresChatUserStore) Close() error {
	b.adminCache.Stop()
	return nil
}

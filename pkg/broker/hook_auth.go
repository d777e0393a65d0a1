package broker

import (
	"github.com/kabili207/mesh-telegram-bridge/pkg/auth"
)

func (h *AccessHook) validateUser(user, pass string) bool {
	u, ok := h.users[user]
	if !ok || user == "" {
		return false
	}
	return auth.VerifyPassword(pass, u.Salt, u.PasswordHash)
}

package bridge

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis marks text cut short by Truncate.
const Ellipsis = "…"

// FormatChatMessage renders a Telegram message for the mesh. The template
// may reference {user} and {message}.
func FormatChatMessage(template, user, message string) string {
	return strings.NewReplacer("{user}", user, "{message}", message).Replace(template)
}

// Truncate shortens message to at most maxLen runes, the last one being
// Ellipsis. It reports whether anything was cut.
func Truncate(message string, maxLen int) (string, bool) {
	if maxLen < 1 || utf8.RuneCountInString(message) <= maxLen {
		return message, false
	}

	var sb strings.Builder
	n := 0
	for _, r := range message {
		if n == maxLen-1 {
			break
		}
		sb.WriteRune(r)
		n++
	}
	sb.WriteString(Ellipsis)
	return sb.String(), true
}

// SenderName picks the name shown for a Telegram user.
func SenderName(firstName, userName string) string {
	if firstName != "" {
		return firstName
	}
	if userName != "" {
		return userName
	}
	return "Unknown"
}

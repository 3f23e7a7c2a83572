package identity

import (
	"strings"
	"time"
	"unicode"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Session is the signed-in user as seen by one tab. A nil *Session means
// signed out.
type Session struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider"`
}

// User is a stored password account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time
}

func (u *User) session() *Session {
	return &Session{UserID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Provider: ProviderPassword}
}

// ShortName renders "First L" for the navigation bar. It prefers the display
// name, falls back to the email local part split on '.', '_' or '-', and
// finally to "User".
func ShortName(s *Session) string {
	if s == nil {
		return "User"
	}
	if name := shortFromParts(strings.Fields(s.DisplayName)); name != "" {
		return name
	}
	local, _, _ := strings.Cut(s.Email, "@")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if name := shortFromParts(parts); name != "" {
		return name
	}
	return "User"
}

func shortFromParts(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	last := []rune(parts[len(parts)-1])
	return parts[0] + " " + string(unicode.ToUpper(last[0]))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

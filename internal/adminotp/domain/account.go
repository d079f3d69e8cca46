package domain

import (
	"strings"
	"time"
)

// Account is a console user, keyed by email.
type Account struct {
	ID           string
	Email        string
	PasswordHash string // argon2 encoded, empty when no password was ever set
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasUsablePassword reports whether a password was set.
func (a Account) HasUsablePassword() bool { return a.PasswordHash != "" }

// NormalizeEmail is the canonical form used for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package domain

import "time"

// OTPCredential is the single one-time-passcode slot of an account. Issuing
// a new code overwrites the slot, so at most one code is ever live.
type OTPCredential struct {
	AccountID  string
	SecretHash string // argon2 encoded
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Attempts   int
	ConsumedAt *time.Time
}

// Usable reports whether the credential may still satisfy a verification at
// now. A consumed, expired or exhausted credential never becomes usable again.
func (c OTPCredential) Usable(now time.Time, maxAttempts int) bool {
	switch {
	case c.SecretHash == "":
		return false
	case c.ConsumedAt != nil:
		return false
	case !now.Before(c.ExpiresAt):
		return false
	case maxAttempts > 0 && c.Attempts >= maxAttempts:
		return false
	}
	return true
}

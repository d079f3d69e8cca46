package service

import (
	"errors"

	"github.com/aussiebroadwan/adminotp/pkg/cryptox"
)

// Hasher is the credential hashing primitive shared by passwords and
// one-time passcodes.
type Hasher interface {
	Hash(secret string) (string, error)

	// Verify returns nil on match and cryptox.ErrMismatch otherwise.
	Verify(secret, encodedHash string) error
}

// Argon2Hasher is the production Hasher (argon2id with the global pepper).
type Argon2Hasher struct{}

func (Argon2Hasher) Hash(secret string) (string, error) { return cryptox.HashPassword(secret) }

func (Argon2Hasher) Verify(secret, encodedHash string) error {
	return cryptox.VerifyPassword(secret, encodedHash)
}

// unsatisfiableHash hashes a random 256-bit secret nobody keeps, so comparing
// against it costs a real verification and never matches.
func unsatisfiableHash(h Hasher) (string, error) {
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	return h.Hash(secret)
}

func isMismatch(err error) bool { return errors.Is(err, cryptox.ErrMismatch) }

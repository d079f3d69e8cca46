package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

var (
	ErrProvideBoth      = errors.New("Provide both of passwords") //nolint:staticcheck // user-facing message
	ErrPasswordMismatch = errors.New("Passwords should be same")  //nolint:staticcheck // user-facing message
)

// ValidatePasswordPair reports whether pair asks for a password change.
// Both fields empty means "leave the password alone".
func ValidatePasswordPair(pair domain.PasswordPair) (bool, error) {
	switch {
	case pair.Password1 == "" && pair.Password2 == "":
		return false, nil
	case pair.Password1 == "" || pair.Password2 == "":
		return false, ErrProvideBoth
	case pair.Password1 != pair.Password2:
		return false, ErrPasswordMismatch
	}
	return true, nil
}

type PasswordService struct {
	Store  store.Store
	Hasher Hasher
}

func NewPasswordService(st store.Store) *PasswordService {
	return &PasswordService{Store: st, Hasher: Argon2Hasher{}}
}

// ChangePassword stores the hash of pair's password when a change is
// requested. Returns whether the password changed.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID string, pair domain.PasswordPair) (bool, error) {
	change, err := ValidatePasswordPair(pair)
	if err != nil || !change {
		return false, err
	}

	hash, err := s.Hasher.Hash(pair.Password1)
	if err != nil {
		return false, err
	}

	if err := s.Store.Accounts().UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return false, err
	}

	slogx.FromContext(ctx).Info("account password changed", slog.String("account_id", accountID))
	return true, nil
}

// CheckPassword verifies candidate against the account's password in
// constant time. Accounts without a password never match.
func (s *PasswordService) CheckPassword(ctx context.Context, accountID, candidate string) (bool, error) {
	acct, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if !acct.HasUsablePassword() {
		return false, nil
	}

	err = s.Hasher.Verify(candidate, acct.PasswordHash)
	switch {
	case err == nil:
		return true, nil
	case isMismatch(err):
		return false, nil
	default:
		return false, err
	}
}

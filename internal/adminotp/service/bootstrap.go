package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/pkg/cryptox"
	"github.com/aussiebroadwan/adminotp/pkg/idx"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

var (
	ErrBootstrapAlready             = errors.New("system already bootstrapped")
	ErrBootstrapUnauthorized        = errors.New("unauthorized bootstrap attempt")
	ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin account")
)

type BootstrapService struct {
	Store store.Store
	Token string // Pre-configured bootstrap token, empty disables bootstrap
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Accounts().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// Bootstrap creates the first admin account and returns its id.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string, req domain.BootstrapData) (string, error) {
	l := slogx.FromContext(ctx)

	if s.Token == "" || !cryptox.EqualTokens(token, s.Token) {
		l.Warn("unauthorized bootstrap attempt", slog.String("token_fingerprint", cryptox.FingerprintToken(token)))
		return "", ErrBootstrapUnauthorized
	}

	if bootstrapped, err := s.IsBootstrapped(ctx); err != nil {
		return "", err
	} else if bootstrapped {
		l.Warn("attempted bootstrap on already-bootstrapped system")
		return "", ErrBootstrapAlready
	}

	var passHash string
	if req.AdminPassword != "" {
		var err error
		if passHash, err = cryptox.HashPassword(req.AdminPassword); err != nil {
			l.Error("failed to hash admin password", slog.Any("error", err))
			return "", ErrBootstrapFailedToCreateAdmin
		}
	}

	accountID := idx.New().String()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Re-check inside the transaction so two bootstraps cannot both win.
		empty, err := tx.Accounts().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapAlready
		}

		err = tx.Accounts().CreateAccount(ctx, domain.Account{
			ID:           accountID,
			Email:        domain.NormalizeEmail(req.AdminEmail),
			PasswordHash: passHash,
			IsActive:     true,
		})
		if err != nil {
			l.Error("failed to create admin account",
				slog.String("account_id", accountID),
				slog.Any("error", err),
			)
			return ErrBootstrapFailedToCreateAdmin
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	l.Info("successfully bootstrapped system", slog.String("admin_account_id", accountID))
	return accountID, nil
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
)

func TestBootstrapService(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &BootstrapService{Store: st, Token: "s3cret"}

	done, err := svc.IsBootstrapped(ctx)
	require.NoError(t, err)
	require.False(t, done)

	_, err = svc.Bootstrap(ctx, "wrong", domain.BootstrapData{AdminEmail: "ops@example.com"})
	require.ErrorIs(t, err, ErrBootstrapUnauthorized)

	id, err := svc.Bootstrap(ctx, "s3cret", domain.BootstrapData{
		AdminEmail: " Ops@Example.com", AdminPassword: "correct-horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	acct, err := st.Accounts().GetAccountByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Equal(t, id, acct.ID)
	require.True(t, acct.IsActive)
	require.True(t, acct.HasUsablePassword())

	_, err = svc.Bootstrap(ctx, "s3cret", domain.BootstrapData{AdminEmail: "other@example.com"})
	require.ErrorIs(t, err, ErrBootstrapAlready)
}

func TestBootstrapService_DisabledWithoutToken(t *testing.T) {
	svc := &BootstrapService{Store: newTestStore(t)}
	_, err := svc.Bootstrap(context.Background(), "", domain.BootstrapData{AdminEmail: "ops@example.com"})
	require.ErrorIs(t, err, ErrBootstrapUnauthorized)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
)

func TestValidatePasswordPair(t *testing.T) {
	tests := []struct {
		name       string
		pair       domain.PasswordPair
		wantChange bool
		wantErr    error
	}{
		{"both empty", domain.PasswordPair{}, false, nil},
		{"second empty", domain.PasswordPair{Password1: "a"}, false, ErrProvideBoth},
		{"first empty", domain.PasswordPair{Password2: "a"}, false, ErrProvideBoth},
		{"mismatch", domain.PasswordPair{Password1: "a", Password2: "b"}, false, ErrPasswordMismatch},
		{"equal", domain.PasswordPair{Password1: "a", Password2: "a"}, true, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			change, err := ValidatePasswordPair(tc.pair)
			require.Equal(t, tc.wantChange, change)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	require.Equal(t, "Provide both of passwords", ErrProvideBoth.Error())
	require.Equal(t, "Passwords should be same", ErrPasswordMismatch.Error())
}

func TestPasswordService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedAccount(t, st, "acct-1", "ops@example.com")
	svc := NewPasswordService(st)

	changed, err := svc.ChangePassword(ctx, "acct-1", domain.PasswordPair{})
	require.NoError(t, err)
	require.False(t, changed)

	ok, err := svc.CheckPassword(ctx, "acct-1", "")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.ChangePassword(ctx, "acct-1", domain.PasswordPair{Password1: "a", Password2: "b"})
	require.ErrorIs(t, err, ErrPasswordMismatch)

	changed, err = svc.ChangePassword(ctx, "acct-1", domain.PasswordPair{Password1: "a", Password2: "a"})
	require.NoError(t, err)
	require.True(t, changed)

	acct, err := st.Accounts().GetAccountByID(ctx, "acct-1")
	require.NoError(t, err)
	require.NotEqual(t, "a", acct.PasswordHash)
	require.NotContains(t, acct.PasswordHash, "$a$")

	ok, err = svc.CheckPassword(ctx, "acct-1", "a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CheckPassword(ctx, "acct-1", "b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPasswordService_UnknownAccount(t *testing.T) {
	svc := NewPasswordService(newTestStore(t))

	_, err := svc.ChangePassword(context.Background(), "missing", domain.PasswordPair{Password1: "a", Password2: "a"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

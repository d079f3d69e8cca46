package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

func TestHousekeeping_Cleanup(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedAccount(t, st, "acct-1", "ops@example.com")

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.Credentials().PutCredential(ctx, domain.OTPCredential{
		AccountID: "acct-1", SecretHash: "h", IssuedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-5 * time.Minute),
	}))

	hk := NewHousekeepingService(st, slogx.Discard(), 0)
	require.Equal(t, time.Hour, hk.Interval)
	hk.Now = func() time.Time { return now }

	require.Equal(t, int64(1), hk.Cleanup(ctx))
	_, err := st.Credentials().GetCredential(ctx, "acct-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeeping_StartStop(t *testing.T) {
	hk := NewHousekeepingService(newTestStore(t), slogx.Discard(), time.Millisecond)
	hk.Start()
	time.Sleep(5 * time.Millisecond)
	hk.Stop()
}

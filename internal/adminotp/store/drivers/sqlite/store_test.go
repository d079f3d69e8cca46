package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAccount(t *testing.T, s store.Store, id, email string) domain.Account {
	t.Helper()
	a := domain.Account{ID: id, Email: email, IsActive: true}
	require.NoError(t, s.Accounts().CreateAccount(context.Background(), a))
	return a
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := s.Accounts().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	seedAccount(t, s, "a1", "ops@example.com")

	err = s.Accounts().CreateAccount(ctx, domain.Account{ID: "a2", Email: "ops@example.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.Accounts().GetAccountByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Equal(t, "a1", got.ID)
	require.True(t, got.IsActive)
	require.False(t, got.HasUsablePassword())

	require.NoError(t, s.Accounts().UpdatePasswordHash(ctx, "a1", "$argon2id$x"))
	got, err = s.Accounts().GetAccountByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "$argon2id$x", got.PasswordHash)

	_, err = s.Accounts().GetAccountByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.Accounts().UpdatePasswordHash(ctx, "missing", "h"), store.ErrNotFound)

	empty, err = s.Accounts().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestCredentials_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAccount(t, s, "a1", "ops@example.com")

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	creds := s.Credentials()

	_, err := creds.GetCredential(ctx, "a1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, creds.PutCredential(ctx, domain.OTPCredential{
		AccountID: "a1", SecretHash: "old", IssuedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))
	_, err = creds.RecordFailedAttempt(ctx, "a1", "old")
	require.NoError(t, err)

	require.NoError(t, creds.PutCredential(ctx, domain.OTPCredential{
		AccountID: "a1", SecretHash: "new", IssuedAt: now.Add(time.Minute), ExpiresAt: now.Add(6 * time.Minute),
	}))

	got, err := creds.GetCredential(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "new", got.SecretHash)
	require.Equal(t, 0, got.Attempts)
	require.Nil(t, got.ConsumedAt)
	require.True(t, got.ExpiresAt.Equal(now.Add(6*time.Minute)))

	// The superseded hash no longer matches anything.
	_, err = creds.RecordFailedAttempt(ctx, "a1", "old")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, creds.ConsumeCredential(ctx, "a1", "old", now, 5), store.ErrNotFound)
}

func TestCredentials_Consume(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cred    domain.OTPCredential
		at      time.Time
		wantErr error
	}{
		{
			name: "fresh",
			cred: domain.OTPCredential{SecretHash: "h", IssuedAt: now, ExpiresAt: now.Add(time.Minute)},
			at:   now,
		},
		{
			name:    "expired",
			cred:    domain.OTPCredential{SecretHash: "h", IssuedAt: now, ExpiresAt: now.Add(time.Minute)},
			at:      now.Add(time.Minute),
			wantErr: store.ErrNotFound,
		},
		{
			name:    "exhausted",
			cred:    domain.OTPCredential{SecretHash: "h", IssuedAt: now, ExpiresAt: now.Add(time.Minute), Attempts: 5},
			at:      now,
			wantErr: store.ErrNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t)
			seedAccount(t, s, "a1", "ops@example.com")
			tc.cred.AccountID = "a1"
			require.NoError(t, s.Credentials().PutCredential(ctx, tc.cred))

			err := s.Credentials().ConsumeCredential(ctx, "a1", "h", tc.at, 5)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			got, err := s.Credentials().GetCredential(ctx, "a1")
			require.NoError(t, err)
			require.NotNil(t, got.ConsumedAt)

			// Replay fails.
			require.ErrorIs(t, s.Credentials().ConsumeCredential(ctx, "a1", "h", tc.at, 5), store.ErrNotFound)
		})
	}
}

func TestCredentials_ConcurrentConsumeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAccount(t, s, "a1", "ops@example.com")

	now := time.Now()
	require.NoError(t, s.Credentials().PutCredential(ctx, domain.OTPCredential{
		AccountID: "a1", SecretHash: "h", IssuedAt: now, ExpiresAt: now.Add(time.Minute),
	}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Credentials().ConsumeCredential(ctx, "a1", "h", now, 5)
			if err == nil {
				wins.Add(1)
			} else if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestCredentials_DeleteStale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAccount(t, s, "a1", "one@example.com")
	seedAccount(t, s, "a2", "two@example.com")
	seedAccount(t, s, "a3", "three@example.com")

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	consumed := now.Add(-time.Minute)
	creds := s.Credentials()

	require.NoError(t, creds.PutCredential(ctx, domain.OTPCredential{
		AccountID: "a1", SecretHash: "h", IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, creds.PutCredential(ctx, domain.OTPCredential{
		AccountID: "a2", SecretHash: "h", IssuedAt: now.Add(-2 * time.Minute), ExpiresAt: now.Add(time.Minute), ConsumedAt: &consumed,
	}))
	require.NoError(t, creds.PutCredential(ctx, domain.OTPCredential{
		AccountID: "a3", SecretHash: "h", IssuedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))

	n, err := creds.DeleteStaleCredentials(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	_, err = creds.GetCredential(ctx, "a3")
	require.NoError(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().CreateAccount(ctx, domain.Account{ID: "a1", Email: "ops@example.com"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	empty, err := s.Accounts().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Tx(ctx)
		require.Error(t, err)
		return tx.Accounts().CreateAccount(ctx, domain.Account{ID: "a1", Email: "ops@example.com"})
	}))

	empty, err = s.Accounts().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

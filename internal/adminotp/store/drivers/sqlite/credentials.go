package sqlite

import (
	"context"
	"math"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
)

type credentialsRepo struct {
	q    *queries
	ping func(ctx context.Context) error
}

func (r *credentialsRepo) PutCredential(ctx context.Context, c domain.OTPCredential) error {
	return r.q.UpsertCredential(ctx, credentialRow{
		AccountID:  c.AccountID,
		SecretHash: c.SecretHash,
		IssuedAt:   toMillis(c.IssuedAt),
		ExpiresAt:  toMillis(c.ExpiresAt),
		Attempts:   int64(c.Attempts),
		ConsumedAt: toNullMillis(c.ConsumedAt),
	})
}

func (r *credentialsRepo) GetCredential(ctx context.Context, accountID string) (domain.OTPCredential, error) {
	row, err := r.q.GetCredential(ctx, accountID)
	if err != nil {
		return domain.OTPCredential{}, mapNotFound(err)
	}
	return domain.OTPCredential{
		AccountID:  row.AccountID,
		SecretHash: row.SecretHash,
		IssuedAt:   fromMillis(row.IssuedAt),
		ExpiresAt:  fromMillis(row.ExpiresAt),
		Attempts:   int(row.Attempts),
		ConsumedAt: fromNullMillis(row.ConsumedAt),
	}, nil
}

func (r *credentialsRepo) RecordFailedAttempt(ctx context.Context, accountID, secretHash string) (int, error) {
	n, err := r.q.IncrementCredentialAttempts(ctx, accountID, secretHash)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return int(n), nil
}

func (r *credentialsRepo) ConsumeCredential(
	ctx context.Context,
	accountID, secretHash string,
	now time.Time,
	maxAttempts int,
) error {
	if maxAttempts <= 0 {
		maxAttempts = math.MaxInt32
	}
	n, err := r.q.ConsumeCredential(ctx, toMillis(now), accountID, secretHash, int64(maxAttempts))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *credentialsRepo) DeleteStaleCredentials(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.q.DeleteStaleCredentials(ctx, toMillis(cutoff))
}

func (r *credentialsRepo) Ping(ctx context.Context) error { return r.ping(ctx) }

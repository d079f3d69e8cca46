package sqlite

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries { return &queries{db: db} }

type accountRow struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     int64
	CreatedAt    int64
	UpdatedAt    int64
}

type credentialRow struct {
	AccountID  string
	SecretHash string
	IssuedAt   int64
	ExpiresAt  int64
	Attempts   int64
	ConsumedAt sql.NullInt64
}

const getAccountByID = `-- name: GetAccountByID :one
SELECT id, email, password_hash, is_active, created_at, updated_at
FROM accounts
WHERE id = ?`

func (q *queries) GetAccountByID(ctx context.Context, id string) (accountRow, error) {
	var r accountRow
	err := q.db.QueryRowContext(ctx, getAccountByID, id).Scan(
		&r.ID, &r.Email, &r.PasswordHash, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const getAccountByEmail = `-- name: GetAccountByEmail :one
SELECT id, email, password_hash, is_active, created_at, updated_at
FROM accounts
WHERE email = ?`

func (q *queries) GetAccountByEmail(ctx context.Context, email string) (accountRow, error) {
	var r accountRow
	err := q.db.QueryRowContext(ctx, getAccountByEmail, email).Scan(
		&r.ID, &r.Email, &r.PasswordHash, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const createAccount = `-- name: CreateAccount :exec
INSERT INTO accounts (id, email, password_hash, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *queries) CreateAccount(ctx context.Context, r accountRow) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		r.ID, r.Email, r.PasswordHash, r.IsActive, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

const updateAccountPasswordHash = `-- name: UpdateAccountPasswordHash :execrows
UPDATE accounts
SET password_hash = ?, updated_at = ?
WHERE id = ?`

func (q *queries) UpdateAccountPasswordHash(ctx context.Context, hash string, updatedAt int64, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateAccountPasswordHash, hash, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countAccounts = `-- name: CountAccounts :one
SELECT COUNT(*) FROM accounts`

func (q *queries) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAccounts).Scan(&n)
	return n, err
}

const upsertCredential = `-- name: UpsertCredential :exec
INSERT INTO otp_credentials (account_id, secret_hash, issued_at, expires_at, attempts, consumed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (account_id) DO UPDATE SET
    secret_hash = excluded.secret_hash,
    issued_at   = excluded.issued_at,
    expires_at  = excluded.expires_at,
    attempts    = excluded.attempts,
    consumed_at = excluded.consumed_at`

func (q *queries) UpsertCredential(ctx context.Context, r credentialRow) error {
	_, err := q.db.ExecContext(ctx, upsertCredential,
		r.AccountID, r.SecretHash, r.IssuedAt, r.ExpiresAt, r.Attempts, r.ConsumedAt,
	)
	return err
}

const getCredential = `-- name: GetCredential :one
SELECT account_id, secret_hash, issued_at, expires_at, attempts, consumed_at
FROM otp_credentials
WHERE account_id = ?`

func (q *queries) GetCredential(ctx context.Context, accountID string) (credentialRow, error) {
	var r credentialRow
	err := q.db.QueryRowContext(ctx, getCredential, accountID).Scan(
		&r.AccountID, &r.SecretHash, &r.IssuedAt, &r.ExpiresAt, &r.Attempts, &r.ConsumedAt,
	)
	return r, err
}

const incrementCredentialAttempts = `-- name: IncrementCredentialAttempts :one
UPDATE otp_credentials
SET attempts = attempts + 1
WHERE account_id = ? AND secret_hash = ?
RETURNING attempts`

func (q *queries) IncrementCredentialAttempts(ctx context.Context, accountID, secretHash string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, incrementCredentialAttempts, accountID, secretHash).Scan(&n)
	return n, err
}

const consumeCredential = `-- name: ConsumeCredential :execrows
UPDATE otp_credentials
SET consumed_at = ?
WHERE account_id = ?
  AND secret_hash = ?
  AND consumed_at IS NULL
  AND expires_at > ?
  AND attempts < ?`

func (q *queries) ConsumeCredential(ctx context.Context, now int64, accountID, secretHash string, maxAttempts int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, consumeCredential, now, accountID, secretHash, now, maxAttempts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteStaleCredentials = `-- name: DeleteStaleCredentials :execrows
DELETE FROM otp_credentials
WHERE expires_at <= ? OR (consumed_at IS NOT NULL AND consumed_at <= ?)`

func (q *queries) DeleteStaleCredentials(ctx context.Context, cutoff int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteStaleCredentials, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Sub-repositories are exposed as
// methods so a Tx-scoped Store hands out Tx-scoped repositories and nobody
// opens a transaction inside a transaction by accident.
type Store interface {
	Accounts() Accounts
	Credentials() Credentials

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail expects a normalised email.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// CreateAccount returns ErrAlreadyExists when the email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash sets the argon2 hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error

	// IsEmpty returns true if there are no accounts.
	IsEmpty(ctx context.Context) (bool, error)
}

// Credentials holds the one-time-passcode slot of each account. It is
// separate from Accounts so it can live in a different backend.
type Credentials interface {
	// PutCredential overwrites the account's slot (last writer wins).
	PutCredential(ctx context.Context, c domain.OTPCredential) error

	// GetCredential returns ErrNotFound when nothing was issued.
	GetCredential(ctx context.Context, accountID string) (domain.OTPCredential, error)

	// RecordFailedAttempt bumps the attempt counter of the credential with
	// secretHash and returns the new count. ErrNotFound means the slot now
	// holds a different credential.
	RecordFailedAttempt(ctx context.Context, accountID, secretHash string) (int, error)

	// ConsumeCredential atomically marks the credential with secretHash as
	// consumed, provided it is still unconsumed, unexpired at now and has
	// fewer than maxAttempts failures. ErrNotFound means another caller won
	// or the credential was superseded.
	ConsumeCredential(ctx context.Context, accountID, secretHash string, now time.Time, maxAttempts int) error

	// DeleteStaleCredentials removes credentials that expired or were
	// consumed before cutoff. Returns the number removed.
	DeleteStaleCredentials(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
}

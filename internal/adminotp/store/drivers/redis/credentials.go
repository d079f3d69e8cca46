// Package redis keeps the one-time-passcode slots in Redis. Each account owns
// a single hash key that expires together with the code it holds, so stale
// slots disappear without housekeeping.
package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "adminotp:otp:"

const (
	fieldSecretHash = "secret_hash"
	fieldIssuedAt   = "issued_at"
	fieldExpiresAt  = "expires_at"
	fieldAttempts   = "attempts"
	fieldConsumedAt = "consumed_at"
)

// incrementScript bumps the attempt counter only while the slot still holds
// the given hash. Returns -1 when it does not.
var incrementScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "secret_hash") ~= ARGV[1] then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// consumeScript marks the slot consumed when it holds the given hash, is
// unconsumed, unexpired at ARGV[2] and below ARGV[3] attempts.
var consumeScript = redis.NewScript(`
local h = redis.call("HMGET", KEYS[1], "secret_hash", "expires_at", "attempts", "consumed_at")
if h[1] ~= ARGV[1] then
  return 0
end
if h[4] then
  return 0
end
if tonumber(h[2]) <= tonumber(ARGV[2]) then
  return 0
end
if tonumber(h[3] or "0") >= tonumber(ARGV[3]) then
  return 0
end
redis.call("HSET", KEYS[1], "consumed_at", ARGV[2])
return 1
`)

type Credentials struct {
	client redis.UniversalClient
	prefix string
}

var _ store.Credentials = (*Credentials)(nil)

func NewCredentials(client redis.UniversalClient) *Credentials {
	return &Credentials{client: client, prefix: DefaultKeyPrefix}
}

// WithKeyPrefix returns a copy that namespaces keys under prefix.
func (c *Credentials) WithKeyPrefix(prefix string) *Credentials {
	cp := *c
	cp.prefix = prefix
	return &cp
}

// NewClientFromURL parses a redis:// or rediss:// URL.
func NewClientFromURL(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *Credentials) key(accountID string) string { return c.prefix + accountID }

func (c *Credentials) PutCredential(ctx context.Context, cred domain.OTPCredential) error {
	key := c.key(cred.AccountID)

	fields := map[string]any{
		fieldSecretHash: cred.SecretHash,
		fieldIssuedAt:   cred.IssuedAt.UnixMilli(),
		fieldExpiresAt:  cred.ExpiresAt.UnixMilli(),
		fieldAttempts:   cred.Attempts,
	}
	if cred.ConsumedAt != nil {
		fields[fieldConsumedAt] = cred.ConsumedAt.UnixMilli()
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.PExpireAt(ctx, key, cred.ExpiresAt)
		return nil
	})
	return err
}

func (c *Credentials) GetCredential(ctx context.Context, accountID string) (domain.OTPCredential, error) {
	vals, err := c.client.HGetAll(ctx, c.key(accountID)).Result()
	if err != nil {
		return domain.OTPCredential{}, err
	}
	if len(vals) == 0 {
		return domain.OTPCredential{}, store.ErrNotFound
	}

	cred := domain.OTPCredential{
		AccountID:  accountID,
		SecretHash: vals[fieldSecretHash],
	}
	if cred.IssuedAt, err = parseMillis(vals[fieldIssuedAt]); err != nil {
		return domain.OTPCredential{}, err
	}
	if cred.ExpiresAt, err = parseMillis(vals[fieldExpiresAt]); err != nil {
		return domain.OTPCredential{}, err
	}
	if cred.Attempts, err = strconv.Atoi(vals[fieldAttempts]); err != nil {
		return domain.OTPCredential{}, fmt.Errorf("redis: attempts: %w", err)
	}
	if raw, ok := vals[fieldConsumedAt]; ok {
		t, err := parseMillis(raw)
		if err != nil {
			return domain.OTPCredential{}, err
		}
		cred.ConsumedAt = &t
	}
	return cred, nil
}

func (c *Credentials) RecordFailedAttempt(ctx context.Context, accountID, secretHash string) (int, error) {
	n, err := incrementScript.Run(ctx, c.client, []string{c.key(accountID)}, secretHash).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (c *Credentials) ConsumeCredential(
	ctx context.Context,
	accountID, secretHash string,
	now time.Time,
	maxAttempts int,
) error {
	if maxAttempts <= 0 {
		maxAttempts = math.MaxInt32
	}
	n, err := consumeScript.Run(ctx, c.client, []string{c.key(accountID)},
		secretHash, now.UnixMilli(), maxAttempts,
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteStaleCredentials is a no-op: keys carry their own expiry.
func (c *Credentials) DeleteStaleCredentials(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (c *Credentials) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, errors.Join(errors.New("redis: malformed timestamp"), err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

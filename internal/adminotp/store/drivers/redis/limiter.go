package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/adminotp/pkg/idx"
)

const DefaultIssueKeyPrefix = "adminotp:issue:"

// windowScript keeps one sorted set of issuance times per account. It drops
// entries scored at or before ARGV[1] and admits member ARGV[4] at ARGV[2]
// when fewer than ARGV[3] remain. ARGV[5] is the window in milliseconds.
var windowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

// IssueLimiter is a sliding-window issuance cap shared by every replica that
// talks to the same redis.
type IssueLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewIssueLimiter(client redis.UniversalClient, limit int, window time.Duration) *IssueLimiter {
	return &IssueLimiter{client: client, prefix: DefaultIssueKeyPrefix, limit: max(limit, 1), window: window}
}

// WithKeyPrefix returns a copy that namespaces keys under prefix.
func (l *IssueLimiter) WithKeyPrefix(prefix string) *IssueLimiter {
	cp := *l
	cp.prefix = prefix
	return &cp
}

func (l *IssueLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	if l.window <= 0 {
		return true, nil
	}
	n, err := windowScript.Run(ctx, l.client, []string{l.prefix + key},
		now.Add(-l.window).UnixMilli(), now.UnixMilli(), l.limit,
		idx.NewAt(now).String(), l.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *IssueLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}

// Package ratex holds token-bucket and sliding-window limiters keyed by an
// arbitrary string (client IP, account id, ...).
package ratex

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleSweepInterval is how often idle limiters are dropped from the map.
const idleSweepInterval = 5 * time.Minute

// Config is expressed as "Events per Window", refilling continuously.
type Config struct {
	Events int
	Window time.Duration
	Burst  int
}

// Every returns the refill interval for a single token.
func (c Config) Every() rate.Limit {
	if c.Events <= 0 || c.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.Events) / c.Window.Seconds())
}

// KeyedLimiter lazily creates one rate.Limiter per key.
type KeyedLimiter struct {
	cfg      Config
	limiters sync.Map // map[string]*rate.Limiter

	mu        sync.Mutex
	lastSweep time.Time
}

func NewKeyedLimiter(cfg Config) *KeyedLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(cfg.Events, 1)
	}
	return &KeyedLimiter{cfg: cfg, lastSweep: time.Now()}
}

// Config returns the parameters the limiter was built with.
func (k *KeyedLimiter) Config() Config { return k.cfg }

// Allow reports whether one event for key may happen now.
func (k *KeyedLimiter) Allow(key string) bool {
	return k.AllowAt(key, time.Now())
}

// AllowAt is Allow evaluated at an explicit instant.
func (k *KeyedLimiter) AllowAt(key string, now time.Time) bool {
	return k.limiter(key, now).AllowN(now, 1)
}

// RetryAfter estimates how long until key regains a token. It does not
// consume anything.
func (k *KeyedLimiter) RetryAfter(key string, now time.Time) time.Duration {
	r := k.limiter(key, now).ReserveN(now, 1)
	if !r.OK() {
		return k.cfg.Window
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// Reset forgets the bucket for key.
func (k *KeyedLimiter) Reset(key string) {
	k.limiters.Delete(key)
}

// Len counts tracked keys.
func (k *KeyedLimiter) Len() int {
	n := 0
	k.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (k *KeyedLimiter) limiter(key string, now time.Time) *rate.Limiter {
	if l, ok := k.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	l := rate.NewLimiter(k.cfg.Every(), k.cfg.Burst)
	actual, _ := k.limiters.LoadOrStore(key, l)

	k.maybeSweep(now)
	return actual.(*rate.Limiter)
}

// maybeSweep drops limiters whose bucket has refilled completely; such keys
// carry no state worth remembering.
func (k *KeyedLimiter) maybeSweep(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) < idleSweepInterval {
		return
	}
	k.lastSweep = now

	k.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(k.cfg.Burst) {
			k.limiters.Delete(key)
		}
		return true
	})
}
